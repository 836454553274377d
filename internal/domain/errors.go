package domain

import "errors"

// Storage sentinels shared by every repository adapter.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
