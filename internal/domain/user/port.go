package user

import "context"

// Directory is the user store consumed by authentication. Lookups return
// domain.ErrNotFound when the record is absent.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByIDWithRole(ctx context.Context, id int64) (*User, error)
	FindRoleByID(ctx context.Context, id int64) (*Role, error)
	Create(ctx context.Context, u *User) error
}
