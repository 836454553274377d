package auth

import (
	"time"

	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
)

// Outcome is the result of a request that reached a decision. Rejections
// carry only a message key, never a payload.
type Outcome[T any] struct {
	ok      bool
	key     domainauth.MessageKey
	payload T
}

func succeed[T any](key domainauth.MessageKey, payload T) Outcome[T] {
	return Outcome[T]{ok: true, key: key, payload: payload}
}

func reject[T any](key domainauth.MessageKey) Outcome[T] {
	return Outcome[T]{key: key}
}

func (o Outcome[T]) Succeeded() bool { return o.ok }

func (o Outcome[T]) Key() domainauth.MessageKey { return o.key }

func (o Outcome[T]) Payload() (T, bool) {
	if !o.ok {
		var zero T
		return zero, false
	}
	return o.payload, true
}

type LoginResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expiresAt"`
	RefreshToken string    `json:"refreshToken"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
}

type RefreshResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expiresAt"`
	RefreshToken string    `json:"refreshToken"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   int64  `json:"roleId"`
}
