package auth

import (
	"context"
	"time"
)

type RefreshTokenRepo interface {
	Create(ctx context.Context, t *RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// Revoke flips the token to revoked if it is not already. The bool is true
	// only for the call that performed the transition.
	Revoke(ctx context.Context, t *RefreshToken, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error)
}

type Messages interface {
	Resolve(key MessageKey, locale string) string
}

type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}
