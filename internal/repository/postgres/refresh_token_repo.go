package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Tokengate/internal/domain/auth"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens(user_id, token_hash, issued_at, expires_at, is_revoked)
VALUES ($1, $2, $3, $4, FALSE)
RETURNING id;
`
	qRTByHash = `
SELECT id, user_id, token_hash, issued_at, expires_at, is_revoked, revoked_at
FROM refresh_tokens
WHERE token_hash = $1;
`
	qRTRevoke = `
UPDATE refresh_tokens
SET is_revoked = TRUE, revoked_at = $2
WHERE token_hash = $1 AND is_revoked = FALSE;
`
	qRTRevokeAll = `
UPDATE refresh_tokens
SET is_revoked = TRUE, revoked_at = $2
WHERE user_id = $1 AND is_revoked = FALSE;
`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).
		QueryRow(ctx, qRTCreate, t.UserID, t.TokenHash, t.IssuedAt, t.ExpiresAt).
		Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create refresh: %w", err)
	}
	t.IsRevoked = false
	t.RevokedAt = nil
	return nil
}

func (r *RefreshTokenRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t auth.RefreshToken
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qRTByHash, tokenHash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &t.IsRevoked, &t.RevokedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get refresh: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, t *auth.RefreshToken, at time.Time) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevoke, t.TokenHash, at)
	if err != nil {
		return false, fmt.Errorf("revoke refresh: %w", err)
	}
	if tag.RowsAffected() == 1 {
		t.IsRevoked = true
		t.RevokedAt = &at
		return true, nil
	}

	// Lost the transition, or the row does not exist.
	cur, err := r.GetByTokenHash(ctx, t.TokenHash)
	if err != nil {
		return false, err
	}
	*t = *cur
	return false, nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevokeAll, userID, at)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
