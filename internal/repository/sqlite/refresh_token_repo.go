package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Tokengate/internal/domain/auth"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens (user_id, token_hash, issued_at, expires_at, is_revoked)
VALUES (?, ?, ?, ?, 0)`

	qRTByHash = `
SELECT id, user_id, token_hash, issued_at, expires_at, is_revoked, revoked_at
FROM refresh_tokens
WHERE token_hash = ?`

	qRTRevoke = `
UPDATE refresh_tokens
SET is_revoked = 1, revoked_at = ?
WHERE token_hash = ? AND is_revoked = 0`

	qRTRevokeAll = `
UPDATE refresh_tokens
SET is_revoked = 1, revoked_at = ?
WHERE user_id = ? AND is_revoked = 0`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	res, err := r.db.execQueryer(ctx).ExecContext(ctx, qRTCreate,
		t.UserID, t.TokenHash, t.IssuedAt.UTC(), t.ExpiresAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create refresh: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create refresh id: %w", err)
	}
	t.ID = id
	t.IsRevoked = false
	t.RevokedAt = nil
	return nil
}

func (r *RefreshTokenRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t auth.RefreshToken
	if err := r.db.execQueryer(ctx).QueryRowContext(ctx, qRTByHash, tokenHash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &t.IsRevoked, &t.RevokedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get refresh: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, t *auth.RefreshToken, at time.Time) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	res, err := r.db.execQueryer(ctx).ExecContext(ctx, qRTRevoke, at.UTC(), t.TokenHash)
	if err != nil {
		return false, fmt.Errorf("revoke refresh: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh rows: %w", err)
	}
	if n == 1 {
		t.IsRevoked = true
		t.RevokedAt = &at
		return true, nil
	}

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

	res, err := r.db.execQueryer(ctx).ExecContext(ctx, qRTRevokeAll, at.UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return res.RowsAffected()
}
