package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Tokengate/internal/domain/user"
)

var _ user.Directory = (*UserRepo)(nil)

type UserRepo struct{ db *DB }

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	qUserInsert = `
INSERT INTO users (username, email, password_hash, role_id, created_at)
VALUES (?, ?, ?, ?, ?)`

	qUserByUsername = `
SELECT id, username, email, password_hash, role_id, created_at
FROM users
WHERE username = ?`

	qUserByEmail = `
SELECT id, username, email, password_hash, role_id, created_at
FROM users
WHERE email = ?`

	qUserWithRole = `
SELECT u.id, u.username, u.email, u.password_hash, u.role_id, u.created_at,
       r.id, r.name, r.description
FROM users u
JOIN roles r ON r.id = u.role_id
WHERE u.id = ?`

	qRoleByID = `
SELECT id, name, description
FROM roles
WHERE id = ?`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.execQueryer(ctx).ExecContext(ctx, qUserInsert,
		u.Username, u.Email, u.PasswordHash, u.RoleID, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("user insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user insert id: %w", err)
	}
	u.ID = id
	return nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.findOne(ctx, qUserByUsername, username)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, qUserByEmail, email)
}

func (r *UserRepo) FindByIDWithRole(ctx context.Context, id int64) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		u    user.User
		role user.Role
	)
	err := r.db.execQueryer(ctx).QueryRowContext(ctx, qUserWithRole, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.RoleID, &u.CreatedAt,
		&role.ID, &role.Name, &role.Description,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user with role: %w", err)
	}
	u.Role = &role
	return &u, nil
}

func (r *UserRepo) FindRoleByID(ctx context.Context, id int64) (*user.Role, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var role user.Role
	if err := r.db.execQueryer(ctx).QueryRowContext(ctx, qRoleByID, id).
		Scan(&role.ID, &role.Name, &role.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("role by id: %w", err)
	}
	return &role, nil
}

func (r *UserRepo) findOne(ctx context.Context, q string, arg any) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := r.db.execQueryer(ctx).QueryRowContext(ctx, q, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.RoleID, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
