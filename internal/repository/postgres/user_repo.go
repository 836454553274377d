package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Tokengate/internal/domain/user"
)

var _ user.Directory = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	qUserInsert = `
INSERT INTO users (username, email, password_hash, role_id)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at;`

	qUserByUsername = `
SELECT id, username, email, password_hash, role_id, created_at
FROM users
WHERE username = $1;`

	qUserByEmail = `
SELECT id, username, email, password_hash, role_id, created_at
FROM users
WHERE email = $1;`

	qUserWithRole = `
SELECT u.id, u.username, u.email, u.password_hash, u.role_id, u.created_at,
       r.id, r.name, r.description
FROM users u
JOIN roles r ON r.id = u.role_id
WHERE u.id = $1;`

	qRoleByID = `
SELECT id, name, description
FROM roles
WHERE id = $1;`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qUserInsert, u.Username, u.Email, u.PasswordHash, u.RoleID).
		Scan(&u.ID, &u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByUsername, username), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByEmail, email), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByIDWithRole(ctx context.Context, id int64) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		u    user.User
		role user.Role
	)
	err := r.db.execQueryer(ctx).QueryRow(ctx, qUserWithRole, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.RoleID, &u.CreatedAt,
		&role.ID, &role.Name, &role.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qRoleByID, id).
		Scan(&role.ID, &role.Name, &role.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("role by id: %w", err)
	}
	return &role, nil
}

func scanUser(row pgx.Row, out *user.User) error {
	if err := row.Scan(&out.ID, &out.Username, &out.Email, &out.PasswordHash, &out.RoleID, &out.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan user: %w", err)
	}
	return nil
}
