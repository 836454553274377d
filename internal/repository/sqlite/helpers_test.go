package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Tokengate/internal/domain/user"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Path:         filepath.Join(t.TempDir(), "tokengate.db"),
		QueryTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *DB, username string) *user.User {
	t.Helper()
	u := &user.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$hash",
		RoleID:       user.RoleUserID,
	}
	require.NoError(t, NewUserRepo(db).Create(context.Background(), u))
	return u
}

func newTestTransactor(db *DB) *Transactor { return NewTransactor(db, zap.NewNop()) }
