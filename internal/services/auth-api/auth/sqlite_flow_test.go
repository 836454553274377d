package auth

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	authpkg "github.com/NordCoder/Tokengate/internal/auth"
	"github.com/NordCoder/Tokengate/internal/domain/user"
	"github.com/NordCoder/Tokengate/internal/repository/sqlite"
)

type sqliteHarness struct {
	uc    *Usecase
	store *sqlite.RefreshTokenRepo
	sink  *recordingSink
}

func newSQLiteHarness(t *testing.T) *sqliteHarness {
	t.Helper()
	db, err := sqlite.Open(context.Background(), sqlite.Config{Path: filepath.Join(t.TempDir(), "auth.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	issuer, err := authpkg.NewIssuer(authpkg.IssuerConfig{
		Secret: "0123456789abcdef0123456789abcdef", Issuer: "tokengate", Audience: "clients", AccessTTL: time.Minute,
	}, nil)
	require.NoError(t, err)

	h := &sqliteHarness{store: sqlite.NewRefreshTokenRepo(db), sink: &recordingSink{}}
	h.uc = NewUseCase(
		sqlite.NewUserRepo(db),
		h.store,
		authpkg.NewBcryptHasher(authpkg.HasherConfig{Cost: bcrypt.MinCost}),
		issuer,
		sqlite.NewTransactor(db, zap.NewNop()),
		h.sink,
		Config{RevokeFamilyOnReuse: true},
	)
	return h
}

func TestSQLite_ScenarioAndConcurrentRefresh(t *testing.T) {
	h := newSQLiteHarness(t)
	ctx := context.Background()

	reg, err := h.uc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw123", RoleID: user.RoleUserID})
	require.NoError(t, err)
	require.True(t, reg.Succeeded())

	out, err := h.uc.Login(ctx, "alice", "pw123")
	require.NoError(t, err)
	login, ok := out.Payload()
	require.True(t, ok)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.uc.Refresh(context.Background(), login.RefreshToken)
			assert.NoError(t, err)
			if res.Succeeded() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestSQLite_SinkFailureRollsBackToken(t *testing.T) {
	h := newSQLiteHarness(t)
	ctx := context.Background()

	_, err := h.uc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw123", RoleID: user.RoleUserID})
	require.NoError(t, err)

	h.sink.mu.Lock()
	h.sink.err = errBoom
	h.sink.mu.Unlock()

	_, err = h.uc.Login(ctx, "alice", "pw123")
	require.ErrorIs(t, err, ErrInternal)

	var live int
	require.NoError(t, h.countLive(ctx, &live))
	assert.Zero(t, live)
}

func (h *sqliteHarness) countLive(ctx context.Context, out *int) error {
	// the only user has id 1
	n, err := h.store.RevokeAllForUser(ctx, 1, time.Now())
	*out = int(n)
	return err
}
