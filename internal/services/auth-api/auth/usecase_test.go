package auth

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authpkg "github.com/NordCoder/Tokengate/internal/auth"
	"github.com/NordCoder/Tokengate/internal/domain"
	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
	"github.com/NordCoder/Tokengate/internal/domain/user"
)

func TestScenario_RegisterLoginRefreshRotate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.register(t, "alice", "alice@example.com", "pw123")

	login := h.login(t, "alice", "pw123")
	assert.NotEmpty(t, login.Token)
	assert.NotEmpty(t, login.RefreshToken)
	assert.Equal(t, "alice", login.Username)
	assert.Equal(t, "alice@example.com", login.Email)
	assert.Equal(t, "User", login.Role)
	assert.Equal(t, h.clock.Now().Add(15*time.Minute), login.ExpiresAt)

	h.clock.Advance(time.Second)
	out, err := h.uc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	rotated, ok := out.Payload()
	require.True(t, ok)
	assert.Equal(t, domainauth.MsgRefreshSuccessful, out.Key())
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, login.Token, rotated.Token)

	again, err := h.uc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.False(t, again.Succeeded())
	assert.Equal(t, domainauth.MsgInvalidCredentials, again.Key())
	_, ok = again.Payload()
	assert.False(t, ok)

	assert.Equal(t, []domainauth.EventKind{
		domainauth.EventUserRegistered,
		domainauth.EventLoginSucceeded,
		domainauth.EventTokenRefreshed,
		domainauth.EventRefreshTokenReused,
	}, h.sink.kinds())
}

func TestLogin_SameKeyForUnknownUserAndWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "pw123")

	unknown, err := h.uc.Login(context.Background(), "mallory", "pw123")
	require.NoError(t, err)
	wrong, err := h.uc.Login(context.Background(), "alice", "nope")
	require.NoError(t, err)

	assert.False(t, unknown.Succeeded())
	assert.False(t, wrong.Succeeded())
	assert.Equal(t, domainauth.MsgInvalidCredentials, unknown.Key())
	assert.Equal(t, unknown.Key(), wrong.Key())
	assert.Equal(t, 2, h.hasher.verifies, "unknown user must still run a verify")
	assert.Zero(t, h.store.liveFor(1))
}

type flakyHasher struct {
	authpkg.Hasher
	failHashes int
	digests    []string
}

func (h *flakyHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if h.failHashes > 0 {
		h.failHashes--
		return "", errBoom
	}
	return h.Hasher.Hash(ctx, plaintext)
}

func (h *flakyHasher) Verify(ctx context.Context, plaintext, digest string) bool {
	h.digests = append(h.digests, digest)
	return h.Hasher.Verify(ctx, plaintext, digest)
}

func TestLogin_UnknownUserDigestRecoversAfterHashFailure(t *testing.T) {
	h := newHarness(t)
	flaky := &flakyHasher{Hasher: h.hasher, failHashes: 1}
	h.uc.hasher = flaky

	for range 3 {
		out, err := h.uc.Login(context.Background(), "ghost", "pw")
		require.NoError(t, err)
		assert.Equal(t, domainauth.MsgInvalidCredentials, out.Key())
	}

	require.Len(t, flaky.digests, 3)
	assert.Empty(t, flaky.digests[0])
	assert.NotEmpty(t, flaky.digests[1])
	assert.Equal(t, flaky.digests[1], flaky.digests[2])
}

func TestLogin_AccessTokenValidatesThenExpires(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "pw123")
	login := h.login(t, "alice", "pw123")

	claims, err := h.uc.ParseAccess(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UniqueName)
	assert.Equal(t, "User", claims.Role)

	h.clock.Advance(16 * time.Minute)
	_, err = h.uc.ParseAccess(login.Token)
	assert.Error(t, err)
}

func TestLogin_RefreshTokenPersistedHashedWithSevenDayExpiry(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "pw123")
	login := h.login(t, "alice", "pw123")

	rec := h.store.get(login.RefreshToken)
	require.NotNil(t, rec)
	assert.NotEqual(t, login.RefreshToken, rec.TokenHash)
	assert.Equal(t, h.clock.Now().Add(7*24*time.Hour), rec.ExpiresAt)
	assert.Len(t, login.RefreshToken, 43)
}

func TestLogin_RetriesRefreshCollision(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "pw123")

	h.store.conflicts = 2
	login := h.login(t, "alice", "pw123")
	assert.NotEmpty(t, login.RefreshToken)

	h.store.conflicts = 3
	_, err := h.uc.Login(context.Background(), "alice", "pw123")
	assert.ErrorIs(t, err, ErrInternal)
}

func TestLogin_DeterministicRandomSource(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{7}, 32))
	h := newHarness(t, func(c *Config) { c.Rand = src })
	h.register(t, "alice", "alice@example.com", "pw123")

	login := h.login(t, "alice", "pw123")
	assert.Equal(t, "BwcHBwcHBwcHBwcHBwcHBwcHBwcHBwcHBwcHBwcHBwc", login.RefreshToken)

	// source exhausted
	_, err := h.uc.Login(context.Background(), "alice", "pw123")
	assert.ErrorIs(t, err, ErrInternal)
}

func TestLogin_DirectoryFailureIsInternal(t *testing.T) {
	h := newHarness(t)
	h.users.err = errBoom

	_, err := h.uc.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, errBoom)
}

func TestLogin_MissingRoleIsInternal(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "pw123")
	h.users.mu.Lock()
	delete(h.users.roles, user.RoleUserID)
	h.users.mu.Unlock()

	_, err := h.uc.Login(context.Background(), "alice", "pw123")
	assert.ErrorIs(t, err, ErrInternal)
}

func TestLogin_SinkFailureFailsRequest(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "pw123")
	h.sink.err = errBoom

	_, err := h.uc.Login(context.Background(), "alice", "pw123")
	assert.ErrorIs(t, err, ErrInternal)
}

func TestRegister_Conflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice", "alice@example.com", "pw123")

	out, err := h.uc.Register(ctx, RegisterRequest{Username: "alice", Email: "other@example.com", Password: "x", RoleID: 2})
	require.NoError(t, err)
	assert.False(t, out.Succeeded())
	assert.Equal(t, domainauth.MsgUsernameExists, out.Key())

	out, err = h.uc.Register(ctx, RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "x", RoleID: 2})
	require.NoError(t, err)
	assert.Equal(t, domainauth.MsgEmailExists, out.Key())
}

func TestRegister_UnknownRole(t *testing.T) {
	h := newHarness(t)
	out, err := h.uc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "pw", RoleID: 99,
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.MsgInvalidRole, out.Key())
	_, err = h.users.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegister_MissingFields(t *testing.T) {
	h := newHarness(t)
	out, err := h.uc.Register(context.Background(), RegisterRequest{Username: "alice", Email: "a@example.com", RoleID: 2})
	require.NoError(t, err)
	assert.Equal(t, domainauth.MsgInvalidRequest, out.Key())
}

func TestRegister_PasswordOverBcryptLimit(t *testing.T) {
	h := newHarness(t)
	out, err := h.uc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: strings.Repeat("x", 80), RoleID: user.RoleUserID,
	})
	require.NoError(t, err)
	assert.False(t, out.Succeeded())
	assert.Equal(t, domainauth.MsgInvalidRequest, out.Key())
	_, err = h.users.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	h.register(t, "bob", "bob@example.com", strings.Repeat("y", 72))
}

func TestRegister_StoresHashNotPassword(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "pw123")

	u, err := h.users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", u.PasswordHash)
	assert.True(t, h.hasher.Verify(context.Background(), "pw123", u.PasswordHash))
	assert.Equal(t, user.RoleUserID, u.RoleID)

	out, err := h.uc.Register(context.Background(), RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "pw", RoleID: user.RoleAdminID})
	require.NoError(t, err)
	assert.Equal(t, domainauth.MsgRegistrationSuccessful, out.Key())
	_, ok := out.Payload()
	assert.True(t, ok)
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	h := newHarness(t)
	const n = 8
	var (
		wg  sync.WaitGroup
		oks atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := h.uc.Register(context.Background(), RegisterRequest{
				Username: "alice", Email: "alice" + string(rune('a'+i)) + "@example.com", Password: "pw", RoleID: 2,
			})
			assert.NoError(t, err)
			if out.Succeeded() {
				oks.Add(1)
			} else {
				assert.Equal(t, domainauth.MsgUsernameExists, out.Key())
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), oks.Load())
}

func TestRefresh_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice", "alice@example.com", "pw123")
	login := h.login(t, "alice", "pw123")

	for name, raw := range map[string]string{"empty": "", "unknown": "not-a-token"} {
		t.Run(name, func(t *testing.T) {
			out, err := h.uc.Refresh(ctx, raw)
			require.NoError(t, err)
			assert.Equal(t, domainauth.MsgInvalidCredentials, out.Key())
		})
	}

	t.Run("expired at boundary", func(t *testing.T) {
		h.clock.Advance(7 * 24 * time.Hour)
		out, err := h.uc.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, domainauth.MsgInvalidCredentials, out.Key())
		assert.False(t, h.store.get(login.RefreshToken).IsRevoked)
	})
}

func TestRefresh_OrphanedToken(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "pw123")
	login := h.login(t, "alice", "pw123")
	h.users.delete(1)

	out, err := h.uc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, domainauth.MsgInvalidCredentials, out.Key())
	assert.True(t, h.store.get(login.RefreshToken).IsRevoked)
}

func TestRefresh_ReuseRevokesFamily(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice", "alice@example.com", "pw123")
	first := h.login(t, "alice", "pw123")
	second := h.login(t, "alice", "pw123")

	out, err := h.uc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	rotated, _ := out.Payload()
	assert.Equal(t, 2, h.store.liveFor(1))

	// replaying the consumed token kills every live token of the user
	out, err = h.uc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, domainauth.MsgInvalidCredentials, out.Key())
	assert.Zero(t, h.store.liveFor(1))

	for _, raw := range []string{second.RefreshToken, rotated.RefreshToken} {
		out, err = h.uc.Refresh(ctx, raw)
		require.NoError(t, err)
		assert.False(t, out.Succeeded())
	}
}

func TestRefresh_ReuseWithoutFamilyPolicy(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.RevokeFamilyOnReuse = false })
	ctx := context.Background()
	h.register(t, "alice", "alice@example.com", "pw123")
	first := h.login(t, "alice", "pw123")
	second := h.login(t, "alice", "pw123")

	_, err := h.uc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	out, err := h.uc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.False(t, out.Succeeded())

	out, err = h.uc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.True(t, out.Succeeded())
	assert.NotContains(t, h.sink.kinds(), domainauth.EventRefreshTokenReused)
}

func TestRefresh_RevokedAtUnchangedOnSecondUse(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.RevokeFamilyOnReuse = false })
	ctx := context.Background()
	h.register(t, "alice", "alice@example.com", "pw123")
	login := h.login(t, "alice", "pw123")

	_, err := h.uc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	revokedAt := *h.store.get(login.RefreshToken).RevokedAt

	h.clock.Advance(time.Hour)
	_, err = h.uc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, revokedAt, *h.store.get(login.RefreshToken).RevokedAt)
}

func TestRefresh_ConcurrentSingleWinner(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.RevokeFamilyOnReuse = false })
	h.register(t, "alice", "alice@example.com", "pw123")
	login := h.login(t, "alice", "pw123")

	const n = 16
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			out, err := h.uc.Refresh(context.Background(), login.RefreshToken)
			assert.NoError(t, err)
			if out.Succeeded() {
				wins.Add(1)
			} else {
				assert.Equal(t, domainauth.MsgInvalidCredentials, out.Key())
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice", "alice@example.com", "pw123")
	login := h.login(t, "alice", "pw123")

	require.NoError(t, h.uc.Logout(ctx, login.RefreshToken))
	assert.True(t, h.store.get(login.RefreshToken).IsRevoked)
	require.NoError(t, h.uc.Logout(ctx, login.RefreshToken))
	require.NoError(t, h.uc.Logout(ctx, "unknown"))
	require.NoError(t, h.uc.Logout(ctx, ""))

	out, err := h.uc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.False(t, out.Succeeded())

	kinds := h.sink.kinds()
	n := 0
	for _, k := range kinds {
		if k == domainauth.EventRefreshTokenRevoked {
			n++
		}
	}
	assert.Equal(t, 1, n)
}
