package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authpkg "github.com/NordCoder/Tokengate/internal/auth"
	"github.com/NordCoder/Tokengate/internal/domain"
	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
	"github.com/NordCoder/Tokengate/internal/domain/user"
)

type fakeDirectory struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*user.User
	roles  map[int64]*user.Role
	err    error // returned by every call when set
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: map[int64]*user.User{},
		roles: map[int64]*user.Role{
			user.RoleAdminID: {ID: user.RoleAdminID, Name: "Admin"},
			user.RoleUserID:  {ID: user.RoleUserID, Name: "User"},
		},
	}
}

func (d *fakeDirectory) find(match func(*user.User) bool) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	for _, u := range d.users {
		if match(u) {
			cp := *u
			cp.Role = nil
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *fakeDirectory) FindByUsername(_ context.Context, username string) (*user.User, error) {
	return d.find(func(u *user.User) bool { return u.Username == username })
}

func (d *fakeDirectory) FindByEmail(_ context.Context, email string) (*user.User, error) {
	return d.find(func(u *user.User) bool { return u.Email == email })
}

func (d *fakeDirectory) FindByIDWithRole(_ context.Context, id int64) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	if r, ok := d.roles[u.RoleID]; ok {
		rc := *r
		cp.Role = &rc
	}
	return &cp, nil
}

func (d *fakeDirectory) FindRoleByID(_ context.Context, id int64) (*user.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	r, ok := d.roles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (d *fakeDirectory) Create(_ context.Context, u *user.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	for _, e := range d.users {
		if e.Username == u.Username || e.Email == u.Email {
			return domain.ErrConflict
		}
	}
	d.nextID++
	u.ID = d.nextID
	cp := *u
	d.users[u.ID] = &cp
	return nil
}

func (d *fakeDirectory) delete(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

type fakeRefreshStore struct {
	mu      sync.Mutex
	nextID  int64
	byHash  map[string]*domainauth.RefreshToken
	conflicts int // Create returns ErrConflict this many times
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{byHash: map[string]*domainauth.RefreshToken{}}
}

func (s *fakeRefreshStore) Create(_ context.Context, t *domainauth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return domain.ErrConflict
	}
	if _, ok := s.byHash[t.TokenHash]; ok {
		return domain.ErrConflict
	}
	s.nextID++
	t.ID = s.nextID
	cp := *t
	s.byHash[t.TokenHash] = &cp
	return nil
}

func (s *fakeRefreshStore) GetByTokenHash(_ context.Context, hash string) (*domainauth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeRefreshStore) Revoke(_ context.Context, t *domainauth.RefreshToken, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byHash[t.TokenHash]
	if !ok {
		return false, domain.ErrNotFound
	}
	if cur.IsRevoked {
		*t = *cur
		return false, nil
	}
	cur.IsRevoked = true
	cur.RevokedAt = &at
	*t = *cur
	return true, nil
}

func (s *fakeRefreshStore) RevokeAllForUser(_ context.Context, userID int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.byHash {
		if t.UserID == userID && !t.IsRevoked {
			t.IsRevoked = true
			t.RevokedAt = &at
			n++
		}
	}
	return n, nil
}

func (s *fakeRefreshStore) get(raw string) *domainauth.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byHash[authpkg.HashToken(raw)]
}

func (s *fakeRefreshStore) liveFor(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.byHash {
		if t.UserID == userID && !t.IsRevoked {
			n++
		}
	}
	return n
}

// fakeTx has no rollback; tests that need atomicity use the sqlite transactor.
type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingSink struct {
	mu     sync.Mutex
	events []domainauth.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, ev domainauth.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) kinds() []domainauth.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domainauth.EventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

type countingHasher struct {
	authpkg.Hasher
	mu       sync.Mutex
	verifies int
}

func (h *countingHasher) Verify(ctx context.Context, plaintext, digest string) bool {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return h.Hasher.Verify(ctx, plaintext, digest)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	uc     *Usecase
	users  *fakeDirectory
	store  *fakeRefreshStore
	sink   *recordingSink
	hasher *countingHasher
	clock  *clock
	issuer *authpkg.Issuer
}

func newHarness(t *testing.T, mut ...func(*Config)) *harness {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer, err := authpkg.NewIssuer(authpkg.IssuerConfig{
		Secret:    "0123456789abcdef0123456789abcdef",
		Issuer:    "tokengate",
		Audience:  "tokengate-clients",
		AccessTTL: 15 * time.Minute,
	}, c.Now)
	require.NoError(t, err)

	h := &harness{
		users:  newFakeDirectory(),
		store:  newFakeRefreshStore(),
		sink:   &recordingSink{},
		hasher: &countingHasher{Hasher: authpkg.NewBcryptHasher(authpkg.HasherConfig{Cost: bcrypt.MinCost})},
		clock:  c,
		issuer: issuer,
	}
	cfg := Config{RevokeFamilyOnReuse: true, Now: c.Now}
	for _, m := range mut {
		m(&cfg)
	}
	h.uc = NewUseCase(h.users, h.store, h.hasher, issuer, fakeTx{}, h.sink, cfg)
	return h
}

func (h *harness) register(t *testing.T, username, email, password string) {
	t.Helper()
	out, err := h.uc.Register(context.Background(), RegisterRequest{
		Username: username, Email: email, Password: password, RoleID: user.RoleUserID,
	})
	require.NoError(t, err)
	require.True(t, out.Succeeded(), out.Key())
}

func (h *harness) login(t *testing.T, username, password string) LoginResponse {
	t.Helper()
	out, err := h.uc.Login(context.Background(), username, password)
	require.NoError(t, err)
	resp, ok := out.Payload()
	require.True(t, ok, out.Key())
	return resp
}

var errBoom = errors.New("boom")
