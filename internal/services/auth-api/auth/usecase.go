package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	authpkg "github.com/NordCoder/Tokengate/internal/auth"
	"github.com/NordCoder/Tokengate/internal/domain"
	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
	"github.com/NordCoder/Tokengate/internal/domain/user"
	"github.com/NordCoder/Tokengate/internal/obs"
)

// ErrInternal marks infrastructure failures. Every other failure is an Outcome.
var ErrInternal = errors.New("internal error")

const (
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// attempts to persist a fresh refresh token before giving up on collisions
	maxRefreshAttempts = 3

	dummyPassword = "tokengate-timing-equalizer"
)

var authRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_requests_total",
	Help: "Authentication requests by operation and result.",
}, []string{"op", "result"})

type TokenIssuer interface {
	Issue(u *user.User) (string, time.Time, error)
	Parse(token string) (*authpkg.AccessClaims, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	RefreshTTL time.Duration
	// RevokeFamilyOnReuse revokes every live refresh token of a user when one
	// of their already revoked tokens is presented again.
	RevokeFamilyOnReuse bool
	Now                 func() time.Time
	Rand                io.Reader
	Logger              *zap.Logger
}

type Usecase struct {
	users  user.Directory
	rt     domainauth.RefreshTokenRepo
	hasher authpkg.Hasher
	issuer TokenIssuer
	tx     Transactor
	events domainauth.EventSink
	cfg    Config
	log    *zap.Logger
	tracer trace.Tracer

	dummyMu   sync.Mutex
	dummyHash string
}

func NewUseCase(
	users user.Directory,
	rt domainauth.RefreshTokenRepo,
	hasher authpkg.Hasher,
	issuer TokenIssuer,
	tx Transactor,
	events domainauth.EventSink,
	cfg Config,
) *Usecase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Usecase{
		users:  users,
		rt:     rt,
		hasher: hasher,
		issuer: issuer,
		tx:     tx,
		events: events,
		cfg:    cfg,
		log:    cfg.Logger.With(zap.String("component", "auth.usecase")),
		tracer: otel.Tracer("auth.usecase"),
	}
}

func (u *Usecase) Login(ctx context.Context, username, password string) (out Outcome[LoginResponse], err error) {
	ctx, span := u.tracer.Start(ctx, "auth.login")
	defer func() { u.finish(span, "login", out.Succeeded(), err) }()

	rec, err := u.users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// keep the unknown-user path as slow as a wrong password
		u.hasher.Verify(ctx, password, u.dummyDigest(ctx))
		return reject[LoginResponse](domainauth.MsgInvalidCredentials), nil
	case err != nil:
		return out, u.internal(ctx, "find user", err)
	}

	if !u.hasher.Verify(ctx, password, rec.PasswordHash) {
		return reject[LoginResponse](domainauth.MsgInvalidCredentials), nil
	}

	full, err := u.users.FindByIDWithRole(ctx, rec.ID)
	if err != nil {
		return out, u.internal(ctx, "reload user", err)
	}

	token, exp, err := u.issuer.Issue(full)
	if err != nil {
		return out, u.internal(ctx, "issue access token", err)
	}

	refresh, err := u.persistRefresh(ctx, full, domainauth.EventLoginSucceeded)
	if err != nil {
		return out, u.internal(ctx, "persist refresh token", err)
	}

	span.SetAttributes(attribute.Int64("user.id", full.ID))
	return succeed(domainauth.MsgLoginSuccessful, LoginResponse{
		Token:        token,
		ExpiresAt:    exp,
		RefreshToken: refresh,
		Username:     full.Username,
		Email:        full.Email,
		Role:         full.RoleName(),
	}), nil
}

func (u *Usecase) Register(ctx context.Context, req RegisterRequest) (out Outcome[struct{}], err error) {
	ctx, span := u.tracer.Start(ctx, "auth.register")
	defer func() { u.finish(span, "register", out.Succeeded(), err) }()

	if req.Username == "" || req.Email == "" || req.Password == "" || len(req.Password) > authpkg.MaxPasswordBytes {
		return reject[struct{}](domainauth.MsgInvalidRequest), nil
	}

	if key, taken, err := u.checkTaken(ctx, req.Username, req.Email); err != nil {
		return out, u.internal(ctx, "check uniqueness", err)
	} else if taken {
		return reject[struct{}](key), nil
	}

	if _, err := u.users.FindRoleByID(ctx, req.RoleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return reject[struct{}](domainauth.MsgInvalidRole), nil
		}
		return out, u.internal(ctx, "find role", err)
	}

	digest, err := u.hasher.Hash(ctx, req.Password)
	if errors.Is(err, authpkg.ErrPasswordTooLong) || errors.Is(err, authpkg.ErrPasswordEmpty) {
		return reject[struct{}](domainauth.MsgInvalidRequest), nil
	}
	if err != nil {
		return out, u.internal(ctx, "hash password", err)
	}

	now := u.cfg.Now()
	nu := &user.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: digest,
		RoleID:       req.RoleID,
		CreatedAt:    now,
	}
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := u.users.Create(ctx, nu); err != nil {
			return err
		}
		return u.events.Publish(ctx, domainauth.Event{
			Kind: domainauth.EventUserRegistered, UserID: nu.ID, Username: nu.Username, At: now,
		})
	})
	if errors.Is(err, domain.ErrConflict) {
		// lost a uniqueness race after the checks above
		key, taken, cerr := u.checkTaken(ctx, req.Username, req.Email)
		if cerr != nil {
			return out, u.internal(ctx, "recheck uniqueness", cerr)
		}
		if !taken {
			key = domainauth.MsgUsernameExists
		}
		return reject[struct{}](key), nil
	}
	if err != nil {
		return out, u.internal(ctx, "create user", err)
	}

	return succeed(domainauth.MsgRegistrationSuccessful, struct{}{}), nil
}

func (u *Usecase) Refresh(ctx context.Context, raw string) (out Outcome[RefreshResponse], err error) {
	ctx, span := u.tracer.Start(ctx, "auth.refresh")
	defer func() { u.finish(span, "refresh", out.Succeeded(), err) }()

	denied := reject[RefreshResponse](domainauth.MsgInvalidCredentials)
	if raw == "" {
		return denied, nil
	}

	rec, err := u.rt.GetByTokenHash(ctx, authpkg.HashToken(raw))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return denied, nil
	case err != nil:
		return out, u.internal(ctx, "get refresh token", err)
	}

	now := u.cfg.Now()
	if rec.IsRevoked {
		if err := u.onReuse(ctx, rec, now); err != nil {
			return out, u.internal(ctx, "revoke token family", err)
		}
		return denied, nil
	}
	if !rec.Live(now) {
		return denied, nil
	}

	won, err := u.rt.Revoke(ctx, rec, now)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return denied, nil
	case err != nil:
		return out, u.internal(ctx, "revoke refresh token", err)
	case !won:
		// a concurrent refresh consumed it first
		return denied, nil
	}

	full, err := u.users.FindByIDWithRole(ctx, rec.UserID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		obs.WithTrace(ctx, u.log).Warn("refresh token without user", zap.Int64("user_id", rec.UserID))
		return denied, nil
	case err != nil:
		return out, u.internal(ctx, "reload user", err)
	}

	token, exp, err := u.issuer.Issue(full)
	if err != nil {
		return out, u.internal(ctx, "issue access token", err)
	}

	next, err := u.persistRefresh(ctx, full, domainauth.EventTokenRefreshed)
	if err != nil {
		return out, u.internal(ctx, "persist refresh token", err)
	}

	span.SetAttributes(attribute.Int64("user.id", full.ID))
	return succeed(domainauth.MsgRefreshSuccessful, RefreshResponse{
		Token:        token,
		ExpiresAt:    exp,
		RefreshToken: next,
	}), nil
}

// Logout revokes raw if it is a known token. Unknown and already revoked
// tokens are not reported.
func (u *Usecase) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	rec, err := u.rt.GetByTokenHash(ctx, authpkg.HashToken(raw))
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return u.internal(ctx, "get refresh token", err)
	}

	now := u.cfg.Now()
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		won, err := u.rt.Revoke(ctx, rec, now)
		if err != nil || !won {
			return err
		}
		return u.events.Publish(ctx, domainauth.Event{
			Kind: domainauth.EventRefreshTokenRevoked, UserID: rec.UserID, At: now,
		})
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return u.internal(ctx, "logout", err)
	}
	return nil
}

func (u *Usecase) ParseAccess(token string) (*authpkg.AccessClaims, error) {
	return u.issuer.Parse(token)
}

func (u *Usecase) persistRefresh(ctx context.Context, usr *user.User, kind domainauth.EventKind) (string, error) {
	now := u.cfg.Now()
	for attempt := 1; attempt <= maxRefreshAttempts; attempt++ {
		raw, err := authpkg.GenerateRawToken(u.cfg.Rand, authpkg.RefreshTokenBytes)
		if err != nil {
			return "", err
		}
		rec := &domainauth.RefreshToken{
			UserID:    usr.ID,
			TokenHash: authpkg.HashToken(raw),
			IssuedAt:  now,
			ExpiresAt: now.Add(u.cfg.RefreshTTL),
		}
		err = u.tx.WithTx(ctx, func(ctx context.Context) error {
			if err := u.rt.Create(ctx, rec); err != nil {
				return err
			}
			return u.events.Publish(ctx, domainauth.Event{
				Kind: kind, UserID: usr.ID, Username: usr.Username, At: now,
			})
		})
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return "", err
		}
		obs.WithTrace(ctx, u.log).Warn("refresh token collision", zap.Int("attempt", attempt))
	}
	return "", fmt.Errorf("refresh token collided %d times: %w", maxRefreshAttempts, domain.ErrConflict)
}

func (u *Usecase) onReuse(ctx context.Context, rec *domainauth.RefreshToken, now time.Time) error {
	lg := obs.WithTrace(ctx, u.log).With(zap.Int64("user_id", rec.UserID))
	if !u.cfg.RevokeFamilyOnReuse {
		lg.Warn("revoked refresh token presented")
		return nil
	}
	var n int64
	err := u.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if n, err = u.rt.RevokeAllForUser(ctx, rec.UserID, now); err != nil {
			return err
		}
		return u.events.Publish(ctx, domainauth.Event{
			Kind: domainauth.EventRefreshTokenReused, UserID: rec.UserID, At: now,
		})
	})
	if err != nil {
		return err
	}
	lg.Warn("revoked refresh token presented, user tokens revoked", zap.Int64("revoked", n))
	return nil
}

func (u *Usecase) checkTaken(ctx context.Context, username, email string) (domainauth.MessageKey, bool, error) {
	if _, err := u.users.FindByUsername(ctx, username); err == nil {
		return domainauth.MsgUsernameExists, true, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", false, err
	}
	if _, err := u.users.FindByEmail(ctx, email); err == nil {
		return domainauth.MsgEmailExists, true, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", false, err
	}
	return "", false, nil
}

// dummyDigest hashes dummyPassword on first use. A failed attempt is not
// cached, so the next unknown-user login tries again.
func (u *Usecase) dummyDigest(ctx context.Context) string {
	u.dummyMu.Lock()
	defer u.dummyMu.Unlock()
	if u.dummyHash != "" {
		return u.dummyHash
	}
	h, err := u.hasher.Hash(context.WithoutCancel(ctx), dummyPassword)
	if err != nil {
		obs.WithTrace(ctx, u.log).Warn("dummy digest", zap.Error(err))
		return ""
	}
	u.dummyHash = h
	return h
}

func (u *Usecase) internal(ctx context.Context, op string, err error) error {
	obs.WithTrace(ctx, u.log).Error(op, zap.Error(err))
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

func (u *Usecase) finish(span trace.Span, op string, ok bool, err error) {
	result := "rejected"
	switch {
	case err != nil:
		result = "error"
		span.RecordError(err)
	case ok:
		result = "ok"
	}
	span.SetAttributes(attribute.String("auth.result", result))
	span.End()
	authRequests.WithLabelValues(op, result).Inc()
}
