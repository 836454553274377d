package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/NordCoder/Tokengate/internal/domain/user"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrRoleMissing  = errors.New("user has no role")
	ErrIssuerConfig = errors.New("invalid issuer config")
)

const minSecretLen = 32

type IssuerConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	AccessTTL time.Duration
}

type AccessClaims struct {
	UniqueName string `json:"unique_name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *AccessClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject %q", ErrTokenInvalid, c.Subject)
	}
	return id, nil
}

type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(cfg IssuerConfig, now func() time.Time) (*Issuer, error) {
	switch {
	case len(cfg.Secret) < minSecretLen:
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrIssuerConfig, minSecretLen)
	case cfg.Issuer == "":
		return nil, fmt.Errorf("%w: issuer is empty", ErrIssuerConfig)
	case cfg.Audience == "":
		return nil, fmt.Errorf("%w: audience is empty", ErrIssuerConfig)
	case cfg.AccessTTL <= 0:
		return nil, fmt.Errorf("%w: ttl must be positive", ErrIssuerConfig)
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Issuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.AccessTTL,
		now:      now,
	}, nil
}

// Issue signs an access token for u. The user's role must be loaded.
func (i *Issuer) Issue(u *user.User) (string, time.Time, error) {
	if u.Role == nil || u.Role.Name == "" {
		return "", time.Time{}, ErrRoleMissing
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := AccessClaims{
		UniqueName: u.Username,
		Email:      u.Email,
		Role:       u.Role.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (i *Issuer) Parse(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}
