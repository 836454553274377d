package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

var (
	ErrPasswordEmpty   = errors.New("password is empty")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

var hashDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "auth_password_hash_duration_seconds",
	Help:    "Time spent in bcrypt operations.",
	Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2},
}, []string{"op"})

type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) bool
}

type HasherConfig struct {
	Cost        int `mapstructure:"hash_cost"`
	Concurrency int `mapstructure:"hash_concurrency"`
}

// BcryptHasher runs bcrypt on a bounded number of goroutines so a burst of
// logins cannot occupy every P.
type BcryptHasher struct {
	cost int
	sem  *semaphore.Weighted
}

func NewBcryptHasher(cfg HasherConfig) *BcryptHasher {
	if cfg.Cost == 0 {
		cfg.Cost = bcrypt.DefaultCost
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &BcryptHasher{cost: cfg.Cost, sem: semaphore.NewWeighted(int64(cfg.Concurrency))}
}

func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrPasswordEmpty
	}
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	start := time.Now()
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	hashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// Verify never fails loudly: a malformed digest or a cancelled ctx is a mismatch.
func (h *BcryptHasher) Verify(ctx context.Context, plaintext, digest string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	hashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	return err == nil
}
