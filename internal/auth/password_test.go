package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(HasherConfig{Cost: bcrypt.MinCost, Concurrency: 2})
	ctx := context.Background()

	digest, err := h.Hash(ctx, "P@ssw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, "P@ssw0rd!", digest)

	assert.True(t, h.Verify(ctx, "P@ssw0rd!", digest))
	assert.False(t, h.Verify(ctx, "p@ssw0rd!", digest))
}

func TestBcryptHasher_SaltedDigests(t *testing.T) {
	h := NewBcryptHasher(HasherConfig{Cost: bcrypt.MinCost})
	ctx := context.Background()

	a, err := h.Hash(ctx, "same")
	require.NoError(t, err)
	b, err := h.Hash(ctx, "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBcryptHasher_MalformedDigest(t *testing.T) {
	h := NewBcryptHasher(HasherConfig{Cost: bcrypt.MinCost})
	assert.False(t, h.Verify(context.Background(), "x", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify(context.Background(), "x", ""))
}

func TestBcryptHasher_EmptyPassword(t *testing.T) {
	h := NewBcryptHasher(HasherConfig{Cost: bcrypt.MinCost})
	_, err := h.Hash(context.Background(), "")
	assert.ErrorIs(t, err, ErrPasswordEmpty)
}

func TestBcryptHasher_PasswordTooLong(t *testing.T) {
	h := NewBcryptHasher(HasherConfig{Cost: bcrypt.MinCost})
	_, err := h.Hash(context.Background(), strings.Repeat("x", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = h.Hash(context.Background(), strings.Repeat("x", MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestBcryptHasher_CancelledContext(t *testing.T) {
	h := NewBcryptHasher(HasherConfig{Cost: bcrypt.MinCost, Concurrency: 1})
	digest, err := h.Hash(context.Background(), "pw")
	require.NoError(t, err)

	// hold the only slot
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, h.Verify(ctx, "pw", digest))
	_, err = h.Hash(ctx, "pw")
	assert.ErrorIs(t, err, context.Canceled)
}
