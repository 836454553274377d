package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// RefreshTokenBytes is the entropy of an opaque refresh token.
const RefreshTokenBytes = 32

// GenerateRawToken reads nBytes from r (crypto/rand when nil) and returns them
// base64url encoded without padding.
func GenerateRawToken(r io.Reader, nBytes int) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, nBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken is the storage digest of a raw refresh token.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
