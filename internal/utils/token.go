// Package utils holds the password and refresh-token primitives used by the
// auth handlers and the user stores.
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// refreshBytes is the entropy of a refresh token; it is sent hex-encoded.
const refreshBytes = 48

// RefreshToken is a freshly minted token. Raw goes to the client once and
// is never persisted.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

func NewRefreshToken(now time.Time, ttl time.Duration) (RefreshToken, error) {
	buf := make([]byte, refreshBytes)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: hex.EncodeToString(buf), Exp: now.UTC().Add(ttl)}, nil
}

// HashRefreshRaw is the lookup key stored in place of the raw token.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
