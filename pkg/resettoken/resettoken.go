// Package resettoken generates single-use password reset tokens.
//
// The plaintext token is mailed to the user and never stored. Storage keeps
// only the SHA-256 hex digest, so a leaked database cannot be replayed
// against the reset endpoint.
package resettoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// Bytes is the amount of randomness per token; 64 hex chars on the wire.
	Bytes = 32
	// DefaultTTL is how long an issued token stays valid.
	DefaultTTL = time.Hour
)

// Generate returns a new plaintext token and the digest to persist.
func Generate() (plaintext, hash string, err error) {
	buf := make([]byte, Bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrGenerateFailed, err)
	}

	plaintext = hex.EncodeToString(buf)
	return plaintext, Hash(plaintext), nil
}

// Hash returns the SHA-256 hex digest of plaintext.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// WellFormed reports whether s looks like a token produced by Generate.
// Requests carrying anything else can be rejected without a store lookup.
func WellFormed(s string) bool {
	if len(s) != Bytes*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
