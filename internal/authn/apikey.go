// Package authn implements both authentication paths: per-agent API keys
// and admin password + session tokens.
package authn

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const apiKeyPrefix = "sk_agent_"
const apiKeyRandBytes = 32

// GenerateAPIKey returns a new plaintext agent key of the form
// sk_agent_<hex>, where <hex> is 32 bytes from crypto/rand.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyRandBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("authn: generate api key: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

// HashAPIKey returns the hex-encoded SHA-256 digest of the plaintext key.
// SHA-256 rather than bcrypt is deliberate: the key already carries 256
// bits of entropy, and bcrypt's deliberate slowness would make every
// agent request pay a multi-millisecond tax for no security benefit.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// VerifyAPIKey reports whether plaintext hashes to hash, using a
// constant-time comparison of the digests to avoid leaking a timing
// side-channel on how many hex characters matched.
func VerifyAPIKey(plaintext, hash string) bool {
	got := HashAPIKey(plaintext)
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1
}
