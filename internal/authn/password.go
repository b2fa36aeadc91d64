package authn

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the floor the spec requires; Load defaults to a higher
// cost, but callers that accept an operator-supplied cost should clamp to
// this.
const MinBcryptCost = 10

// HashPassword bcrypt-hashes pw at cost, treating the result as opaque.
func HashPassword(pw string, cost int) (string, error) {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", fmt.Errorf("authn: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether pw matches hash.
func VerifyPassword(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
