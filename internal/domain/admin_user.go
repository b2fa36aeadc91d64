package domain

import "time"

// AdminUser is the human operator who approves or rejects plans. Password
// hashing itself is an external collaborator's concern (see the authn
// package); the core only stores the opaque hash.
type AdminUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
