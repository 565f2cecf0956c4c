package domain

import "time"

// AuthProvider represents an OAuth provider.
type AuthProvider string

const (
	AuthProviderGoogle AuthProvider = "google"
	AuthProviderGitHub AuthProvider = "github"
)

// User represents an account. PasswordHash is nil for OAuth accounts and for
// invited users who have not set a password yet.
type User struct {
	ID           int64         `json:"id" db:"id"`
	Username     string        `json:"username" db:"username"`
	Email        string        `json:"email" db:"email"`
	FirstName    string        `json:"first_name" db:"first_name"`
	LastName     string        `json:"last_name" db:"last_name"`
	PasswordHash *string       `json:"-" db:"password_hash"`
	Provider     *AuthProvider `json:"provider,omitempty" db:"provider"`
	ProviderID   *string       `json:"-" db:"provider_id"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}
