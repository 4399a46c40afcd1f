package models

import "time"

// Identity is the credential store's record of an authenticated user.
type Identity struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`

	// Internal only - never returned in JSON
	PasswordHash string `json:"-"`
}
