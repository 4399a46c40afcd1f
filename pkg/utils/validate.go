package utils

import (
	"regexp"
	"strings"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 6
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	// Same shape as the address pattern the mobile client validates against.
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9+._%\-]{1,256}@[a-zA-Z0-9][a-zA-Z0-9\-]{0,64}(\.[a-zA-Z0-9][a-zA-Z0-9\-]{0,25})+$`)
)

// ValidationError represents a validation error on a single input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidEmail reports whether s is a syntactically valid email address.
func IsValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// ValidateEmail checks the trimmed address against the email pattern.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !IsValidEmail(email) {
		return &ValidationError{Field: "email", Message: "Enter a valid email"}
	}
	return nil
}

// ValidateUsername validates username format
// Rules: 3-20 characters, letters, numbers, underscores only
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)

	if len(username) < MinUsernameLength {
		return &ValidationError{Field: "username", Message: "Username must be at least 3 characters"}
	}
	if len(username) > MaxUsernameLength {
		return &ValidationError{Field: "username", Message: "Username must be at most 20 characters"}
	}
	if !usernameRegex.MatchString(username) {
		return &ValidationError{Field: "username", Message: "Username can only contain letters, numbers, and underscores"}
	}
	return nil
}

// ValidateNewPassword enforces the sign-up password policy.
func ValidateNewPassword(password string) error {
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: "Password must be at least 6 characters"}
	}
	return nil
}

// ValidateLoginPassword only requires a non-empty password.
func ValidateLoginPassword(password string) error {
	if password == "" {
		return &ValidationError{Field: "password", Message: "Password cannot be empty"}
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
