package services

import (
	"errors"
	"fmt"
)

// Credential store failures.
var (
	ErrNoSuchUser    = errors.New("no user record corresponds to this email")
	ErrWrongPassword = errors.New("the password is invalid")
	ErrEmailInUse    = errors.New("the email address is already in use")
	ErrBadEmail      = errors.New("the email address is badly formatted")
	ErrWeakPassword  = errors.New("the password must be at least 6 characters")
)

// Profile directory failures.
var ErrProfileNotFound = errors.New("profile not found")

// Chat transport error codes.
const (
	CodeNotInitialized   = 1001
	CodeInvalidParameter = 1002
	CodeNotConnected     = 1003
	CodeUserNotFound     = 1004
	CodeGroupExists      = 1005
	CodeNotMember        = 1006
	CodeTokenInvalid     = 1007
	CodeServerError      = 1099
)

// TransportError is the chat transport's structured failure: a numeric code
// plus a human-readable message meant to be shown verbatim.
type TransportError struct {
	Code    int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chat transport error %d: %s", e.Code, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

func transportErr(code int, msg string, err error) *TransportError {
	return &TransportError{Code: code, Message: msg, Err: err}
}
