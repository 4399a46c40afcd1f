package flows

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

// ErrorKind classifies flow failures so callers never match on message text.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindValidation
	KindUnauthenticated
	KindNoSuchUser
	KindBadFormat
	KindWrongPassword
	KindEmailInUse
	KindWeakPassword
	KindNotFound
	KindDirectory
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNoSuchUser:
		return "no_such_user"
	case KindBadFormat:
		return "bad_format"
	case KindWrongPassword:
		return "wrong_password"
	case KindEmailInUse:
		return "email_in_use"
	case KindWeakPassword:
		return "weak_password"
	case KindNotFound:
		return "not_found"
	case KindDirectory:
		return "directory"
	case KindTransport:
		return "transport"
	default:
		return "other"
	}
}

// Error is a flow failure carrying the message shown to the user.
// Code is set for transport failures only.
type Error struct {
	Kind    ErrorKind
	Field   string
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// ValidationErrors collects every field rejected by local validation.
type ValidationErrors []*Error

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Fields maps field name to message.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, e := range v {
		if _, ok := out[e.Field]; !ok {
			out[e.Field] = e.Message
		}
	}
	return out
}

// KindOf returns the kind of err, KindOther when err is not a flow error.
func KindOf(err error) ErrorKind {
	var v ValidationErrors
	if errors.As(err, &v) {
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

func validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func transportFailure(prefix string, err error) *Error {
	code, msg := services.CodeServerError, err.Error()
	if te, ok := services.AsTransportError(err); ok {
		code, msg = te.Code, te.Message
	}
	message := msg
	if prefix != "" {
		message = fmt.Sprintf("%s: %s (code %d)", prefix, msg, code)
	}
	return &Error{Kind: KindTransport, Code: code, Message: message, Err: err}
}

// signInError maps credential store failures of a sign-in attempt.
func signInError(err error) *Error {
	switch {
	case errors.Is(err, services.ErrNoSuchUser):
		return &Error{Kind: KindNoSuchUser, Field: "email", Message: "No account found with this email", Err: err}
	case errors.Is(err, services.ErrBadEmail):
		return &Error{Kind: KindBadFormat, Field: "email", Message: "Invalid email format", Err: err}
	case errors.Is(err, services.ErrWrongPassword):
		return &Error{Kind: KindWrongPassword, Field: "password", Message: "Incorrect password", Err: err}
	default:
		return &Error{Kind: KindOther, Message: "Login failed: " + err.Error(), Err: err}
	}
}

// signUpError maps credential store failures of a registration attempt.
func signUpError(err error) *Error {
	switch {
	case errors.Is(err, services.ErrEmailInUse):
		return &Error{Kind: KindEmailInUse, Field: "email", Message: "Email already registered", Err: err}
	case errors.Is(err, services.ErrBadEmail):
		return &Error{Kind: KindBadFormat, Field: "email", Message: "Invalid email format", Err: err}
	case errors.Is(err, services.ErrWeakPassword):
		return &Error{Kind: KindWeakPassword, Field: "password", Message: "Password must be at least 6 characters", Err: err}
	default:
		return &Error{Kind: KindOther, Message: "Sign up failed: " + err.Error(), Err: err}
	}
}
