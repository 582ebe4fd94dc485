package domain

import "errors"

// Category sentinels. Specific errors below wrap one of these so the HTTP
// layer only has to know the categories.
var (
	ErrValidation      = errors.New("validation error")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("access forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrTooManyRequests = errors.New("too many requests")
	ErrUpstream        = errors.New("upstream failure")
)

var (
	ErrInvalidCode      = wrap(ErrValidation, "invalid verification code")
	ErrCodeExpired      = wrap(ErrValidation, "verification code has expired")
	ErrInvalidMessageID = wrap(ErrValidation, "invalid message id")

	ErrInvalidCredentials = wrap(ErrUnauthorized, "invalid credentials")

	ErrAccountNotVerified   = wrap(ErrForbidden, "account is not verified")
	ErrNotAcceptingMessages = wrap(ErrForbidden, "user is not accepting messages")

	ErrAccountNotFound = wrap(ErrNotFound, "user not found")
	ErrNoMessages      = wrap(ErrNotFound, "no messages found")

	ErrUsernameTaken = wrap(ErrConflict, "username is already taken")
	ErrEmailTaken    = wrap(ErrConflict, "email is already registered")

	ErrMailDelivery  = wrap(ErrUpstream, "failed to send verification email")
	ErrAIUnavailable = wrap(ErrUpstream, "AI provider is not configured")
)

// kindError is a named error that also matches its category via errors.Is.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
