package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Authentication error taxonomy. Every failure that leaves the session manager
// is one of these kinds.
var (
	ErrIdentifierNotFound    = errors.New("identifier not found")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUnverifiedEmail       = errors.New("email address not verified")
	ErrProviderRateLimited   = errors.New("identity provider rate limit exceeded")
	ErrLockedOut             = errors.New("account is temporarily locked")
	ErrUsernameTaken         = errors.New("username already taken")
	ErrProfileCreationFailed = errors.New("profile creation failed")
	ErrProviderUnavailable   = errors.New("identity provider unavailable")
)

// Session guard errors that never reach a provider
var (
	ErrOperationInFlight = errors.New("another operation is already in progress")
	ErrSessionChanged    = errors.New("session changed while the operation was in progress")
	ErrNotAuthenticated  = errors.New("not authenticated")
)

var taxonomy = []error{
	ErrIdentifierNotFound,
	ErrInvalidCredentials,
	ErrUnverifiedEmail,
	ErrProviderRateLimited,
	ErrLockedOut,
	ErrUsernameTaken,
	ErrProfileCreationFailed,
	ErrProviderUnavailable,
}

// AuthError is a classified failure with a stable, user-displayable message.
// It matches its Kind and its cause with errors.Is.
type AuthError struct {
	Kind    error
	Message string

	// RetryAfterSeconds is only set for ErrLockedOut.
	RetryAfterSeconds int

	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewAuthError builds a classified error. A nil kind is treated as ErrProviderUnavailable.
func NewAuthError(kind error, message string, cause error) *AuthError {
	if kind == nil {
		kind = ErrProviderUnavailable
	}
	return &AuthError{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the taxonomy sentinel err belongs to, or ErrProviderUnavailable
// when err matches none of them.
func KindOf(err error) error {
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrProviderUnavailable
}
