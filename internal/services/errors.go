package services

import (
	"errors"
	"fmt"

	"github.com/BradenHooton/authguard/internal/models"
)

var kindMessages = map[error]string{
	models.ErrIdentifierNotFound:    "No account matches that username or email",
	models.ErrInvalidCredentials:    "Incorrect credentials",
	models.ErrUnverifiedEmail:       "Please verify your email address before signing in",
	models.ErrProviderRateLimited:   "Too many requests, please try again later",
	models.ErrLockedOut:             "Account is temporarily locked",
	models.ErrUsernameTaken:         "Username is already taken",
	models.ErrProfileCreationFailed: "Account was created but the profile could not be saved",
	models.ErrProviderUnavailable:   "The identity service is unavailable, please try again",
}

// MessageFor returns the user-displayable message for a taxonomy kind
func MessageFor(kind error) string {
	if msg, ok := kindMessages[kind]; ok {
		return msg
	}
	return kindMessages[models.ErrProviderUnavailable]
}

// ClassifyProviderError translates a provider or directory error into the
// closed taxonomy. Already classified errors pass through unchanged.
func ClassifyProviderError(err error) *models.AuthError {
	if err == nil {
		return nil
	}

	var authErr *models.AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	kind := models.KindOf(err)
	return models.NewAuthError(kind, MessageFor(kind), err)
}

func lockedOutError(remainingSeconds int) *models.AuthError {
	return &models.AuthError{
		Kind:              models.ErrLockedOut,
		Message:           fmt.Sprintf("Account is temporarily locked, try again in %d seconds", remainingSeconds),
		RetryAfterSeconds: remainingSeconds,
	}
}
