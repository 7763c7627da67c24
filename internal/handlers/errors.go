package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/authguard/internal/models"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
)

// writeAuthError maps a session manager error onto an HTTP response. Messages
// come from the classified error so the UI can display them as-is.
func writeAuthError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var authErr *models.AuthError
	message := "Internal server error"
	if errors.As(err, &authErr) {
		message = authErr.Message
	}

	switch {
	case errors.Is(err, models.ErrOperationInFlight):
		pkghttp.WriteError(w, http.StatusConflict, "operation_in_flight", "Another sign-in is already in progress")
	case errors.Is(err, models.ErrSessionChanged):
		pkghttp.WriteError(w, http.StatusConflict, "session_changed", "The session changed while the request was in progress")
	case errors.Is(err, models.ErrNotAuthenticated):
		pkghttp.WriteUnauthorized(w, "Not signed in")
	case errors.Is(err, models.ErrLockedOut):
		retryAfter := 0
		if authErr != nil {
			retryAfter = authErr.RetryAfterSeconds
		}
		pkghttp.WriteLocked(w, message, retryAfter)
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "An account with that email already exists")
	case errors.Is(err, models.ErrUsernameTaken):
		pkghttp.WriteError(w, http.StatusConflict, "username_taken", message)
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, message)
	case errors.Is(err, models.ErrIdentifierNotFound):
		pkghttp.WriteNotFound(w, message)
	case errors.Is(err, models.ErrUnverifiedEmail):
		pkghttp.WriteError(w, http.StatusForbidden, "email_not_verified", message)
	case errors.Is(err, models.ErrProviderRateLimited):
		pkghttp.WriteTooManyRequests(w, message)
	case errors.Is(err, models.ErrProfileCreationFailed):
		pkghttp.WriteError(w, http.StatusInternalServerError, "profile_creation_failed", message)
	case errors.Is(err, models.ErrProviderUnavailable):
		pkghttp.WriteServiceUnavailable(w, message)
	default:
		logger.Error("unclassified error reached the handler", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
