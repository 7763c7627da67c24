package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/authguard/internal/handlers"
	"github.com/BradenHooton/authguard/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type securityLogsBody struct {
	Logs  []handlers.SecurityLogResponse `json:"logs"`
	Total int                            `json:"total"`
	Limit int                            `json:"limit"`
}

func makeEntries(n int) []models.SecurityLogEntry {
	userID := "user-1"
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := make([]models.SecurityLogEntry, n)
	for i := range entries {
		entries[i] = models.SecurityLogEntry{
			ID:        uuid.Must(uuid.NewV7()),
			UserID:    &userID,
			Action:    models.ActionLoginFailed,
			Details:   fmt.Sprintf("attempt %d", i),
			IPAddress: models.UnknownClientValue,
			UserAgent: models.UnknownClientValue,
			Timestamp: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return entries
}

func TestSecurityLogs(t *testing.T) {
	var gotUserID *string
	guard := &handlers.MockSessionService{
		GetSecurityLogsFunc: func(userID *string) []models.SecurityLogEntry {
			gotUserID = userID
			return makeEntries(3)
		},
		Current: models.Session{
			IsAuthenticated: true,
			State:           models.StateAuthenticated,
			Identity:        &models.Profile{ID: "user-1", Username: "alice"},
		},
	}
	h := newHandler(guard, nil)

	t.Run("defaults to the signed-in account", func(t *testing.T) {
		gotUserID = nil
		w := httptest.NewRecorder()
		h.SecurityLogs(w, httptest.NewRequest("GET", "/security/logs", nil))

		var body securityLogsBody
		handlers.AssertJSONResponse(t, w, http.StatusOK, &body)
		require.NotNil(t, gotUserID)
		assert.Equal(t, "user-1", *gotUserID)
		assert.Len(t, body.Logs, 3)
		assert.Equal(t, "attempt 0", body.Logs[0].Details)
		assert.Equal(t, "LOGIN_FAILED", body.Logs[0].Action)
		assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
	})

	t.Run("own user id", func(t *testing.T) {
		gotUserID = nil
		w := httptest.NewRecorder()
		h.SecurityLogs(w, httptest.NewRequest("GET", "/security/logs?user_id=user-1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, gotUserID)
		assert.Equal(t, "user-1", *gotUserID)
	})

	t.Run("other user id", func(t *testing.T) {
		gotUserID = nil
		w := httptest.NewRecorder()
		h.SecurityLogs(w, httptest.NewRequest("GET", "/security/logs?user_id=user-2", nil))

		handlers.AssertErrorResponse(t, w, http.StatusForbidden, "forbidden")
		assert.Nil(t, gotUserID)
	})

	t.Run("limit truncates newest first", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.SecurityLogs(w, httptest.NewRequest("GET", "/security/logs?limit=2", nil))

		var body securityLogsBody
		handlers.AssertJSONResponse(t, w, http.StatusOK, &body)
		assert.Len(t, body.Logs, 2)
		assert.Equal(t, 3, body.Total)
		assert.Equal(t, 2, body.Limit)
		assert.Equal(t, "attempt 1", body.Logs[1].Details)
	})

	t.Run("invalid limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.SecurityLogs(w, httptest.NewRequest("GET", "/security/logs?limit=-1", nil))
		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})
}

func TestSecurityLogs_RequiresSession(t *testing.T) {
	called := false
	guard := &handlers.MockSessionService{
		GetSecurityLogsFunc: func(userID *string) []models.SecurityLogEntry {
			called = true
			return nil
		},
	}

	w := httptest.NewRecorder()
	newHandler(guard, nil).SecurityLogs(w, httptest.NewRequest("GET", "/security/logs", nil))

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	assert.False(t, called)
}

func TestUpdateProfile(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got models.ProfileUpdate
		guard := &handlers.MockSessionService{
			UpdateProfileFunc: func(ctx context.Context, update models.ProfileUpdate) (*models.Profile, error) {
				got = update
				return &models.Profile{ID: "user-1", Username: "alice", Bio: update.Bio}, nil
			},
		}

		bio := "hello"
		req := handlers.NewTestRequest(t, "PUT", "/profile", handlers.UpdateProfileRequest{Bio: &bio})
		w := httptest.NewRecorder()
		newHandler(guard, nil).UpdateProfile(w, req)

		var profile models.Profile
		handlers.AssertJSONResponse(t, w, http.StatusOK, &profile)
		require.NotNil(t, profile.Bio)
		assert.Equal(t, "hello", *profile.Bio)
		assert.Nil(t, got.Username)
		assert.Nil(t, got.AvatarURL)
	})

	t.Run("not signed in", func(t *testing.T) {
		bio := "hello"
		req := handlers.NewTestRequest(t, "PUT", "/profile", handlers.UpdateProfileRequest{Bio: &bio})
		w := httptest.NewRecorder()
		newHandler(&handlers.MockSessionService{}, nil).UpdateProfile(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("username taken", func(t *testing.T) {
		guard := &handlers.MockSessionService{
			UpdateProfileFunc: func(ctx context.Context, update models.ProfileUpdate) (*models.Profile, error) {
				return nil, models.NewAuthError(models.ErrUsernameTaken, "Username is already taken", nil)
			},
		}

		username := "bob"
		req := handlers.NewTestRequest(t, "PUT", "/profile", handlers.UpdateProfileRequest{Username: &username})
		w := httptest.NewRecorder()
		newHandler(guard, nil).UpdateProfile(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusConflict, "username_taken")
	})

	t.Run("invalid avatar url", func(t *testing.T) {
		avatar := "not a url"
		req := handlers.NewTestRequest(t, "PUT", "/profile", handlers.UpdateProfileRequest{AvatarURL: &avatar})
		w := httptest.NewRecorder()
		newHandler(&handlers.MockSessionService{}, nil).UpdateProfile(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.Health(&handlers.MockHealthChecker{})(w, httptest.NewRequest("GET", "/health", nil))

	var resp handlers.HealthResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "healthy", resp.Status)

	w = httptest.NewRecorder()
	handlers.Health(&handlers.MockHealthChecker{Err: errors.New("connection refused")})(w, httptest.NewRequest("GET", "/health", nil))
	handlers.AssertJSONResponse(t, w, http.StatusServiceUnavailable, &resp)
	assert.Equal(t, "down", resp.Database)
}
