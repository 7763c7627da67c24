package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/authguard/internal/models"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockSessionService implements SessionService for testing
type MockSessionService struct {
	SignInFunc                  func(ctx context.Context, identifier, password string) error
	SignUpFunc                  func(ctx context.Context, username, email, password string) error
	SignOutFunc                 func(ctx context.Context) error
	CheckAuthFunc               func(ctx context.Context) error
	ForgotPasswordFunc          func(ctx context.Context, email string) error
	ResetPasswordFunc           func(ctx context.Context, newPassword string) error
	ResendEmailVerificationFunc func(ctx context.Context, email string) error
	UpdateProfileFunc           func(ctx context.Context, update models.ProfileUpdate) (*models.Profile, error)
	CheckAccountLockedFunc      func(identifier string) bool
	GetSecurityLogsFunc         func(userID *string) []models.SecurityLogEntry

	Current models.Session
}

func (m *MockSessionService) SignIn(ctx context.Context, identifier, password string) error {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, identifier, password)
	}
	return nil
}

func (m *MockSessionService) SignUp(ctx context.Context, username, email, password string) error {
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, username, email, password)
	}
	return nil
}

func (m *MockSessionService) SignOut(ctx context.Context) error {
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx)
	}
	return nil
}

func (m *MockSessionService) CheckAuth(ctx context.Context) error {
	if m.CheckAuthFunc != nil {
		return m.CheckAuthFunc(ctx)
	}
	return nil
}

func (m *MockSessionService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email)
	}
	return nil
}

func (m *MockSessionService) ResetPassword(ctx context.Context, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, newPassword)
	}
	return nil
}

func (m *MockSessionService) ResendEmailVerification(ctx context.Context, email string) error {
	if m.ResendEmailVerificationFunc != nil {
		return m.ResendEmailVerificationFunc(ctx, email)
	}
	return nil
}

func (m *MockSessionService) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.Profile, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, update)
	}
	return nil, models.ErrNotAuthenticated
}

func (m *MockSessionService) CheckAccountLocked(identifier string) bool {
	if m.CheckAccountLockedFunc != nil {
		return m.CheckAccountLockedFunc(identifier)
	}
	return false
}

func (m *MockSessionService) GetSecurityLogs(userID *string) []models.SecurityLogEntry {
	if m.GetSecurityLogsFunc != nil {
		return m.GetSecurityLogsFunc(userID)
	}
	return nil
}

func (m *MockSessionService) CurrentSession() models.Session {
	return m.Current
}

// MockRecoveryService implements RecoveryService for testing
type MockRecoveryService struct {
	BeginRecoveryFunc func(ctx context.Context, token string) error
	ConfirmEmailFunc  func(ctx context.Context, token string) error
}

func (m *MockRecoveryService) BeginRecovery(ctx context.Context, token string) error {
	if m.BeginRecoveryFunc != nil {
		return m.BeginRecoveryFunc(ctx, token)
	}
	return nil
}

func (m *MockRecoveryService) ConfirmEmail(ctx context.Context, token string) error {
	if m.ConfirmEmailFunc != nil {
		return m.ConfirmEmailFunc(ctx, token)
	}
	return nil
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
