package models

import (
	"time"

	"github.com/google/uuid"
)

// SecurityAction is the enumerated category of a security log entry
type SecurityAction string

// Security actions
const (
	ActionLoginSuccess               SecurityAction = "LOGIN_SUCCESS"
	ActionLoginFailed                SecurityAction = "LOGIN_FAILED"
	ActionSignupSuccess              SecurityAction = "SIGNUP_SUCCESS"
	ActionSignupFailed               SecurityAction = "SIGNUP_FAILED"
	ActionSignupError                SecurityAction = "SIGNUP_ERROR"
	ActionProfileCreationFailed      SecurityAction = "PROFILE_CREATION_FAILED"
	ActionLogoutSuccess              SecurityAction = "LOGOUT_SUCCESS"
	ActionLogoutFailed               SecurityAction = "LOGOUT_FAILED"
	ActionPasswordResetRequest       SecurityAction = "PASSWORD_RESET_REQUEST"
	ActionPasswordResetRequestFailed SecurityAction = "PASSWORD_RESET_REQUEST_FAILED"
	ActionPasswordResetSuccess       SecurityAction = "PASSWORD_RESET_SUCCESS"
	ActionPasswordResetFailed        SecurityAction = "PASSWORD_RESET_FAILED"
	ActionEmailVerificationResent    SecurityAction = "EMAIL_VERIFICATION_RESENT"
	ActionProfileUpdateSuccess       SecurityAction = "PROFILE_UPDATE_SUCCESS"
	ActionProfileUpdateFailed        SecurityAction = "PROFILE_UPDATE_FAILED"
)

// UnknownClientValue fills IP address and user agent when the caller supplied none
const UnknownClientValue = "Unknown"

// SecurityLogEntry is an immutable record of a security-relevant transition
type SecurityLogEntry struct {
	ID        uuid.UUID      `json:"id"`
	UserID    *string        `json:"user_id,omitempty"`
	Action    SecurityAction `json:"action"`
	Details   string         `json:"details"`
	Success   bool           `json:"success"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent"`
	Timestamp time.Time      `json:"timestamp"`
}

// HasUser reports whether the entry is attributed to userID
func (e SecurityLogEntry) HasUser(userID string) bool {
	return e.UserID != nil && *e.UserID == userID
}
