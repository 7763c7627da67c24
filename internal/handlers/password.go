package handlers

import (
	"net/http"
	"strings"

	pkgauth "github.com/BradenHooton/authguard/pkg/auth"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
)

const resetRequestedMessage = "If an account exists for that email, a password reset link has been sent."

// ForgotPasswordRequest represents the request body for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// ResetPasswordRequest sets a new password. Token is the emailed recovery
// token and may be omitted when a recovery session is already open.
type ResetPasswordRequest struct {
	Token       string `json:"token,omitempty"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// ResendVerificationRequest represents the request body for resending the
// verification email. An empty email targets the signed-in account.
type ResendVerificationRequest struct {
	Email string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

func (r *ForgotPasswordRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
}

func (r *ResetPasswordRequest) normalize() {
	r.Token = strings.TrimSpace(r.Token)
}

func (r *ResendVerificationRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
}

// ForgotPassword handles POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.guard.ForgotPassword(h.clientContext(r), req.Email); err != nil {
		writeAuthError(w, h.logger, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusAccepted, resetRequestedMessage)
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := pkgauth.ValidatePassword(req.NewPassword); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ctx := h.clientContext(r)
	if token := req.Token; token != "" {
		if h.recovery == nil {
			pkghttp.WriteBadRequest(w, "Recovery tokens are not accepted by this identity provider")
			return
		}
		if err := h.recovery.BeginRecovery(ctx, token); err != nil {
			writeAuthError(w, h.logger, err)
			return
		}
	}

	if err := h.guard.ResetPassword(ctx, req.NewPassword); err != nil {
		writeAuthError(w, h.logger, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password updated")
}

// ResendVerification handles POST /auth/resend-verification
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.guard.ResendEmailVerification(h.clientContext(r), req.Email); err != nil {
		writeAuthError(w, h.logger, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusAccepted, "Verification email sent")
}

// VerifyEmail handles GET /auth/verify-email?token=
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if h.recovery == nil {
		pkghttp.WriteNotFound(w, "Email verification is handled by the identity provider")
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		pkghttp.WriteBadRequest(w, "token is required")
		return
	}

	if err := h.recovery.ConfirmEmail(r.Context(), token); err != nil {
		writeAuthError(w, h.logger, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Email verified")
}
