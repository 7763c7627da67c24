package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/authguard/internal/models"
	"github.com/BradenHooton/authguard/internal/services"
	pkgauth "github.com/BradenHooton/authguard/pkg/auth"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
)

// SessionService is the session guard behind the HTTP surface
type SessionService interface {
	SignIn(ctx context.Context, identifier, password string) error
	SignUp(ctx context.Context, username, email, password string) error
	SignOut(ctx context.Context) error
	CheckAuth(ctx context.Context) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, newPassword string) error
	ResendEmailVerification(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.Profile, error)
	CheckAccountLocked(identifier string) bool
	GetSecurityLogs(userID *string) []models.SecurityLogEntry
	CurrentSession() models.Session
}

// RecoveryService redeems emailed recovery and verification tokens
type RecoveryService interface {
	BeginRecovery(ctx context.Context, token string) error
	ConfirmEmail(ctx context.Context, token string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	guard    SessionService
	recovery RecoveryService
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. recovery may be nil when the
// identity provider delivers its own links.
func NewAuthHandler(guard SessionService, recovery RecoveryService, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		guard:    guard,
		recovery: recovery,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Request DTOs

// SignInRequest represents the request body for sign-in
type SignInRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=72"`
}

// SignUpRequest represents the request body for sign-up
type SignUpRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,handle"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (r *SignInRequest) normalize() {
	r.Identifier = strings.TrimSpace(r.Identifier)
}

func (r *SignUpRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
}

// SessionResponse is the current session snapshot
type SessionResponse struct {
	models.Session
}

// LockStatusResponse reports whether an identifier is locked out
type LockStatusResponse struct {
	Locked bool `json:"locked"`
}

// SignIn handles POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.guard.SignIn(h.clientContext(r), req.Identifier, req.Password); err != nil {
		writeAuthError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{h.guard.CurrentSession()})
}

// SignUp handles POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := pkgauth.ValidatePassword(req.Password); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.guard.SignUp(h.clientContext(r), req.Username, req.Email, req.Password); err != nil {
		writeAuthError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, SessionResponse{h.guard.CurrentSession()})
}

// SignOut handles POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.SignOut(h.clientContext(r)); err != nil {
		writeAuthError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Check handles POST /auth/check by restoring the provider session
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.CheckAuth(h.clientContext(r)); err != nil {
		writeAuthError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{h.guard.CurrentSession()})
}

// Session handles GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{h.guard.CurrentSession()})
}

// Locked handles GET /auth/locked?identifier=
func (h *AuthHandler) Locked(w http.ResponseWriter, r *http.Request) {
	identifier := strings.TrimSpace(r.URL.Query().Get("identifier"))
	if identifier == "" {
		pkghttp.WriteBadRequest(w, "identifier is required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LockStatusResponse{Locked: h.guard.CheckAccountLocked(identifier)})
}

// clientContext attaches the caller's address and user agent for audit entries
func (h *AuthHandler) clientContext(r *http.Request) context.Context {
	return services.WithClientInfo(r.Context(), services.ClientInfo{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: pkghttp.UserAgent(r),
	})
}

// decodeAndValidate writes a 400 and returns false when the body is unusable
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}

	if n, ok := req.(normalizer); ok {
		n.normalize()
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}
