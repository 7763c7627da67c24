package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/BradenHooton/authguard/internal/models"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
)

// IdentityProvider performs credential verification and session issuance
type IdentityProvider interface {
	Authenticate(ctx context.Context, email, password string) (accountID string, err error)
	Register(ctx context.Context, email, password string) (accountID string, err error)
	SignOut(ctx context.Context) error
	// GetSession returns nil, nil when there is no active session
	GetSession(ctx context.Context) (*models.ProviderSession, error)
	UpdatePassword(ctx context.Context, newPassword string) error
	SendPasswordReset(ctx context.Context, email, redirectTarget string) error
	ResendVerification(ctx context.Context, email string) error
}

// UserDirectory maps usernames to emails and stores profile records
type UserDirectory interface {
	// ResolveHandleToEmail returns models.ErrNotFound for unknown handles
	ResolveHandleToEmail(ctx context.Context, handle string) (string, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	CreateProfile(ctx context.Context, accountID, username, email string) error
	// FetchProfile returns models.ErrNotFound for unknown accounts
	FetchProfile(ctx context.Context, accountID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, accountID string, update models.ProfileUpdate) (*models.Profile, error)
}

// SessionManagerConfig holds session manager settings
type SessionManagerConfig struct {
	// ResetRedirectURL is where password reset links send the user
	ResetRedirectURL string
}

// SessionManager orchestrates sign-in, sign-up, sign-out, restoration and
// password flows around the attempt tracker and the security audit log.
// It owns the single current session of the process.
type SessionManager struct {
	provider  IdentityProvider
	directory UserDirectory
	tracker   *AttemptTracker
	audit     *SecurityAuditLog
	clock     Clock
	logger    *slog.Logger
	config    SessionManagerConfig

	mu         sync.RWMutex
	identity   *models.Profile
	state      models.SessionState
	generation uint64

	// inFlight rejects overlapping sign-in/sign-up calls
	inFlight atomic.Bool
	pending  atomic.Int32
}

// NewSessionManager creates a new SessionManager in the unauthenticated state
func NewSessionManager(
	provider IdentityProvider,
	directory UserDirectory,
	tracker *AttemptTracker,
	audit *SecurityAuditLog,
	clock Clock,
	logger *slog.Logger,
	config SessionManagerConfig,
) *SessionManager {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		provider:  provider,
		directory: directory,
		tracker:   tracker,
		audit:     audit,
		clock:     clock,
		logger:    logger,
		config:    config,
		state:     models.StateUnauthenticated,
	}
}

// SignIn authenticates identifier (email or username) with password.
// A nil error means the session is now authenticated.
func (m *SessionManager) SignIn(ctx context.Context, identifier, password string) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		return models.ErrOperationInFlight
	}
	defer m.inFlight.Store(false)
	m.pending.Add(1)
	defer m.pending.Add(-1)

	identifier = strings.TrimSpace(identifier)
	label := describeIdentifier(identifier)

	if m.tracker.IsLocked(identifier) {
		record, _ := m.tracker.Record(identifier)
		authErr := lockedOutError(RemainingLockoutSeconds(record, m.clock.Now()))
		m.logger.Warn("sign-in rejected: identifier locked out",
			slog.String("identifier", label),
			slog.Int("retry_after_seconds", authErr.RetryAfterSeconds))
		m.record(ctx, models.ActionLoginFailed, fmt.Sprintf("account locked: %s", label), false, "")
		return authErr
	}

	gen, prev := m.enter(models.StateAuthenticating)
	defer m.leave(gen, models.StateAuthenticating, prev)

	email := identifier
	if !looksLikeEmail(identifier) {
		resolved, err := m.directory.ResolveHandleToEmail(ctx, identifier)
		if err != nil {
			m.tracker.RecordAttempt(identifier, false)
			if errors.Is(err, models.ErrNotFound) {
				m.logger.Info("sign-in failed: handle not found")
				m.record(ctx, models.ActionLoginFailed, fmt.Sprintf("handle not found: %s", label), false, "")
				return models.NewAuthError(models.ErrIdentifierNotFound, MessageFor(models.ErrIdentifierNotFound), err)
			}
			m.logger.Error("sign-in failed: handle lookup error", slog.Any("error", err))
			authErr := ClassifyProviderError(err)
			m.record(ctx, models.ActionLoginFailed, fmt.Sprintf("handle lookup failed: %s", label), false, "")
			return authErr
		}
		email = resolved
	}

	accountID, err := m.provider.Authenticate(ctx, email, password)
	if err != nil {
		attempt := m.tracker.RecordAttempt(identifier, false)
		authErr := ClassifyProviderError(err)
		m.logger.Info("sign-in failed",
			slog.String("identifier", label),
			slog.String("kind", authErr.Kind.Error()),
			slog.Int("attempts", attempt.Attempts))
		if attempt.LockedUntil != nil {
			m.logger.Warn("identifier locked out",
				slog.String("identifier", label),
				slog.Time("locked_until", *attempt.LockedUntil))
		}
		m.record(ctx, models.ActionLoginFailed, loginFailureDetails(authErr.Kind, label), false, "")
		return authErr
	}

	m.tracker.Clear(identifier)

	profile, err := m.directory.FetchProfile(ctx, accountID)
	if err != nil {
		m.logger.Error("sign-in failed: profile fetch error", slog.String("user_id", accountID), slog.Any("error", err))
		m.revokeProviderSession(ctx, accountID)
		m.record(ctx, models.ActionLoginFailed, "account profile could not be loaded", false, accountID)
		if errors.Is(err, models.ErrNotFound) {
			return models.NewAuthError(models.ErrIdentifierNotFound, MessageFor(models.ErrIdentifierNotFound), err)
		}
		return ClassifyProviderError(err)
	}

	if !m.commit(gen, profile) {
		m.logger.Warn("sign-in result discarded: session changed", slog.String("user_id", accountID))
		m.revokeProviderSession(ctx, accountID)
		m.record(ctx, models.ActionLoginFailed, "session changed before sign-in completed", false, accountID)
		return models.ErrSessionChanged
	}

	m.logger.Info("user signed in", slog.String("user_id", accountID))
	m.record(ctx, models.ActionLoginSuccess, fmt.Sprintf("signed in: %s", label), true, accountID)
	return nil
}

// SignUp registers a new account and signs it in. Sign-up is not throttled.
func (m *SessionManager) SignUp(ctx context.Context, username, email, password string) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		return models.ErrOperationInFlight
	}
	defer m.inFlight.Store(false)
	m.pending.Add(1)
	defer m.pending.Add(-1)

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	maskedEmail := pkglogger.SanitizedEmail(email)

	gen, prev := m.enter(models.StateAuthenticating)
	defer m.leave(gen, models.StateAuthenticating, prev)

	exists, err := m.directory.UsernameExists(ctx, username)
	if err != nil {
		m.logger.Error("sign-up failed: username check error", slog.Any("error", err))
		m.record(ctx, models.ActionSignupError, "username availability check failed", false, "")
		return ClassifyProviderError(err)
	}
	if exists {
		m.logger.Info("sign-up failed: username taken")
		m.record(ctx, models.ActionSignupFailed, fmt.Sprintf("username already exists: %s", username), false, "")
		return models.NewAuthError(models.ErrUsernameTaken, MessageFor(models.ErrUsernameTaken), nil)
	}

	accountID, err := m.provider.Register(ctx, email, password)
	if err != nil {
		authErr := ClassifyProviderError(err)
		m.logger.Info("sign-up failed: provider rejected registration", slog.Any("error", err))
		m.record(ctx, models.ActionSignupFailed, fmt.Sprintf("registration failed for %s: %s", maskedEmail, authErr.Kind), false, "")
		return authErr
	}

	if err := m.directory.CreateProfile(ctx, accountID, username, email); err != nil {
		m.logger.Error("profile creation failed", slog.String("user_id", accountID), slog.Any("error", err))
		m.record(ctx, models.ActionProfileCreationFailed, "profile record could not be created", false, accountID)
		if errors.Is(err, models.ErrConflict) {
			return models.NewAuthError(models.ErrUsernameTaken, MessageFor(models.ErrUsernameTaken), err)
		}
		return models.NewAuthError(models.ErrProfileCreationFailed, MessageFor(models.ErrProfileCreationFailed), err)
	}

	profile, err := m.directory.FetchProfile(ctx, accountID)
	if err != nil {
		m.logger.Warn("profile fetch after sign-up failed, using registration data",
			slog.String("user_id", accountID), slog.Any("error", err))
		profile = &models.Profile{ID: accountID, Username: username, Email: email, IsActive: true}
	}

	details := fmt.Sprintf("registered: %s, username: %s", maskedEmail, username)
	if !m.commit(gen, profile) {
		m.logger.Warn("sign-up session discarded: session changed", slog.String("user_id", accountID))
		m.revokeProviderSession(ctx, accountID)
		m.record(ctx, models.ActionSignupSuccess, details+" (session discarded)", true, accountID)
		return models.ErrSessionChanged
	}

	m.record(ctx, models.ActionSignupSuccess, details, true, accountID)

	m.logger.Info("user registered", slog.String("user_id", accountID))
	return nil
}

// SignOut ends the provider session. On failure the session stays as it was.
func (m *SessionManager) SignOut(ctx context.Context) error {
	m.pending.Add(1)
	defer m.pending.Add(-1)

	userID := m.currentUserID()

	if err := m.provider.SignOut(ctx); err != nil {
		authErr := ClassifyProviderError(err)
		m.logger.Error("sign-out failed", slog.String("user_id", userID), slog.Any("error", err))
		m.record(ctx, models.ActionLogoutFailed, "sign-out failed", false, userID)
		return authErr
	}

	m.record(ctx, models.ActionLogoutSuccess, "signed out", true, userID)

	m.mu.Lock()
	m.identity = nil
	m.state = models.StateUnauthenticated
	m.generation++
	m.mu.Unlock()

	m.logger.Info("user signed out", slog.String("user_id", userID))
	return nil
}

// CheckAuth restores an existing provider session at startup. It is not audited.
func (m *SessionManager) CheckAuth(ctx context.Context) error {
	m.pending.Add(1)
	defer m.pending.Add(-1)

	gen, prev := m.enter(models.StateRestoring)
	defer m.leave(gen, models.StateRestoring, prev)

	session, err := m.provider.GetSession(ctx)
	if err != nil {
		m.logger.Warn("session restore failed", slog.Any("error", err))
		m.teardown(gen)
		return ClassifyProviderError(err)
	}
	if session == nil {
		m.teardown(gen)
		return nil
	}

	profile, err := m.directory.FetchProfile(ctx, session.AccountID)
	if err != nil {
		m.teardown(gen)
		if errors.Is(err, models.ErrNotFound) {
			m.logger.Info("session restore: no profile for account", slog.String("user_id", session.AccountID))
			return nil
		}
		m.logger.Warn("session restore: profile fetch failed", slog.Any("error", err))
		return ClassifyProviderError(err)
	}

	if !m.commit(gen, profile) {
		return models.ErrSessionChanged
	}

	m.logger.Info("session restored", slog.String("user_id", profile.ID))
	return nil
}

// ForgotPassword asks the provider to email a password reset link
func (m *SessionManager) ForgotPassword(ctx context.Context, email string) error {
	m.pending.Add(1)
	defer m.pending.Add(-1)

	email = strings.TrimSpace(email)
	masked := pkglogger.SanitizedEmail(email)

	if err := m.provider.SendPasswordReset(ctx, email, m.config.ResetRedirectURL); err != nil {
		authErr := ClassifyProviderError(err)
		m.logger.Warn("password reset request failed", slog.Any("error", err))
		m.record(ctx, models.ActionPasswordResetRequestFailed, fmt.Sprintf("reset email could not be sent to %s", masked), false, "")
		return authErr
	}

	m.record(ctx, models.ActionPasswordResetRequest, fmt.Sprintf("password reset requested: %s", masked), true, "")
	return nil
}

// ResetPassword sets a new password through the provider's token-scoped session
func (m *SessionManager) ResetPassword(ctx context.Context, newPassword string) error {
	m.pending.Add(1)
	defer m.pending.Add(-1)

	userID := m.currentUserID()

	if err := m.provider.UpdatePassword(ctx, newPassword); err != nil {
		authErr := ClassifyProviderError(err)
		m.logger.Warn("password reset failed", slog.String("user_id", userID), slog.Any("error", err))
		m.record(ctx, models.ActionPasswordResetFailed, "password reset failed", false, userID)
		return authErr
	}

	m.record(ctx, models.ActionPasswordResetSuccess, "password reset", true, userID)
	return nil
}

// ResendEmailVerification resends the sign-up verification email. An empty
// email falls back to the current session's address.
func (m *SessionManager) ResendEmailVerification(ctx context.Context, email string) error {
	m.pending.Add(1)
	defer m.pending.Add(-1)

	target := strings.TrimSpace(email)
	if target == "" {
		if identity := m.currentIdentity(); identity != nil {
			target = identity.Email
		}
	}
	if target == "" {
		m.record(ctx, models.ActionEmailVerificationResent, "no email address available", false, "")
		return models.NewAuthError(models.ErrIdentifierNotFound, "No email address found", nil)
	}

	masked := pkglogger.SanitizedEmail(target)
	if err := m.provider.ResendVerification(ctx, target); err != nil {
		authErr := ClassifyProviderError(err)
		m.logger.Warn("verification resend failed", slog.Any("error", err))
		m.record(ctx, models.ActionEmailVerificationResent, fmt.Sprintf("verification email could not be sent to %s", masked), false, "")
		return authErr
	}

	m.record(ctx, models.ActionEmailVerificationResent, fmt.Sprintf("verification email sent to %s", masked), true, "")
	return nil
}

// UpdateProfile edits the signed-in user's profile
func (m *SessionManager) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.Profile, error) {
	m.pending.Add(1)
	defer m.pending.Add(-1)

	m.mu.RLock()
	identity := m.identity
	gen := m.generation
	m.mu.RUnlock()

	if identity == nil {
		return nil, models.ErrNotAuthenticated
	}
	if update.IsEmpty() {
		out := *identity
		return &out, nil
	}

	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		update.Username = &username
		if username != identity.Username {
			exists, err := m.directory.UsernameExists(ctx, username)
			if err != nil {
				m.record(ctx, models.ActionProfileUpdateFailed, "username availability check failed", false, identity.ID)
				return nil, ClassifyProviderError(err)
			}
			if exists {
				m.record(ctx, models.ActionProfileUpdateFailed, fmt.Sprintf("username already exists: %s", username), false, identity.ID)
				return nil, models.NewAuthError(models.ErrUsernameTaken, MessageFor(models.ErrUsernameTaken), nil)
			}
		}
	}

	profile, err := m.directory.UpdateProfile(ctx, identity.ID, update)
	if err != nil {
		m.logger.Error("profile update failed", slog.String("user_id", identity.ID), slog.Any("error", err))
		m.record(ctx, models.ActionProfileUpdateFailed, "profile update failed", false, identity.ID)
		if errors.Is(err, models.ErrConflict) {
			return nil, models.NewAuthError(models.ErrUsernameTaken, MessageFor(models.ErrUsernameTaken), err)
		}
		return nil, ClassifyProviderError(err)
	}

	m.mu.Lock()
	if m.generation != gen || m.identity == nil || m.identity.ID != profile.ID {
		m.mu.Unlock()
		return nil, models.ErrSessionChanged
	}
	m.identity = profile
	m.mu.Unlock()

	m.record(ctx, models.ActionProfileUpdateSuccess, "profile updated", true, profile.ID)

	out := *profile
	return &out, nil
}

// CheckAccountLocked reports whether identifier is locked out
func (m *SessionManager) CheckAccountLocked(identifier string) bool {
	return m.tracker.IsLocked(identifier)
}

// GetSecurityLogs returns audit entries newest first, optionally for one user
func (m *SessionManager) GetSecurityLogs(userID *string) []models.SecurityLogEntry {
	return m.audit.Query(userID)
}

// IsLoading reports whether any operation is in progress
func (m *SessionManager) IsLoading() bool {
	return m.pending.Load() > 0
}

// CurrentSession returns a snapshot of the session
func (m *SessionManager) CurrentSession() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session := models.Session{
		IsAuthenticated: m.identity != nil,
		IsLoading:       m.pending.Load() > 0,
		State:           m.state,
	}
	if m.identity != nil {
		identity := *m.identity
		session.Identity = &identity
	}
	return session
}

// enter moves to a transient state and returns the generation the operation
// must still observe to commit
func (m *SessionManager) enter(transient models.SessionState) (uint64, models.SessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	m.state = transient
	return m.generation, prev
}

// leave restores prev unless the operation committed or the session changed
func (m *SessionManager) leave(gen uint64, transient, prev models.SessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation == gen && m.state == transient {
		m.state = prev
	}
}

// commit installs identity if no other transition happened since gen
func (m *SessionManager) commit(gen uint64, identity *models.Profile) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != gen {
		return false
	}
	m.identity = identity
	m.state = models.StateAuthenticated
	m.generation++
	return true
}

func (m *SessionManager) teardown(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != gen {
		return
	}
	m.identity = nil
	m.state = models.StateUnauthenticated
	m.generation++
}

// revokeProviderSession ends a provider session the guard will not install.
// It is not audited; the caller records the outcome of its own operation.
func (m *SessionManager) revokeProviderSession(ctx context.Context, accountID string) {
	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Error("failed to revoke discarded provider session",
			slog.String("user_id", accountID), slog.Any("error", err))
		return
	}
	m.logger.Info("discarded provider session revoked", slog.String("user_id", accountID))
}

func (m *SessionManager) currentIdentity() *models.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

func (m *SessionManager) currentUserID() string {
	if identity := m.currentIdentity(); identity != nil {
		return identity.ID
	}
	return ""
}

// record appends an audit entry. An empty userID falls back to the current session user.
func (m *SessionManager) record(ctx context.Context, action models.SecurityAction, details string, success bool, userID string) {
	if userID == "" {
		userID = m.currentUserID()
	}

	info := ClientInfoFrom(ctx)
	entry := models.SecurityLogEntry{
		Action:    action,
		Details:   details,
		Success:   success,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	m.audit.Append(ctx, entry)
}

func looksLikeEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// describeIdentifier masks emails so audit details never carry full addresses
func describeIdentifier(identifier string) string {
	if looksLikeEmail(identifier) {
		return pkglogger.SanitizedEmail(Canonicalize(identifier))
	}
	return identifier
}

func loginFailureDetails(kind error, label string) string {
	switch kind {
	case models.ErrInvalidCredentials:
		return fmt.Sprintf("invalid credentials: %s", label)
	case models.ErrUnverifiedEmail:
		return fmt.Sprintf("email not verified: %s", label)
	case models.ErrProviderRateLimited:
		return fmt.Sprintf("too many attempts at provider: %s", label)
	case models.ErrIdentifierNotFound:
		return fmt.Sprintf("identifier not found: %s", label)
	default:
		return fmt.Sprintf("sign-in failed: %s", label)
	}
}
