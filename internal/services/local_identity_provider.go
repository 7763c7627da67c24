package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/BradenHooton/authguard/internal/auth"
	"github.com/BradenHooton/authguard/internal/models"
	pkgauth "github.com/BradenHooton/authguard/pkg/auth"
	"github.com/BradenHooton/authguard/pkg/logger"
)

// CredentialRepository stores the local provider's accounts
type CredentialRepository interface {
	// Create returns models.ErrConflict when the email is registered
	Create(ctx context.Context, email, passwordHash string) (*models.Credential, error)
	// GetByEmail returns models.ErrNotFound for unknown emails
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)
	UpdatePassword(ctx context.Context, accountID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, accountID string) error
}

// TokenIssuer signs and validates provider tokens
type TokenIssuer interface {
	GenerateToken(tokenType, accountID, email string) (string, time.Time, error)
	ValidateToken(tokenString, expectedType string) (*models.TokenClaims, error)
}

// LocalIdentityProviderConfig holds local provider settings
type LocalIdentityProviderConfig struct {
	RequireEmailVerification bool
	// VerificationURL is the base of links in verification emails
	VerificationURL string
	RatePerMinute   int
	// BcryptCost of 0 uses pkgauth.BcryptCost
	BcryptCost int
}

type recoverySession struct {
	accountID string
	email     string
	expiresAt time.Time
}

// LocalIdentityProvider implements IdentityProvider on a credential store,
// bcrypt password hashes and signed session tokens
type LocalIdentityProvider struct {
	creds   CredentialRepository
	tokens  TokenIssuer
	email   EmailService
	store   SessionTokenStore
	limiter *emailLimiter
	timing  *auth.TimingDelay
	clock   Clock
	logger  *slog.Logger
	config  LocalIdentityProviderConfig

	mu       sync.Mutex
	recovery *recoverySession
	// usedRecovery holds consumed recovery token ids until they expire
	usedRecovery map[string]time.Time
}

// NewLocalIdentityProvider creates a new LocalIdentityProvider
func NewLocalIdentityProvider(
	creds CredentialRepository,
	tokens TokenIssuer,
	email EmailService,
	store SessionTokenStore,
	timing *auth.TimingDelay,
	clock Clock,
	logger *slog.Logger,
	config LocalIdentityProviderConfig,
) *LocalIdentityProvider {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = NewMemorySessionStore()
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = pkgauth.BcryptCost
	}
	return &LocalIdentityProvider{
		creds:        creds,
		tokens:       tokens,
		email:        email,
		store:        store,
		limiter:      newEmailLimiter(config.RatePerMinute, clock),
		timing:       timing,
		clock:        clock,
		logger:       logger,
		config:       config,
		usedRecovery: make(map[string]time.Time),
	}
}

// Authenticate verifies email and password and starts a provider session
func (p *LocalIdentityProvider) Authenticate(ctx context.Context, email, password string) (string, error) {
	start := time.Now()
	email = Canonicalize(email)

	if !p.limiter.Allow(email) {
		return "", fmt.Errorf("authenticate %s: %w", logger.SanitizedEmail(email), models.ErrProviderRateLimited)
	}

	cred, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			_ = p.timing.WaitFrom(ctx, start, false)
			return "", models.ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}

	if err := pkgauth.ComparePassword(cred.PasswordHash, password); err != nil {
		_ = p.timing.WaitFrom(ctx, start, false)
		return "", models.ErrInvalidCredentials
	}

	if p.config.RequireEmailVerification && !cred.EmailVerified {
		return "", models.ErrUnverifiedEmail
	}

	if err := p.startSession(cred.AccountID, cred.Email); err != nil {
		return "", err
	}

	return cred.AccountID, nil
}

// Register creates an account and sends a verification email. Without
// required verification the new account is signed in immediately.
func (p *LocalIdentityProvider) Register(ctx context.Context, email, password string) (string, error) {
	email = Canonicalize(email)

	hash, err := pkgauth.HashPasswordCost(password, p.config.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	cred, err := p.creds.Create(ctx, email, hash)
	if err != nil {
		return "", fmt.Errorf("failed to create account: %w", err)
	}

	if err := p.sendVerification(ctx, cred); err != nil {
		p.logger.Warn("verification email not sent after registration",
			slog.String("user_id", cred.AccountID),
			slog.Any("error", err))
	}

	if !p.config.RequireEmailVerification {
		if err := p.startSession(cred.AccountID, cred.Email); err != nil {
			return "", err
		}
	}

	return cred.AccountID, nil
}

// SignOut ends the provider session and any recovery session
func (p *LocalIdentityProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.recovery = nil
	p.mu.Unlock()

	if err := p.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// GetSession returns the active provider session, or nil when there is none
func (p *LocalIdentityProvider) GetSession(ctx context.Context) (*models.ProviderSession, error) {
	token, err := p.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if token == "" {
		return nil, nil
	}

	claims, err := p.tokens.ValidateToken(token, models.TokenTypeSession)
	if err != nil {
		p.logger.Info("stored session is no longer valid", slog.Any("error", err))
		if clearErr := p.store.Clear(); clearErr != nil {
			p.logger.Warn("failed to clear invalid session", slog.Any("error", clearErr))
		}
		return nil, nil
	}

	session := &models.ProviderSession{
		AccountID: claims.AccountID,
		Email:     claims.Email,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// UpdatePassword changes the password of the recovery session's account, or
// of the signed-in account when no recovery session is active
func (p *LocalIdentityProvider) UpdatePassword(ctx context.Context, newPassword string) error {
	accountID, fromRecovery, err := p.passwordTarget()
	if err != nil {
		return err
	}

	// A recovery session is good for one update attempt, successful or not
	if fromRecovery {
		p.mu.Lock()
		p.recovery = nil
		p.mu.Unlock()
	}

	hash, err := pkgauth.HashPasswordCost(newPassword, p.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := p.creds.UpdatePassword(ctx, accountID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	p.logger.Info("password updated", slog.String("user_id", accountID), slog.Bool("recovery", fromRecovery))
	return nil
}

func (p *LocalIdentityProvider) passwordTarget() (string, bool, error) {
	p.mu.Lock()
	recovery := p.recovery
	if recovery != nil && !p.clock.Now().Before(recovery.expiresAt) {
		p.recovery = nil
		recovery = nil
	}
	p.mu.Unlock()

	if recovery != nil {
		return recovery.accountID, true, nil
	}

	token, err := p.store.Load()
	if err != nil {
		return "", false, fmt.Errorf("failed to load session: %w", err)
	}
	if token != "" {
		if claims, err := p.tokens.ValidateToken(token, models.TokenTypeSession); err == nil {
			return claims.AccountID, false, nil
		}
	}

	return "", false, models.NewAuthError(models.ErrInvalidCredentials,
		"Password reset link is invalid or has expired", models.ErrNotAuthenticated)
}

// SendPasswordReset emails a recovery link. Unknown emails succeed silently.
func (p *LocalIdentityProvider) SendPasswordReset(ctx context.Context, email, redirectTarget string) error {
	email = Canonicalize(email)

	if !p.limiter.Allow(email) {
		return fmt.Errorf("password reset for %s: %w", logger.SanitizedEmail(email), models.ErrProviderRateLimited)
	}

	cred, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			p.logger.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	token, _, err := p.tokens.GenerateToken(models.TokenTypeRecovery, cred.AccountID, cred.Email)
	if err != nil {
		return fmt.Errorf("failed to issue recovery token: %w", err)
	}

	link, err := withToken(redirectTarget, token)
	if err != nil {
		return fmt.Errorf("invalid reset redirect: %w", err)
	}

	return p.email.SendPasswordResetEmail(ctx, cred.Email, link)
}

// ResendVerification re-sends the verification email. Unknown and already
// verified emails succeed silently.
func (p *LocalIdentityProvider) ResendVerification(ctx context.Context, email string) error {
	email = Canonicalize(email)

	if !p.limiter.Allow(email) {
		return fmt.Errorf("resend verification for %s: %w", logger.SanitizedEmail(email), models.ErrProviderRateLimited)
	}

	cred, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if cred.EmailVerified {
		return nil
	}

	return p.sendVerification(ctx, cred)
}

// BeginRecovery redeems a recovery token and opens the recovery session that
// UpdatePassword runs against. Each token can be redeemed once.
func (p *LocalIdentityProvider) BeginRecovery(ctx context.Context, token string) error {
	claims, err := p.tokens.ValidateToken(token, models.TokenTypeRecovery)
	if err != nil {
		return models.NewAuthError(models.ErrInvalidCredentials, "Password reset link is invalid or has expired", err)
	}

	now := p.clock.Now()
	expiresAt := now
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for id, exp := range p.usedRecovery {
		if !now.Before(exp) {
			delete(p.usedRecovery, id)
		}
	}
	if _, used := p.usedRecovery[claims.ID]; used {
		return models.NewAuthError(models.ErrInvalidCredentials, "Password reset link has already been used", nil)
	}
	p.usedRecovery[claims.ID] = expiresAt

	p.recovery = &recoverySession{
		accountID: claims.AccountID,
		email:     claims.Email,
		expiresAt: expiresAt,
	}
	return nil
}

// ConfirmEmail redeems a verification token and marks the email verified
func (p *LocalIdentityProvider) ConfirmEmail(ctx context.Context, token string) error {
	claims, err := p.tokens.ValidateToken(token, models.TokenTypeVerification)
	if err != nil {
		return models.NewAuthError(models.ErrInvalidCredentials, "Verification link is invalid or has expired", err)
	}

	if err := p.creds.MarkEmailVerified(ctx, claims.AccountID); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	p.logger.Info("email verified", slog.String("user_id", claims.AccountID))
	return nil
}

func (p *LocalIdentityProvider) startSession(accountID, email string) error {
	token, _, err := p.tokens.GenerateToken(models.TokenTypeSession, accountID, email)
	if err != nil {
		return fmt.Errorf("failed to issue session token: %w", err)
	}
	if err := p.store.Save(token); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (p *LocalIdentityProvider) sendVerification(ctx context.Context, cred *models.Credential) error {
	token, _, err := p.tokens.GenerateToken(models.TokenTypeVerification, cred.AccountID, cred.Email)
	if err != nil {
		return fmt.Errorf("failed to issue verification token: %w", err)
	}

	link, err := withToken(p.config.VerificationURL, token)
	if err != nil {
		return fmt.Errorf("invalid verification url: %w", err)
	}

	return p.email.SendVerificationEmail(ctx, cred.Email, link)
}

func withToken(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
