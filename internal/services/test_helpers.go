package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BradenHooton/authguard/internal/models"
)

// FakeClock is a settable Clock for tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock at now
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// MockIdentityProvider implements IdentityProvider for testing
type MockIdentityProvider struct {
	AuthenticateFunc       func(ctx context.Context, email, password string) (string, error)
	RegisterFunc           func(ctx context.Context, email, password string) (string, error)
	SignOutFunc            func(ctx context.Context) error
	GetSessionFunc         func(ctx context.Context) (*models.ProviderSession, error)
	UpdatePasswordFunc     func(ctx context.Context, newPassword string) error
	SendPasswordResetFunc  func(ctx context.Context, email, redirectTarget string) error
	ResendVerificationFunc func(ctx context.Context, email string) error

	AuthenticateCalls atomic.Int32
	RegisterCalls     atomic.Int32
	SignOutCalls      atomic.Int32
}

func (m *MockIdentityProvider) Authenticate(ctx context.Context, email, password string) (string, error) {
	m.AuthenticateCalls.Add(1)
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password)
	}
	return "", models.ErrInvalidCredentials
}

func (m *MockIdentityProvider) Register(ctx context.Context, email, password string) (string, error) {
	m.RegisterCalls.Add(1)
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password)
	}
	return "", models.ErrProviderUnavailable
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	m.SignOutCalls.Add(1)
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx)
	}
	return nil
}

func (m *MockIdentityProvider) GetSession(ctx context.Context) (*models.ProviderSession, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx)
	}
	return nil, nil
}

func (m *MockIdentityProvider) UpdatePassword(ctx context.Context, newPassword string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, newPassword)
	}
	return nil
}

func (m *MockIdentityProvider) SendPasswordReset(ctx context.Context, email, redirectTarget string) error {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, email, redirectTarget)
	}
	return nil
}

func (m *MockIdentityProvider) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc != nil {
		return m.ResendVerificationFunc(ctx, email)
	}
	return nil
}

// MockUserDirectory implements UserDirectory for testing
type MockUserDirectory struct {
	ResolveHandleToEmailFunc func(ctx context.Context, handle string) (string, error)
	UsernameExistsFunc       func(ctx context.Context, username string) (bool, error)
	CreateProfileFunc        func(ctx context.Context, accountID, username, email string) error
	FetchProfileFunc         func(ctx context.Context, accountID string) (*models.Profile, error)
	UpdateProfileFunc        func(ctx context.Context, accountID string, update models.ProfileUpdate) (*models.Profile, error)
}

func (m *MockUserDirectory) ResolveHandleToEmail(ctx context.Context, handle string) (string, error) {
	if m.ResolveHandleToEmailFunc != nil {
		return m.ResolveHandleToEmailFunc(ctx, handle)
	}
	return "", models.ErrNotFound
}

func (m *MockUserDirectory) UsernameExists(ctx context.Context, username string) (bool, error) {
	if m.UsernameExistsFunc != nil {
		return m.UsernameExistsFunc(ctx, username)
	}
	return false, nil
}

func (m *MockUserDirectory) CreateProfile(ctx context.Context, accountID, username, email string) error {
	if m.CreateProfileFunc != nil {
		return m.CreateProfileFunc(ctx, accountID, username, email)
	}
	return nil
}

func (m *MockUserDirectory) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	if m.FetchProfileFunc != nil {
		return m.FetchProfileFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserDirectory) UpdateProfile(ctx context.Context, accountID string, update models.ProfileUpdate) (*models.Profile, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, accountID, update)
	}
	return nil, models.ErrNotFound
}

// MockCredentialRepository is an in-memory CredentialRepository for testing
type MockCredentialRepository struct {
	mu      sync.Mutex
	byEmail map[string]*models.Credential
	nextID  int

	GetByEmailErr     error
	UpdatePasswordErr error
}

// NewMockCredentialRepository creates an empty MockCredentialRepository
func NewMockCredentialRepository() *MockCredentialRepository {
	return &MockCredentialRepository{byEmail: make(map[string]*models.Credential)}
}

func (m *MockCredentialRepository) Create(ctx context.Context, email, passwordHash string) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[email]; exists {
		return nil, models.ErrConflict
	}
	m.nextID++
	cred := &models.Credential{
		AccountID:    fmt.Sprintf("acct-%d", m.nextID),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.byEmail[email] = cred
	out := *cred
	return &out, nil
}

func (m *MockCredentialRepository) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	if m.GetByEmailErr != nil {
		return nil, m.GetByEmailErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.byEmail[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *cred
	return &out, nil
}

func (m *MockCredentialRepository) UpdatePassword(ctx context.Context, accountID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdatePasswordErr != nil {
		return m.UpdatePasswordErr
	}

	for _, cred := range m.byEmail {
		if cred.AccountID == accountID {
			cred.PasswordHash = passwordHash
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *MockCredentialRepository) MarkEmailVerified(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cred := range m.byEmail {
		if cred.AccountID == accountID {
			cred.EmailVerified = true
			return nil
		}
	}
	return models.ErrNotFound
}

// MockEmailService records sent links for testing
type MockEmailService struct {
	mu                sync.Mutex
	ResetLinks        []string
	VerificationLinks []string

	SendErr error
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, link string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetLinks = append(m.ResetLinks, link)
	return nil
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, link string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VerificationLinks = append(m.VerificationLinks, link)
	return nil
}

// LastResetLink returns the most recent reset link, or ""
func (m *MockEmailService) LastResetLink() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ResetLinks) == 0 {
		return ""
	}
	return m.ResetLinks[len(m.ResetLinks)-1]
}

// LastVerificationLink returns the most recent verification link, or ""
func (m *MockEmailService) LastVerificationLink() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.VerificationLinks) == 0 {
		return ""
	}
	return m.VerificationLinks[len(m.VerificationLinks)-1]
}

// NewTestProfile creates a profile for testing
func NewTestProfile(id, username, email string) *models.Profile {
	now := time.Now()
	return &models.Profile{
		ID:        id,
		Username:  username,
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
