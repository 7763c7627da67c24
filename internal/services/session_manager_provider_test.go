package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/BradenHooton/authguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedProvider holds Authenticate until release is closed, then delegates
type gatedProvider struct {
	*LocalIdentityProvider
	entered chan struct{}
	release chan struct{}
}

func (g *gatedProvider) Authenticate(ctx context.Context, email, password string) (string, error) {
	close(g.entered)
	<-g.release
	return g.LocalIdentityProvider.Authenticate(ctx, email, password)
}

func newProviderBackedManager(t *testing.T, provider IdentityProvider, f *providerFixture, directory *MockUserDirectory) (*SessionManager, *SecurityAuditLog) {
	t.Helper()
	tracker := NewAttemptTracker(DefaultLockoutPolicy(), f.clock)
	audit := NewSecurityAuditLog(DefaultAuditCapacity, f.clock, nil, slog.Default())
	return NewSessionManager(provider, directory, tracker, audit, f.clock, slog.Default(), SessionManagerConfig{}), audit
}

func profileDirectory(accountID string) *MockUserDirectory {
	return &MockUserDirectory{
		FetchProfileFunc: func(ctx context.Context, id string) (*models.Profile, error) {
			if id == accountID {
				return NewTestProfile(accountID, "alice", "alice@x.com"), nil
			}
			return nil, models.ErrNotFound
		},
	}
}

func TestSessionManager_LateSignInDoesNotLeaveProviderSession(t *testing.T) {
	f := newProviderFixture(t, LocalIdentityProviderConfig{})
	accountID := f.seed(t, "alice@x.com", "Secret123", true)

	gated := &gatedProvider{
		LocalIdentityProvider: f.provider,
		entered:               make(chan struct{}),
		release:               make(chan struct{}),
	}
	manager, _ := newProviderBackedManager(t, gated, f, profileDirectory(accountID))

	done := make(chan error, 1)
	go func() {
		done <- manager.SignIn(context.Background(), "alice@x.com", "Secret123")
	}()

	<-gated.entered
	require.NoError(t, manager.SignOut(context.Background()))
	close(gated.release)

	assert.ErrorIs(t, <-done, models.ErrSessionChanged)

	token, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, manager.CheckAuth(context.Background()))
	assert.False(t, manager.CurrentSession().IsAuthenticated)

	err = f.provider.UpdatePassword(context.Background(), "NewSecret123")
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
}

func TestSessionManager_SignInProfileFailureRevokesProviderSession(t *testing.T) {
	f := newProviderFixture(t, LocalIdentityProviderConfig{})
	f.seed(t, "alice@x.com", "Secret123", true)

	directory := &MockUserDirectory{
		FetchProfileFunc: func(ctx context.Context, id string) (*models.Profile, error) {
			return nil, errors.New("directory offline")
		},
	}
	manager, audit := newProviderBackedManager(t, f.provider, f, directory)

	err := manager.SignIn(context.Background(), "alice@x.com", "Secret123")
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)

	session, err := f.provider.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)

	entries := audit.Query(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionLoginFailed, entries[0].Action)
}

func TestSessionManager_LateSignUpDoesNotLeaveProviderSession(t *testing.T) {
	f := newProviderFixture(t, LocalIdentityProviderConfig{})

	entered := make(chan struct{})
	release := make(chan struct{})
	directory := &MockUserDirectory{
		UsernameExistsFunc: func(ctx context.Context, username string) (bool, error) {
			close(entered)
			<-release
			return false, nil
		},
		FetchProfileFunc: func(ctx context.Context, id string) (*models.Profile, error) {
			return NewTestProfile(id, "bob", "bob@x.com"), nil
		},
	}
	manager, audit := newProviderBackedManager(t, f.provider, f, directory)

	done := make(chan error, 1)
	go func() {
		done <- manager.SignUp(context.Background(), "bob", "bob@x.com", "Secret123")
	}()

	<-entered
	require.NoError(t, manager.SignOut(context.Background()))
	close(release)

	assert.ErrorIs(t, <-done, models.ErrSessionChanged)

	session, err := f.provider.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)

	require.NoError(t, manager.CheckAuth(context.Background()))
	assert.False(t, manager.CurrentSession().IsAuthenticated)

	entries := audit.Query(nil)
	require.NotEmpty(t, entries)
	assert.Equal(t, models.ActionSignupSuccess, entries[0].Action)
	assert.Contains(t, entries[0].Details, "session discarded")
}
