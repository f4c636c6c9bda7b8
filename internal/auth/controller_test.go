package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Neosyss/guidly-web/internal/domain"
	"github.com/Neosyss/guidly-web/internal/logger"
	"github.com/Neosyss/guidly-web/internal/tokenstore"
)

// --- Mock API client ---

type mockAPIClient struct {
	mock.Mock
	store *tokenstore.MemStore
}

func (m *mockAPIClient) Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAPIClient) Login(ctx context.Context, input domain.LoginInput) (*domain.TokenResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// The real client persists tokens as part of login.
	tokens := args.Get(0).(*domain.TokenResponse)
	_ = m.store.SetTokens(*tokens)
	return tokens, args.Error(1)
}

func (m *mockAPIClient) CurrentUser(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAPIClient) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	_ = m.store.ClearTokens()
	return args.Error(0)
}

func newFixture(t *testing.T) (*Controller, *mockAPIClient, *tokenstore.MemStore) {
	t.Helper()

	store := tokenstore.NewMemStore()
	client := &mockAPIClient{store: store}
	log := logger.NewWithWriter("test", "error", "text", testWriter{t})
	return NewController(client, store, store, log), client, store
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func seedTokens(t *testing.T, store *tokenstore.MemStore) {
	t.Helper()
	require.NoError(t, store.SetTokens(domain.TokenResponse{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    1800,
	}))
}

var testTokens = &domain.TokenResponse{
	AccessToken:  "access-1",
	RefreshToken: "refresh-1",
	TokenType:    "bearer",
	ExpiresIn:    1800,
}

// --- Initialize ---

func TestInitialize_NoTokens(t *testing.T) {
	ctrl, _, store := newFixture(t)
	require.NoError(t, store.SetUser(&domain.User{ID: "stale"}))

	ctrl.Initialize(context.Background())

	assert.Equal(t, StateUnauthenticated, ctrl.State())
	assert.Nil(t, ctrl.User())
	assert.Nil(t, store.User(), "stale cached user discarded")
	assert.False(t, ctrl.IsAuthenticated())
}

func TestInitialize_ValidTokensFetchesUser(t *testing.T) {
	ctrl, client, store := newFixture(t)
	seedTokens(t, store)

	fresh := &domain.User{ID: "u1", Name: "Ada"}
	client.On("CurrentUser", mock.Anything).Return(fresh, nil)

	ctrl.Initialize(context.Background())

	assert.Equal(t, StateAuthenticated, ctrl.State())
	assert.Equal(t, "Ada", ctrl.User().Name)
	assert.Equal(t, "u1", store.User().ID, "fresh record cached")
	assert.True(t, ctrl.IsAuthenticated())
}

func TestInitialize_FetchFailsKeepsCachedUser(t *testing.T) {
	ctrl, client, store := newFixture(t)
	seedTokens(t, store)
	require.NoError(t, store.SetUser(&domain.User{ID: "u1", Name: "Cached"}))

	client.On("CurrentUser", mock.Anything).Return(nil, errors.New("backend down"))

	ctrl.Initialize(context.Background())

	assert.Equal(t, StateAuthenticated, ctrl.State())
	assert.Equal(t, "Cached", ctrl.User().Name)
	assert.True(t, ctrl.IsAuthenticated())
}

func TestInitialize_FetchFailsWithoutCacheForcesLogout(t *testing.T) {
	ctrl, client, store := newFixture(t)
	seedTokens(t, store)

	client.On("CurrentUser", mock.Anything).Return(nil, errors.New("backend down"))

	ctrl.Initialize(context.Background())

	assert.Equal(t, StateUnauthenticated, ctrl.State())
	assert.Nil(t, ctrl.User())
	assert.False(t, store.HasValidTokens(), "tokens cleared")
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	ctrl, client, store := newFixture(t)

	creds := domain.LoginInput{Email: "a@example.com", Password: "Password1"}
	user := &domain.User{ID: "u1", Name: "Ada"}
	client.On("Login", mock.Anything, creds).Return(testTokens, nil)
	client.On("CurrentUser", mock.Anything).Return(user, nil)

	require.NoError(t, ctrl.Login(context.Background(), creds))

	assert.True(t, ctrl.IsAuthenticated())
	assert.Equal(t, StateAuthenticated, ctrl.State())
	assert.Equal(t, "u1", store.User().ID)
	assert.False(t, ctrl.Loading())
}

func TestLogin_FailurePreservesServerMessage(t *testing.T) {
	ctrl, client, _ := newFixture(t)

	creds := domain.LoginInput{Email: "a@example.com", Password: "wrong-pass"}
	client.On("Login", mock.Anything, creds).Return(nil, errors.New("invalid email or password"))

	err := ctrl.Login(context.Background(), creds)
	require.EqualError(t, err, "invalid email or password")
	assert.False(t, ctrl.IsAuthenticated())
	assert.False(t, ctrl.Loading())
}

// --- Register ---

func TestRegister_DoesNotAuthenticate(t *testing.T) {
	ctrl, client, store := newFixture(t)

	input := domain.RegisterInput{Email: "new@example.com", Password: "Password1", Name: "New"}
	client.On("Register", mock.Anything, input).Return(&domain.User{ID: "u2", Email: "new@example.com"}, nil)

	user, err := ctrl.Register(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "u2", user.ID)

	// Registration returns no tokens; the account must log in explicitly.
	assert.False(t, store.HasValidTokens())
	assert.False(t, ctrl.IsAuthenticated())
	assert.Nil(t, ctrl.User())
}

func TestRegister_ErrorReturnedVerbatim(t *testing.T) {
	ctrl, client, _ := newFixture(t)

	input := domain.RegisterInput{Email: "dup@example.com", Password: "Password1", Name: "Dup"}
	wantErr := errors.New("email already registered")
	client.On("Register", mock.Anything, input).Return(nil, wantErr)

	_, err := ctrl.Register(context.Background(), input)
	assert.Same(t, wantErr, err)
}

// --- Logout ---

func TestLogout_WithAPICall(t *testing.T) {
	ctrl, client, store := newFixture(t)
	seedTokens(t, store)
	require.NoError(t, store.SetUser(&domain.User{ID: "u1"}))
	client.On("CurrentUser", mock.Anything).Return(&domain.User{ID: "u1"}, nil)
	ctrl.Initialize(context.Background())
	client.On("Logout", mock.Anything).Return(nil)

	ctrl.Logout(context.Background(), true)

	client.AssertCalled(t, "Logout", mock.Anything)
	assert.Equal(t, StateUnauthenticated, ctrl.State())
	assert.Nil(t, ctrl.User())
	assert.False(t, store.HasValidTokens())
	assert.Nil(t, store.User())
}

func TestLogout_LocalOnly(t *testing.T) {
	ctrl, client, store := newFixture(t)
	seedTokens(t, store)
	require.NoError(t, store.SetUser(&domain.User{ID: "u1"}))
	client.On("CurrentUser", mock.Anything).Return(&domain.User{ID: "u1"}, nil)
	ctrl.Initialize(context.Background())
	require.True(t, ctrl.IsAuthenticated())

	ctrl.Logout(context.Background(), false)

	client.AssertNotCalled(t, "Logout", mock.Anything)
	assert.False(t, ctrl.IsAuthenticated())
	assert.False(t, store.HasValidTokens())
	assert.Nil(t, store.User())
}

func TestLogout_APIFailureStillClears(t *testing.T) {
	ctrl, client, store := newFixture(t)
	seedTokens(t, store)
	require.NoError(t, store.SetUser(&domain.User{ID: "u1"}))
	client.On("CurrentUser", mock.Anything).Return(&domain.User{ID: "u1"}, nil)
	ctrl.Initialize(context.Background())
	client.On("Logout", mock.Anything).Return(errors.New("backend down"))

	ctrl.Logout(context.Background(), true)

	assert.Equal(t, StateUnauthenticated, ctrl.State())
	assert.False(t, store.HasValidTokens())
}

func TestOnSignOut_FiresWheneverIdentityIsCleared(t *testing.T) {
	t.Run("local-only logout", func(t *testing.T) {
		ctrl, client, store := newFixture(t)
		seedTokens(t, store)
		client.On("CurrentUser", mock.Anything).Return(&domain.User{ID: "u1"}, nil)
		ctrl.Initialize(context.Background())

		var fired bool
		ctrl.OnSignOut(func() { fired = true })

		ctrl.Logout(context.Background(), false)
		assert.True(t, fired)
	})

	t.Run("forced logout on refresh failure", func(t *testing.T) {
		ctrl, client, store := newFixture(t)
		seedTokens(t, store)
		client.On("CurrentUser", mock.Anything).Return(&domain.User{ID: "u1"}, nil).Once()
		ctrl.Initialize(context.Background())

		var fired bool
		ctrl.OnSignOut(func() { fired = true })

		client.On("CurrentUser", mock.Anything).Return(nil, errors.New("backend down"))
		require.Error(t, ctrl.RefreshUser(context.Background()))
		assert.True(t, fired)
	})
}

// --- RefreshUser ---

func TestRefreshUser_Success(t *testing.T) {
	ctrl, client, store := newFixture(t)
	seedTokens(t, store)
	require.NoError(t, store.SetUser(&domain.User{ID: "u1", Name: "Old"}))
	client.On("CurrentUser", mock.Anything).Return(&domain.User{ID: "u1", Name: "Old"}, nil).Once()
	ctrl.Initialize(context.Background())

	client.On("CurrentUser", mock.Anything).Return(&domain.User{ID: "u1", Name: "Renamed"}, nil)
	require.NoError(t, ctrl.RefreshUser(context.Background()))
	assert.Equal(t, "Renamed", ctrl.User().Name)
}

func TestRefreshUser_FailureForcesLocalLogout(t *testing.T) {
	ctrl, client, store := newFixture(t)
	seedTokens(t, store)
	require.NoError(t, store.SetUser(&domain.User{ID: "u1"}))
	client.On("CurrentUser", mock.Anything).Return(&domain.User{ID: "u1"}, nil).Once()
	ctrl.Initialize(context.Background())
	require.True(t, ctrl.IsAuthenticated())

	client.On("CurrentUser", mock.Anything).Return(nil, errors.New("backend down"))

	err := ctrl.RefreshUser(context.Background())
	require.Error(t, err)
	assert.False(t, ctrl.IsAuthenticated())
	client.AssertNotCalled(t, "Logout", mock.Anything)
}

func TestRefreshUser_NotAuthenticated(t *testing.T) {
	ctrl, _, _ := newFixture(t)
	require.Error(t, ctrl.RefreshUser(context.Background()))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
}
