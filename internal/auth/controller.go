package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Neosyss/guidly-web/internal/domain"
	"github.com/Neosyss/guidly-web/internal/logger"
	"github.com/Neosyss/guidly-web/internal/tokenstore"
)

// State is the authentication lifecycle state. Modeling it as a tagged
// value rules out impossible combinations like "not loading, no user,
// no error".
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// APIClient is the subset of the API client the auth controller depends on.
type APIClient interface {
	Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, input domain.LoginInput) (*domain.TokenResponse, error)
	CurrentUser(ctx context.Context) (*domain.User, error)
	Logout(ctx context.Context) error
}

// Controller reconciles local and server-side identity and exposes
// login, register, and logout as awaitable operations. It owns the
// loading flag the view layer uses to gate controls.
type Controller struct {
	mu      sync.Mutex
	state   State
	user    *domain.User
	loading bool

	client    APIClient
	store     tokenstore.Store
	cache     tokenstore.UserCache
	logger    *slog.Logger
	onSignOut func()
}

// NewController creates an auth controller in the uninitialized state.
func NewController(client APIClient, store tokenstore.Store, cache tokenstore.UserCache, logger *slog.Logger) *Controller {
	return &Controller{
		state:  StateUninitialized,
		client: client,
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// OnSignOut registers a hook invoked whenever local identity is
// cleared, whether by an explicit logout or a forced one. The app
// container uses it to drop session state alongside the identity.
func (c *Controller) OnSignOut(fn func()) {
	c.onSignOut = fn
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the in-memory user record, or nil.
func (c *Controller) User() *domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Loading reports whether an auth operation is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// IsAuthenticated is true iff the token store holds valid tokens and a
// user record is held in memory. Both are required so the view never
// shows authenticated UI with no identity, or the reverse.
func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	return c.store.HasValidTokens() && user != nil
}

// Initialize reconciles persisted tokens with the backend. With valid
// tokens it hydrates optimistically from the cached user record, then
// fetches the authoritative copy; a fetch failure keeps the cache when
// one exists and otherwise forces a local logout. Without valid tokens
// any stale cache is discarded.
func (c *Controller) Initialize(ctx context.Context) {
	c.setState(StateInitializing)

	if !c.store.HasValidTokens() {
		_ = c.cache.ClearUser()
		c.setUserAndState(nil, StateUnauthenticated)
		return
	}

	cached := c.cache.User()
	if cached != nil {
		c.setUserAndState(cached, StateAuthenticated)
	}

	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "current user fetch failed during init", slog.String("error", err.Error()))
		if cached == nil {
			c.forceLogout(ctx)
		}
		return
	}

	_ = c.cache.SetUser(user)
	c.setUserAndState(user, StateAuthenticated)
}

// Login authenticates, then fetches and caches the current user. The
// caller is responsible for any navigation on success. Errors preserve
// the server-provided message and are returned for the view to render.
func (c *Controller) Login(ctx context.Context, credentials domain.LoginInput) error {
	c.setLoading(true)
	defer c.setLoading(false)

	if _, err := c.client.Login(ctx, credentials); err != nil {
		return err
	}

	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("fetch user after login: %w", err)
	}

	_ = c.cache.SetUser(user)
	c.setUserAndState(user, StateAuthenticated)

	logger.WithContext(ctx, c.logger).InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return nil
}

// Register creates a new account. It deliberately does not
// authenticate the new account: registration returns no tokens and the
// user must log in explicitly. Errors are returned verbatim for the
// caller to render.
func (c *Controller) Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error) {
	c.setLoading(true)
	defer c.setLoading(false)

	user, err := c.client.Register(ctx, input)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, c.logger).InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Logout optionally calls the backend, then unconditionally clears the
// cached user and tokens and transitions to unauthenticated, even when
// the API call failed.
func (c *Controller) Logout(ctx context.Context, callAPI bool) {
	c.setLoading(true)
	defer c.setLoading(false)

	if callAPI {
		if err := c.client.Logout(ctx); err != nil {
			logger.WithContext(ctx, c.logger).WarnContext(ctx, "logout API call failed", slog.String("error", err.Error()))
		}
	}

	c.forceLogout(ctx)
}

// RefreshUser re-fetches the current user. On failure the controller
// forces a local-only logout and returns the error.
func (c *Controller) RefreshUser(ctx context.Context) error {
	if !c.IsAuthenticated() {
		return errors.New("not authenticated")
	}

	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		c.forceLogout(ctx)
		return err
	}

	_ = c.cache.SetUser(user)
	c.setUserAndState(user, StateAuthenticated)
	return nil
}

// forceLogout clears local identity without touching the backend.
func (c *Controller) forceLogout(ctx context.Context) {
	if err := c.cache.ClearUser(); err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "clearing cached user failed", slog.String("error", err.Error()))
	}
	if err := c.store.ClearTokens(); err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "clearing tokens failed", slog.String("error", err.Error()))
	}
	c.setUserAndState(nil, StateUnauthenticated)

	if c.onSignOut != nil {
		c.onSignOut()
	}
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *Controller) setUserAndState(user *domain.User, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
	c.state = state
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = v
}
