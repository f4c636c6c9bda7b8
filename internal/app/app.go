// Package app wires the client's state containers together. The
// containers are explicit dependencies handed to the view layer rather
// than ambient singletons, with an init -> ready -> disposed lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Neosyss/guidly-web/internal/api"
	"github.com/Neosyss/guidly-web/internal/auth"
	"github.com/Neosyss/guidly-web/internal/config"
	"github.com/Neosyss/guidly-web/internal/logger"
	"github.com/Neosyss/guidly-web/internal/session"
	"github.com/Neosyss/guidly-web/internal/tokenstore"
)

// ErrDisposed is returned when an operation is attempted on a closed app.
var ErrDisposed = errors.New("app has been disposed")

// Phase is the app container lifecycle phase.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseReady
	PhaseDisposed
)

// App owns the client-side dependency graph: token store, API client,
// and the auth and session state controllers.
type App struct {
	mu    sync.Mutex
	phase Phase

	cfg      *config.Config
	logger   *slog.Logger
	Store    *tokenstore.FileStore
	Client   *api.Client
	Auth     *auth.Controller
	Sessions *session.Controller

	// AuthExpired is closed-over by the API client's auth-expired hook;
	// the view layer can replace it to navigate to sign-in.
	AuthExpired func()
}

// New builds the dependency graph. Call Init before use.
func New(cfg *config.Config, logger *slog.Logger) *App {
	store := tokenstore.NewFileStore(cfg.StateDir)

	client := api.New(api.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout,
	}, store, logger)

	authCtrl := auth.NewController(client, store, store, logger)
	sessionCtrl := session.NewController(client, authCtrl, logger).
		WithErrorTTL(cfg.ErrorBannerTTL)

	a := &App{
		phase:    PhaseNew,
		cfg:      cfg,
		logger:   logger,
		Store:    store,
		Client:   client,
		Auth:     authCtrl,
		Sessions: sessionCtrl,
	}

	// Any sign-out, explicit or forced, drops the signed-out user's
	// session list and transcript, even when no network call was made.
	authCtrl.OnSignOut(sessionCtrl.ClearCurrentSession)

	// Hard authentication failures bypass the error banner: local
	// session state is dropped and the user lands back at sign-in.
	client.OnAuthExpired(func() {
		sessionCtrl.ClearCurrentSession()
		if a.AuthExpired != nil {
			a.AuthExpired()
		}
	})

	return a
}

// Init reconciles persisted identity with the backend and, when
// authenticated, loads the session collection. Transitions the app to
// the ready phase.
func (a *App) Init(ctx context.Context) error {
	a.mu.Lock()
	if a.phase == PhaseDisposed {
		a.mu.Unlock()
		return ErrDisposed
	}
	if a.phase == PhaseReady {
		a.mu.Unlock()
		return fmt.Errorf("app already initialized")
	}
	a.mu.Unlock()

	a.Auth.Initialize(ctx)
	if a.Auth.IsAuthenticated() {
		a.Sessions.LoadSessions(ctx)
	}

	a.mu.Lock()
	a.phase = PhaseReady
	a.mu.Unlock()

	logger.WithContext(ctx, a.logger).InfoContext(ctx, "app initialized",
		slog.String("auth_state", a.Auth.State().String()),
	)
	return nil
}

// Phase returns the current lifecycle phase.
func (a *App) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Close disposes the container. Further Init calls are rejected.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase == PhaseDisposed {
		return nil
	}
	a.phase = PhaseDisposed
	return nil
}
