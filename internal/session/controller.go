package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Neosyss/guidly-web/internal/api"
	"github.com/Neosyss/guidly-web/internal/domain"
	"github.com/Neosyss/guidly-web/internal/logger"
)

// APIClient is the subset of the API client the session controller
// depends on.
type APIClient interface {
	CreateSession(ctx context.Context, counselingType domain.CounselingType) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	SessionMessages(ctx context.Context, sessionID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, sessionID, content string) (*domain.ConversationTurn, error)
	CloseSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Authorizer gates session operations on authenticated state.
type Authorizer interface {
	IsAuthenticated() bool
}

// SendPhase tracks the message-send transaction: the view clears its
// input optimistically when the send goes pending, and restores it when
// the send rolls back.
type SendPhase int

const (
	SendIdle SendPhase = iota
	SendPending
	SendCommitted
	SendRolledBack
)

// Controller manages the session collection, the single active session,
// and its transcript. Failures never propagate past the controller:
// they are captured as a human-readable error string and a nil return,
// so the view polls state instead of catching errors.
type Controller struct {
	mu        sync.Mutex
	current   *domain.Session
	sessions  []domain.Session
	messages  []domain.Message
	isLoading bool
	lastErr   string
	errGen    int

	sendPhase   SendPhase
	sendContent string

	client   APIClient
	authz    Authorizer
	logger   *slog.Logger
	errorTTL time.Duration
}

// NewController creates a session controller.
func NewController(client APIClient, authz Authorizer, logger *slog.Logger) *Controller {
	return &Controller{
		client: client,
		authz:  authz,
		logger: logger,
	}
}

// WithErrorTTL makes captured errors auto-clear after d. Zero disables
// auto-clearing; the view then owns dismissal.
func (c *Controller) WithErrorTTL(d time.Duration) *Controller {
	c.errorTTL = d
	return c
}

// --- Accessors ---

// CurrentSession returns the selected session, or nil.
func (c *Controller) CurrentSession() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cpy := *c.current
	return &cpy
}

// Sessions returns a copy of the locally known session collection.
func (c *Controller) Sessions() []domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// Messages returns a copy of the current transcript.
func (c *Controller) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// IsLoading reports whether a session operation is in flight.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isLoading
}

// Err returns the last captured error message, or "".
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SendState returns the phase of the most recent send transaction.
func (c *Controller) SendState() SendPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendPhase
}

// RestoreRolledBack hands a rolled-back message body back to the view,
// exactly once, so the input field can be repopulated.
func (c *Controller) RestoreRolledBack() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendPhase != SendRolledBack {
		return "", false
	}
	content := c.sendContent
	c.sendPhase = SendIdle
	c.sendContent = ""
	return content, true
}

// --- Operations ---

// CreateSession starts a new counseling session of the given type. The
// current session and transcript are cleared first so no stale
// transcript shows during the transition. All other locally known
// sessions are marked inactive, mirroring the backend's auto-close.
func (c *Controller) CreateSession(ctx context.Context, counselingType domain.CounselingType) *domain.Session {
	if !c.requireAuth() {
		return nil
	}

	c.begin()
	defer c.end()

	c.mu.Lock()
	c.current = nil
	c.messages = nil
	c.mu.Unlock()

	created, err := c.client.CreateSession(ctx, counselingType)
	if err != nil {
		c.captureError(ctx, err, "failed to create session")
		return nil
	}

	c.mu.Lock()
	updated := make([]domain.Session, 0, len(c.sessions)+1)
	updated = append(updated, *created)
	for _, s := range c.sessions {
		s.IsActive = false
		updated = append(updated, s)
	}
	c.sessions = updated
	c.current = created
	c.mu.Unlock()

	logger.WithContext(ctx, c.logger).InfoContext(ctx, "session created",
		slog.String("session_id", created.ID),
		slog.String("counseling_type", string(counselingType)),
	)
	return created
}

// LoadSessions fetches the full session list. When nothing is selected
// locally and the backend marks a session active, that session is
// adopted automatically; an explicit selection is never clobbered.
func (c *Controller) LoadSessions(ctx context.Context) {
	if !c.requireAuth() {
		return
	}

	c.begin()

	fetched, err := c.client.ListSessions(ctx)
	if err != nil {
		c.captureError(ctx, err, "failed to load sessions")
		c.end()
		return
	}

	c.mu.Lock()
	c.sessions = fetched
	adopt := ""
	if c.current == nil {
		for _, s := range fetched {
			if s.IsActive {
				adopt = s.ID
				break
			}
		}
	}
	c.mu.Unlock()
	c.end()

	if adopt != "" {
		c.SwitchSession(ctx, adopt)
	}
}

// SwitchSession fetches the session record and its transcript, replacing
// the current state wholesale.
func (c *Controller) SwitchSession(ctx context.Context, sessionID string) {
	if !c.requireAuth() {
		return
	}

	c.begin()
	defer c.end()

	sess, err := c.client.GetSession(ctx, sessionID)
	if err != nil {
		c.captureError(ctx, err, "failed to switch session")
		return
	}

	messages, err := c.client.SessionMessages(ctx, sessionID)
	if err != nil {
		c.captureError(ctx, err, "failed to load session messages")
		return
	}

	c.mu.Lock()
	c.current = sess
	c.messages = messages
	c.mu.Unlock()
}

// SendMessage posts content to the current session and appends the
// returned turn to the transcript, user message first. A missing or
// locally inactive session is rejected before any network call. When
// the server reports the session went inactive, local session state is
// reset so the user is forced back to starting a new conversation.
func (c *Controller) SendMessage(ctx context.Context, content string) *domain.ConversationTurn {
	if !c.requireAuth() {
		return nil
	}

	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		c.setError("no active session available")
		return nil
	}
	if !current.IsActive {
		c.setError("session is no longer active")
		return nil
	}

	c.begin()
	defer c.end()

	c.mu.Lock()
	c.sendPhase = SendPending
	c.sendContent = content
	c.mu.Unlock()

	turn, err := c.client.SendMessage(ctx, current.ID, content)
	if err != nil {
		c.mu.Lock()
		c.sendPhase = SendRolledBack
		c.mu.Unlock()

		if api.IsInactiveSession(err) {
			c.mu.Lock()
			c.current = nil
			c.messages = nil
			c.mu.Unlock()
			c.setError("session is no longer active, please start a new conversation")
			return nil
		}
		c.captureError(ctx, err, "failed to send message")
		return nil
	}

	c.mu.Lock()
	c.sendPhase = SendCommitted
	c.sendContent = ""
	c.messages = append(c.messages, turn.UserMessage)
	if turn.AIMessage != nil {
		c.messages = append(c.messages, *turn.AIMessage)
	}
	c.mu.Unlock()

	return turn
}

// CloseSession closes a session on the backend, marks it inactive
// locally, and clears the current selection and transcript when the
// closed session was selected.
func (c *Controller) CloseSession(ctx context.Context, sessionID string) {
	if !c.requireAuth() {
		return
	}

	c.begin()
	defer c.end()

	if _, err := c.client.CloseSession(ctx, sessionID); err != nil {
		c.captureError(ctx, err, "failed to close session")
		return
	}

	c.mu.Lock()
	for i := range c.sessions {
		if c.sessions[i].ID == sessionID {
			c.sessions[i].IsActive = false
		}
	}
	if c.current != nil && c.current.ID == sessionID {
		c.current = nil
		c.messages = nil
	}
	c.mu.Unlock()
}

// ClearCurrentSession resets current session, session list, and
// transcript without any network call.
func (c *Controller) ClearCurrentSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.sessions = nil
	c.messages = nil
}

// ClearError dismisses the last captured error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = ""
	c.errGen++
}

// --- Helpers ---

// begin marks a mutating operation in flight and clears prior errors.
func (c *Controller) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isLoading = true
	c.lastErr = ""
	c.errGen++
}

func (c *Controller) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isLoading = false
}

// requireAuth captures a local precondition error when no user is
// authenticated.
func (c *Controller) requireAuth() bool {
	if c.authz.IsAuthenticated() {
		return true
	}
	c.setError("not authenticated")
	return false
}

// captureError records a human-readable error sourced from err, falling
// back to the given default description.
func (c *Controller) captureError(ctx context.Context, err error, defaultMsg string) {
	msg := defaultMsg
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	logger.WithContext(ctx, c.logger).WarnContext(ctx, defaultMsg, slog.String("error", msg))
	c.setError(msg)
}

// setError stores the error message and arms the auto-clear timer when
// an error TTL is configured. A generation counter keeps a stale timer
// from dismissing a newer error.
func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.errGen++
	gen := c.errGen
	ttl := c.errorTTL
	c.mu.Unlock()

	if ttl <= 0 {
		return
	}
	time.AfterFunc(ttl, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.errGen == gen {
			c.lastErr = ""
		}
	})
}
