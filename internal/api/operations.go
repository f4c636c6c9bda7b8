package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Neosyss/guidly-web/internal/domain"
	"github.com/Neosyss/guidly-web/internal/logger"
	"github.com/Neosyss/guidly-web/internal/validator"
)

// Register creates a new account. No tokens are returned; a fresh
// account must log in explicitly.
func (c *Client) Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	var user domain.User
	if err := c.request(ctx, http.MethodPost, "/auth/register", input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates with email and password and persists the returned
// token pair.
func (c *Client) Login(ctx context.Context, input domain.LoginInput) (*domain.TokenResponse, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	var tokens domain.TokenResponse
	if err := c.request(ctx, http.MethodPost, "/auth/login", input, &tokens); err != nil {
		return nil, err
	}

	if err := c.store.SetTokens(tokens); err != nil {
		return nil, fmt.Errorf("persist tokens: %w", err)
	}
	return &tokens, nil
}

// Refresh exchanges the stored refresh token for a new token pair,
// persisting it on success. On any failure the stored tokens are
// cleared and false is returned.
func (c *Client) Refresh(ctx context.Context) bool {
	refreshToken := c.store.RefreshToken()
	if refreshToken == "" {
		return false
	}

	body := map[string]string{"refresh_token": refreshToken}
	var tokens domain.TokenResponse
	if err := c.request(ctx, http.MethodPost, "/auth/refresh", body, &tokens); err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "token refresh failed", slog.String("error", err.Error()))
		tokenRefreshTotal.WithLabelValues("failure").Inc()
		_ = c.store.ClearTokens()
		return false
	}

	if err := c.store.SetTokens(tokens); err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "persisting refreshed tokens failed", slog.String("error", err.Error()))
		tokenRefreshTotal.WithLabelValues("failure").Inc()
		_ = c.store.ClearTokens()
		return false
	}

	tokenRefreshTotal.WithLabelValues("success").Inc()
	return true
}

// CurrentUser fetches the authenticated user record.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.request(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout invalidates the server-side session on a best-effort basis and
// always clears the locally stored tokens, regardless of the API outcome.
func (c *Client) Logout(ctx context.Context) error {
	err := c.request(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "logout request failed", slog.String("error", err.Error()))
	}

	if clearErr := c.store.ClearTokens(); clearErr != nil {
		return fmt.Errorf("clear tokens: %w", clearErr)
	}
	return err
}

// CreateSession starts a counseling session of the given type. The
// backend auto-deactivates any prior active session for the user.
func (c *Client) CreateSession(ctx context.Context, counselingType domain.CounselingType) (*domain.Session, error) {
	if !counselingType.Valid() {
		return nil, fmt.Errorf("unknown counseling type %q", counselingType)
	}

	body := map[string]domain.CounselingType{"counseling_type": counselingType}
	var session domain.Session
	if err := c.request(ctx, http.MethodPost, "/sessions/", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns all sessions for the authenticated user.
func (c *Client) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var sessions []domain.Session
	if err := c.request(ctx, http.MethodGet, "/sessions/", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession returns a single session record.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	if err := c.request(ctx, http.MethodGet, "/sessions/"+sessionID, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SessionMessages returns the ordered transcript for a session.
func (c *Client) SessionMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	var messages []domain.Message
	if err := c.request(ctx, http.MethodGet, "/sessions/"+sessionID+"/messages", nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a user message and returns the conversation turn.
// The assistant half of the turn is nil when generation failed upstream.
func (c *Client) SendMessage(ctx context.Context, sessionID, content string) (*domain.ConversationTurn, error) {
	body := map[string]string{"content": content}
	var turn domain.ConversationTurn
	if err := c.request(ctx, http.MethodPost, "/sessions/"+sessionID+"/chat", body, &turn); err != nil {
		return nil, err
	}
	return &turn, nil
}

// CloseSession marks a session inactive on the backend.
func (c *Client) CloseSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	if err := c.request(ctx, http.MethodPut, "/sessions/"+sessionID+"/close", nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// HealthStatus is the backend's health report.
type HealthStatus struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// Health checks backend availability. The endpoint lives outside the
// versioned prefix and requires no authentication.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, parseResponseError(resp)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &status, nil
}
