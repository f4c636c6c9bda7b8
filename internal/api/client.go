package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Neosyss/guidly-web/internal/logger"
	"github.com/Neosyss/guidly-web/internal/tokenstore"
)

// apiPrefix is the versioned path under which all endpoints except
// /health are mounted.
const apiPrefix = "/api/v1"

// Config holds configuration for the API client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Breaker tuning. Zero values fall back to defaults.
	BreakerTimeout      time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
}

// DefaultConfig returns sensible defaults for the given backend URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:             baseURL,
		Timeout:             30 * time.Second,
		BreakerTimeout:      30 * time.Second,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.5,
	}
}

// Client is the typed request/response boundary to the Guidly backend.
// It attaches bearer tokens from the Store, performs a single
// refresh-and-retry on 401, and trips a circuit breaker on repeated
// transport failures. There are no automatic retries beyond the one
// refresh path.
type Client struct {
	baseURL       string
	httpc         *http.Client
	store         tokenstore.Store
	breaker       *gobreaker.CircuitBreaker[*http.Response]
	logger        *slog.Logger
	onAuthExpired func()
}

// New creates an API client backed by the given token store.
func New(cfg Config, store tokenstore.Store, logger *slog.Logger) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	minRequests := cfg.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	failureRatio := cfg.BreakerFailureRatio
	if failureRatio == 0 {
		failureRatio = 0.5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout == 0 {
		breakerTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "guidly-api",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.Set(stateToFloat(to))
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		store:   store,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		logger:  logger,
	}
}

// OnAuthExpired registers a hook invoked when the refresh-and-retry path
// fails and tokens have been cleared. The view layer uses it to navigate
// to the sign-in entry point.
func (c *Client) OnAuthExpired(fn func()) {
	c.onAuthExpired = fn
}

// stateToFloat maps gobreaker states to the breaker state gauge values.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// request performs a JSON API call against the versioned prefix. body
// and out may be nil. On 401 with a refresh token available it refreshes
// once and retries once; a failed refresh clears tokens, fires the
// auth-expired hook, and fails with ErrAuthRequired.
func (c *Client) request(ctx context.Context, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, endpoint, payload, c.store.AccessToken())
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && endpoint != "/auth/refresh" && c.store.RefreshToken() != "" {
		drain(resp)

		if c.Refresh(ctx) {
			retryResp, err := c.send(ctx, method, endpoint, payload, c.store.AccessToken())
			if err != nil {
				return err
			}
			return c.handleResponse(retryResp, out)
		}

		// Refresh failed; tokens are already cleared. Force the caller
		// back to the authentication entry point.
		if c.onAuthExpired != nil {
			c.onAuthExpired()
		}
		return ErrAuthRequired
	}

	return c.handleResponse(resp, out)
}

// send builds and executes a single HTTP call through the circuit
// breaker. Only transport-level failures count against the breaker, so
// 4xx/5xx responses still surface their server-supplied detail.
func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte, accessToken string) (*http.Response, error) {
	url := c.baseURL + apiPrefix + endpoint

	var reqBody io.Reader = http.NoBody
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.httpc.Do(req)
	})
	if err != nil {
		logger.WithContext(ctx, c.logger).ErrorContext(ctx, "api request failed",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		requestsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}

	requestsTotal.WithLabelValues(method, statusClass(resp.StatusCode)).Inc()
	return resp, nil
}

// handleResponse decodes a successful response into out, or translates a
// non-2xx response into an *Error. 204 and explicit zero content-length
// responses are treated as successful empty results.
func (c *Client) handleResponse(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseResponseError(resp)
	}

	if resp.StatusCode == http.StatusNoContent || resp.Header.Get("Content-Length") == "0" {
		return nil
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// statusClass buckets an HTTP status code for metrics ("2xx", "4xx", ...).
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// drain fully consumes and closes a response body so the underlying
// connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
