package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrAuthRequired is returned when the access token is rejected and the
// single refresh attempt fails. Tokens have been cleared and the caller
// must re-authenticate.
var ErrAuthRequired = errors.New("authentication required")

// Error is a non-2xx response from the backend, carrying the numeric
// status and the server-supplied human-readable detail.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	return e.Detail
}

// errorBody mirrors the backend's error envelope. FastAPI-style bodies
// carry "detail"; some endpoints use "message".
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// parseResponseError reads the body of a non-2xx response and translates
// it into an *Error. Falls back to a generic status-derived message when
// the body is unparsable or the expected fields are absent.
func parseResponseError(resp *http.Response) error {
	detail := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err == nil {
		var parsed errorBody
		if json.Unmarshal(body, &parsed) == nil {
			switch {
			case parsed.Detail != "":
				detail = parsed.Detail
			case parsed.Message != "":
				detail = parsed.Message
			}
		}
	}

	return &Error{StatusCode: resp.StatusCode, Detail: detail}
}

// StatusCode returns the HTTP status carried by err, or 0 when err is
// not an API error.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsInactiveSession reports whether the server rejected an operation
// because the target session is no longer active.
func IsInactiveSession(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Detail, "inactive session")
	}
	return false
}
