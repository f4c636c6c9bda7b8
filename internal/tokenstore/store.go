package tokenstore

import (
	"time"

	"github.com/Neosyss/guidly-web/internal/domain"
)

// ExpiryMargin is subtracted from the server-declared token lifetime so
// the client refreshes before the token actually lapses.
const ExpiryMargin = 5 * time.Minute

// Store persists the access/refresh token pair and answers validity
// queries. Implementations perform no network or business-logic side
// effects; this is pure persistence.
type Store interface {
	// SetTokens persists the token pair, overwriting any prior tokens.
	// The stored expiry is issue time plus ExpiresIn seconds minus
	// ExpiryMargin.
	SetTokens(tokens domain.TokenResponse) error

	// AccessToken returns the stored access token, or "" if none exists
	// or storage is unavailable.
	AccessToken() string

	// RefreshToken returns the stored refresh token, or "" if none
	// exists or storage is unavailable.
	RefreshToken() string

	// IsExpired reports whether no expiry is stored or the current time
	// is past the stored expiry.
	IsExpired() bool

	// HasValidTokens reports whether an access token exists and is not
	// expired.
	HasValidTokens() bool

	// ClearTokens removes all token state, including any legacy keys
	// from prior storage schemes. It is idempotent.
	ClearTokens() error
}

// UserCache persists the most recently fetched user record alongside the
// tokens, for offline-first display.
type UserCache interface {
	SetUser(user *domain.User) error
	User() *domain.User
	ClearUser() error
}
