package domain

import (
	"time"
)

// User represents the authenticated account as returned by the backend.
// The client caches the most recent copy for offline-first display; the
// backend remains authoritative on every successful fetch.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name"`
	Age           *int      `json:"age,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TokenResponse is the token pair issued by the backend on login and refresh.
// ExpiresIn is the access token lifetime in seconds.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Age      *int   `json:"age,omitempty" validate:"omitempty,gte=13,lte=120"`
}

// LoginInput holds the credentials for logging in.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
