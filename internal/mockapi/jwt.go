package mockapi

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claims are the JWT claims issued by the mock backend. The same shape
// is used for access and refresh tokens, distinguished by the Kind field.
type claims struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// jwtManager signs and validates the mock backend's tokens.
type jwtManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func newJWTManager(secret string, accessExpiry, refreshExpiry time.Duration) *jwtManager {
	return &jwtManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func (m *jwtManager) generate(userID, kind string) (string, error) {
	expiry := m.accessExpiry
	if kind == kindRefresh {
		expiry = m.refreshExpiry
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			Issuer:    "guidly-mockd",
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (m *jwtManager) validate(tokenString, kind string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	parsed, ok := token.Claims.(*claims)
	if !ok || !token.Valid || parsed.Kind != kind {
		return "", fmt.Errorf("invalid %s token claims", kind)
	}
	return parsed.UserID, nil
}
