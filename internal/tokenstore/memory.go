package tokenstore

import (
	"sync"
	"time"

	"github.com/Neosyss/guidly-web/internal/domain"
)

// MemStore is an in-memory Store and UserCache, used in tests and in
// execution contexts without a writable state directory.
type MemStore struct {
	mu        sync.Mutex
	access    string
	refresh   string
	expiresAt time.Time
	user      *domain.User
	now       func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *MemStore) WithClock(now func() time.Time) *MemStore {
	s.now = now
	return s
}

func (s *MemStore) SetTokens(tokens domain.TokenResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = tokens.AccessToken
	s.refresh = tokens.RefreshToken
	s.expiresAt = s.now().Add(time.Duration(tokens.ExpiresIn)*time.Second - ExpiryMargin)
	return nil
}

func (s *MemStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

func (s *MemStore) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

func (s *MemStore) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt.IsZero() || s.now().After(s.expiresAt)
}

func (s *MemStore) HasValidTokens() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access != "" && !s.expiresAt.IsZero() && !s.now().After(s.expiresAt)
}

func (s *MemStore) ClearTokens() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.refresh = ""
	s.expiresAt = time.Time{}
	return nil
}

func (s *MemStore) SetUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	return nil
}

func (s *MemStore) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *MemStore) ClearUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	return nil
}
