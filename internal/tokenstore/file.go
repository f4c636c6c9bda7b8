package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Neosyss/guidly-web/internal/domain"
)

const (
	tokensFile = "tokens.json"
	userFile   = "user.json"
)

// Legacy state files written by the pre-rename client. Removed on
// ClearTokens for migration safety.
var legacyFiles = []string{"guidly_authenticated", "guidly_user_profile"}

// tokenRecord is the on-disk representation of the token pair.
type tokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// FileStore is a Store and UserCache backed by JSON files in a state
// directory, the CLI analogue of browser local storage. Reads degrade to
// absent values when the directory is missing or unreadable.
type FileStore struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewFileStore creates a file-backed store rooted at dir. The directory
// is created on first write, not here.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *FileStore) WithClock(now func() time.Time) *FileStore {
	s.now = now
	return s
}

// SetTokens persists the token pair with a computed expiry of issue time
// plus the declared lifetime minus ExpiryMargin.
func (s *FileStore) SetTokens(tokens domain.TokenResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := tokenRecord{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    s.now().Add(time.Duration(tokens.ExpiresIn)*time.Second - ExpiryMargin),
	}
	return s.writeFile(tokensFile, rec)
}

// AccessToken returns the stored access token, or "" if none exists.
func (s *FileStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.readTokens()
	if !ok {
		return ""
	}
	return rec.AccessToken
}

// RefreshToken returns the stored refresh token, or "" if none exists.
func (s *FileStore) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.readTokens()
	if !ok {
		return ""
	}
	return rec.RefreshToken
}

// IsExpired reports whether no expiry is stored or the current time is
// past the stored expiry.
func (s *FileStore) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.readTokens()
	if !ok || rec.ExpiresAt.IsZero() {
		return true
	}
	return s.now().After(rec.ExpiresAt)
}

// HasValidTokens reports whether an access token exists and is not expired.
func (s *FileStore) HasValidTokens() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.readTokens()
	if !ok || rec.AccessToken == "" || rec.ExpiresAt.IsZero() {
		return false
	}
	return !s.now().After(rec.ExpiresAt)
}

// ClearTokens removes the token file and any legacy state files.
func (s *FileStore) ClearTokens() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, name := range append([]string{tokensFile}, legacyFiles...) {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// SetUser caches the user record.
func (s *FileStore) SetUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(userFile, user)
}

// User returns the cached user record, or nil if none exists or the
// cached data is unreadable.
func (s *FileStore) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, userFile))
	if err != nil {
		return nil
	}
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil
	}
	return &user
}

// ClearUser removes the cached user record.
func (s *FileStore) ClearUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.dir, userFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", userFile, err)
	}
	return nil
}

// readTokens loads the token record from disk. The second return value
// is false when the file is absent or unparsable.
func (s *FileStore) readTokens() (tokenRecord, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, tokensFile))
	if err != nil {
		return tokenRecord{}, false
	}
	var rec tokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return tokenRecord{}, false
	}
	return rec, true
}

// writeFile marshals v and writes it to name inside the state directory
// with owner-only permissions.
func (s *FileStore) writeFile(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
