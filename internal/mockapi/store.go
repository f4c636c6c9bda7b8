package mockapi

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Neosyss/guidly-web/internal/domain"
)

// account is a stored user plus credentials.
type account struct {
	user         domain.User
	passwordHash string
}

// memStore holds all mock backend state in memory. It exists so the
// development server and test fixtures behave like a real backend
// without any external dependency.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*account // by user ID
	byEmail  map[string]string   // email -> user ID
	sessions map[string]*domain.Session
	messages map[string][]domain.Message // by session ID
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*account),
		byEmail:  make(map[string]string),
		sessions: make(map[string]*domain.Session),
		messages: make(map[string][]domain.Message),
	}
}

// createAccount registers a user. Returns false when the email is taken.
func (s *memStore) createAccount(email, passwordHash, name string, age *int) (*domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, false
	}

	user := domain.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Age:       age,
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[user.ID] = &account{user: user, passwordHash: passwordHash}
	s.byEmail[email] = user.ID
	return &user, true
}

// accountByEmail returns the account for the given email, if any.
func (s *memStore) accountByEmail(email string) (*account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, false
	}
	acc := *s.accounts[id]
	return &acc, true
}

// userByID returns the user record for the given ID, if any.
func (s *memStore) userByID(id string) (*domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	user := acc.user
	return &user, true
}

// createSession creates an active session for the owner, deactivating
// any prior active session.
func (s *memStore) createSession(ownerID string, counselingType domain.CounselingType) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID && sess.IsActive {
			sess.IsActive = false
			sess.UpdatedAt = now
		}
	}

	sess := &domain.Session{
		ID:             uuid.New().String(),
		OwnerID:        ownerID,
		CounselingType: counselingType,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.sessions[sess.ID] = sess
	return copySession(sess)
}

// sessionsByOwner lists all sessions owned by the user, newest first.
func (s *memStore) sessionsByOwner(ownerID string) []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Session
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			cpy := *sess
			count := len(s.messages[sess.ID])
			cpy.MessageCount = &count
			out = append(out, cpy)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// session returns a session owned by ownerID, if it exists.
func (s *memStore) session(ownerID, sessionID string) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.OwnerID != ownerID {
		return nil, false
	}
	return copySession(sess), true
}

// closeSession marks a session inactive.
func (s *memStore) closeSession(ownerID, sessionID string) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.OwnerID != ownerID {
		return nil, false
	}
	sess.IsActive = false
	sess.UpdatedAt = time.Now().UTC()
	return copySession(sess), true
}

// sessionMessages returns the ordered transcript for a session.
func (s *memStore) sessionMessages(sessionID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[sessionID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// appendMessage stores a new transcript entry and returns it.
func (s *memStore) appendMessage(sessionID string, role domain.MessageRole, content string) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := domain.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	return msg
}

func copySession(sess *domain.Session) *domain.Session {
	cpy := *sess
	return &cpy
}
