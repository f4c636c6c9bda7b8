// Package mockapi implements an in-memory Guidly backend with real JWT
// issuance. It backs guidly-mockd for local development and serves as an
// end-to-end fixture for the client packages.
package mockapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Neosyss/guidly-web/internal/domain"
	"github.com/Neosyss/guidly-web/internal/validator"
)

// accessTokenLifetime is the advertised expires_in for issued tokens.
const accessTokenLifetime = 30 * time.Minute

type contextKey string

const userIDKey contextKey = "user_id"

// AssistantFunc produces the canned assistant reply for a user message.
type AssistantFunc func(counselingType domain.CounselingType, userMessage string) string

// Server is the mock backend.
type Server struct {
	router        chi.Router
	store         *memStore
	jwt           *jwtManager
	logger        *slog.Logger
	assistant     AssistantFunc
	failAssistant atomic.Bool
	environment   string
}

// New creates a mock backend signing tokens with the given secret.
func New(secret string, logger *slog.Logger) *Server {
	s := &Server{
		store:       newMemStore(),
		jwt:         newJWTManager(secret, accessTokenLifetime, 7*24*time.Hour),
		logger:      logger,
		assistant:   defaultAssistant,
		environment: "development",
	}
	s.routes()
	return s
}

// WithAssistant replaces the canned assistant reply generator.
func (s *Server) WithAssistant(fn AssistantFunc) *Server {
	s.assistant = fn
	return s
}

// SetAssistantFailure makes subsequent chat calls omit the assistant
// message, simulating upstream generation failure.
func (s *Server) SetAssistantFailure(fail bool) {
	s.failAssistant.Store(fail)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/auth/me", s.handleCurrentUser)
			r.Post("/auth/logout", s.handleLogout)

			r.Post("/sessions/", s.handleCreateSession)
			r.Get("/sessions/", s.handleListSessions)
			r.Get("/sessions/{id}", s.handleGetSession)
			r.Get("/sessions/{id}/messages", s.handleSessionMessages)
			r.Post("/sessions/{id}/chat", s.handleChat)
			r.Put("/sessions/{id}/close", s.handleCloseSession)
		})
	})

	s.router = r
}

// requireAuth validates the bearer token and stashes the user ID.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		userID, err := s.jwt.validate(strings.TrimPrefix(header, "Bearer "), kindAccess)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "invalid or expired access token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --- Auth handlers ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "hash password failed")
		return
	}

	user, ok := s.store.createAccount(req.Email, string(hash), req.Name, req.Age)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "email already registered")
		return
	}

	s.logger.Info("mock account registered", slog.String("user_id", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	acc, ok := s.store.accountByEmail(req.Email)
	if !ok || bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(req.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	s.writeTokens(w, acc.user.ID)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := s.jwt.validate(req.RefreshToken, kindRefresh)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	s.writeTokens(w, userID)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.store.userByID(userIDFrom(r))
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Stateless tokens; nothing to invalidate server-side.
	w.WriteHeader(http.StatusNoContent)
}

// --- Session handlers ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CounselingType string `json:"counseling_type" validate:"required"`
	}
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	counselingType, err := domain.ParseCounselingType(req.CounselingType)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := s.store.createSession(userIDFrom(r), counselingType)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.store.sessionsByOwner(userIDFrom(r))
	if sessions == nil {
		sessions = []domain.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.session(userIDFrom(r), chi.URLParam(r, "id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if _, ok := s.store.session(userIDFrom(r), sessionID); !ok {
		writeDetail(w, http.StatusNotFound, "session not found")
		return
	}

	messages := s.store.sessionMessages(sessionID)
	if messages == nil {
		messages = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content" validate:"required"`
	}
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, ok := s.store.session(userIDFrom(r), chi.URLParam(r, "id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "session not found")
		return
	}
	if !sess.IsActive {
		writeDetail(w, http.StatusBadRequest, "cannot send message to an inactive session")
		return
	}

	userMsg := s.store.appendMessage(sess.ID, domain.RoleUser, req.Content)
	turn := domain.ConversationTurn{UserMessage: userMsg}

	if !s.failAssistant.Load() {
		reply := s.assistant(sess.CounselingType, req.Content)
		aiMsg := s.store.appendMessage(sess.ID, domain.RoleAssistant, reply)
		turn.AIMessage = &aiMsg
	}

	writeJSON(w, http.StatusOK, turn)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.closeSession(userIDFrom(r), chi.URLParam(r, "id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "healthy",
		"database":    "in-memory",
		"version":     "0.1.0",
		"environment": s.environment,
	})
}

// --- Helpers ---

func (s *Server) writeTokens(w http.ResponseWriter, userID string) {
	access, err := s.jwt.generate(userID, kindAccess)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "issue access token failed")
		return
	}
	refresh, err := s.jwt.generate(userID, kindRefresh)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "issue refresh token failed")
		return
	}

	writeJSON(w, http.StatusOK, domain.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(accessTokenLifetime.Seconds()),
	})
}

func defaultAssistant(counselingType domain.CounselingType, userMessage string) string {
	return fmt.Sprintf("[%s] I hear you. Tell me more about that.", counselingType)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes a FastAPI-style error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func userIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
