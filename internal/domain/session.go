package domain

import (
	"fmt"
	"time"
)

// CounselingType is the fixed conversation domain a session is scoped to.
type CounselingType string

const (
	CounselingMentalWellbeing  CounselingType = "mental_wellbeing"
	CounselingCareerGuidance   CounselingType = "career_guidance"
	CounselingEntrepreneurship CounselingType = "entrepreneurship_guidance"
)

// Valid reports whether the counseling type is one of the supported domains.
func (t CounselingType) Valid() bool {
	switch t {
	case CounselingMentalWellbeing, CounselingCareerGuidance, CounselingEntrepreneurship:
		return true
	}
	return false
}

// ParseCounselingType converts a string into a CounselingType.
func ParseCounselingType(s string) (CounselingType, error) {
	t := CounselingType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown counseling type %q", s)
	}
	return t, nil
}

// Session represents a counseling session. The backend guarantees at most
// one active session per user; the client mirrors that invariant locally.
type Session struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"owner_id"`
	CounselingType CounselingType `json:"counseling_type"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	MessageCount   *int           `json:"message_count,omitempty"`
}

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single transcript entry. Messages are immutable once
// created and ordered by creation time within a session.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// ConversationTurn is the paired result of a single send-message call.
// AIMessage is nil when assistant generation failed upstream.
type ConversationTurn struct {
	UserMessage Message  `json:"user_message"`
	AIMessage   *Message `json:"ai_message"`
}
