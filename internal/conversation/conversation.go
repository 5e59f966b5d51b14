// Package conversation manages chat threads and their persisted messages.
package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Message roles. The relay only ever persists user and assistant turns;
// system is reserved for injected prompt context.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Validation limits.
const (
	MaxTitleLength   = 200
	MaxContentLength = 100_000
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a conversation does not exist or is
	// not owned by the caller.
	ErrNotFound = errors.New("conversation not found")

	// ErrTitleTooLong is returned when a title exceeds MaxTitleLength.
	ErrTitleTooLong = errors.New("conversation title too long")

	// ErrInvalidRole is returned when a message role is not recognised.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrContentTooLong is returned when message content exceeds
	// MaxContentLength.
	ErrContentTooLong = errors.New("message content too long")
)

// Conversation is a chat thread inside a project.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	ProjectID    uuid.UUID `json:"projectId"`
	UserID       uuid.UUID `json:"userId"`
	Title        string    `json:"title"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Message is a single persisted chat turn.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	SequenceNumber int       `json:"sequenceNumber"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ValidRole reports whether role is one of the accepted values.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
