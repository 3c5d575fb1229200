package entities

import (
	"time"

	"github.com/google/uuid"
)

// Originator identifies which side of the conversation produced a message.
type Originator string

const (
	OriginatorUser      Originator = "user"
	OriginatorAssistant Originator = "assistant"
)

// Message is a single immutable chat message. Messages are append-only:
// they are never mutated after creation and only removed by a bulk
// history clear.
type Message struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Originator Originator `json:"originator"`
	CreatedAt  time.Time  `json:"created_at"`

	// IsError marks assistant messages that were synthesized from a
	// transport failure, so the UI does not have to sniff content.
	IsError bool `json:"is_error,omitempty"`
}

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(content string, originator Originator) Message {
	return Message{
		ID:         uuid.New().String(),
		Content:    content,
		Originator: originator,
		CreatedAt:  time.Now(),
	}
}

// NewErrorMessage creates an assistant message carrying a user-visible
// failure description.
func NewErrorMessage(content string) Message {
	m := NewMessage(content, OriginatorAssistant)
	m.IsError = true
	return m
}
