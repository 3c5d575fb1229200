package entities

// ConversationSnapshot is a consistent, immutable view of the
// conversation state. The store replaces the whole snapshot on every
// mutation, so readers never observe a half-applied transition.
type ConversationSnapshot struct {
	Messages          []Message `json:"messages"`
	PendingInput      string    `json:"pending_input"`
	IsLoading         bool      `json:"is_loading"`
	IsListening       bool      `json:"is_listening"`
	IsUserSpeaking    bool      `json:"is_user_speaking"`
	PartialSpeechText string    `json:"partial_speech_text"`
	LastError         *string   `json:"last_error,omitempty"`
}

// LastMessage returns the most recent message, or nil when the history
// is empty.
func (s ConversationSnapshot) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// ContextWindow returns up to n of the most recent messages, oldest
// first. It is computed at call time and never stored.
func (s ConversationSnapshot) ContextWindow(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	start := len(s.Messages) - n
	if start < 0 {
		start = 0
	}
	window := make([]Message, len(s.Messages)-start)
	copy(window, s.Messages[start:])
	return window
}
