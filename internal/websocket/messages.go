package websocket

import (
	"encoding/json"
	"time"

	"github.com/wayfindr/kiosk/domain/entities"
)

// MessageType defines the type of WebSocket control message.
type MessageType string

// Supported message types.
const (
	// Inbound from the UI shell.
	MessageTypeActivate     MessageType = "activate"
	MessageTypeListeningEnd MessageType = "listening_end"
	MessageTypeConfirm      MessageType = "confirm"
	MessageTypeCancel       MessageType = "cancel"
	MessageTypeExitAttempt  MessageType = "exit_attempt"
	MessageTypeTextInput    MessageType = "text_input"
	MessageTypeClearError   MessageType = "clear_error"

	// Outbound to the UI shell.
	MessageTypeStatus        MessageType = "status"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypeExitResult    MessageType = "exit_result"
	MessageTypeError         MessageType = "error"
)

// ControlMessage is the envelope for inbound UI control messages.
type ControlMessage struct {
	Type     MessageType `json:"type"`
	Password string      `json:"password,omitempty"`
	Text     string      `json:"text,omitempty"`
}

// StatusMessage pushes the full session status to the UI.
type StatusMessage struct {
	Type   MessageType          `json:"type"`
	Status entities.KioskStatus `json:"status"`
}

// SpeakingStartMessage announces that response audio follows as binary
// frames until a speaking_end message.
type SpeakingStartMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// SpeakingEndMessage closes a response audio stream.
type SpeakingEndMessage struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}

// ExitResultMessage reports the outcome of an exit attempt.
type ExitResultMessage struct {
	Type    MessageType `json:"type"`
	Success bool        `json:"success"`
}

// ErrorMessage reports a protocol-level problem to the UI.
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func marshalStatus(status entities.KioskStatus) []byte {
	payload, _ := json.Marshal(StatusMessage{Type: MessageTypeStatus, Status: status})
	return payload
}

func marshalSpeakingStart(text string) []byte {
	payload, _ := json.Marshal(SpeakingStartMessage{Type: MessageTypeSpeakingStart, Text: text})
	return payload
}

func marshalSpeakingEnd() []byte {
	payload, _ := json.Marshal(SpeakingEndMessage{
		Type:      MessageTypeSpeakingEnd,
		Timestamp: time.Now().Unix(),
	})
	return payload
}
