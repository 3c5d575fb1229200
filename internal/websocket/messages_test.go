package websocket

import (
	"encoding/json"
	"testing"

	"github.com/wayfindr/kiosk/domain/entities"
)

func TestControlMessageUnmarshal(t *testing.T) {
	raw := []byte(`{"type": "exit_attempt", "password": "1234"}`)
	var msg ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("Failed to unmarshal control message: %v", err)
	}
	if msg.Type != MessageTypeExitAttempt {
		t.Errorf("Expected exit_attempt type, got %q", msg.Type)
	}
	if msg.Password != "1234" {
		t.Errorf("Expected password field, got %q", msg.Password)
	}
}

func TestMarshalStatus(t *testing.T) {
	status := entities.KioskStatus{
		Active: true,
		State:  entities.KioskStateListening,
		Confirmation: &entities.PendingConfirmation{
			RecognizedText:   "hello",
			RemainingSeconds: 4,
		},
	}

	var decoded StatusMessage
	if err := json.Unmarshal(marshalStatus(status), &decoded); err != nil {
		t.Fatalf("Failed to decode status payload: %v", err)
	}
	if decoded.Type != MessageTypeStatus {
		t.Errorf("Expected status type, got %q", decoded.Type)
	}
	if !decoded.Status.Active || decoded.Status.State != entities.KioskStateListening {
		t.Errorf("Expected status fields to round-trip, got %+v", decoded.Status)
	}
	if decoded.Status.Confirmation == nil || decoded.Status.Confirmation.RemainingSeconds != 4 {
		t.Errorf("Expected confirmation to round-trip, got %+v", decoded.Status.Confirmation)
	}
}

func TestMarshalSpeakingStart(t *testing.T) {
	var decoded SpeakingStartMessage
	if err := json.Unmarshal(marshalSpeakingStart("hi there"), &decoded); err != nil {
		t.Fatalf("Failed to decode speaking_start payload: %v", err)
	}
	if decoded.Type != MessageTypeSpeakingStart || decoded.Text != "hi there" {
		t.Errorf("Expected speaking_start with text, got %+v", decoded)
	}
}
