package repositories

import (
	"context"
	"fmt"

	"github.com/wayfindr/kiosk/domain/entities"
)

// Responder abstracts the remote conversational endpoint. The
// conversation store is its only caller; it never touches conversation
// state itself.
type Responder interface {
	// Send submits a user utterance plus bounded recent context and
	// returns the assistant's reply text. Failures are *TransportError.
	Send(ctx context.Context, message string, contextWindow []entities.Message) (string, error)
}

// TransportErrorKind classifies transport failures for retry decisions
// and user-facing rendering.
type TransportErrorKind string

const (
	TransportErrorConnect     TransportErrorKind = "connect"
	TransportErrorTimeout     TransportErrorKind = "timeout"
	TransportErrorUnknownHost TransportErrorKind = "unknown_host"
	TransportErrorServer      TransportErrorKind = "server"
	TransportErrorOther       TransportErrorKind = "other"
)

// TransportError is the typed failure surfaced by a Responder. The last
// error encountered is returned unchanged after retries are exhausted so
// callers can render a specific message.
type TransportError struct {
	Kind   TransportErrorKind
	Status int // HTTP status for TransportErrorServer, zero otherwise
	Detail string
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case TransportErrorConnect:
		return fmt.Sprintf("cannot connect to server: %s", e.Detail)
	case TransportErrorTimeout:
		return fmt.Sprintf("request timed out: %s", e.Detail)
	case TransportErrorUnknownHost:
		return fmt.Sprintf("cannot resolve server address: %s", e.Detail)
	case TransportErrorServer:
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Detail)
	default:
		return fmt.Sprintf("network error: %s", e.Detail)
	}
}

// Retryable reports whether the failure is worth another attempt.
// Client-side rejections (4xx) and malformed responses are not.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case TransportErrorConnect, TransportErrorTimeout, TransportErrorUnknownHost:
		return true
	case TransportErrorServer:
		return e.Status >= 500
	default:
		return false
	}
}
