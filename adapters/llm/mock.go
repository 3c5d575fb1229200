package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/wayfindr/kiosk/domain/entities"
	"github.com/wayfindr/kiosk/domain/repositories"
)

// MockResponder is a scriptable responder for tests and offline
// development.
type MockResponder struct {
	mu sync.Mutex

	// Responses are returned in order; when exhausted, a canned echo is
	// produced.
	Responses []string
	// Errors are consumed before Responses; a nil entry falls through to
	// the next response.
	Errors []error

	// Calls records every message sent, in order.
	Calls []string
	// ContextSizes records the context window length of every call.
	ContextSizes []int
}

var _ repositories.Responder = (*MockResponder)(nil)

// NewMockResponder creates an empty mock responder.
func NewMockResponder() *MockResponder {
	return &MockResponder{}
}

// Send implements repositories.Responder.
func (m *MockResponder) Send(_ context.Context, message string, contextWindow []entities.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, message)
	m.ContextSizes = append(m.ContextSizes, len(contextWindow))

	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		if err != nil {
			return "", err
		}
	}

	if len(m.Responses) > 0 {
		response := m.Responses[0]
		m.Responses = m.Responses[1:]
		return response, nil
	}

	return fmt.Sprintf("You said: %s", message), nil
}

// CallCount returns how many sends the mock has observed.
func (m *MockResponder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
