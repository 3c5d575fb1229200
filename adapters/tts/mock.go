package tts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/domain/repositories"
)

// MockSynthesizer emits a few silent PCM chunks per utterance, sized
// roughly to the text length.
type MockSynthesizer struct {
	logger *zap.Logger
}

var _ repositories.Synthesizer = (*MockSynthesizer)(nil)

// NewMockSynthesizer creates a mock synthesizer.
func NewMockSynthesizer(logger *zap.Logger) *MockSynthesizer {
	return &MockSynthesizer{logger: logger}
}

// Synthesize implements repositories.Synthesizer.
func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	m.logger.Info("Synthesizing mock audio", zap.Int("textLength", len(text)))

	chunks := len(text)/32 + 1
	audioChan := make(chan []byte, chunks)
	go func() {
		defer close(audioChan)
		for i := 0; i < chunks; i++ {
			select {
			case audioChan <- make([]byte, 1024):
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioChan, nil
}
