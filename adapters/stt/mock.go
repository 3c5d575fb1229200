package stt

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/domain/repositories"
)

// MockRecognizer is a placeholder recognizer for tests and offline
// development. Fed audio length selects a canned transcript.
type MockRecognizer struct {
	logger *zap.Logger
}

var _ repositories.Recognizer = (*MockRecognizer)(nil)

// NewMockRecognizer creates a mock recognizer.
func NewMockRecognizer(logger *zap.Logger) *MockRecognizer {
	return &MockRecognizer{logger: logger}
}

// Start implements repositories.Recognizer.
func (m *MockRecognizer) Start(_ context.Context, config repositories.AudioConfig) (repositories.RecognitionPass, error) {
	m.logger.Info("Starting mock recognition pass",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &mockPass{partials: make(chan string, 8)}, nil
}

type mockPass struct {
	mu         sync.Mutex
	totalBytes int
	aborted    bool
	partials   chan string
}

func (p *mockPass) Feed(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aborted {
		return fmt.Errorf("pass already finished")
	}
	p.totalBytes += len(data)
	return nil
}

func (p *mockPass) Partials() <-chan string {
	return p.partials
}

func (p *mockPass) End() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aborted {
		return "", fmt.Errorf("pass already finished")
	}
	p.aborted = true
	close(p.partials)

	if p.totalBytes == 0 {
		return "", fmt.Errorf("no audio data received")
	}
	switch {
	case p.totalBytes > 10000:
		return "Where can I find the main entrance?", nil
	case p.totalBytes > 1000:
		return "Hello there!", nil
	default:
		return "Hi", nil
	}
}

func (p *mockPass) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.aborted {
		p.aborted = true
		close(p.partials)
	}
}
