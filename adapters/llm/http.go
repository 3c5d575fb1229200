package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/domain/entities"
	"github.com/wayfindr/kiosk/domain/repositories"
)

const (
	maxAttempts    = 3
	initialBackoff = 1000 * time.Millisecond
	maxBackoff     = 10000 * time.Millisecond

	connectTimeout = 30 * time.Second
	readTimeout    = 60 * time.Second

	// placeholderResponse is used when a 200 reply carries no response
	// field.
	placeholderResponse = "No response received"
)

// chatRequest is the wire payload for the chat endpoint.
type chatRequest struct {
	Message string               `json:"message"`
	Context []chatContextMessage `json:"context,omitempty"`
}

type chatContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// ChatClient sends utterances to the remote chat endpoint with
// exponential-backoff retries for transient failures.
type ChatClient struct {
	mu      sync.RWMutex
	baseURL string

	client *http.Client
	logger *zap.Logger

	// sleep is replaceable in tests to observe backoff without waiting.
	sleep func(time.Duration)
}

var _ repositories.Responder = (*ChatClient)(nil)

// NewChatClient creates a chat client for the given base URL.
func NewChatClient(baseURL string, logger *zap.Logger) *ChatClient {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &ChatClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
		logger: logger,
		sleep:  time.Sleep,
	}
}

// SetBaseURL switches the remote endpoint, e.g. after a settings change.
func (c *ChatClient) SetBaseURL(baseURL string) {
	c.mu.Lock()
	c.baseURL = baseURL
	c.mu.Unlock()
	c.logger.Info("Chat endpoint updated", zap.String("baseURL", baseURL))
}

// Send implements repositories.Responder. Retryable failures are
// attempted up to three times with backoff doubling from 1s, capped at
// 10s; the last error is returned unchanged.
func (c *ChatClient) Send(ctx context.Context, message string, contextWindow []entities.Message) (string, error) {
	var lastErr *repositories.TransportError
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := c.sendOnce(ctx, message, contextWindow)
		if err == nil {
			return response, nil
		}

		lastErr = classify(err)
		c.logger.Warn("Chat request failed",
			zap.Int("attempt", attempt),
			zap.String("kind", string(lastErr.Kind)),
			zap.Error(lastErr))

		if !lastErr.Retryable() || attempt == maxAttempts {
			break
		}

		c.logger.Debug("Retrying chat request", zap.Duration("backoff", backoff))
		c.sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return "", lastErr
}

func (c *ChatClient) sendOnce(ctx context.Context, message string, contextWindow []entities.Message) (string, error) {
	payload := chatRequest{Message: message}
	for _, msg := range contextWindow {
		role := "assistant"
		if msg.Originator == entities.OriginatorUser {
			role = "user"
		}
		payload.Context = append(payload.Context, chatContextMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &repositories.TransportError{
			Kind:   repositories.TransportErrorOther,
			Detail: fmt.Sprintf("failed to encode request: %v", err),
		}
	}

	c.mu.RLock()
	url := c.baseURL + "/chat"
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &repositories.TransportError{
			Kind:   repositories.TransportErrorOther,
			Detail: err.Error(),
		}
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(respBody)
		if detail == "" {
			detail = fmt.Sprintf("HTTP Error %d", resp.StatusCode)
		}
		return "", &repositories.TransportError{
			Kind:   repositories.TransportErrorServer,
			Status: resp.StatusCode,
			Detail: detail,
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &repositories.TransportError{
			Kind:   repositories.TransportErrorOther,
			Detail: fmt.Sprintf("malformed response: %v", err),
		}
	}
	if parsed.Response == nil {
		return placeholderResponse, nil
	}
	return *parsed.Response, nil
}

// classify maps an arbitrary failure onto the transport error taxonomy.
// Already-classified errors pass through unchanged.
func classify(err error) *repositories.TransportError {
	var transportErr *repositories.TransportError
	if errors.As(err, &transportErr) {
		return transportErr
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &repositories.TransportError{
			Kind:   repositories.TransportErrorUnknownHost,
			Detail: dnsErr.Error(),
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &repositories.TransportError{
			Kind:   repositories.TransportErrorTimeout,
			Detail: err.Error(),
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &repositories.TransportError{
			Kind:   repositories.TransportErrorTimeout,
			Detail: netErr.Error(),
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &repositories.TransportError{
			Kind:   repositories.TransportErrorConnect,
			Detail: opErr.Error(),
		}
	}

	return &repositories.TransportError{
		Kind:   repositories.TransportErrorOther,
		Detail: err.Error(),
	}
}
