package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/domain/entities"
	"github.com/wayfindr/kiosk/domain/repositories"
)

// recordedSleeps installs a fake sleep and returns the recorded
// durations.
func recordedSleeps(c *ChatClient) *[]time.Duration {
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) {
		sleeps = append(sleeps, d)
	}
	return &sleeps
}

func TestSendSuccess(t *testing.T) {
	var body chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response": "the entrance is ahead"}`))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, zap.NewNop())
	window := []entities.Message{
		entities.NewMessage("hi", entities.OriginatorUser),
		entities.NewMessage("hello", entities.OriginatorAssistant),
	}

	response, err := client.Send(context.Background(), "where is the entrance?", window)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if response != "the entrance is ahead" {
		t.Errorf("Expected response text, got %q", response)
	}
	if body.Message != "where is the entrance?" {
		t.Errorf("Expected message in payload, got %q", body.Message)
	}
	if len(body.Context) != 2 || body.Context[0].Role != "user" || body.Context[1].Role != "assistant" {
		t.Errorf("Expected ordered role-mapped context, got %+v", body.Context)
	}
}

func TestSendMissingResponseFieldUsesPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, zap.NewNop())
	response, err := client.Send(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if response != placeholderResponse {
		t.Errorf("Expected placeholder response, got %q", response)
	}
}

func TestSendRetriesTransientFailures(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"response": "recovered"}`))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, zap.NewNop())
	sleeps := recordedSleeps(client)

	response, err := client.Send(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if response != "recovered" {
		t.Errorf("Expected recovered response, got %q", response)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
	want := []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}
	if len(*sleeps) != len(want) {
		t.Fatalf("Expected %d backoff sleeps, got %v", len(want), *sleeps)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("Sleep %d: expected %v, got %v", i, d, (*sleeps)[i])
		}
	}
}

func TestSendRetryExhaustion(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, zap.NewNop())
	sleeps := recordedSleeps(client)

	_, err := client.Send(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}

	var transportErr *repositories.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %T", err)
	}
	if transportErr.Kind != repositories.TransportErrorServer || transportErr.Status != http.StatusBadGateway {
		t.Errorf("Expected server error 502, got %+v", transportErr)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
	if got := len(*sleeps); got != 2 {
		t.Errorf("Expected 2 backoff sleeps, got %d", got)
	}
}

func TestSendClientErrorNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such route"))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, zap.NewNop())
	sleeps := recordedSleeps(client)

	_, err := client.Send(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("Expected error for HTTP 404")
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("Expected exactly 1 request for a non-retryable failure, got %d", got)
	}
	if got := len(*sleeps); got != 0 {
		t.Errorf("Expected no backoff sleeps, got %d", got)
	}
}

func TestSendMalformedJSONNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, zap.NewNop())

	_, err := client.Send(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("Expected error for malformed body")
	}
	var transportErr *repositories.TransportError
	if !errors.As(err, &transportErr) || transportErr.Kind != repositories.TransportErrorOther {
		t.Errorf("Expected non-retryable other error, got %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("Expected exactly 1 request, got %d", got)
	}
}

func TestSetBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": "from new endpoint"}`))
	}))
	defer server.Close()

	client := NewChatClient("http://127.0.0.1:1", zap.NewNop())
	client.SetBaseURL(server.URL)

	response, err := client.Send(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Expected success against new endpoint, got %v", err)
	}
	if response != "from new endpoint" {
		t.Errorf("Expected response from new endpoint, got %q", response)
	}
}
