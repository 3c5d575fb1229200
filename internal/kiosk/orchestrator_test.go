package kiosk

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/adapters/llm"
	"github.com/wayfindr/kiosk/adapters/settings"
	"github.com/wayfindr/kiosk/usecase"
)

// testTiming keeps the state machine fast enough to observe in tests.
func testTiming() Timing {
	return Timing{
		SettleDelay:      2 * time.Millisecond,
		SpeakDelay:       2 * time.Millisecond,
		RearmDelay:       2 * time.Millisecond,
		TickInterval:     25 * time.Millisecond,
		CountdownSeconds: 3,
	}
}

// fakeVoice records calls; it never produces audio of its own.
type fakeVoice struct {
	mu         sync.Mutex
	startCalls int
	abortCalls int
	stopCalls  int
	spoken     []string
	stopSpoken int
}

func (f *fakeVoice) StartListening(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return nil
}

func (f *fakeVoice) StopListening() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
}

func (f *fakeVoice) AbortListening() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortCalls++
}

func (f *fakeVoice) FeedAudio([]byte) {}

func (f *fakeVoice) Speak(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeVoice) StopSpeaking() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopSpoken++
}

func (f *fakeVoice) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

func (f *fakeVoice) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

type fixture struct {
	orch      *Orchestrator
	voice     *fakeVoice
	responder *llm.MockResponder
	store     *usecase.Conversation
	cancel    context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	responder := llm.NewMockResponder()
	store := usecase.NewConversation(responder, usecase.ConversationConfig{}, logger)

	settingsStore, err := settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json"), logger)
	if err != nil {
		t.Fatalf("Failed to create settings store: %v", err)
	}

	orch := NewOrchestrator(store, settingsStore, testTiming(), logger)
	fake := &fakeVoice{}
	orch.AttachVoice(fake)

	ctx, cancel := context.WithCancel(context.Background())
	go orch.Run(ctx)
	t.Cleanup(cancel)

	return &fixture{orch: orch, voice: fake, responder: responder, store: store, cancel: cancel}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestActivationStartsListeningAfterSettle(t *testing.T) {
	f := newFixture(t)

	f.orch.Activate()
	waitUntil(t, func() bool { return f.voice.startCount() == 1 })

	status := f.orch.Status()
	if !status.Active {
		t.Error("Expected session active")
	}
	if !status.Conversation.IsListening {
		t.Error("Expected listening after settle delay")
	}
}

func TestFinalResultOpensConfirmation(t *testing.T) {
	f := newFixture(t)
	callbacks := f.orch.VoiceCallbacks()

	f.orch.Activate()
	waitUntil(t, func() bool { return f.voice.startCount() == 1 })

	callbacks.OnFinalResult("take me to platform two")
	waitUntil(t, func() bool { return f.orch.Status().Confirmation != nil })

	status := f.orch.Status()
	if status.Confirmation.RecognizedText != "take me to platform two" {
		t.Errorf("Expected recognized text in confirmation, got %q", status.Confirmation.RecognizedText)
	}
	if status.Confirmation.RemainingSeconds < 1 || status.Confirmation.RemainingSeconds > 3 {
		t.Errorf("Expected countdown in progress, got %d", status.Confirmation.RemainingSeconds)
	}
	if got := f.responder.CallCount(); got != 0 {
		t.Errorf("Expected no send while confirmation pending, got %d", got)
	}
}

func TestConfirmationCancelPreventsSend(t *testing.T) {
	f := newFixture(t)
	callbacks := f.orch.VoiceCallbacks()

	f.orch.Activate()
	callbacks.OnFinalResult("cancel me")
	waitUntil(t, func() bool {
		s := f.orch.Status()
		return s.Confirmation != nil && s.Confirmation.RemainingSeconds < 3
	})

	f.orch.CancelConfirmation()
	waitUntil(t, func() bool { return f.orch.Status().Confirmation == nil })

	// Outlive where the countdown would have expired.
	time.Sleep(60 * time.Millisecond)
	if got := f.responder.CallCount(); got != 0 {
		t.Errorf("Expected no send after cancel, got %d", got)
	}
}

func TestConfirmationCountdownAutoSendsOnce(t *testing.T) {
	f := newFixture(t)
	callbacks := f.orch.VoiceCallbacks()

	f.orch.Activate()
	callbacks.OnFinalResult("send me")
	waitUntil(t, func() bool { return f.responder.CallCount() == 1 })

	if f.orch.Status().Confirmation != nil {
		t.Error("Expected confirmation cleared after auto-send")
	}
	time.Sleep(60 * time.Millisecond)
	if got := f.responder.CallCount(); got != 1 {
		t.Errorf("Expected exactly one send, got %d", got)
	}
	if f.responder.Calls[0] != "send me" {
		t.Errorf("Expected original recognized text, got %q", f.responder.Calls[0])
	}
}

func TestExplicitConfirmSendsImmediately(t *testing.T) {
	f := newFixture(t)
	callbacks := f.orch.VoiceCallbacks()

	f.orch.Activate()
	callbacks.OnFinalResult("confirm me")
	waitUntil(t, func() bool { return f.orch.Status().Confirmation != nil })

	f.orch.Confirm()
	waitUntil(t, func() bool { return f.responder.CallCount() == 1 })

	time.Sleep(60 * time.Millisecond)
	if got := f.responder.CallCount(); got != 1 {
		t.Errorf("Expected exactly one send, got %d", got)
	}
}

func TestFinalResultDroppedWhileConfirmationPending(t *testing.T) {
	f := newFixture(t)
	callbacks := f.orch.VoiceCallbacks()

	f.orch.Activate()
	callbacks.OnFinalResult("first utterance")
	waitUntil(t, func() bool { return f.orch.Status().Confirmation != nil })

	callbacks.OnFinalResult("second utterance")

	f.orch.Confirm()
	waitUntil(t, func() bool { return f.responder.CallCount() == 1 })
	if f.responder.Calls[0] != "first utterance" {
		t.Errorf("Expected the first utterance to win, got %q", f.responder.Calls[0])
	}
	if f.orch.Status().Confirmation != nil {
		t.Error("Expected no confirmation left from the dropped result")
	}
}

func TestRearmBlockedByErrorUntilCleared(t *testing.T) {
	f := newFixture(t)
	callbacks := f.orch.VoiceCallbacks()

	f.orch.Activate()
	waitUntil(t, func() bool { return f.voice.startCount() == 1 })

	f.store.SetError("network error")

	// Speaking ends; the re-arm guard must see the error and hold.
	callbacks.OnListeningChanged(false)
	callbacks.OnSpeakingStart("")
	callbacks.OnSpeakingDone()
	time.Sleep(40 * time.Millisecond)
	if got := f.voice.startCount(); got != 1 {
		t.Errorf("Expected no re-arm while error set, got %d starts", got)
	}

	f.orch.ClearError()
	waitUntil(t, func() bool { return f.voice.startCount() == 2 })
}

func TestDeactivationCancelsPendingTimers(t *testing.T) {
	f := newFixture(t)
	callbacks := f.orch.VoiceCallbacks()

	f.orch.Activate()
	callbacks.OnFinalResult("about to be discarded")
	waitUntil(t, func() bool { return f.orch.Status().Confirmation != nil })

	if !f.orch.ExitAttempt(settings.DefaultPassword) {
		t.Fatal("Expected exit with default password to succeed")
	}

	status := f.orch.Status()
	if status.Active {
		t.Error("Expected session inactive after exit")
	}
	if status.Confirmation != nil {
		t.Error("Expected pending confirmation discarded on exit")
	}

	// Outlive every timer armed before deactivation; none may act.
	time.Sleep(60 * time.Millisecond)
	if got := f.responder.CallCount(); got != 0 {
		t.Errorf("Expected no send from stale countdown, got %d", got)
	}
	if got := f.voice.startCount(); got > 1 {
		t.Errorf("Expected no re-listen after deactivation, got %d starts", got)
	}
}

func TestExitRejectedWithWrongPassword(t *testing.T) {
	f := newFixture(t)

	f.orch.Activate()
	waitUntil(t, func() bool { return f.orch.Status().Active })

	if f.orch.ExitAttempt("wrong") {
		t.Error("Expected exit with wrong password to fail")
	}
	if !f.orch.Status().Active {
		t.Error("Expected session to stay active after failed exit")
	}
}

func TestSpeakingStopsListening(t *testing.T) {
	f := newFixture(t)
	callbacks := f.orch.VoiceCallbacks()

	f.orch.Activate()
	waitUntil(t, func() bool { return f.orch.Status().Conversation.IsListening })

	callbacks.OnSpeakingStart("hello")
	waitUntil(t, func() bool {
		s := f.orch.Status()
		return s.State == "responding" && !s.Conversation.IsListening
	})
}

func TestNewResponseSpokenExactlyOnce(t *testing.T) {
	f := newFixture(t)

	f.orch.Activate()
	waitUntil(t, func() bool { return f.orch.Status().Active })

	f.responder.Responses = []string{"turn left at the fountain"}
	f.orch.SubmitText("where is the fountain?")
	waitUntil(t, func() bool { return len(f.voice.spokenTexts()) == 1 })

	if got := f.voice.spokenTexts()[0]; got != "turn left at the fountain" {
		t.Errorf("Expected response content spoken, got %q", got)
	}

	// Further store changes must not re-trigger the same utterance.
	f.store.SetPartialSpeechText("noise")
	time.Sleep(40 * time.Millisecond)
	if got := len(f.voice.spokenTexts()); got != 1 {
		t.Errorf("Expected response spoken exactly once, got %d", got)
	}
}

func TestEmptyFinalResultJustRearms(t *testing.T) {
	f := newFixture(t)
	callbacks := f.orch.VoiceCallbacks()

	f.orch.Activate()
	waitUntil(t, func() bool { return f.voice.startCount() == 1 })

	callbacks.OnListeningChanged(false)
	callbacks.OnFinalResult("   ")
	waitUntil(t, func() bool { return f.voice.startCount() == 2 })

	if f.orch.Status().Confirmation != nil {
		t.Error("Expected no confirmation for a blank transcript")
	}
	if got := f.responder.CallCount(); got != 0 {
		t.Errorf("Expected no send for a blank transcript, got %d", got)
	}
}
