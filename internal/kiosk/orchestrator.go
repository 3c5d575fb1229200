package kiosk

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/adapters/settings"
	"github.com/wayfindr/kiosk/adapters/voice"
	"github.com/wayfindr/kiosk/domain/entities"
	"github.com/wayfindr/kiosk/domain/repositories"
	"github.com/wayfindr/kiosk/usecase"
)

// Timing holds the orchestrator's delays. They are injectable so tests
// can run the state machine without real time.
type Timing struct {
	// SettleDelay runs between session activation and the first listen.
	SettleDelay time.Duration
	// SpeakDelay runs between detecting a new response and speaking it.
	SpeakDelay time.Duration
	// RearmDelay is the cool-down before listening resumes after speech
	// output ends.
	RearmDelay time.Duration
	// TickInterval is the confirmation countdown tick period.
	TickInterval time.Duration
	// CountdownSeconds is the confirmation countdown start value.
	CountdownSeconds int
}

// DefaultTiming returns the production delays.
func DefaultTiming() Timing {
	return Timing{
		SettleDelay:      500 * time.Millisecond,
		SpeakDelay:       500 * time.Millisecond,
		RearmDelay:       1000 * time.Millisecond,
		TickInterval:     time.Second,
		CountdownSeconds: 5,
	}
}

// VoicePort is the orchestrator's view of the voice adapter. It exists
// as an interface so the state machine is testable with a fake.
type VoicePort interface {
	StartListening(ctx context.Context) error
	StopListening()
	AbortListening()
	FeedAudio(data []byte)
	Speak(ctx context.Context, text string) error
	StopSpeaking()
}

var _ VoicePort = (*voice.Adapter)(nil)

type timerKind int

const (
	timerSettle timerKind = iota
	timerSpeak
	timerRearm
	timerTick
)

type event interface{ isEvent() }

type evVoiceFinal struct{ text string }
type evVoicePartial struct{ text string }
type evVoiceListening struct{ listening bool }
type evVoiceSpeakingStart struct{}
type evVoiceSpeakingDone struct{}
type evVoiceError struct{ code repositories.SpeechErrorCode }
type evStoreChanged struct{ snap entities.ConversationSnapshot }
type evTimerFire struct {
	gen  uint64
	kind timerKind
}
type cmdActivate struct{}
type cmdExitAttempt struct {
	password string
	reply    chan bool
}
type cmdConfirm struct{}
type cmdCancelConfirmation struct{}
type cmdSubmitText struct{ text string }
type cmdClearError struct{}
type cmdStatus struct{ reply chan entities.KioskStatus }

func (evVoiceFinal) isEvent()         {}
func (evVoicePartial) isEvent()       {}
func (evVoiceListening) isEvent()     {}
func (evVoiceSpeakingStart) isEvent() {}
func (evVoiceSpeakingDone) isEvent()  {}
func (evVoiceError) isEvent()         {}
func (evStoreChanged) isEvent()       {}
func (evTimerFire) isEvent()          {}
func (cmdActivate) isEvent()          {}
func (cmdExitAttempt) isEvent()       {}
func (cmdConfirm) isEvent()           {}
func (cmdCancelConfirmation) isEvent() {}
func (cmdSubmitText) isEvent()        {}
func (cmdClearError) isEvent()        {}
func (cmdStatus) isEvent()            {}

// Orchestrator is the kiosk session state machine. All state it owns is
// touched only by the Run goroutine; external inputs arrive as events
// on an unbounded internal queue, so producers (store change callbacks,
// voice callbacks, timers, HTTP handlers) never block and never race.
type Orchestrator struct {
	store    *usecase.Conversation
	voice    VoicePort
	settings repositories.SettingsStore
	timing   Timing
	logger   *zap.Logger

	// onStatus is pushed the full session status after every change.
	onStatus func(entities.KioskStatus)

	qmu   sync.Mutex
	queue []event
	wake  chan struct{}

	// Loop-owned state. Never read or written outside handle().
	active       bool
	gen          uint64
	speaking     bool
	listening    bool
	pending      *entities.PendingConfirmation
	lastSpoken   string
	pendingSpeak string
	snap         entities.ConversationSnapshot
}

// NewOrchestrator wires the state machine to its collaborators. The
// store's change observer is installed here; the voice port is attached
// separately because the adapter needs the orchestrator's callbacks at
// construction time.
func NewOrchestrator(
	store *usecase.Conversation,
	settingsStore repositories.SettingsStore,
	timing Timing,
	logger *zap.Logger,
) *Orchestrator {
	if timing.CountdownSeconds <= 0 {
		timing = DefaultTiming()
	}
	o := &Orchestrator{
		store:    store,
		settings: settingsStore,
		timing:   timing,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
	store.SetOnChange(func(snap entities.ConversationSnapshot) {
		o.push(evStoreChanged{snap: snap})
	})
	return o
}

// AttachVoice installs the voice port. Must be called before Run.
func (o *Orchestrator) AttachVoice(v VoicePort) {
	o.voice = v
}

// SetStatusSink installs the status observer. Must be called before Run.
func (o *Orchestrator) SetStatusSink(fn func(entities.KioskStatus)) {
	o.onStatus = fn
}

// VoiceCallbacks returns the callback set to hand the voice adapter.
// Each callback is a non-blocking queue push.
func (o *Orchestrator) VoiceCallbacks() voice.Callbacks {
	return voice.Callbacks{
		OnListeningChanged: func(listening bool) { o.push(evVoiceListening{listening: listening}) },
		OnPartial:          func(text string) { o.push(evVoicePartial{text: text}) },
		OnFinalResult:      func(text string) { o.push(evVoiceFinal{text: text}) },
		OnSpeakingStart:    func(string) { o.push(evVoiceSpeakingStart{}) },
		OnSpeakingDone:     func() { o.push(evVoiceSpeakingDone{}) },
		OnError:            func(code repositories.SpeechErrorCode) { o.push(evVoiceError{code: code}) },
	}
}

// Activate starts the kiosk session.
func (o *Orchestrator) Activate() {
	o.push(cmdActivate{})
}

// ExitAttempt checks the password and, on a match, deactivates the
// session. It reports whether the attempt succeeded.
func (o *Orchestrator) ExitAttempt(password string) bool {
	reply := make(chan bool, 1)
	o.push(cmdExitAttempt{password: password, reply: reply})
	return <-reply
}

// Confirm sends the pending recognized utterance immediately.
func (o *Orchestrator) Confirm() {
	o.push(cmdConfirm{})
}

// CancelConfirmation discards the pending recognized utterance.
func (o *Orchestrator) CancelConfirmation() {
	o.push(cmdCancelConfirmation{})
}

// SubmitText routes a typed message through the session, bypassing the
// confirmation gate.
func (o *Orchestrator) SubmitText(text string) {
	o.push(cmdSubmitText{text: text})
}

// ClearError acknowledges the current session error.
func (o *Orchestrator) ClearError() {
	o.push(cmdClearError{})
}

// Status returns a consistent view of the session.
func (o *Orchestrator) Status() entities.KioskStatus {
	reply := make(chan entities.KioskStatus, 1)
	o.push(cmdStatus{reply: reply})
	return <-reply
}

// FeedAudio routes microphone audio to the voice adapter. It bypasses
// the event queue; raw audio needs no ordering against state changes.
func (o *Orchestrator) FeedAudio(data []byte) {
	o.voice.FeedAudio(data)
}

// EndUtterance signals that the user finished speaking; the recognition
// pass is closed and its final transcript arrives as a voice event.
func (o *Orchestrator) EndUtterance() {
	o.voice.StopListening()
}

func (o *Orchestrator) push(ev event) {
	o.qmu.Lock()
	o.queue = append(o.queue, ev)
	o.qmu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Run drives the event loop until ctx is cancelled. It must be the only
// goroutine calling handle.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
		}
		for {
			o.qmu.Lock()
			if len(o.queue) == 0 {
				o.qmu.Unlock()
				break
			}
			ev := o.queue[0]
			o.queue = o.queue[1:]
			o.qmu.Unlock()
			o.handle(ctx, ev)
		}
	}
}

// schedule arms a timer that fires back into the queue. The fire event
// carries the activation generation captured now; handle drops fires
// whose generation is stale, so deactivation invalidates every timer
// scheduled before it.
func (o *Orchestrator) schedule(kind timerKind, delay time.Duration) {
	gen := o.gen
	time.AfterFunc(delay, func() {
		o.push(evTimerFire{gen: gen, kind: kind})
	})
}

func (o *Orchestrator) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case cmdActivate:
		o.handleActivate()
	case cmdExitAttempt:
		ev.reply <- o.handleExitAttempt(ev.password)
	case cmdConfirm:
		if o.pending != nil {
			o.sendConfirmed(ctx)
		}
	case cmdCancelConfirmation:
		if o.pending != nil {
			o.logger.Info("Confirmation cancelled",
				zap.String("text", o.pending.RecognizedText))
			o.pending = nil
			o.notifyStatus()
			o.schedule(timerRearm, o.timing.RearmDelay)
		}
	case cmdSubmitText:
		o.store.Submit(ctx, ev.text)
	case cmdClearError:
		o.store.ClearError()
		o.schedule(timerRearm, o.timing.RearmDelay)
	case cmdStatus:
		ev.reply <- o.status()

	case evStoreChanged:
		o.handleStoreChanged(ev.snap)
	case evVoiceFinal:
		o.handleFinalResult(ev.text)
	case evVoicePartial:
		if o.active && o.listening {
			o.store.SetPartialSpeechText(ev.text)
			o.store.SetUserSpeaking(strings.TrimSpace(ev.text) != "")
		}
	case evVoiceListening:
		o.listening = ev.listening
		o.store.SetListening(ev.listening)
	case evVoiceSpeakingStart:
		o.speaking = true
		// Mutual exclusion between playback and capture.
		if o.listening {
			o.stopListening()
		}
		o.notifyStatus()
	case evVoiceSpeakingDone:
		o.speaking = false
		o.notifyStatus()
		o.schedule(timerRearm, o.timing.RearmDelay)
	case evVoiceError:
		o.handleVoiceError(ev.code)

	case evTimerFire:
		if ev.gen != o.gen {
			o.logger.Debug("Dropping stale timer fire")
			return
		}
		o.handleTimer(ctx, ev.kind)
	}
}

func (o *Orchestrator) handleActivate() {
	if o.active {
		return
	}
	o.active = true
	o.gen++
	o.logger.Info("Kiosk session activated")
	o.notifyStatus()
	o.schedule(timerSettle, o.timing.SettleDelay)
}

func (o *Orchestrator) handleExitAttempt(password string) bool {
	hash, err := o.settings.PasswordHash()
	if err != nil {
		o.logger.Error("Failed to read password hash", zap.Error(err))
		return false
	}
	if !settings.VerifyPassword(password, hash) {
		o.logger.Warn("Kiosk exit attempt rejected")
		return false
	}
	o.deactivate()
	return true
}

// deactivate stops everything and bumps the generation so every timer
// armed during the session becomes a no-op.
func (o *Orchestrator) deactivate() {
	if !o.active {
		return
	}
	o.active = false
	o.gen++
	o.pending = nil
	o.pendingSpeak = ""
	if o.listening {
		o.listening = false
		o.voice.AbortListening()
		o.store.SetListening(false)
	}
	o.voice.StopSpeaking()
	o.speaking = false
	o.logger.Info("Kiosk session deactivated")
	o.notifyStatus()
}

func (o *Orchestrator) handleStoreChanged(snap entities.ConversationSnapshot) {
	o.snap = snap

	last := snap.LastMessage()
	if o.active && last != nil &&
		last.Originator == entities.OriginatorAssistant &&
		last.Content != o.lastSpoken &&
		last.Content != o.pendingSpeak {
		// New response: mark before the delay fires so rapid
		// re-evaluation cannot trigger a duplicate utterance.
		o.pendingSpeak = last.Content
		if o.listening {
			o.stopListening()
		}
		o.schedule(timerSpeak, o.timing.SpeakDelay)
	}
	o.notifyStatus()
}

func (o *Orchestrator) handleFinalResult(text string) {
	if !o.active {
		return
	}
	if o.pending != nil {
		o.logger.Debug("Dropping recognition result while confirmation pending",
			zap.String("text", text))
		return
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		o.schedule(timerRearm, o.timing.RearmDelay)
		return
	}

	o.logger.Info("Opening confirmation gate", zap.String("text", trimmed))
	o.pending = &entities.PendingConfirmation{
		RecognizedText:   trimmed,
		RemainingSeconds: o.timing.CountdownSeconds,
	}
	o.store.SetUserSpeaking(false)
	o.notifyStatus()
	o.schedule(timerTick, o.timing.TickInterval)
}

func (o *Orchestrator) handleVoiceError(code repositories.SpeechErrorCode) {
	cause := voice.DescribeSpeechError(code)
	o.logger.Warn("Voice error", zap.String("cause", cause))
	if o.listening {
		o.listening = false
		o.store.SetListening(false)
	}
	// A no-match is routine on a quiet kiosk; re-arm instead of raising
	// the error overlay.
	if code == repositories.SpeechErrorNoMatch || code == repositories.SpeechErrorSpeechTimeout {
		o.schedule(timerRearm, o.timing.RearmDelay)
		return
	}
	o.store.SetError(cause)
}

func (o *Orchestrator) handleTimer(ctx context.Context, kind timerKind) {
	switch kind {
	case timerSettle:
		if o.active && !o.speaking && !o.listening && o.pending == nil {
			o.startListening(ctx)
		}
	case timerSpeak:
		if o.pendingSpeak == "" {
			return
		}
		text := o.pendingSpeak
		o.lastSpoken = text
		o.pendingSpeak = ""
		go func() {
			if err := o.voice.Speak(ctx, text); err != nil {
				o.logger.Warn("Failed to speak response", zap.Error(err))
			}
		}()
	case timerRearm:
		if o.active && !o.speaking && !o.snap.IsLoading &&
			o.snap.LastError == nil && !o.listening && o.pending == nil {
			o.startListening(ctx)
		}
	case timerTick:
		if o.pending == nil {
			return
		}
		o.pending.RemainingSeconds--
		if o.pending.RemainingSeconds <= 0 {
			o.sendConfirmed(ctx)
			return
		}
		o.notifyStatus()
		o.schedule(timerTick, o.timing.TickInterval)
	}
}

// sendConfirmed resolves the confirmation gate by sending.
func (o *Orchestrator) sendConfirmed(ctx context.Context) {
	text := o.pending.RecognizedText
	o.pending = nil
	o.logger.Info("Confirmation resolved, sending", zap.String("text", text))
	o.store.Submit(ctx, text)
	o.notifyStatus()
}

// startListening flips the orchestrator's flag synchronously so guards
// evaluated later in the same batch see it, then starts the pass off
// the loop because backends may dial on start.
func (o *Orchestrator) startListening(ctx context.Context) {
	o.listening = true
	o.store.SetListening(true)
	go func() {
		if err := o.voice.StartListening(ctx); err != nil {
			o.logger.Warn("Failed to start listening", zap.Error(err))
		}
	}()
}

// stopListening is the immediate discard path used when playback must
// not be captured. The normal end-of-utterance path goes through
// EndUtterance instead, which waits for the final transcript.
func (o *Orchestrator) stopListening() {
	o.listening = false
	o.voice.AbortListening()
	o.store.SetListening(false)
}

func (o *Orchestrator) status() entities.KioskStatus {
	var confirmation *entities.PendingConfirmation
	if o.pending != nil {
		c := *o.pending
		confirmation = &c
	}
	return entities.KioskStatus{
		Active:       o.active,
		State:        entities.DeriveKioskState(o.speaking, o.snap),
		HasError:     o.snap.LastError != nil,
		Confirmation: confirmation,
		Conversation: o.snap,
	}
}

func (o *Orchestrator) notifyStatus() {
	if o.onStatus != nil {
		o.onStatus(o.status())
	}
}
