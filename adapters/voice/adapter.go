package voice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/domain/repositories"
)

// Callbacks receives voice lifecycle notifications. All callbacks are
// invoked from adapter goroutines; handlers must not block.
type Callbacks struct {
	// OnListeningChanged fires when a recognition pass starts or ends.
	OnListeningChanged func(listening bool)
	// OnPartial fires for each interim transcript.
	OnPartial func(text string)
	// OnFinalResult fires once per pass with the final transcript.
	OnFinalResult func(text string)
	// OnSpeakingStart fires when an utterance begins playing.
	OnSpeakingStart func(text string)
	// OnAudioChunk fires for each chunk of synthesized audio.
	OnAudioChunk func(chunk []byte)
	// OnSpeakingDone fires when an utterance finishes or is flushed.
	OnSpeakingDone func()
	// OnError fires when recognition or synthesis fails.
	OnError func(code repositories.SpeechErrorCode)
}

// Adapter couples one speech recognizer and one synthesizer into a
// single voice endpoint. At most one recognition pass and one utterance
// are active at a time; a new Speak flushes the previous utterance
// rather than queueing behind it.
type Adapter struct {
	recognizer  repositories.Recognizer
	synthesizer repositories.Synthesizer
	audioConfig repositories.AudioConfig
	callbacks   Callbacks
	logger      *zap.Logger

	mu       sync.Mutex
	pass     repositories.RecognitionPass
	speaking bool
	speakGen uint64
	cancel   context.CancelFunc
}

// NewAdapter creates a voice adapter.
func NewAdapter(
	recognizer repositories.Recognizer,
	synthesizer repositories.Synthesizer,
	audioConfig repositories.AudioConfig,
	callbacks Callbacks,
	logger *zap.Logger,
) *Adapter {
	return &Adapter{
		recognizer:  recognizer,
		synthesizer: synthesizer,
		audioConfig: audioConfig,
		callbacks:   callbacks,
		logger:      logger,
	}
}

// StartListening opens a recognition pass. Calling it while a pass is
// already active reports SpeechErrorBusy and leaves the active pass
// untouched.
func (a *Adapter) StartListening(ctx context.Context) error {
	a.mu.Lock()
	if a.pass != nil {
		a.mu.Unlock()
		a.emitError(repositories.SpeechErrorBusy)
		return fmt.Errorf("recognition pass already active")
	}
	a.mu.Unlock()

	pass, err := a.recognizer.Start(ctx, a.audioConfig)
	if err != nil {
		a.logger.Error("Failed to start recognition pass", zap.Error(err))
		a.emitError(classifySpeechError(err))
		return err
	}

	a.mu.Lock()
	if a.pass != nil {
		// Lost the race to a concurrent StartListening.
		a.mu.Unlock()
		pass.Abort()
		a.emitError(repositories.SpeechErrorBusy)
		return fmt.Errorf("recognition pass already active")
	}
	a.pass = pass
	a.mu.Unlock()

	go a.forwardPartials(pass)

	if a.callbacks.OnListeningChanged != nil {
		a.callbacks.OnListeningChanged(true)
	}
	return nil
}

// forwardPartials relays interim transcripts until the pass ends.
func (a *Adapter) forwardPartials(pass repositories.RecognitionPass) {
	for text := range pass.Partials() {
		if a.callbacks.OnPartial != nil {
			a.callbacks.OnPartial(text)
		}
	}
}

// FeedAudio routes raw audio into the active recognition pass. Audio
// arriving with no active pass is dropped.
func (a *Adapter) FeedAudio(data []byte) {
	a.mu.Lock()
	pass := a.pass
	a.mu.Unlock()
	if pass == nil {
		return
	}
	if err := pass.Feed(data); err != nil {
		a.logger.Warn("Failed to feed audio", zap.Error(err))
	}
}

// StopListening closes the active pass and waits in the background for
// its final transcript, delivered through OnFinalResult. Stopping with
// no active pass is a no-op.
func (a *Adapter) StopListening() {
	a.mu.Lock()
	pass := a.pass
	a.pass = nil
	a.mu.Unlock()
	if pass == nil {
		return
	}

	if a.callbacks.OnListeningChanged != nil {
		a.callbacks.OnListeningChanged(false)
	}

	go func() {
		transcript, err := pass.End()
		if err != nil {
			a.logger.Warn("Recognition pass ended without result", zap.Error(err))
			a.emitError(classifySpeechError(err))
			return
		}
		if a.callbacks.OnFinalResult != nil {
			a.callbacks.OnFinalResult(transcript)
		}
	}()
}

// AbortListening discards the active pass without producing a result.
func (a *Adapter) AbortListening() {
	a.mu.Lock()
	pass := a.pass
	a.pass = nil
	a.mu.Unlock()
	if pass == nil {
		return
	}
	pass.Abort()
	if a.callbacks.OnListeningChanged != nil {
		a.callbacks.OnListeningChanged(false)
	}
}

// IsListening reports whether a recognition pass is active.
func (a *Adapter) IsListening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pass != nil
}

// Speak synthesizes and streams one utterance. A previous in-flight
// utterance is flushed, not queued behind.
func (a *Adapter) Speak(ctx context.Context, text string) error {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.speakGen++
	gen := a.speakGen
	speakCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	audio, err := a.synthesizer.Synthesize(speakCtx, text)
	if err != nil {
		cancel()
		a.mu.Lock()
		if a.speakGen == gen {
			a.cancel = nil
		}
		a.mu.Unlock()
		a.logger.Error("Failed to synthesize utterance", zap.Error(err))
		a.emitError(classifySpeechError(err))
		return err
	}

	a.mu.Lock()
	a.speaking = true
	a.mu.Unlock()

	if a.callbacks.OnSpeakingStart != nil {
		a.callbacks.OnSpeakingStart(text)
	}

	go func() {
		for chunk := range audio {
			if a.callbacks.OnAudioChunk != nil {
				a.callbacks.OnAudioChunk(chunk)
			}
		}
		a.mu.Lock()
		current := a.speakGen == gen
		if current {
			a.speaking = false
			a.cancel = nil
		}
		a.mu.Unlock()
		if current && a.callbacks.OnSpeakingDone != nil {
			a.callbacks.OnSpeakingDone()
		}
	}()
	return nil
}

// StopSpeaking flushes the in-flight utterance, if any.
func (a *Adapter) StopSpeaking() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.speaking = false
	a.speakGen++
	a.mu.Unlock()
	if cancel != nil {
		cancel()
		if a.callbacks.OnSpeakingDone != nil {
			a.callbacks.OnSpeakingDone()
		}
	}
}

// IsSpeaking reports whether an utterance is in flight.
func (a *Adapter) IsSpeaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking
}

func (a *Adapter) emitError(code repositories.SpeechErrorCode) {
	if a.callbacks.OnError != nil {
		a.callbacks.OnError(code)
	}
}

// classifySpeechError maps backend failures onto the closed speech error
// taxonomy.
func classifySpeechError(err error) repositories.SpeechErrorCode {
	if err == nil {
		return repositories.SpeechErrorUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return repositories.SpeechErrorNetworkTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return repositories.SpeechErrorNetworkTimeout
		}
		return repositories.SpeechErrorNetwork
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "no speech detected"):
		return repositories.SpeechErrorNoMatch
	case strings.Contains(msg, "no audio data"):
		return repositories.SpeechErrorSpeechTimeout
	case strings.Contains(msg, "permission"):
		return repositories.SpeechErrorPermission
	case strings.Contains(msg, "already active"), strings.Contains(msg, "already finished"):
		return repositories.SpeechErrorBusy
	case strings.Contains(msg, "audio"):
		return repositories.SpeechErrorAudio
	default:
		return repositories.SpeechErrorUnknown
	}
}
