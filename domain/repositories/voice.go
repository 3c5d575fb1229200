package repositories

import "context"

// AudioConfig represents audio configuration for speech recognition.
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// Recognizer abstracts a speech-recognition backend. A recognizer owns
// exactly one underlying engine; callers must not start a pass while
// another is active.
type Recognizer interface {
	// Start begins one recognition pass. Audio is fed through the
	// returned pass until it ends with a final transcript or an error.
	Start(ctx context.Context, config AudioConfig) (RecognitionPass, error)
}

// RecognitionPass is a single in-progress recognition attempt.
type RecognitionPass interface {
	// Feed streams raw audio into the pass.
	Feed(data []byte) error
	// Partials delivers interim transcripts. The channel is closed when
	// the pass terminates.
	Partials() <-chan string
	// End signals end of audio and blocks for the final transcript.
	End() (string, error)
	// Abort cancels the pass without producing a result.
	Abort()
}

// Synthesizer abstracts a text-to-speech backend. Synthesized audio is
// streamed in chunks; the channel closes when the utterance is complete.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (<-chan []byte, error)
}

// SpeechErrorCode is the closed platform-level taxonomy of recognition
// and synthesis failures.
type SpeechErrorCode int

const (
	SpeechErrorAudio SpeechErrorCode = iota + 1
	SpeechErrorPermission
	SpeechErrorNetwork
	SpeechErrorNetworkTimeout
	SpeechErrorNoMatch
	SpeechErrorBusy
	SpeechErrorServer
	SpeechErrorSpeechTimeout
	SpeechErrorUnknown
)
