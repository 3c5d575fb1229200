package stt

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/domain/repositories"
)

// GoogleRecognizer implements Recognizer using Google Cloud
// Speech-to-Text streaming recognition. Each Start opens one
// single-utterance pass.
type GoogleRecognizer struct {
	logger *zap.Logger
}

var _ repositories.Recognizer = (*GoogleRecognizer)(nil)

// NewGoogleRecognizer creates a Google Cloud recognizer. Credentials
// come from the standard GOOGLE_APPLICATION_CREDENTIALS environment.
func NewGoogleRecognizer(logger *zap.Logger) *GoogleRecognizer {
	return &GoogleRecognizer{logger: logger}
}

// Start implements repositories.Recognizer.
func (g *GoogleRecognizer) Start(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionPass, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := audioEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
				},
				InterimResults:  true,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	pass := &googlePass{
		client:   client,
		stream:   stream,
		logger:   g.logger,
		partials: make(chan string, 8),
		result:   make(chan string, 1),
		errs:     make(chan error, 1),
	}
	go pass.receive()
	return pass, nil
}

type googlePass struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	logger *zap.Logger

	partials chan string
	result   chan string
	errs     chan error

	mu            sync.Mutex
	audioReceived bool
	aborted       bool
}

func (p *googlePass) Feed(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	p.mu.Lock()
	p.audioReceived = true
	p.mu.Unlock()

	if err := p.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (p *googlePass) Partials() <-chan string {
	return p.partials
}

func (p *googlePass) End() (string, error) {
	defer p.client.Close()

	p.mu.Lock()
	received := p.audioReceived
	p.mu.Unlock()
	if !received {
		p.stream.CloseSend()
		return "", fmt.Errorf("no audio data received")
	}

	if err := p.stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	select {
	case err := <-p.errs:
		return "", err
	case transcript := <-p.result:
		if transcript == "" {
			return "", fmt.Errorf("no speech detected in audio")
		}
		return transcript, nil
	}
}

func (p *googlePass) Abort() {
	p.mu.Lock()
	p.aborted = true
	p.mu.Unlock()
	p.stream.CloseSend()
	p.client.Close()
}

func (p *googlePass) receive() {
	defer close(p.partials)

	var final string
	for {
		resp, err := p.stream.Recv()
		if err == io.EOF {
			p.result <- final
			return
		}
		if err != nil {
			p.mu.Lock()
			aborted := p.aborted
			p.mu.Unlock()
			if !aborted {
				p.errs <- fmt.Errorf("failed to receive response: %w", err)
			}
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			transcript := result.Alternatives[0].Transcript
			if result.IsFinal {
				final = transcript
				continue
			}
			select {
			case p.partials <- transcript:
			default:
				p.logger.Debug("Dropping interim transcript, consumer is behind")
			}
		}
	}
}

// audioEncoding converts a wire encoding name to the Speech API enum.
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
