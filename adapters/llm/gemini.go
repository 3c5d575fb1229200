package llm

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/wayfindr/kiosk/domain/entities"
	"github.com/wayfindr/kiosk/domain/repositories"
)

const (
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultGeminiMaxTokens = 512
)

// GeminiResponder answers directly through the Gemini API instead of
// the self-hosted chat endpoint. Useful when the kiosk runs without a
// local inference server.
type GeminiResponder struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

var _ repositories.Responder = (*GeminiResponder)(nil)

// NewGeminiResponder creates a Gemini-backed responder. The API key is
// read from GEMINI_API_KEY.
func NewGeminiResponder(logger *zap.Logger) (*GeminiResponder, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiResponder{
		client: client,
		logger: logger,
		model:  model,
	}, nil
}

// Send implements repositories.Responder.
func (g *GeminiResponder) Send(ctx context.Context, message string, contextWindow []entities.Message) (string, error) {
	var contents []*genai.Content
	for _, msg := range contextWindow {
		var role genai.Role = genai.RoleModel
		if msg.Originator == entities.OriginatorUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(defaultGeminiMaxTokens),
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		g.logger.Error("Gemini request failed", zap.Error(err))
		return "", &repositories.TransportError{
			Kind:   repositories.TransportErrorOther,
			Detail: err.Error(),
		}
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return placeholderResponse, nil
	}

	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	if text == "" {
		return placeholderResponse, nil
	}

	g.logger.Info("Gemini response generated", zap.Int("length", len(text)))
	return text, nil
}
