package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient is the Client backed by Google's Gemini models through the
// generative-ai-go SDK. Close it on shutdown.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient dials the Gemini API.
//   - apiKey: your GEMINI_API_KEY
//   - model:  e.g. "gemini-1.5-flash"
func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiClient, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: client init failed: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Complete implements Client. The system instruction lives on the model, so
// each call builds its own.
func (g *GeminiClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(0.2)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := candidateText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}
	return text, nil
}

// Close releases the underlying gRPC connection.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// candidateText concatenates the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
