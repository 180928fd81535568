package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// deepseekClient is the concrete Client backed by the DeepSeek API.
// DeepSeek exposes an OpenAI-compatible /v1/chat/completions endpoint, so the
// request/response shapes follow the OpenAI chat format.
type deepseekClient struct {
	apiKey string
	model  string
	httpConfig
}

// NewDeepSeekClient returns a Client that calls the DeepSeek API.
//   - apiKey: your DEEPSEEK_API_KEY
//   - model:  e.g. "deepseek-chat" or "deepseek-reasoner"
func NewDeepSeekClient(apiKey, model string, opts ...Option) Client {
	return &deepseekClient{
		apiKey: apiKey,
		model:  model,
		httpConfig: applyOptions(httpConfig{
			baseURL:    "https://api.deepseek.com",
			httpClient: &http.Client{Timeout: 90 * time.Second},
		}, opts),
	}
}

// ─── OPENAI-COMPATIBLE API SHAPES ────────────────────────────────────────────

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ─── IMPLEMENTATION ───────────────────────────────────────────────────────────

// Complete sends one request to the DeepSeek chat completions endpoint and
// returns the content of the first choice.
func (c *deepseekClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openAIMessage, 0, 2)
	if system != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: system})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: prompt})

	bodyBytes, err := json.Marshal(openAIRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   512,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("deepseek: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions",
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("deepseek: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepseek: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("deepseek: read response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("deepseek: unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("deepseek: API error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepseek: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("deepseek: %w", ErrEmptyCompletion)
	}

	return parsed.Choices[0].Message.Content, nil
}
