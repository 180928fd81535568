// Package ai defines the interface for hosted language-model completions and
// provides Anthropic, DeepSeek and Gemini implementations plus a failover
// wrapper.
package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrEmptyCompletion is returned when a provider answers successfully but
// with no text.
var ErrEmptyCompletion = errors.New("ai: empty completion")

// Client is the interface the decision pipeline uses to talk to a model.
// It returns the raw text of the reply; parsing is the caller's job.
// Tests inject a stub that returns canned replies.
type Client interface {
	// Complete sends one system instruction and one user prompt and returns
	// the model's text. Implementations must be safe to call concurrently.
	// A non-nil error means no usable text was produced.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Option customises an HTTP-backed client.
type Option func(*httpConfig)

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpConfig) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpConfig) { c.httpClient = hc }
}

type httpConfig struct {
	baseURL    string
	httpClient *http.Client
}

func applyOptions(c httpConfig, opts []Option) httpConfig {
	for _, o := range opts {
		o(&c)
	}
	return c
}
