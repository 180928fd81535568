package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// fallbackClient wraps two Client implementations. It calls the primary first;
// if that returns an error it logs the failure and tries the secondary.
// Chains of more than two providers are built by nesting.
type fallbackClient struct {
	primary   Client
	secondary Client
	logger    *slog.Logger
}

// NewFallbackClient returns a Client that calls primary and, on failure,
// falls back to secondary. Either argument may be nil. If primary is nil
// it goes straight to secondary; if secondary is nil and primary fails, the
// primary error is returned directly.
//
// A cancelled or expired context is never handed to the secondary.
func NewFallbackClient(primary, secondary Client, logger *slog.Logger) Client {
	return &fallbackClient{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Complete tries the primary Client. If it fails and a secondary is
// configured, it logs the primary error and tries the secondary.
func (f *fallbackClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	if f.primary != nil {
		text, err := f.primary.Complete(ctx, system, prompt)
		if err == nil {
			return text, nil
		}
		if f.secondary == nil {
			return "", fmt.Errorf("ai: primary failed and no secondary configured: %w", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Join(err, ctxErr)
		}
		f.logger.Warn("ai: primary model failed, trying secondary",
			"error", err,
			"prompt_bytes", len(prompt),
		)
	}

	if f.secondary == nil {
		return "", errors.New("ai: no model configured")
	}
	return f.secondary.Complete(ctx, system, prompt)
}
