package decision

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// bounded runs fn with its own deadline of d. If the deadline passes first
// the call is abandoned and ErrTimeout is returned; fn's context is
// cancelled so a well-behaved fn returns promptly in the background.
func bounded[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return r.v, fmt.Errorf("%w after %s: %w", ErrTimeout, d, r.err)
		}
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return zero, ctx.Err()
	}
}
