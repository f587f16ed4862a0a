package oracle

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 500 * time.Millisecond
)

// RetryingOracle repeats failed calls with a linear backoff.
type RetryingOracle struct {
	next        TextOracle
	maxAttempts int
	delay       time.Duration
}

// Retrying wraps next. maxAttempts counts the first call; values below 1
// fall back to DefaultMaxAttempts.
func Retrying(next TextOracle, maxAttempts int, delay time.Duration) *RetryingOracle {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	return &RetryingOracle{next: next, maxAttempts: maxAttempts, delay: delay}
}

func (r *RetryingOracle) Name() string { return r.next.Name() }

func (r *RetryingOracle) Complete(ctx context.Context, p Prompt) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		out, err := r.next.Complete(ctx, p)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%s: %w (last error: %v)", r.next.Name(), ctx.Err(), lastErr)
		case <-time.After(time.Duration(attempt) * r.delay):
		}
	}
	return "", fmt.Errorf("%s: failed after %d attempts: %w", r.next.Name(), r.maxAttempts, lastErr)
}
