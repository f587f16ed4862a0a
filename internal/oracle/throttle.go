package oracle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// ThrottledOracle waits on a shared limiter before each call. One limiter
// is normally shared by every oracle that talks to the same endpoint.
type ThrottledOracle struct {
	next    TextOracle
	limiter *rate.Limiter
}

func Throttled(next TextOracle, limiter *rate.Limiter) *ThrottledOracle {
	return &ThrottledOracle{next: next, limiter: limiter}
}

// NewLimiter returns a limiter allowing rps requests per second with the
// given burst. rps <= 0 means unlimited.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func (t *ThrottledOracle) Name() string { return t.next.Name() }

func (t *ThrottledOracle) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return t.next.Complete(ctx, p)
}
