package apierr

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig bounds a retry loop. Out-of-range values are clamped: a
// negative MaxRetries means one attempt, a non-positive BaseDelay is 1ms and
// a MaxDelay below BaseDelay is raised to it.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// OnRetry runs before retry n (starting at 1) with the error that caused it.
	OnRetry func(n int, err error)
}

func (c RetryConfig) clamped() RetryConfig {
	c.MaxRetries = max(c.MaxRetries, 0)
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Millisecond
	}
	c.MaxDelay = max(c.MaxDelay, c.BaseDelay)
	return c
}

// backoff returns the wait before retry n, doubling from BaseDelay up to MaxDelay.
func (c RetryConfig) backoff(n int) time.Duration {
	d := c.BaseDelay
	for i := 1; i < n && d < c.MaxDelay; i++ {
		d *= 2
	}
	return min(d, c.MaxDelay)
}

// RetryWithBackoff calls fn until it succeeds, shouldRetry rejects its error,
// retries run out or ctx ends. Only the exhausted case wraps the last error.
func RetryWithBackoff[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func() (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	cfg = cfg.clamped()

	var zero T
	result, err := fn()
	for n := 1; err != nil; n++ {
		if !shouldRetry(err) {
			return zero, err
		}
		if n > cfg.MaxRetries {
			return zero, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, err)
		}
		if werr := sleep(ctx, cfg.backoff(n)); werr != nil {
			return zero, werr
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(n, err)
		}
		result, err = fn()
	}
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
