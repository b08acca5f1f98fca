package infra

import (
	"context"
	"errors"
	"time"
)

// RetryConfig is a fixed-delay retry policy. The only policy in use is
// PlaybackRetry: one extra attempt after a short pause.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

func PlaybackRetry(delay time.Duration) RetryConfig {
	return RetryConfig{MaxAttempts: 2, Delay: delay}
}

// WithRetry runs fn until it succeeds, the attempts run out, or ctx is done.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}

	return lastErr
}
