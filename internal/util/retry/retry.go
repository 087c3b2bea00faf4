// Package retry retries short-lived operations with exponential
// backoff. It is used for backend API calls, not for reachability
// polling; the latter has its own bounded loop in internal/util/wait.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type config struct {
	attempts   int
	delay      time.Duration
	maxDelay   time.Duration
	multiplier float64
}

// Option adjusts the retry behaviour of Do.
type Option func(*config)

// WithAttempts sets the total number of attempts (not retries).
func WithAttempts(n int) Option {
	return func(c *config) { c.attempts = n }
}

// WithDelay sets the delay before the second attempt.
func WithDelay(d time.Duration) Option {
	return func(c *config) { c.delay = d }
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *config) { c.maxDelay = d }
}

// Do runs op until it succeeds, exhausts its attempts, or returns an
// error marked with Fatal. The delay between attempts doubles up to
// the configured cap. Context cancellation is respected between
// attempts.
func Do(ctx context.Context, op func() error, opts ...Option) error {
	cfg := &config{
		attempts:   5,
		delay:      time.Second,
		maxDelay:   30 * time.Second,
		multiplier: 2.0,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	delay := cfg.delay
	var lastErr error

	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			return fmt.Errorf("fatal error (not retrying): %w", err)
		}
		if attempt == cfg.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * cfg.multiplier)
		if delay > cfg.maxDelay {
			delay = cfg.maxDelay
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.attempts, lastErr)
}

// FatalError marks an error as non-retryable.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps an error so Do gives up immediately.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether the error was marked with Fatal.
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
