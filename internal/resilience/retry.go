// Package resilience provides retry primitives for collaborator calls.
//
// The central helper is [Retry], a bounded retry loop with exponential
// backoff. Transient collaborator failures (network, timeout) are retried a
// small number of times; anything wrapped with [Abort] stops the loop
// immediately, so callers can mark permanent rejections or partial progress
// that must not be repeated.
//
// All helpers are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryConfig holds tuning knobs for [Retry].
type RetryConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxRetries is the number of retries after the first attempt.
	// Default: 2.
	MaxRetries int

	// Backoff is the wait before the first retry; it doubles on each
	// subsequent retry. Default: 500ms.
	Backoff time.Duration

	// OnRetry, if set, is invoked before each retry with the 1-based retry
	// number and the error that triggered it.
	OnRetry func(retry int, err error)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	return c
}

// abortError marks an error that must not be retried.
type abortError struct {
	err error
}

func (a *abortError) Error() string { return a.err.Error() }

func (a *abortError) Unwrap() error { return a.err }

// Abort wraps err so that [Retry] stops immediately and returns err.
// Use it for permanent rejections, or when partial progress makes a repeat
// attempt unsafe.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return &abortError{err: err}
}

// Retry runs fn until it succeeds, the retry budget is exhausted, fn returns
// an [Abort]-wrapped error, or ctx is cancelled. The last error is returned
// unwrapped.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is [Retry] for functions returning a value. This is a
// package-level function because Go does not support method-level type
// parameters.
func RetryWithResult[R any](ctx context.Context, cfg RetryConfig, fn func() (R, error)) (R, error) {
	cfg = cfg.withDefaults()

	var (
		zero    R
		lastErr error
	)
	backoff := cfg.Backoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, lastErr)
			}
			slog.Warn("retrying after failure",
				"name", cfg.Name, "retry", attempt, "backoff", backoff, "error", lastErr)
			if err := sleep(ctx, backoff); err != nil {
				return zero, err
			}
			backoff *= 2
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		var abort *abortError
		if errors.As(err, &abort) {
			return zero, abort.err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		lastErr = err
	}
	return zero, lastErr
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
