// ABOUTME: HTTP-level retry with exponential backoff for backend calls: up to MaxRetries
// ABOUTME: retries after the initial call, with 2^attempt-second delays on retryable errors (spec §4.7).
package llm

import (
	"context"
	"math"
	"time"
)

// RetryPolicy configures the HTTP-level retry loop around backend calls.
// The turn-level retry in the generation loop sits above this one.
type RetryPolicy struct {
	// MaxRetries is how many times a failed call is re-attempted, not
	// counting the initial call.
	MaxRetries int

	// BaseDelay is the delay before the first retry; each subsequent
	// retry multiplies it by Multiplier.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Multiplier controls the exponential growth between retries.
	Multiplier float64

	// OnRetry, when set, is invoked before each retry with the error that
	// triggered it, the 0-indexed attempt, and the delay about to apply.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the spec's defaults: 3 retries with
// 2^attempt-second backoff, capped at a minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.0,
	}
}

// Delay computes the backoff before retry number attempt (0-indexed):
// BaseDelay * Multiplier^attempt, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Retry runs fn, re-attempting on retryable errors (per Retryable) until it
// succeeds, a non-retryable error occurs, MaxRetries is exhausted, or ctx
// is cancelled. The last error is returned on failure.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt >= policy.MaxRetries || !Retryable(lastErr) {
			return lastErr
		}

		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(lastErr, attempt, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
}
