// Package retry is a higher-order retry policy: it runs an attempt
// operation until it succeeds, a failure is classified fatal, or the
// attempt budget runs out. The policy knows nothing about what it retries;
// the caller supplies the operation and the classifier.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy bounds how attempts are driven.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first try.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is the wait before the second attempt.
	Delay time.Duration

	// Backoff multiplies the delay after every failed attempt. Values
	// below 1 are treated as 1 (constant delay).
	Backoff float64
}

// Do runs op until it succeeds or the policy gives up. A failure for which
// retriable returns false stops immediately; a nil retriable treats every
// failure as fatal. The delay between attempts honours ctx cancellation.
// The last error is returned as-is so callers can still classify it.
func Do[T any](
	ctx context.Context,
	p Policy,
	op func(context.Context) (T, error),
	retriable func(error) bool,
) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff < 1 {
		backoff = 1
	}

	var zero T
	delay := p.Delay
	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if retriable == nil || !retriable(err) {
			return zero, err
		}
		if attempt >= attempts {
			return zero, err
		}

		slog.Warn("attempt failed, retrying",
			"attempt", attempt, "of", attempts, "delay", delay, "error", err)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			}
		}
		delay = time.Duration(float64(delay) * backoff)
	}
}
