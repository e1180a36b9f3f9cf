package retry

import (
	"context"
	"math"
	"time"
)

// BackoffFunc returns how long to wait before the given attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff waits 2^attempt seconds between attempts.
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// Policy is a reusable bounded-retry policy shared by the thumbnail
// downloaders. Authentication and primary content fetches do not use it;
// those surface failures for an explicit user-triggered retry.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc

	// Retryable decides whether an error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(err error) bool
}

// DefaultPolicy is 3 attempts with 2^n seconds between them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff,
	}
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
// The last error is returned on final failure.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		wait := time.Duration(0)
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}
