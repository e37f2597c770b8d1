// Package retry wraps classified-fallible operations with exponential
// backoff and jitter. Only errors whose classification is marked
// retryable are retried; everything else propagates immediately.
package retry

import (
	"context"
	"math/rand"
	"time"

	"namdrunner/internal/errdefs"
	"namdrunner/internal/logger"
)

// Policy is immutable retry configuration.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	JitterBound time.Duration
}

// DefaultPolicy matches the per-operation defaults used across the
// cluster-facing components.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		JitterBound: 250 * time.Millisecond,
	}
}

// Do runs op, retrying retryable failures up to MaxAttempts with the
// delay doubling each attempt plus random jitter. When attempts are
// exhausted the last error is returned unchanged so its classification
// stays visible to the caller.
func Do(ctx context.Context, policy Policy, name string, op func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(policy, attempt)
			logger.Debug("%s: attempt %d/%d after %s (previous error: %v)",
				name, attempt+1, attempts, delay, lastErr)

			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(delay):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !errdefs.IsRetryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func backoffDelay(policy Policy, attempt int) time.Duration {
	delay := policy.BaseDelay << (attempt - 1)

	if policy.JitterBound > 0 {
		delay += time.Duration(rand.Int63n(int64(policy.JitterBound)))
	}

	return delay
}
