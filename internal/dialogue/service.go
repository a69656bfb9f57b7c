// Package dialogue is the boundary to the external AI reply generator. The
// core only ever sees the Service interface; provider specifics, prompting,
// and retry policy live behind it.
package dialogue

import (
	"context"
	"strings"
	"time"
)

// Service produces an assistant reply for a child utterance.
type Service interface {
	Reply(ctx context.Context, message string) (string, error)
}

// RetryPolicy models retry-with-backoff as an explicit capability of the
// external-call boundary rather than inlined control flow.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy retries rate-limited calls up to three times with a
// linearly growing delay (5s, 10s).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 5 * time.Second
		},
	}
}

// withRetry runs call under the policy, retrying only rate-limit errors and
// honoring context cancellation between attempts.
func withRetry(ctx context.Context, policy RetryPolicy, call func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			var delay time.Duration
			if policy.Backoff != nil {
				delay = policy.Backoff(attempt - 1)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = call()
		if err == nil {
			return nil
		}
		if !isRateLimitError(err) {
			return err
		}
	}
	return err
}

// isRateLimitError reports whether the provider rejected the call for quota
// reasons. Only these are worth retrying; everything else fails fast.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
