package reliability

import (
	"context"
	"time"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

// Retry calls fn until it succeeds, reports a non-retryable failure, or
// maxRetries extra attempts are used. It waits ExponentialBackoff between
// attempts and gives up early when ctx ends.
func Retry(ctx context.Context, maxRetries int, base, cap time.Duration, fn func(attempt int) (retry bool, err error)) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var retry bool
		retry, err = fn(attempt)
		if err == nil || !retry || attempt == maxRetries {
			return err
		}
		timer := time.NewTimer(ExponentialBackoff(attempt, base, cap))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
