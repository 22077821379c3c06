package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPStatusError describes a non-2xx provider response. RetryAfter
// carries the server's Retry-After hint when one was sent.
type HTTPStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Permanent marks err as non-retryable regardless of classification.
// Use for invalid input, auth failures and malformed responses, which
// retrying cannot fix.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsTransient is the default classifier. HTTP 408/429/5xx, attempt
// timeouts and network timeouts are transient; other HTTP statuses,
// cancellation and Permanent-marked errors are not. Unknown errors
// default to transient, so callers opt out explicitly via Permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout:
			return true
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return true
		case statusErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return true
}

func retryAfterHint(err error) (time.Duration, bool) {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return statusErr.RetryAfter, true
	}
	return 0, false
}
