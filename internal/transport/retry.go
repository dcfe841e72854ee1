package transport

import (
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/azfoundry/foundry-go/sdk/apierr"
)

const (
	// MaxRetriesLimit is the hard upper bound on configured retries.
	MaxRetriesLimit = 10

	// BackoffCeiling caps every delay, computed or server-hinted. It is
	// also the upper bound for a policy's InitialBackoff.
	BackoffCeiling = 60 * time.Second
)

// RetryPolicy bounds the retry loop. Construct through NewRetryPolicy so
// a policy that could stall callers for hours cannot exist.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// NewRetryPolicy validates the bounds and returns a policy, or a
// configuration error when the bounds are violated.
func NewRetryPolicy(maxRetries int, initialBackoff time.Duration) (RetryPolicy, error) {
	if maxRetries < 0 {
		return RetryPolicy{}, apierr.Configuration("max retries must be non-negative, got %d", maxRetries)
	}
	if maxRetries > MaxRetriesLimit {
		return RetryPolicy{}, apierr.Configuration("max retries %d exceeds limit of %d", maxRetries, MaxRetriesLimit)
	}
	if initialBackoff < 0 {
		return RetryPolicy{}, apierr.Configuration("initial backoff must be non-negative, got %v", initialBackoff)
	}
	if initialBackoff > BackoffCeiling {
		return RetryPolicy{}, apierr.Configuration("initial backoff %v exceeds ceiling of %v", initialBackoff, BackoffCeiling)
	}
	return RetryPolicy{MaxRetries: maxRetries, InitialBackoff: initialBackoff}, nil
}

// DefaultRetryPolicy returns the policy used when the caller configures
// nothing: 3 retries starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialBackoff: 1 * time.Second}
}

// retriable reports whether a status code is transient. The set is exactly
// 429, 502, 503, 504; every other 4xx/5xx is terminal.
func retriable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryAfterHint parses the Retry-After header as a non-negative integer
// number of seconds. Absent or unparsable values mean "no hint", never an
// error.
func retryAfterHint(h http.Header) (time.Duration, bool) {
	val := h.Get("Retry-After")
	if val == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(val)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// backoffDelay computes the wait before attempt+1. A server hint wins when
// present, capped at the ceiling. Otherwise exponential backoff from the
// policy's initial delay, capped, with multiplicative jitter in
// [0.75, 1.25] to spread concurrent retriers apart.
func backoffDelay(policy RetryPolicy, attempt int, h http.Header) time.Duration {
	if hint, ok := retryAfterHint(h); ok {
		if hint > BackoffCeiling {
			return BackoffCeiling
		}
		return hint
	}

	delay := float64(policy.InitialBackoff) * math.Pow(2, float64(attempt))
	if delay > float64(BackoffCeiling) {
		delay = float64(BackoffCeiling)
	}
	delay *= 0.75 + rand.Float64()*0.5
	if delay > float64(BackoffCeiling) {
		delay = float64(BackoffCeiling)
	}
	return time.Duration(delay)
}
