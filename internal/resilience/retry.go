package resilience

import (
	"math/rand"
	"strings"
	"time"
)

// RetryConfig tunes the retry loop.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultRetryConfig is a sensible default for short request/response calls.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// RetryableFunc is one attempt of the operation being retried.
type RetryableFunc func() error

// IsRetryableError decides whether an error is worth another attempt.
type IsRetryableError func(error) bool

// Retry runs fn up to MaxAttempts times with exponential backoff between
// attempts. A nil isRetryable retries every error; otherwise the first
// non-retryable error returns immediately.
func Retry(fn RetryableFunc, config *RetryConfig, isRetryable IsRetryableError) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return err
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		sleep := backoff
		if config.Jitter {
			// Up to 25% extra, so synchronized callers fan out.
			sleep += time.Duration(rand.Int63n(int64(backoff)/4 + 1))
		}
		if sleep > config.MaxBackoff {
			sleep = config.MaxBackoff
		}
		time.Sleep(sleep)

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}
	return lastErr
}

var retryableFragments = []string{
	// Connection errors
	"connection refused",
	"connection reset",
	"connection closed",
	"transport is closing",
	"unavailable",
	"network is unreachable",
	"no route to host",
	// Timeouts
	"deadline exceeded",
	"timeout",
	"i/o timeout",
	// Resource exhaustion, often transient
	"resource exhausted",
	"too many connections",
	"rate limit",
}

// IsRetryableNetworkError reports whether the error looks like a transient
// network or service condition.
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
