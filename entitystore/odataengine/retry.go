package odataengine

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

const (
	defaultMaxAttempts  = 1
	defaultBaseDelay    = 50 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// retryPolicy configures exponential backoff for reads. One attempt means no retries.
type retryPolicy struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
}

// backoff returns baseDelay * 2^(attempt-1) plus jitter.
func (p retryPolicy) backoff(attempt int) time.Duration {
	delay := p.baseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * p.jitterFactor //nolint:gosec // math/rand is sufficient for jitter

	return delay + time.Duration(jitter)
}

// isRetryable reports whether a failed request may be sent again.
// Only GET requests are retried, on transport errors and on 429, 502, 503 and 504 responses.
// Canceled or expired contexts fail fast.
func isRetryable(method string, status int, err error) bool {
	if method != http.MethodGet {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch status {
	case 0, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// RetryOption configures the retry behavior of WithRetry.
type RetryOption func(*retryPolicy) error

// WithRetry retries reads failing with a transient error using exponential backoff.
// Without further options a read is tried up to 3 times.
func WithRetry(options ...RetryOption) Option {
	return func(s *Service) error {
		policy := defaultRetryPolicy()
		policy.maxAttempts = 3

		for _, option := range options {
			if err := option(&policy); err != nil {
				return err
			}
		}

		s.retry = policy

		return nil
	}
}

// WithMaxAttempts sets the maximum number of attempts, including the first one.
func WithMaxAttempts(attempts int) RetryOption {
	return func(policy *retryPolicy) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		policy.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the delay before the first retry. Every further retry doubles it.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(policy *retryPolicy) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		policy.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the random share, from 0.0 to 1.0, added on top of each delay.
func WithJitterFactor(factor float64) RetryOption {
	return func(policy *retryPolicy) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		policy.jitterFactor = factor

		return nil
	}
}
