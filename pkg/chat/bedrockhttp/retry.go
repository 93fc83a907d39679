package bedrockhttp

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/user/converse/pkg/chat"
)

// RetryPolicy controls how throttled or transiently failed calls are
// retried with exponential backoff. Only the blocking call path retries;
// a broken stream is surfaced to the caller instead.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 3 attempts, 1s initial delay, 2x multiplier, 30s max delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// isRetryable classifies transport failures. Throttling and server errors
// are retryable; client errors (bad request, auth, validation) are not.
func (p *RetryPolicy) isRetryable(err error) bool {
	var te *chat.TransportError
	if errors.As(err, &te) {
		switch {
		case te.StatusCode == http.StatusTooManyRequests:
			return true
		case te.StatusCode >= 500:
			return true
		case strings.Contains(te.Body, "ThrottlingException"):
			return true
		case te.StatusCode >= 400:
			return false
		}
		// Network-level failure with no status.
		return te.Err != nil
	}
	return false
}

// NextDelay returns the backoff delay for the given attempt number (1-indexed).
// The delay is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs fn up to MaxAttempts times, backing off between retries.
// Returns nil on success, or the last error if all attempts fail, the error
// is non-retryable, or the context ends first.
func (p *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.isRetryable(err) {
			return err
		}
		if attempt < p.MaxAttempts {
			select {
			case <-time.After(p.NextDelay(attempt)):
			case <-ctx.Done():
				return lastErr
			}
		}
	}
	return lastErr
}
