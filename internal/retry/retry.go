// Package retry provides a retry mechanism for remote calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/aatumaykin/berrus-helper/internal/logger"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 10 * time.Second
)

// Config represents retry configuration.
type Config struct {
	MaxAttempts    int            // Maximum number of attempts (default: 3)
	InitialBackoff time.Duration  // Initial backoff duration (default: 1s)
	MaxBackoff     time.Duration  // Maximum backoff duration (default: 10s)
	Logger         *logger.Logger // Optional, attempts are logged at debug level
}

// StatusError is an HTTP response with an unexpected status code.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// DoWithRetry executes fn until it succeeds, returns a non-retryable error or
// the attempts run out. Context cancellation is checked between attempts.
func DoWithRetry[T any](ctx context.Context, fn func(ctx context.Context) (T, error), cfg Config) (T, error) {
	// Apply defaults
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialDelay
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxDelay
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Debug("retry succeeded", logger.Field{Key: "attempt", Value: attempt + 1})
			}
			return result, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		log.Debug("retryable error",
			logger.Field{Key: "attempt", Value: attempt + 1},
			logger.Field{Key: "max_attempts", Value: cfg.MaxAttempts},
			logger.Field{Key: "error", Value: err.Error()})

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		// Check context before waiting
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		backoff := calculateBackoff(attempt, cfg.InitialBackoff, cfg.MaxBackoff)
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// IsRetryable reports whether err is worth another attempt: timeouts, network
// failures, 429 and 5xx responses. Cancellation and 4xx responses are final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	errLower := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
		"eof",
		"too many requests",
		"rate limit",
	} {
		if strings.Contains(errLower, pattern) {
			return true
		}
	}

	// Unknown error - not retryable by default
	return false
}

// calculateBackoff calculates the backoff duration for a given attempt.
// Uses exponential backoff: 2^attempt * initial, capped at max.
func calculateBackoff(attempt int, initial, max time.Duration) time.Duration {
	backoff := time.Duration(1<<uint(attempt)) * initial
	if backoff > max || backoff <= 0 {
		return max
	}
	return backoff
}
