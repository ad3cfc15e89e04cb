package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig defines retry behavior for outbound calls
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []string
}

// DefaultRetryConfig returns sensible defaults for retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 1.5,
		RetryableErrors: []string{
			"timeout",
			"connection refused",
			"connection reset",
			"temporary failure",
			"eof",
			"429", // Rate limit
			"500", // Internal server error
			"502", // Bad gateway
			"503", // Service unavailable
			"504", // Gateway timeout
		},
	}
}

// WithRetry executes fn with exponential backoff. Context cancellation is
// never retried.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("operation succeeded after retry")
			}
			return result, nil
		}

		lastErr = err

		if !IsRetryable(err, cfg.RetryableErrors) {
			log.Debug().
				Err(err).
				Str("operation", operation).
				Int("attempt", attempt).
				Msg("non-retryable error, aborting")
			return zero, err
		}

		if attempt == attempts {
			break
		}

		delay := calculateBackoff(attempt, cfg.InitialDelay, cfg.MaxDelay, cfg.BackoffFactor)

		log.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("retry_delay", delay).
			Msg("retrying operation after error")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

// calculateBackoff computes exponential backoff delay with 10% jitter
func calculateBackoff(attempt int, initial, max time.Duration, factor float64) time.Duration {
	backoff := float64(initial) * math.Pow(factor, float64(attempt-1))
	if backoff > float64(max) {
		backoff = float64(max)
	}

	jitter := backoff * 0.1 * (2.0*rand.Float64() - 1.0)
	return time.Duration(backoff + jitter)
}

// IsRetryable reports whether err matches one of the retryable patterns.
// Context cancellation and breaker rejections are never retryable.
func IsRetryable(err error, retryableErrors []string) bool {
	if err == nil {
		return false
	}
	if IsCancellation(err) || errors.Is(err, ErrCircuitOpen) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryableErrors {
		if strings.Contains(errStr, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// IsCancellation reports whether err stems from context cancellation or an
// expired deadline.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
