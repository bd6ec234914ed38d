// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxAttempts          int           // Maximum number of attempts, first one included
	InitialBackoff       time.Duration // Wait before the second attempt
	MaxBackoff           time.Duration // Upper bound for any wait
	Multiplier           float64       // Backoff growth per attempt
	RetryableStatusCodes []int         // HTTP status codes that should trigger retry
	Operation            string        // Name used in log lines
}

// DefaultConfig returns the retry policy used for page fetches
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		RetryableStatusCodes: []int{
			http.StatusTooManyRequests,     // 429
			http.StatusInternalServerError, // 500
			http.StatusBadGateway,          // 502
			http.StatusServiceUnavailable,  // 503
			http.StatusGatewayTimeout,      // 504
		},
	}
}

// LaunchConfig returns the policy for starting a browser: few attempts, short waits
func LaunchConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 2
	cfg.InitialBackoff = 2 * time.Second
	cfg.MaxBackoff = 5 * time.Second
	cfg.Operation = "renderer launch"
	return cfg
}

// WithRetry executes fn until it succeeds, returns a permanent error, the
// attempts run out or ctx is done
func WithRetry(ctx context.Context, cfg Config, fn func() error) error {
	_, err := Value(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Value is WithRetry for operations that produce a result
func Value[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		out, err := fn()
		if err == nil {
			if attempt > 0 {
				log.Debug().
					Str("operation", cfg.Operation).
					Int("attempts", attempt+1).
					Msg("Retry succeeded")
			}
			return out, nil
		}

		lastErr = err

		if !shouldRetry(err, cfg) {
			log.Debug().
				Str("operation", cfg.Operation).
				Err(err).
				Msg("Error is not retryable")
			return zero, err
		}

		if attempt < cfg.MaxAttempts-1 {
			backoff := calculateBackoff(attempt, cfg)

			log.Debug().
				Str("operation", cfg.Operation).
				Int("attempt", attempt+1).
				Int("max_attempts", cfg.MaxAttempts).
				Dur("backoff", backoff).
				Err(err).
				Msg("Retrying after backoff")

			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			}
		}
	}

	log.Warn().
		Str("operation", cfg.Operation).
		Int("attempts", cfg.MaxAttempts).
		Err(lastErr).
		Msg("Max retry attempts exceeded")

	return zero, fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// calculateBackoff returns InitialBackoff * Multiplier^attempt, capped
func calculateBackoff(attempt int, cfg Config) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if cfg.MaxBackoff > 0 && backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}

// Retryable is implemented by errors that know whether a retry can help
type Retryable interface {
	Retryable() bool
}

// StatusCoder is implemented by errors that carry an HTTP status code
type StatusCoder interface {
	GetStatusCode() int
}

// shouldRetry classifies err. Unknown errors are retried.
func shouldRetry(err error, cfg Config) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.GetStatusCode()
		for _, c := range cfg.RetryableStatusCodes {
			if code == c {
				return true
			}
		}
		return false
	}

	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	// timeouts and unclassified errors get another attempt
	return true
}

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s - %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// GetStatusCode implements StatusCoder
func (e HTTPError) GetStatusCode() int {
	return e.StatusCode
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, status string, message string) HTTPError {
	return HTTPError{
		StatusCode: statusCode,
		Status:     status,
		Message:    message,
	}
}
