package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type permanent struct{}

func (permanent) Error() string   { return "permanent" }
func (permanent) Retryable() bool { return false }

func fastConfig(attempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return cfg
}

func TestValue_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Value(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(5), func() error {
		calls++
		return permanent{}
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, permanent{}, err)
}

func TestWithRetry_StatusCodes(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return NewHTTPError(http.StatusNotFound, "Not Found", "")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = WithRetry(context.Background(), fastConfig(2), func() error {
		calls++
		return NewHTTPError(http.StatusServiceUnavailable, "Service Unavailable", "busy")
	})
	assert.Equal(t, 2, calls)
	var httpErr HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 503, httpErr.GetStatusCode())
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	calls := 0
	err := WithRetry(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCalculateBackoff(t *testing.T) {
	cfg := Config{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, cfg))
	assert.Equal(t, 5*time.Second, calculateBackoff(5, cfg))
}
