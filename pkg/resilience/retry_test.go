package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("connection refused")

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, Backoff: Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond}}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "connect", fastConfig(4), func() error {
		calls++
		if calls < 3 {
			return errDown
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "connect", fastConfig(3), func() error {
		calls++
		return errDown
	})
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsWhenNotRetryable(t *testing.T) {
	badPassword := errors.New("bad password")
	cfg := fastConfig(5)
	cfg.Retryable = func(err error) bool { return !errors.Is(err, badPassword) }

	calls := 0
	err := Retry(context.Background(), "connect", cfg, func() error {
		calls++
		return badPassword
	})
	assert.ErrorIs(t, err, badPassword)
	assert.Equal(t, 1, calls)
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "connect", fastConfig(5), func() error {
		calls++
		return Permanent(errDown)
	})
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, Backoff: Backoff{Initial: time.Hour, Max: time.Hour}}

	calls := 0
	err := Retry(ctx, "connect", cfg, func() error {
		calls++
		cancel()
		return errDown
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 1, calls)
}

func TestBackoff_Capped(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 3 * time.Second, Factor: 10, Jitter: 0.1}
	assert.Equal(t, 3*time.Second, b.Delay(5))
	assert.InDelta(t, float64(time.Second), float64(b.Delay(1)), float64(100*time.Millisecond))
}

func TestStartupConfig(t *testing.T) {
	cfg := StartupConfig(nil)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.True(t, cfg.retryable(errDown))
	assert.False(t, cfg.retryable(Permanent(errDown)))
}
