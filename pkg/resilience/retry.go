// Package resilience retries the connections the indexer makes before a run
// starts: the Redis vocabulary, the Postgres id store and the Kafka brokers.
// Errors that another attempt cannot fix, such as a rejected password, stop
// the loop at once.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Backoff shapes the delay between connection attempts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// Delay returns the wait before attempt+1, capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Factor, float64(attempt-1))
	d += d * b.Jitter * (2*rand.Float64() - 1)
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if d < 0 {
		d = float64(b.Initial)
	}
	return time.Duration(d)
}

type RetryConfig struct {
	MaxAttempts int
	Backoff     Backoff
	// Retryable reports whether err is worth another attempt. Nil retries
	// every error that is not wrapped by Permanent.
	Retryable func(err error) bool
}

// StartupConfig is used for every connection made at startup: five attempts
// over roughly three seconds.
func StartupConfig(retryable func(error) bool) RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		Backoff:     Backoff{Initial: 200 * time.Millisecond, Max: 2 * time.Second, Factor: 2, Jitter: 0.1},
		Retryable:   retryable,
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Retry returns it without another attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func (cfg RetryConfig) retryable(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	return cfg.Retryable == nil || cfg.Retryable(err)
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff.Initial = 100 * time.Millisecond
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff.Max = 10 * time.Second
	}
	if cfg.Backoff.Factor <= 0 {
		cfg.Backoff.Factor = 2
	}
	return cfg
}

// Retry calls fn until it succeeds, attempts run out, the error is not
// retryable or ctx is done.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("connected after retry", "attempt", attempt)
			}
			return nil
		}
		if !cfg.retryable(lastErr) {
			logger.Error("giving up on permanent error", "attempt", attempt, "error", lastErr)
			return fmt.Errorf("%s: %w", name, lastErr)
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, lastErr)
		}
		delay := cfg.Backoff.Delay(attempt)
		logger.Warn("connection failed, retrying", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "error", lastErr, "next_delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s aborted during backoff: %w", name, errors.Join(ctx.Err(), lastErr))
		}
	}
}
