// Package retry implements bounded retry with exponential backoff for
// calls to external services.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/zkdrop/internal/clock"
	"github.com/mrz1836/zkdrop/internal/constants"
	"github.com/mrz1836/zkdrop/internal/ctxutil"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts (default: 3).
	MaxAttempts int
	// InitialDelay is the delay before the first retry (default: 1s).
	InitialDelay time.Duration
	// MaxDelay is the maximum delay cap (default: 30s).
	MaxDelay time.Duration
	// Multiplier is the delay multiplier per attempt (default: 2.0).
	Multiplier float64
	// Clock drives the waits. Nil means the system clock.
	Clock clock.Clock
}

// DefaultConfig returns the default transport retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  constants.MaxRetryAttempts,
		InitialDelay: constants.InitialBackoff,
		MaxDelay:     constants.MaxBackoff,
		Multiplier:   constants.BackoffMultiplier,
	}
}

// Operation is a unit of work that can be retried.
type Operation[R any] interface {
	// Attempt performs a single attempt. success reports whether it succeeded.
	Attempt(ctx context.Context, attempt int) (result R, success bool, err error)

	// ShouldRetry reports whether a failed attempt with err may be retried.
	ShouldRetry(err error) bool

	// OnRetryWait is called before waiting for the next attempt.
	OnRetryWait(attempt int, delay time.Duration)
}

// Execute runs op until it succeeds, returns a non-retryable error or
// exhausts MaxAttempts. It returns the last result, the number of attempts
// made and the final error.
func Execute[R any](
	ctx context.Context,
	cfg Config,
	op Operation[R],
	logger zerolog.Logger,
) (result R, attempts int, finalErr error) {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt

		res, success, err := op.Attempt(ctx, attempt)
		if success {
			return res, attempts, nil
		}

		result = res
		finalErr = err

		if !op.ShouldRetry(err) {
			break
		}

		if attempt < maxAttempts {
			op.OnRetryWait(attempt, delay)
			logger.Debug().
				Err(err).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying after failure")

			if waitErr := ctxutil.Sleep(ctx, clk, delay); waitErr != nil {
				return result, attempts, waitErr
			}

			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	return result, attempts, finalErr
}

// SimpleOperation adapts plain functions to Operation.
type SimpleOperation[R any] struct {
	AttemptFunc     func(ctx context.Context, attempt int) (R, bool, error)
	ShouldRetryFunc func(err error) bool
	OnRetryWaitFunc func(attempt int, delay time.Duration)
}

// Attempt implements Operation.
func (s *SimpleOperation[R]) Attempt(ctx context.Context, attempt int) (R, bool, error) {
	return s.AttemptFunc(ctx, attempt)
}

// ShouldRetry implements Operation.
func (s *SimpleOperation[R]) ShouldRetry(err error) bool {
	if s.ShouldRetryFunc == nil {
		return false
	}
	return s.ShouldRetryFunc(err)
}

// OnRetryWait implements Operation.
func (s *SimpleOperation[R]) OnRetryWait(attempt int, delay time.Duration) {
	if s.OnRetryWaitFunc != nil {
		s.OnRetryWaitFunc(attempt, delay)
	}
}

// Do retries fn while shouldRetry accepts its error.
func Do[R any](
	ctx context.Context,
	cfg Config,
	shouldRetry func(error) bool,
	fn func(ctx context.Context) (R, error),
	logger zerolog.Logger,
) (R, error) {
	op := &SimpleOperation[R]{
		AttemptFunc: func(ctx context.Context, _ int) (R, bool, error) {
			res, err := fn(ctx)
			return res, err == nil, err
		},
		ShouldRetryFunc: shouldRetry,
	}
	res, _, err := Execute(ctx, cfg, op, logger)
	return res, err
}

var _ Operation[any] = (*SimpleOperation[any])(nil)
