package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/zkdrop/internal/clock"
	"github.com/mrz1836/zkdrop/internal/constants"
	"github.com/mrz1836/zkdrop/internal/ctxutil"
	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

// Stage names used in logs and metrics.
const (
	StageSession = "session"
	StageSnark   = "snark"
)

// PollObserver receives every status the poller sees.
type PollObserver interface {
	ObservePoll(stage string, status constants.SessionStatus)
}

// Poller waits for a session to leave PENDING/RUNNING.
type Poller struct {
	// Interval is the fixed wait between polls (default: 15s).
	Interval time.Duration
	// MaxAttempts bounds the number of status fetches (0 means unbounded).
	MaxAttempts int
	// Timeout bounds the whole wait (0 means no bound besides ctx).
	Timeout time.Duration
	// Clock drives the waits and the timeout budget. Nil means the system clock.
	Clock clock.Clock
	// Observer is notified of each fetched status. Optional.
	Observer PollObserver
	// Logger receives progress.
	Logger zerolog.Logger
}

// DefaultPoller returns a poller with the default interval and timeout.
func DefaultPoller() Poller {
	return Poller{
		Interval:    constants.DefaultPollInterval,
		MaxAttempts: constants.DefaultMaxPollAttempts,
		Timeout:     constants.DefaultRemoteTimeout,
		Logger:      zerolog.Nop(),
	}
}

// Wait fetches the session status until it is terminal and returns that
// session. Repeated in-progress answers only cause another wait. It fails
// with ErrPollTimeout when the attempt or time budget runs out, and with the
// context error when ctx is done.
func (p Poller) Wait(ctx context.Context, stage, id string, fetch func(context.Context) (*Session, error)) (*Session, error) {
	clk := p.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}

	pollCtx := ctx
	var deadline time.Time
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
		deadline = clk.Now().Add(p.Timeout)
	}

	start := clk.Now()
	logger := p.Logger.With().Str("stage", stage).Str("session_id", id).Logger()

	for attempt := 1; ; attempt++ {
		s, err := fetch(pollCtx)
		if err != nil {
			return nil, p.stopError(ctx, pollCtx, stage, id, attempt, err)
		}
		if p.Observer != nil {
			p.Observer.ObservePoll(stage, s.Status)
		}

		if !s.Status.InProgress() {
			logger.Info().
				Str("status", s.Status.String()).
				Int("polls", attempt).
				Dur("waited", clk.Now().Sub(start)).
				Msg("session finished")
			return s, nil
		}

		logger.Debug().
			Str("status", s.Status.String()).
			Str("state", s.State).
			Int("attempt", attempt).
			Msg("session in progress")

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return nil, fmt.Errorf("%w: %s %s still %s after %d polls",
				zkerrors.ErrPollTimeout, stage, id, s.Status, attempt)
		}
		if !deadline.IsZero() && clk.Now().Add(interval).After(deadline) {
			return nil, fmt.Errorf("%w: %s %s still %s after %s",
				zkerrors.ErrPollTimeout, stage, id, s.Status, p.Timeout)
		}

		if err := ctxutil.Sleep(pollCtx, clk, interval); err != nil {
			return nil, p.stopError(ctx, pollCtx, stage, id, attempt, err)
		}
	}
}

// stopError maps an interrupted wait: the caller's cancellation passes
// through, exhaustion of the poller's own timeout becomes ErrPollTimeout.
func (p Poller) stopError(parent, pollCtx context.Context, stage, id string, attempt int, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if pollCtx.Err() != nil {
		return fmt.Errorf("%w: %s %s after %d polls: %w", zkerrors.ErrPollTimeout, stage, id, attempt, err)
	}
	return err
}
