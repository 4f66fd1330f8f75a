package remote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/zkdrop/internal/constants"
	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/testutil"
)

type recordingObserver struct {
	mu   sync.Mutex
	seen []constants.SessionStatus
}

func (o *recordingObserver) ObservePoll(_ string, status constants.SessionStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, status)
}

func scripted(statuses ...constants.SessionStatus) (func(context.Context) (*Session, error), *int) {
	calls := 0
	return func(context.Context) (*Session, error) {
		s := statuses[len(statuses)-1]
		if calls < len(statuses) {
			s = statuses[calls]
		}
		calls++
		return &Session{ID: "sess", Status: s}, nil
	}, &calls
}

func TestPoller_RepeatedInProgressOnlyWaits(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 5, 20} {
		clk := testutil.NewFakeClock(time.Unix(0, 0))
		statuses := make([]constants.SessionStatus, 0, n+1)
		for i := 0; i < n; i++ {
			statuses = append(statuses, constants.SessionRunning)
		}
		statuses = append(statuses, constants.SessionSucceeded)
		fetch, calls := scripted(statuses...)

		p := testPoller(clk)
		p.Timeout = 0
		s, err := p.Wait(context.Background(), StageSession, "sess", fetch)

		require.NoError(t, err)
		assert.Equal(t, constants.SessionSucceeded, s.Status)
		assert.Equal(t, n+1, *calls)
		assert.Len(t, clk.Sleeps(), n)
		for _, d := range clk.Sleeps() {
			assert.Equal(t, 15*time.Second, d)
		}
	}
}

func TestPoller_PendingThenRunningThenSucceeded(t *testing.T) {
	t.Parallel()

	clk := testutil.NewFakeClock(time.Unix(0, 0))
	obs := &recordingObserver{}
	fetch, calls := scripted(
		constants.SessionPending,
		constants.SessionRunning,
		constants.SessionRunning,
		constants.SessionSucceeded,
	)

	p := testPoller(clk)
	p.Observer = obs
	s, err := p.Wait(context.Background(), StageSession, "sess", fetch)

	require.NoError(t, err)
	assert.Equal(t, constants.SessionSucceeded, s.Status)
	assert.Equal(t, 4, *calls)
	assert.Len(t, clk.Sleeps(), 3)
	assert.Equal(t, []constants.SessionStatus{
		constants.SessionPending,
		constants.SessionRunning,
		constants.SessionRunning,
		constants.SessionSucceeded,
	}, obs.seen)
}

func TestPoller_TerminalStatusesReturnImmediately(t *testing.T) {
	t.Parallel()

	for _, status := range []constants.SessionStatus{
		constants.SessionFailed,
		constants.SessionTimedOut,
		constants.SessionAborted,
		"SOMETHING_NEW",
	} {
		clk := testutil.NewFakeClock(time.Unix(0, 0))
		fetch, calls := scripted(status)

		s, err := testPoller(clk).Wait(context.Background(), StageSession, "sess", fetch)
		require.NoError(t, err)
		assert.Equal(t, status, s.Status)
		assert.Equal(t, 1, *calls)
		assert.Empty(t, clk.Sleeps())
	}
}

func TestPoller_MaxAttempts(t *testing.T) {
	t.Parallel()

	clk := testutil.NewFakeClock(time.Unix(0, 0))
	fetch, calls := scripted(constants.SessionRunning)

	p := testPoller(clk)
	p.MaxAttempts = 3
	_, err := p.Wait(context.Background(), StageSession, "sess", fetch)

	require.ErrorIs(t, err, zkerrors.ErrPollTimeout)
	assert.Equal(t, 3, *calls)
	assert.Len(t, clk.Sleeps(), 2)
}

func TestPoller_TimeoutBudget(t *testing.T) {
	t.Parallel()

	clk := testutil.NewFakeClock(time.Unix(0, 0))
	fetch, calls := scripted(constants.SessionRunning)

	p := testPoller(clk)
	p.Timeout = time.Minute
	_, err := p.Wait(context.Background(), StageSnark, "snark", fetch)

	require.ErrorIs(t, err, zkerrors.ErrPollTimeout)
	assert.Equal(t, 5, *calls)
	assert.Contains(t, err.Error(), "snark")
}

func TestPoller_CallerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testPoller(testutil.NewFakeClock(time.Unix(0, 0)))
	_, err := p.Wait(ctx, StageSession, "sess", func(ctx context.Context) (*Session, error) {
		return nil, ctx.Err()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, zkerrors.ErrPollTimeout)
}

func TestPoller_CancellationDuringSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := Poller{Interval: time.Hour, Logger: zerolog.Nop()}

	done := make(chan error, 1)
	go func() {
		_, err := p.Wait(ctx, StageSession, "sess", func(context.Context) (*Session, error) {
			return &Session{Status: constants.SessionRunning}, nil
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestPoller_FetchErrorPassesThrough(t *testing.T) {
	t.Parallel()

	p := testPoller(testutil.NewFakeClock(time.Unix(0, 0)))
	_, err := p.Wait(context.Background(), StageSession, "sess", func(context.Context) (*Session, error) {
		return nil, zkerrors.ErrRemoteTransport
	})
	require.ErrorIs(t, err, zkerrors.ErrRemoteTransport)
	assert.NotErrorIs(t, err, zkerrors.ErrPollTimeout)
}
