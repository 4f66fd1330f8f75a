//go:build unix

package flock_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/zkdrop/internal/flock"
)

func openLockFile(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- temp dir
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestExclusive(t *testing.T) {
	t.Parallel()

	t.Run("second holder is refused until unlock", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "prover.key.lock")
		f1 := openLockFile(t, path)
		f2 := openLockFile(t, path)

		require.NoError(t, flock.Exclusive(f1.Fd()))
		require.Error(t, flock.Exclusive(f2.Fd()))

		require.NoError(t, flock.Unlock(f1.Fd()))
		require.NoError(t, flock.Exclusive(f2.Fd()))
		require.NoError(t, flock.Unlock(f2.Fd()))
	})

	t.Run("unlock without lock is harmless", func(t *testing.T) {
		t.Parallel()
		f := openLockFile(t, filepath.Join(t.TempDir(), "x.lock"))
		assert.NoError(t, flock.Unlock(f.Fd()))
	})
}

func TestAcquire(t *testing.T) {
	t.Parallel()

	t.Run("creates the lock file and releases idempotently", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "prover.key.lock")

		release, err := flock.Acquire(context.Background(), path, time.Millisecond)
		require.NoError(t, err)
		assert.FileExists(t, path)

		require.NoError(t, release())
		require.NoError(t, release())
	})

	t.Run("waits for the current holder", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "prover.key.lock")

		release, err := flock.Acquire(context.Background(), path, time.Millisecond)
		require.NoError(t, err)

		var acquired atomic.Bool
		done := make(chan error, 1)
		go func() {
			second, acqErr := flock.Acquire(context.Background(), path, time.Millisecond)
			if acqErr == nil {
				acquired.Store(true)
				acqErr = second()
			}
			done <- acqErr
		}()

		time.Sleep(20 * time.Millisecond)
		assert.False(t, acquired.Load())

		require.NoError(t, release())
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.True(t, acquired.Load())
		case <-time.After(5 * time.Second):
			t.Fatal("second Acquire never returned")
		}
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "prover.key.lock")

		release, err := flock.Acquire(context.Background(), path, time.Millisecond)
		require.NoError(t, err)
		defer func() { _ = release() }()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = flock.Acquire(ctx, path, time.Millisecond)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("reports unopenable paths", func(t *testing.T) {
		t.Parallel()
		_, err := flock.Acquire(context.Background(), filepath.Join(t.TempDir(), "missing", "x.lock"), 0)
		require.Error(t, err)
	})
}
