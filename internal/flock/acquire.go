package flock

import (
	"context"
	"fmt"
	"os"
	"time"
)

// DefaultRetry is the wait between lock attempts used when Acquire is given
// a non-positive interval.
const DefaultRetry = 50 * time.Millisecond

// Acquire opens (creating if needed) the lock file at path and blocks until
// it holds an exclusive lock on it or ctx is done. The returned release
// function unlocks and closes the file; it is safe to call more than once.
func Acquire(ctx context.Context, path string, retry time.Duration) (func() error, error) {
	if retry <= 0 {
		retry = DefaultRetry
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- path is derived from configuration
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	ticker := time.NewTicker(retry)
	defer ticker.Stop()

	for {
		if lockErr := Exclusive(f.Fd()); lockErr == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, fmt.Errorf("lock %s: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}

	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		unlockErr := Unlock(f.Fd())
		closeErr := f.Close()
		if unlockErr != nil {
			return fmt.Errorf("unlock %s: %w", path, unlockErr)
		}
		return closeErr
	}, nil
}
