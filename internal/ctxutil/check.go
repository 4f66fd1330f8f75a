// Package ctxutil provides context utility functions.
package ctxutil

import (
	"context"
	"time"

	"github.com/mrz1836/zkdrop/internal/clock"
)

// Canceled checks if the context has been canceled or exceeded its deadline.
// Returns the context error if done (Canceled or DeadlineExceeded), nil otherwise.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}

// Sleep waits for d on clk, returning early with the context error if ctx
// is done first. A non-positive d only checks the context.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
