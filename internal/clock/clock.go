// Package clock provides an abstraction for time operations to improve testability.
// Instead of calling time.Now() or time.After() directly, code can use the Clock
// interface which can be replaced in tests to make waits instantaneous.
package clock

import "time"

// Clock is an interface for time operations.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// After waits for the duration to elapse on the system clock.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}
