//go:build windows

package flock

import "golang.org/x/sys/windows"

// LockFileEx locks a one-byte range at offset zero.
const (
	rangeReserved = 0
	rangeLow      = 1
	rangeHigh     = 0
)

// Exclusive takes an exclusive lock on fd without blocking.
func Exclusive(fd uintptr) error {
	return windows.LockFileEx(
		windows.Handle(fd),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		rangeReserved, rangeLow, rangeHigh,
		&windows.Overlapped{},
	)
}

// Unlock releases a lock taken by Exclusive.
func Unlock(fd uintptr) error {
	return windows.UnlockFileEx(
		windows.Handle(fd),
		rangeReserved, rangeLow, rangeHigh,
		&windows.Overlapped{},
	)
}
