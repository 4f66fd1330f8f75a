// Package testutil provides testing utilities for zkdrop.
//
// This package contains mock errors, a fake clock and a scripted fake of
// the remote proving service. It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
var (
	// ErrMockNetwork indicates a mock network error occurred (used in tests).
	ErrMockNetwork = errors.New("network error")

	// ErrMockProver indicates a mock prover failure (used in tests).
	ErrMockProver = errors.New("prover failed")

	// ErrMockAPIError indicates a mock API error occurred (used in tests).
	ErrMockAPIError = errors.New("API error")
)
