// Package errors provides centralized error handling for zkdrop.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the service. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for proof-job failures.
// These allow callers to check error kinds with errors.Is().
var (
	// ErrUnknownProgram indicates the requested program name is not registered.
	ErrUnknownProgram = errors.New("unknown program")

	// ErrInputDecode indicates malformed domain input (bad hex, base64, key length).
	ErrInputDecode = errors.New("input decode error")

	// ErrIntegrityViolation indicates a receipt does not match the expected
	// program identity or its seal does not verify.
	ErrIntegrityViolation = errors.New("receipt integrity violation")

	// ErrRemoteTransport indicates a network or service failure while talking
	// to the remote proving service.
	ErrRemoteTransport = errors.New("remote transport error")

	// ErrRemoteJobFailed indicates the remote service reported a terminal
	// failure status for a session.
	ErrRemoteJobFailed = errors.New("remote job failed")

	// ErrMalformedServiceResponse indicates a remote response lacked a field
	// the protocol guarantees (e.g. a succeeded session without a receipt URL).
	ErrMalformedServiceResponse = errors.New("malformed service response")

	// ErrPollTimeout indicates a polling loop exhausted its deadline or attempt budget.
	ErrPollTimeout = errors.New("polling timeout")

	// ErrInvalidMode indicates an execution mode value outside the known set.
	ErrInvalidMode = errors.New("invalid execution mode")

	// ErrInvalidImage indicates a program image could not be interpreted.
	ErrInvalidImage = errors.New("invalid program image")

	// ErrGuestNotFound indicates an image names an entrypoint no guest implements.
	ErrGuestNotFound = errors.New("guest entrypoint not found")

	// ErrDuplicateProgram indicates two registry entries share a name.
	ErrDuplicateProgram = errors.New("program already registered")

	// ErrReceiptDecode indicates a serialized receipt could not be decoded.
	ErrReceiptDecode = errors.New("receipt decode error")

	// ErrRemoteNotConfigured indicates a remote mode was requested without an API URL.
	ErrRemoteNotConfigured = errors.New("remote proving not configured")

	// ErrProverKey indicates the prover signing key could not be loaded.
	ErrProverKey = errors.New("prover key error")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidServer indicates an invalid server configuration value.
	ErrConfigInvalidServer = errors.New("invalid server configuration")

	// ErrConfigInvalidRemote indicates an invalid remote configuration value.
	ErrConfigInvalidRemote = errors.New("invalid remote configuration")

	// ErrConfigInvalidProver indicates an invalid prover configuration value.
	ErrConfigInvalidProver = errors.New("invalid prover configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")
)

// RemoteJobFailedError carries the status and message the remote service
// reported for a terminal failure. It unwraps to ErrRemoteJobFailed.
type RemoteJobFailedError struct {
	// SessionID is the remote session (or compression session) identifier.
	SessionID string
	// Status is the raw status string reported by the service.
	Status string
	// Message is the service's own error message, possibly empty.
	Message string
}

// Error implements the error interface.
func (e *RemoteJobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote job failed: session %s status %s", e.SessionID, e.Status)
	}
	return fmt.Sprintf("remote job failed: session %s status %s: %s", e.SessionID, e.Status, e.Message)
}

// Unwrap returns ErrRemoteJobFailed so errors.Is() matches the sentinel.
func (e *RemoteJobFailedError) Unwrap() error {
	return ErrRemoteJobFailed
}

// NewRemoteJobFailed builds a RemoteJobFailedError.
func NewRemoteJobFailed(sessionID, status, message string) *RemoteJobFailedError {
	return &RemoteJobFailedError{SessionID: sessionID, Status: status, Message: message}
}

// AsRemoteJobFailed extracts a RemoteJobFailedError from an error chain.
func AsRemoteJobFailed(err error) (*RemoteJobFailedError, bool) {
	var e *RemoteJobFailedError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
