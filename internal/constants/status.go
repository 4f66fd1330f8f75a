package constants

// SessionStatus is the raw status string reported by the remote proving
// service for a session or a compression session.
type SessionStatus string

// Session statuses reported by the remote proving service.
const (
	SessionPending   SessionStatus = "PENDING"
	SessionRunning   SessionStatus = "RUNNING"
	SessionSucceeded SessionStatus = "SUCCEEDED"
	SessionFailed    SessionStatus = "FAILED"
	SessionTimedOut  SessionStatus = "TIMED_OUT"
	SessionAborted   SessionStatus = "ABORTED"
)

// String returns the raw status string.
func (s SessionStatus) String() string {
	return string(s)
}

// InProgress reports whether the session is still pending or running.
func (s SessionStatus) InProgress() bool {
	return s == SessionPending || s == SessionRunning
}

// IsTerminal reports whether no further status change is expected.
// Unrecognized statuses are treated as terminal.
func (s SessionStatus) IsTerminal() bool {
	return !s.InProgress()
}
