package errors

import (
	"context"
	"errors"
	"net/http"
)

// ErrorInfo holds the user-facing description of an error kind.
type ErrorInfo struct {
	// Code is a stable machine-readable identifier for the error kind.
	Code string
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
	// HTTPStatus is the status the HTTP boundary reports for this kind.
	HTTPStatus int
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries is the single source of truth for UserMessage, Actionable and Classify.
// Using a slice (not a map) because errors.Is() requires proper error chain traversal.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Client errors
	// ===================
	{
		err: ErrUnknownProgram,
		info: ErrorInfo{
			Code:       "unknown_program",
			Message:    "The requested program is not registered.",
			Action:     "Run 'zkdrop programs' to list the available programs.",
			HTTPStatus: http.StatusNotFound,
		},
	},
	{
		err: ErrInputDecode,
		info: ErrorInfo{
			Code:       "input_decode_error",
			Message:    "The request input could not be decoded.",
			Action:     "Check hex/base64 encodings and key or IV lengths.",
			HTTPStatus: http.StatusBadRequest,
		},
	},
	{
		err: ErrInvalidMode,
		info: ErrorInfo{
			Code:       "invalid_mode",
			Message:    "The execution mode is not supported.",
			Action:     "Use one of: local, bonsai, bonsai_snark.",
			HTTPStatus: http.StatusBadRequest,
		},
	},
	{
		err: ErrRemoteNotConfigured,
		info: ErrorInfo{
			Code:       "remote_not_configured",
			Message:    "Remote proving was requested but no proving service is configured.",
			Action:     "Set BONSAI_API_URL and BONSAI_API_KEY, or use prove_mode=local.",
			HTTPStatus: http.StatusServiceUnavailable,
		},
	},

	// ===================
	// Job failures
	// ===================
	{
		err: ErrIntegrityViolation,
		info: ErrorInfo{
			Code:       "integrity_violation",
			Message:    "The proof receipt does not match the expected program.",
			Action:     "Do not trust the output. Check the prover image and key configuration.",
			HTTPStatus: http.StatusBadGateway,
		},
	},
	{
		err: ErrRemoteJobFailed,
		info: ErrorInfo{
			Code:       "remote_job_failed",
			Message:    "The remote proving service reported a failed job.",
			Action:     "Inspect the service message and retry with a smaller input or locally.",
			HTTPStatus: http.StatusBadGateway,
		},
	},
	{
		err: ErrMalformedServiceResponse,
		info: ErrorInfo{
			Code:       "malformed_service_response",
			Message:    "The remote proving service returned an incomplete response.",
			Action:     "Check the service version header and contact the service operator.",
			HTTPStatus: http.StatusBadGateway,
		},
	},
	{
		err: ErrRemoteTransport,
		info: ErrorInfo{
			Code:       "remote_transport_error",
			Message:    "Could not reach the remote proving service.",
			Action:     "Check network access, the API URL and the API key.",
			HTTPStatus: http.StatusBadGateway,
		},
	},
	{
		err: ErrPollTimeout,
		info: ErrorInfo{
			Code:       "poll_timeout",
			Message:    "The remote proving job did not finish in time.",
			Action:     "Increase remote.timeout or remote.max_poll_attempts.",
			HTTPStatus: http.StatusGatewayTimeout,
		},
	},
	{
		err: ErrReceiptDecode,
		info: ErrorInfo{
			Code:       "receipt_decode_error",
			Message:    "The receipt could not be decoded.",
			Action:     "Make sure the receipt is the base64 value returned by zkdrop.",
			HTTPStatus: http.StatusBadGateway,
		},
	},
	{
		err: context.DeadlineExceeded,
		info: ErrorInfo{
			Code:       "deadline_exceeded",
			Message:    "The request deadline expired before the proof completed.",
			Action:     "Raise server.request_timeout or use a remote mode.",
			HTTPStatus: http.StatusGatewayTimeout,
		},
	},
	{
		err: context.Canceled,
		info: ErrorInfo{
			Code:       "canceled",
			Message:    "The request was canceled.",
			HTTPStatus: 499,
		},
	},

	// ===================
	// Startup
	// ===================
	{
		err: ErrInvalidImage,
		info: ErrorInfo{
			Code:       "invalid_image",
			Message:    "A program image could not be interpreted.",
			HTTPStatus: http.StatusInternalServerError,
		},
	},
	{
		err: ErrGuestNotFound,
		info: ErrorInfo{
			Code:       "guest_not_found",
			Message:    "The program image names an entrypoint this prover does not implement.",
			HTTPStatus: http.StatusInternalServerError,
		},
	},
	{
		err: ErrProverKey,
		info: ErrorInfo{
			Code:       "prover_key_error",
			Message:    "The prover signing key could not be loaded.",
			Action:     "Check prover.key_file or enable prover.ephemeral_key.",
			HTTPStatus: http.StatusInternalServerError,
		},
	},
	{
		err: ErrInvalidOutputFormat,
		info: ErrorInfo{
			Code:       "invalid_output_format",
			Message:    "Invalid output format specified.",
			Action:     "Use --output text or --output json.",
			HTTPStatus: http.StatusBadRequest,
		},
	},
}

// errorInfoMap provides O(1) lookup for direct sentinel error matches.
//
//nolint:gochecknoglobals // Pre-built mapping for O(1) lookup performance
var errorInfoMap = buildErrorInfoMap()

func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error.
// It first tries a direct map lookup for unwrapped sentinel errors,
// then falls back to errors.Is() traversal for wrapped errors.
func getErrorInfo(err error) ErrorInfo {
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{
		Code:       "internal_error",
		Message:    err.Error(),
		HTTPStatus: http.StatusInternalServerError,
	}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action. The action is empty when there is nothing the user can do.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}

// Classify returns the full ErrorInfo for err. A nil error classifies as the
// zero ErrorInfo.
func Classify(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}
	return getErrorInfo(err)
}

// IsClientError reports whether err was caused by the caller's request
// rather than by the service or a collaborator.
func IsClientError(err error) bool {
	status := Classify(err).HTTPStatus
	return status >= 400 && status < 500
}
