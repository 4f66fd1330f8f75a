// Package logging provides logging utilities including sensitive data filtering.
// This package contains hooks and utilities for zerolog that help ensure
// API keys and key material are never written to log files.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue is the replacement string for sensitive data.
const RedactedValue = "[REDACTED]"

// redaction pairs a pattern with its replacement template.
type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// sensitivePatterns detect API keys, symmetric keys and private keys in
// free text and JSON log lines.
var sensitivePatterns = []redaction{ //nolint:gochecknoglobals // Package-level patterns for reuse
	// JSON fields carrying secrets, e.g. {"aes_key_hex":"..."} or {"api_key":"..."}
	{
		regexp.MustCompile(`(?i)"(aes_key_hex|api_key|x-api-key|private_key|prover_key|password|secret)"\s*:\s*"[^"]*"`),
		`"$1":"` + RedactedValue + `"`,
	},

	// Service headers and environment assignments: x-api-key: ..., BONSAI_API_KEY=...
	{
		regexp.MustCompile(`(?i)(x-api-key|bonsai_api_key|zkdrop_remote_api_key)(\s*[:=]\s*)["']?[^\s"',}]+["']?`),
		`$1$2` + RedactedValue,
	},

	// Generic key assignments (api_key=..., aes_key_hex: ...)
	{
		regexp.MustCompile(`(?i)(api[_-]?key|aes_key_hex)(\s*[:=]\s*)["']?[a-zA-Z0-9_-]{8,}["']?`),
		`$1$2` + RedactedValue,
	},

	// Bearer tokens
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`), RedactedValue},

	// Generic secret patterns
	{regexp.MustCompile(`(?i)(secret|password|passwd)\s*[:=]\s*["']?[^\s"']{8,}["']?`), RedactedValue},

	// PEM private keys
	{regexp.MustCompile(`-----BEGIN[A-Z ]*PRIVATE KEY-----[\s\S]*?-----END[A-Z ]*PRIVATE KEY-----`), RedactedValue},

	// Hex-encoded Ed25519 private keys (seed and public half, 128 hex chars)
	{regexp.MustCompile(`\b[0-9a-fA-F]{128}\b`), RedactedValue},
}

// sensitiveFieldNames contains field names whose values are always redacted.
// Case-insensitive substring matching is performed.
var sensitiveFieldNames = []string{ //nolint:gochecknoglobals // Package-level patterns for reuse
	"api_key",
	"apikey",
	"api-key",
	"aes_key",
	"private_key",
	"privatekey",
	"prover_key",
	"password",
	"passwd",
	"secret",
	"bearer",
	"authorization",
}

// SensitiveDataHook is a zerolog hook that flags log entries whose message
// contains sensitive data.
type SensitiveDataHook struct{}

// NewSensitiveDataHook creates a new SensitiveDataHook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements the zerolog.Hook interface.
// Zerolog hooks cannot rewrite the message; redaction of the written bytes
// is done by FilteringWriter, and call sites use SafeValue for fields.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData checks if a string contains any sensitive data patterns.
func ContainsSensitiveData(s string) bool {
	for _, r := range sensitivePatterns {
		if r.pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces sensitive data in value with [REDACTED].
func FilterSensitiveValue(value string) string {
	result := value
	for _, r := range sensitivePatterns {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// IsSensitiveFieldName checks if a field name indicates sensitive data.
func IsSensitiveFieldName(fieldName string) bool {
	lowerName := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFieldNames {
		if strings.Contains(lowerName, sensitive) {
			return true
		}
	}
	return false
}

// RedactIfSensitive returns [REDACTED] if the field name indicates sensitive data,
// otherwise the value with sensitive patterns filtered.
func RedactIfSensitive(fieldName, value string) string {
	if IsSensitiveFieldName(fieldName) {
		return RedactedValue
	}
	return FilterSensitiveValue(value)
}

// SafeValue returns a filtered value for a field, redacting sensitive data.
//
// Usage:
//
//	log.Info().Str("remote.url", logging.SafeValue("remote.url", cfg.Remote.URL)).Msg("remote proving enabled")
func SafeValue(fieldName, value string) string {
	return RedactIfSensitive(fieldName, value)
}

// FilteringWriter wraps an io.Writer and filters sensitive data from output.
// The file logger is wrapped with it so secrets never reach disk.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter creates a new FilteringWriter that wraps the given writer.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer, filtering sensitive data before writing.
func (fw *FilteringWriter) Write(p []byte) (n int, err error) {
	filtered := FilterSensitiveValue(string(p))
	if _, err = fw.w.Write([]byte(filtered)); err != nil {
		return 0, err
	}
	// Report the original length so callers don't see a short write.
	return len(p), nil
}
