// Package constants provides centralized constant values used throughout zkdrop.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory and file names used by zkdrop.
const (
	// AppHome is the hidden directory name where zkdrop stores its data.
	AppHome = ".zkdrop"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// CLILogFileName is the name of the rotating service log file.
	CLILogFileName = "zkdrop.log"

	// ConfigFileName is the name of the YAML config file in global and project dirs.
	ConfigFileName = "config.yaml"

	// ProverKeyFileName is the default file name of the prover's Ed25519 key.
	ProverKeyFileName = "prover.key"
)

// Log rotation settings for the file logger.
const (
	LogMaxSizeMB  = 10
	LogMaxBackups = 5
	LogMaxAgeDays = 30
	LogCompress   = true
)

// Environment variable names.
const (
	// EnvPrefix is the viper prefix for all ZKDROP_* variables.
	EnvPrefix = "ZKDROP"

	// EnvHome overrides the zkdrop home directory.
	EnvHome = "ZKDROP_HOME"

	// EnvBonsaiAPIURL is the proving service URL variable honored for compatibility.
	EnvBonsaiAPIURL = "BONSAI_API_URL"

	// EnvBonsaiAPIKey is the proving service key variable honored for compatibility.
	EnvBonsaiAPIKey = "BONSAI_API_KEY"

	// EnvHostAppPort sets the HTTP listen port when no address is configured.
	EnvHostAppPort = "HOST_APP_PORT"
)

// Server defaults.
const (
	// DefaultListenAddress is the address the HTTP server binds to.
	DefaultListenAddress = "0.0.0.0:8085"

	// DefaultRequestTimeout bounds one proof request end to end. It leaves
	// room for both remote stages of a compressed proof.
	DefaultRequestTimeout = 2 * time.Hour

	// DefaultReadTimeout bounds reading a request.
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout bounds writing a response; proofs can be slow.
	DefaultWriteTimeout = DefaultRequestTimeout + 5*time.Minute

	// MaxRequestBodyBytes caps the JSON body accepted by the proof endpoints.
	MaxRequestBodyBytes = 1 << 20
)

// Remote proving defaults.
const (
	// DefaultPollInterval is the fixed backoff between session status polls.
	DefaultPollInterval = 15 * time.Second

	// DefaultRemoteTimeout is the deadline for one remote stage (session or
	// compression). Two stages fit inside DefaultRequestTimeout.
	DefaultRemoteTimeout = 55 * time.Minute

	// DefaultMaxPollAttempts bounds status polls per stage (0 means unbounded).
	DefaultMaxPollAttempts = 0

	// DefaultHTTPTimeout bounds a single HTTP exchange with the service.
	DefaultHTTPTimeout = 2 * time.Minute

	// DefaultRisc0Version is sent in the x-risc0-version header.
	DefaultRisc0Version = "1.2.0"
)

// Retry configuration defaults for transient transport failures.
const (
	// MaxRetryAttempts is the maximum number of attempts for one HTTP call.
	MaxRetryAttempts = 3

	// InitialBackoff is the delay before the first retry.
	InitialBackoff = 1 * time.Second

	// MaxBackoff caps the exponential backoff delay.
	MaxBackoff = 30 * time.Second

	// BackoffMultiplier grows the delay between attempts.
	BackoffMultiplier = 2.0
)

// HTTP headers understood by the remote proving service.
const (
	HeaderAPIKey       = "x-api-key"
	HeaderRisc0Version = "x-risc0-version"
)
