// Package config provides configuration management for zkdrop with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (ZKDROP_* prefix, plus BONSAI_API_URL, BONSAI_API_KEY
//     and HOST_APP_PORT)
//  3. Project config (.zkdrop/config.yaml)
//  4. Global config (~/.zkdrop/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import any other internal packages.
package config

import "time"

// Config is the root configuration structure for zkdrop.
type Config struct {
	// Server contains settings for the HTTP front end.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Prover contains settings for the local prover and receipt verification.
	Prover ProverConfig `yaml:"prover" mapstructure:"prover"`

	// Remote contains settings for the remote proving service.
	Remote RemoteConfig `yaml:"remote" mapstructure:"remote"`
}

// ServerConfig contains settings for the HTTP server.
type ServerConfig struct {
	// Address is the host:port the server listens on.
	// Default: "0.0.0.0:8085"
	Address string `yaml:"address" mapstructure:"address"`

	// ReadTimeout bounds reading one request.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`

	// WriteTimeout bounds writing one response. Must exceed RequestTimeout
	// so slow proofs can still be answered.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`

	// RequestTimeout bounds one proof job end to end.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// ProverConfig contains settings for the local prover.
type ProverConfig struct {
	// KeyFile is the path of the hex-encoded Ed25519 sealing key.
	// Empty means ~/.zkdrop/prover.key.
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`

	// EphemeralKey generates a throwaway key at startup instead of using KeyFile.
	EphemeralKey bool `yaml:"ephemeral_key" mapstructure:"ephemeral_key"`

	// TrustedKeys are hex-encoded Ed25519 public keys whose seals are accepted.
	// Empty accepts any well-formed seal.
	TrustedKeys []string `yaml:"trusted_keys" mapstructure:"trusted_keys"`

	// MaxConcurrent bounds concurrent local proofs (0 means unbounded).
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// RemoteConfig contains settings for the Bonsai-style proving service.
type RemoteConfig struct {
	// URL is the service base URL. Empty disables the remote modes.
	URL string `yaml:"url" mapstructure:"url"`

	// APIKey is sent in the x-api-key header. Prefer the BONSAI_API_KEY
	// environment variable over storing it in a file.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Risc0Version is sent in the x-risc0-version header.
	Risc0Version string `yaml:"risc0_version" mapstructure:"risc0_version"`

	// PollInterval is the fixed wait between status polls.
	// Default: 15s
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// MaxPollAttempts bounds status polls per stage (0 means unbounded).
	MaxPollAttempts int `yaml:"max_poll_attempts" mapstructure:"max_poll_attempts"`

	// Timeout is the overall deadline for one remote stage.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// HTTPTimeout bounds one HTTP exchange.
	HTTPTimeout time.Duration `yaml:"http_timeout" mapstructure:"http_timeout"`

	// Retry is the policy for transient transport failures.
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`

	// VerifyCompressed re-verifies the compressed receipt against the program.
	// Default: true
	VerifyCompressed bool `yaml:"verify_compressed" mapstructure:"verify_compressed"`
}

// RetryConfig contains the exponential backoff settings for HTTP calls.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// RemoteEnabled reports whether a proving service is configured.
func (c *Config) RemoteEnabled() bool {
	return c.Remote.URL != ""
}

// RequestTimeoutCapsRemote reports whether server.request_timeout can expire
// before a compressed remote proof has used its two stage timeouts. When it
// does, a slow HTTP job ends with deadline_exceeded instead of poll_timeout.
func (c *Config) RequestTimeoutCapsRemote() bool {
	return c.RemoteEnabled() && c.Server.RequestTimeout < 2*c.Remote.Timeout
}
