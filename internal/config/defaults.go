package config

import "github.com/mrz1836/zkdrop/internal/constants"

// DefaultConfig returns a new Config with default values.
// These defaults are the base layer that config files, environment
// variables and CLI flags override.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        constants.DefaultListenAddress,
			ReadTimeout:    constants.DefaultReadTimeout,
			WriteTimeout:   constants.DefaultWriteTimeout,
			RequestTimeout: constants.DefaultRequestTimeout,
		},
		Prover: ProverConfig{
			// KeyFile: empty resolves to ~/.zkdrop/prover.key.
			KeyFile: "",
		},
		Remote: RemoteConfig{
			Risc0Version:    constants.DefaultRisc0Version,
			PollInterval:    constants.DefaultPollInterval,
			MaxPollAttempts: constants.DefaultMaxPollAttempts,
			Timeout:         constants.DefaultRemoteTimeout,
			HTTPTimeout:     constants.DefaultHTTPTimeout,
			Retry: RetryConfig{
				MaxAttempts:    constants.MaxRetryAttempts,
				InitialBackoff: constants.InitialBackoff,
				MaxBackoff:     constants.MaxBackoff,
				Multiplier:     constants.BackoffMultiplier,
			},
			VerifyCompressed: true,
		},
	}
}
