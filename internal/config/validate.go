package config

import (
	"net/url"
	"time"

	"github.com/mrz1836/zkdrop/internal/errors"
)

// Poll interval bounds.
const (
	minPollInterval = time.Second
	maxPollInterval = 10 * time.Minute
	maxRetryCount   = 10
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - server address must not be empty and all server timeouts must be positive
//   - server write timeout must not be shorter than the request timeout
//   - prover max_concurrent cannot be negative
//   - remote url, when set, must be an absolute http(s) URL with an API key
//   - remote poll interval must be between 1 second and 10 minutes
//   - remote timeouts must be positive and max_poll_attempts non-negative
//   - retry max_attempts must be between 1 and 10 with a multiplier of at least 1
//
// server.request_timeout bounds every HTTP proof job, including both remote
// stages of bonsai_snark. It is not rejected when shorter than twice
// remote.timeout, since the CLI prove path never applies it; serve warns
// instead (see Config.RequestTimeoutCapsRemote).
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}
	if err := validateServerConfig(&cfg.Server); err != nil {
		return err
	}
	if err := validateProverConfig(&cfg.Prover); err != nil {
		return err
	}
	return validateRemoteConfig(&cfg.Remote)
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.Address == "" {
		return errors.Wrap(errors.ErrConfigInvalidServer, "server.address must not be empty")
	}
	if cfg.ReadTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidServer,
			"server.read_timeout must be positive, got %s", cfg.ReadTimeout)
	}
	if cfg.RequestTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidServer,
			"server.request_timeout must be positive, got %s", cfg.RequestTimeout)
	}
	if cfg.WriteTimeout < cfg.RequestTimeout {
		return errors.Wrapf(errors.ErrConfigInvalidServer,
			"server.write_timeout (%s) must not be shorter than server.request_timeout (%s)",
			cfg.WriteTimeout, cfg.RequestTimeout)
	}
	return nil
}

func validateProverConfig(cfg *ProverConfig) error {
	if cfg.MaxConcurrent < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidProver,
			"prover.max_concurrent cannot be negative, got %d", cfg.MaxConcurrent)
	}
	return nil
}

func validateRemoteConfig(cfg *RemoteConfig) error {
	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.Wrapf(errors.ErrConfigInvalidRemote,
				"remote.url must be an absolute http(s) URL, got %q", cfg.URL)
		}
		if cfg.APIKey == "" {
			return errors.Wrap(errors.ErrConfigInvalidRemote,
				"remote.api_key is required when remote.url is set")
		}
	}

	if cfg.PollInterval < minPollInterval || cfg.PollInterval > maxPollInterval {
		return errors.Wrapf(errors.ErrConfigInvalidRemote,
			"remote.poll_interval must be between %s and %s, got %s",
			minPollInterval, maxPollInterval, cfg.PollInterval)
	}
	if cfg.MaxPollAttempts < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidRemote,
			"remote.max_poll_attempts cannot be negative, got %d", cfg.MaxPollAttempts)
	}
	if cfg.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidRemote,
			"remote.timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.HTTPTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidRemote,
			"remote.http_timeout must be positive, got %s", cfg.HTTPTimeout)
	}

	if cfg.Retry.MaxAttempts < 1 || cfg.Retry.MaxAttempts > maxRetryCount {
		return errors.Wrapf(errors.ErrConfigInvalidRemote,
			"remote.retry.max_attempts must be between 1 and %d, got %d", maxRetryCount, cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Multiplier < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidRemote,
			"remote.retry.multiplier must be at least 1, got %g", cfg.Retry.Multiplier)
	}
	if cfg.Retry.InitialBackoff < 0 || cfg.Retry.MaxBackoff < cfg.Retry.InitialBackoff {
		return errors.Wrapf(errors.ErrConfigInvalidRemote,
			"remote.retry backoff range is invalid: initial %s, max %s",
			cfg.Retry.InitialBackoff, cfg.Retry.MaxBackoff)
	}
	return nil
}
