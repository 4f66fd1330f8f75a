package config

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/zkdrop/internal/constants"
	"github.com/mrz1836/zkdrop/internal/errors"
)

// hostAppPortHost is the interface bound when only HOST_APP_PORT is given.
const hostAppPortHost = "0.0.0.0"

// newViperInstance creates a new Viper instance with the ZKDROP_ environment
// prefix, the compatibility variables and the defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The first listed variable that is set wins.
	_ = v.BindEnv("remote.url", constants.EnvPrefix+"_REMOTE_URL", constants.EnvBonsaiAPIURL)
	_ = v.BindEnv("remote.api_key", constants.EnvPrefix+"_REMOTE_API_KEY", constants.EnvBonsaiAPIKey)
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	applyHostAppPort(v, &cfg)
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper precedence.
// Configuration is loaded in the following order (highest precedence first):
//  1. Environment variables (ZKDROP_* prefix and compatibility variables)
//  2. Project config (.zkdrop/config.yaml)
//  3. Global config (~/.zkdrop/config.yaml)
//  4. Built-in defaults
//
// For CLI flag overrides, use LoadWithOverrides instead.
//
// Missing config files are not an error.
func Load(ctx context.Context) (*Config, error) {
	v := newViperInstance()

	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	cfg, err := unmarshalAndValidate(v)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("server.address", cfg.Server.Address).
		Bool("remote.enabled", cfg.RemoteEnabled()).
		Dur("remote.poll_interval", cfg.Remote.PollInterval).
		Dur("remote.timeout", cfg.Remote.Timeout).
		Msg("configuration loaded")

	return cfg, nil
}

// loadGlobalConfig loads ~/.zkdrop/config.yaml when it exists.
func loadGlobalConfig(v *viper.Viper) error {
	globalConfigPath, ok := getGlobalConfigPathIfExists()
	if !ok {
		return nil
	}

	v.SetConfigFile(globalConfigPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// getGlobalConfigPathIfExists returns the global config path if it exists.
func getGlobalConfigPathIfExists() (string, bool) {
	path, err := GlobalConfigPath()
	if err != nil {
		return "", false
	}
	if !fileExists(path) {
		return "", false
	}
	return path, true
}

// loadProjectConfig merges .zkdrop/config.yaml over what is loaded.
func loadProjectConfig(v *viper.Viper) error {
	projectConfigPath := ProjectConfigPath()
	if !fileExists(projectConfigPath) {
		return nil
	}

	v.SetConfigFile(projectConfigPath)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides.
// Only non-zero values in overrides are applied.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths. Either path
// can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// setDefaults configures all default values on the Viper instance.
// These defaults match DefaultConfig(). Keys must match the mapstructure tags.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("server.address", def.Server.Address)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout.String())
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout.String())
	v.SetDefault("server.request_timeout", def.Server.RequestTimeout.String())

	v.SetDefault("prover.key_file", def.Prover.KeyFile)
	v.SetDefault("prover.ephemeral_key", def.Prover.EphemeralKey)
	v.SetDefault("prover.trusted_keys", []string{})
	v.SetDefault("prover.max_concurrent", def.Prover.MaxConcurrent)

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.risc0_version", def.Remote.Risc0Version)
	v.SetDefault("remote.poll_interval", def.Remote.PollInterval.String())
	v.SetDefault("remote.max_poll_attempts", def.Remote.MaxPollAttempts)
	v.SetDefault("remote.timeout", def.Remote.Timeout.String())
	v.SetDefault("remote.http_timeout", def.Remote.HTTPTimeout.String())
	v.SetDefault("remote.retry.max_attempts", def.Remote.Retry.MaxAttempts)
	v.SetDefault("remote.retry.initial_backoff", def.Remote.Retry.InitialBackoff.String())
	v.SetDefault("remote.retry.max_backoff", def.Remote.Retry.MaxBackoff.String())
	v.SetDefault("remote.retry.multiplier", def.Remote.Retry.Multiplier)
	v.SetDefault("remote.verify_compressed", def.Remote.VerifyCompressed)
}

// applyHostAppPort honors HOST_APP_PORT when no address was configured
// explicitly.
func applyHostAppPort(v *viper.Viper, cfg *Config) {
	port := os.Getenv(constants.EnvHostAppPort)
	if port == "" || v.InConfig("server.address") || os.Getenv(constants.EnvPrefix+"_SERVER_ADDRESS") != "" {
		return
	}
	cfg.Server.Address = net.JoinHostPort(hostAppPortHost, port)
}

// applyOverrides merges non-zero override values into the config.
//
// Boolean fields (EphemeralKey, VerifyCompressed) cannot be overridden here
// because false is indistinguishable from unset. CLI code handles them with
// cmd.Flags().Changed.
func applyOverrides(cfg, overrides *Config) {
	if overrides.Server.Address != "" {
		cfg.Server.Address = overrides.Server.Address
	}
	if overrides.Server.RequestTimeout != 0 {
		cfg.Server.RequestTimeout = overrides.Server.RequestTimeout
		if cfg.Server.WriteTimeout < cfg.Server.RequestTimeout {
			cfg.Server.WriteTimeout = cfg.Server.RequestTimeout + constants.DefaultReadTimeout
		}
	}

	if overrides.Prover.KeyFile != "" {
		cfg.Prover.KeyFile = overrides.Prover.KeyFile
	}
	if len(overrides.Prover.TrustedKeys) > 0 {
		cfg.Prover.TrustedKeys = overrides.Prover.TrustedKeys
	}
	if overrides.Prover.MaxConcurrent != 0 {
		cfg.Prover.MaxConcurrent = overrides.Prover.MaxConcurrent
	}

	applyRemoteOverrides(&cfg.Remote, &overrides.Remote)
}

// applyRemoteOverrides applies remote-related overrides to the config.
func applyRemoteOverrides(cfg, overrides *RemoteConfig) {
	if overrides.URL != "" {
		cfg.URL = overrides.URL
	}
	if overrides.APIKey != "" {
		cfg.APIKey = overrides.APIKey
	}
	if overrides.Risc0Version != "" {
		cfg.Risc0Version = overrides.Risc0Version
	}
	if overrides.PollInterval != 0 {
		cfg.PollInterval = overrides.PollInterval
	}
	if overrides.MaxPollAttempts != 0 {
		cfg.MaxPollAttempts = overrides.MaxPollAttempts
	}
	if overrides.Timeout != 0 {
		cfg.Timeout = overrides.Timeout
	}
}

// viperDecoderOption configures mapstructure to decode durations from strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}
