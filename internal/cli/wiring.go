package cli

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mrz1836/zkdrop/internal/config"
	"github.com/mrz1836/zkdrop/internal/dispatch"
	"github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/executor"
	"github.com/mrz1836/zkdrop/internal/logging"
	"github.com/mrz1836/zkdrop/internal/metrics"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/prover"
	"github.com/mrz1836/zkdrop/internal/remote"
	"github.com/mrz1836/zkdrop/internal/retry"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// app holds the components shared by the serve and prove commands.
type app struct {
	cfg        *config.Config
	registry   *programs.Registry
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	proverKey  ed25519.PublicKey
}

// loadConfig loads the layered configuration with CLI overrides applied.
func loadConfig(ctx context.Context, logger zerolog.Logger, overrides *config.Config) (*config.Config, error) {
	return config.LoadWithOverrides(logger.WithContext(ctx), overrides)
}

// loadProverKey returns the configured sealing key.
func loadProverKey(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ed25519.PrivateKey, error) {
	if cfg.Prover.EphemeralKey {
		logger.Warn().Msg("using an ephemeral prover key; receipts will not verify after restart")
		return prover.EphemeralKey()
	}

	path, err := cfg.ProverKeyPath()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrProverKey, err)
	}
	km := prover.NewKeyManager(path)
	if err := km.Load(ctx); err != nil {
		return nil, err
	}
	logger.Debug().Str("key_file", km.Path()).Msg("prover key loaded")
	return km.PrivateKey()
}

// remoteVerifier returns the verifier applied to remote receipts. Without
// trusted keys every well-formed seal is accepted.
func remoteVerifier(trusted []ed25519.PublicKey) *zkvm.Verifier {
	if len(trusted) == 0 {
		return nil
	}
	return zkvm.NewVerifier(trusted...)
}

// newApp builds the registry, the local prover and, when configured, the
// remote proving stages, and wires them into a dispatcher.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	registry, err := programs.Builtin()
	if err != nil {
		return nil, errors.Wrap(err, "load program registry")
	}

	key, err := loadProverKey(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	engine := prover.NewEngine(key, logger)

	trusted, err := zkvm.ParseTrustedKeys(cfg.Prover.TrustedKeys)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	local := executor.New(engine, logger,
		executor.WithVerifier(zkvm.NewVerifier(append(trusted, engine.PublicKey())...)),
		executor.WithMaxConcurrent(cfg.Prover.MaxConcurrent),
	)

	opts := []dispatch.Option{dispatch.WithRecorder(m)}
	if cfg.RemoteEnabled() {
		job, snark, err := newRemoteStages(cfg, remoteVerifier(trusted), m, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dispatch.WithRemote(job, snark))
		logger.Info().
			Str("remote.url", logging.SafeValue("remote.url", cfg.Remote.URL)).
			Str("risc0_version", cfg.Remote.Risc0Version).
			Msg("remote proving enabled")
	}

	return &app{
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatch.New(registry, local, logger, opts...),
		metrics:    m,
		proverKey:  engine.PublicKey(),
	}, nil
}

// newRemoteStages creates the remote job client and compression stage
// sharing one HTTP client and poll policy.
func newRemoteStages(cfg *config.Config, verifier *zkvm.Verifier, m *metrics.Metrics, logger zerolog.Logger) (*remote.JobClient, *remote.SnarkStage, error) {
	rc := cfg.Remote
	client, err := remote.NewClient(rc.URL, rc.APIKey,
		remote.WithHTTPClient(&http.Client{Timeout: rc.HTTPTimeout}),
		remote.WithVersion(rc.Risc0Version),
		remote.WithRetryConfig(retry.Config{
			MaxAttempts:  rc.Retry.MaxAttempts,
			InitialDelay: rc.Retry.InitialBackoff,
			MaxDelay:     rc.Retry.MaxBackoff,
			Multiplier:   rc.Retry.Multiplier,
		}),
		remote.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}

	poller := remote.Poller{
		Interval:    rc.PollInterval,
		MaxAttempts: rc.MaxPollAttempts,
		Timeout:     rc.Timeout,
		Observer:    m,
		Logger:      logger,
	}

	job := remote.NewJobClient(client, poller, logger, remote.WithVerifier(verifier))
	snark := remote.NewSnarkStage(client, poller, verifier, rc.VerifyCompressed, logger)
	return job, snark, nil
}
