package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/zkdrop/internal/config"
	"github.com/mrz1836/zkdrop/internal/server"
	"github.com/mrz1836/zkdrop/internal/signal"
)

// serveOptions holds the serve command flags.
type serveOptions struct {
	address        string
	requestTimeout time.Duration
	ephemeralKey   bool
}

// AddServeCommand adds the serve command to the root command.
func AddServeCommand(root *cobra.Command) {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP proof service",
		Long: `Start the HTTP service exposing POST /aes-verify, /rsa-encrypt and /rsa-verify.

Each endpoint accepts ?prove_mode=local|bonsai|bonsai_snark; any other value,
or none, proves locally.

Examples:
  zkdrop serve
  zkdrop serve --address 127.0.0.1:8085
  HOST_APP_PORT=9000 BONSAI_API_URL=https://api.bonsai.xyz BONSAI_API_KEY=... zkdrop serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.address, "address", "", "listen address (host:port)")
	cmd.Flags().DurationVar(&opts.requestTimeout, "request-timeout", 0, "deadline for one proof request")
	cmd.Flags().BoolVar(&opts.ephemeralKey, "ephemeral-key", false, "seal with a throwaway prover key")
	root.AddCommand(cmd)
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *serveOptions) error {
	logger := GetLogger()

	cfg, err := loadConfig(ctx, logger, &config.Config{
		Server: config.ServerConfig{Address: opts.address, RequestTimeout: opts.requestTimeout},
	})
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("ephemeral-key") {
		cfg.Prover.EphemeralKey = opts.ephemeralKey
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Address:        cfg.Server.Address,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, a.dispatcher, a.metrics, logger)

	if cfg.RequestTimeoutCapsRemote() {
		logger.Warn().
			Dur("request_timeout", cfg.Server.RequestTimeout).
			Dur("remote_timeout", cfg.Remote.Timeout).
			Msg("server.request_timeout is shorter than two remote stages; slow bonsai_snark jobs end with deadline_exceeded")
	}

	h := signal.NewHandler(ctx)
	defer h.Stop()

	logger.Info().
		Int("programs", a.registry.Len()).
		Bool("remote_enabled", a.dispatcher.RemoteEnabled()).
		Str("prover_key", hexKey(a.proverKey)).
		Msg("starting zkdrop")

	err = srv.Run(h.Context())
	if sig := h.Received(); sig != nil {
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
	}
	return err
}
