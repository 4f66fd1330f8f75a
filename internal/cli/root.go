// Package cli provides the command-line interface for zkdrop.
package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/zkdrop/internal/errors"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// globalLogger stores the initialized logger for use by subcommands.
// It is set during PersistentPreRunE and read through GetLogger.
var (
	globalLogger   = zerolog.Nop() //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex    //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the initialized logger for use by subcommands.
//
// Before the root command's PersistentPreRunE has executed it returns a
// logger that discards all output. Safe for concurrent use.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

func setLogger(logger zerolog.Logger) {
	globalLoggerMu.Lock()
	globalLogger = logger
	globalLoggerMu.Unlock()
}

// newRootCmd creates the root command for the zkdrop CLI.
// initLogger is swapped in tests to keep log output off disk.
func newRootCmd(flags *GlobalFlags, info BuildInfo, initLogger func(verbose, quiet bool) zerolog.Logger) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "zkdrop",
		Short: "zkdrop - verifiable encryption proofs",
		Long: `zkdrop proves AES-CTR and RSA-OAEP key-wrapping computations and returns the
committed output together with a receipt bound to the program that produced it.

Proofs run on the local prover or on a Bonsai-compatible remote proving
service, optionally followed by SNARK compression.`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd, flags); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			if !IsValidOutputFormat(flags.Output) {
				return fmt.Errorf("%w: %q must be one of %v", errors.ErrInvalidOutputFormat, flags.Output, ValidOutputFormats())
			}

			setLogger(initLogger(flags.Verbose, flags.Quiet))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(cmd, flags)

	AddServeCommand(cmd)
	AddProveCommand(cmd)
	AddVerifyCommand(cmd)
	AddProgramsCommand(cmd)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
// Errors are printed to stderr together with a suggested action.
func Execute(ctx context.Context, info BuildInfo, stderr io.Writer) error {
	defer CloseLogFile()

	flags := &GlobalFlags{}
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(flags, info, InitLogger)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		printError(stderr, err)
	}
	return err
}

// printError writes err and, when known, the action that resolves it.
func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	if _, action := errors.Actionable(err); action != "" {
		_, _ = fmt.Fprintf(w, "Hint: %s\n", action)
	}
}
