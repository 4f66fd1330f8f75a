// Package dispatch routes proof jobs to the local executor or the remote
// proving service according to the requested mode.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/remote"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// LocalExecutor proves in-process and verifies the receipt.
type LocalExecutor interface {
	Execute(ctx context.Context, prog programs.Program, input []byte) (*zkvm.Receipt, error)
}

// RemoteProver runs a verified proving session on the remote service.
type RemoteProver interface {
	Prove(ctx context.Context, prog programs.Program, input []byte) (*remote.Result, error)
}

// Compressor compresses the receipt of a succeeded remote session.
type Compressor interface {
	Compress(ctx context.Context, prog programs.Program, sessionID string) (*zkvm.Receipt, error)
}

// Recorder receives one observation per finished job.
type Recorder interface {
	ObserveJob(program string, mode Mode, outcome string, d time.Duration)
}

// Result is the outcome of a successful job.
type Result struct {
	JobID     string
	Program   programs.Program
	Mode      Mode
	SessionID string
	Receipt   *zkvm.Receipt
}

// Dispatcher resolves programs and drives each job to a verified receipt.
// It holds no per-job state and is safe for concurrent use.
type Dispatcher struct {
	registry *programs.Registry
	local    LocalExecutor
	remote   RemoteProver
	snark    Compressor
	recorder Recorder
	logger   zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRemote enables the remote modes.
func WithRemote(r RemoteProver, c Compressor) Option {
	return func(d *Dispatcher) {
		d.remote = r
		d.snark = c
	}
}

// WithRecorder sets the job metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// New creates a Dispatcher. Remote modes fail with ErrRemoteNotConfigured
// unless WithRemote is given.
func New(registry *programs.Registry, local LocalExecutor, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		local:    local,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the program registry.
func (d *Dispatcher) Registry() *programs.Registry {
	return d.registry
}

// RemoteEnabled reports whether remote modes are available.
func (d *Dispatcher) RemoteEnabled() bool {
	return d.remote != nil
}

// Run proves input with the named program in the given mode. It returns a
// verified receipt or the first fatal error, never a partial result.
func (d *Dispatcher) Run(ctx context.Context, name string, input []byte, mode Mode) (*Result, error) {
	jobID := uuid.NewString()
	start := time.Now()
	logger := d.logger.With().
		Str("job_id", jobID).
		Str("program", name).
		Str("mode", mode.String()).
		Logger()

	res, err := d.run(ctx, logger, name, input, mode)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = zkerrors.Classify(err).Code
	}
	if d.recorder != nil {
		d.recorder.ObserveJob(name, mode, outcome, elapsed)
	}

	if err != nil {
		logger.Warn().Err(err).Str("outcome", outcome).Dur("duration", elapsed).Msg("job failed")
		return nil, err
	}

	res.JobID = jobID
	logger.Info().
		Str("session_id", res.SessionID).
		Dur("duration", elapsed).
		Msg("job completed")
	return res, nil
}

func (d *Dispatcher) run(ctx context.Context, logger zerolog.Logger, name string, input []byte, mode Mode) (*Result, error) {
	prog, err := d.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("image_id", prog.ImageID.String()).Msg("job started")

	switch mode {
	case ModeLocal:
		r, err := d.local.Execute(ctx, prog, input)
		if err != nil {
			return nil, err
		}
		return &Result{Program: prog, Mode: mode, Receipt: r}, nil

	case ModeRemote, ModeRemoteWithCompression:
		if d.remote == nil || (mode == ModeRemoteWithCompression && d.snark == nil) {
			return nil, fmt.Errorf("%w: mode %s", zkerrors.ErrRemoteNotConfigured, mode)
		}
		base, err := d.remote.Prove(ctx, prog, input)
		if err != nil {
			return nil, err
		}
		res := &Result{Program: prog, Mode: mode, SessionID: base.SessionID, Receipt: base.Receipt}
		if mode == ModeRemote {
			return res, nil
		}

		compressed, err := d.snark.Compress(ctx, prog, base.SessionID)
		if err != nil {
			return nil, err
		}
		res.Receipt = compressed
		return res, nil

	default:
		return nil, fmt.Errorf("%w: %s", zkerrors.ErrInvalidMode, mode)
	}
}
