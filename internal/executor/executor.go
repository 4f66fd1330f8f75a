// Package executor runs proofs on the local prover and verifies them
// before handing them out.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// Local proves on an in-process zkvm.Prover.
type Local struct {
	prover   zkvm.Prover
	verifier *zkvm.Verifier
	slots    *semaphore.Weighted
	logger   zerolog.Logger
}

// Option configures Local.
type Option func(*Local)

// WithVerifier restricts accepted receipts to trusted prover keys.
func WithVerifier(v *zkvm.Verifier) Option {
	return func(l *Local) {
		l.verifier = v
	}
}

// WithMaxConcurrent bounds the number of proofs running at once.
// Zero or negative means unbounded.
func WithMaxConcurrent(n int) Option {
	return func(l *Local) {
		if n > 0 {
			l.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// New creates a local executor.
func New(prover zkvm.Prover, logger zerolog.Logger, opts ...Option) *Local {
	l := &Local{
		prover: prover,
		logger: logger.With().Str("component", "local_executor").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type proveResult struct {
	receipt *zkvm.Receipt
	err     error
}

// Execute proves prog on input and returns the receipt once it verifies
// against prog.ImageID. The prove call runs on its own goroutine so a
// canceled ctx returns immediately; the abandoned proof finishes in the
// background and its result is dropped.
func (l *Local) Execute(ctx context.Context, prog programs.Program, input []byte) (*zkvm.Receipt, error) {
	if l.slots != nil {
		if err := l.slots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	done := make(chan proveResult, 1)
	go func() {
		if l.slots != nil {
			defer l.slots.Release(1)
		}
		r, err := l.prover.Prove(ctx, prog.Image, input)
		done <- proveResult{receipt: r, err: err}
	}()

	var res proveResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("prove %s: %w", prog.Name, res.err)
	}

	if err := l.verifier.Verify(res.receipt, prog.ImageID); err != nil {
		l.logger.Error().Err(err).Str("program", prog.Name).Msg("local receipt rejected")
		return nil, fmt.Errorf("prove %s: %w", prog.Name, err)
	}

	l.logger.Debug().
		Str("program", prog.Name).
		Dur("duration", time.Since(start)).
		Msg("local proof verified")
	return res.receipt, nil
}
