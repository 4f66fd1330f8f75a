package remote

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// SnarkStage compresses the receipt of a succeeded session.
type SnarkStage struct {
	svc      Service
	poller   Poller
	verifier *zkvm.Verifier
	verify   bool
	logger   zerolog.Logger
}

// NewSnarkStage creates a compression stage. When verify is true the
// compressed receipt must verify against the program's image id.
func NewSnarkStage(svc Service, poller Poller, verifier *zkvm.Verifier, verify bool, logger zerolog.Logger) *SnarkStage {
	return &SnarkStage{
		svc:      svc,
		poller:   poller,
		verifier: verifier,
		verify:   verify,
		logger:   logger.With().Str("component", "snark_stage").Logger(),
	}
}

// Compress runs a compression session keyed by sessionID and returns the
// compressed receipt.
func (s *SnarkStage) Compress(ctx context.Context, prog programs.Program, sessionID string) (*zkvm.Receipt, error) {
	snarkID, err := s.svc.CreateSnark(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With().
		Str("program", prog.Name).
		Str("session_id", sessionID).
		Str("snark_id", snarkID).
		Logger()
	logger.Info().Msg("compression session created")

	sess, err := s.poller.Wait(ctx, StageSnark, snarkID, func(ctx context.Context) (*Session, error) {
		return s.svc.SnarkStatus(ctx, snarkID)
	})
	if err != nil {
		return nil, err
	}

	receipt, err := fetchReceipt(ctx, s.svc, sess)
	if err != nil {
		return nil, err
	}
	if s.verify {
		if err := s.verifier.Verify(receipt, prog.ImageID); err != nil {
			return nil, fmt.Errorf("snark %s: %w", snarkID, err)
		}
	}

	logger.Info().Bool("verified", s.verify).Msg("compressed receipt ready")
	return receipt, nil
}
