// Package prover is the local reference prover. It interprets program image
// manifests, runs the matching guest and seals the claim with Ed25519.
package prover

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/zkdrop/internal/ctxutil"
	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/guest"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// Engine implements zkvm.Prover and zkvm.Compressor.
type Engine struct {
	key    ed25519.PrivateKey
	logger zerolog.Logger
}

var (
	_ zkvm.Prover     = (*Engine)(nil)
	_ zkvm.Compressor = (*Engine)(nil)
)

// NewEngine creates an engine sealing with key.
func NewEngine(key ed25519.PrivateKey, logger zerolog.Logger) *Engine {
	return &Engine{
		key:    key,
		logger: logger.With().Str("component", "prover").Logger(),
	}
}

// PublicKey returns the key receipts from this engine are sealed with.
func (e *Engine) PublicKey() ed25519.PublicKey {
	return e.key.Public().(ed25519.PublicKey) //nolint:errcheck,forcetypeassert // ed25519 keys always return ed25519.PublicKey
}

// Prove runs the guest named by image on input and returns a composite receipt.
func (e *Engine) Prove(ctx context.Context, image, input []byte) (*zkvm.Receipt, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	manifest, err := programs.ParseImage(image)
	if err != nil {
		return nil, err
	}
	run, err := guest.Lookup(manifest.Entry)
	if err != nil {
		return nil, err
	}

	journal, err := run(input)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", manifest.Name, err)
	}

	// the guest may have run for a while; a canceled caller gets no receipt
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	r := e.seal(zkvm.SealComposite, zkvm.ComputeImageID(image), journal)
	e.logger.Debug().
		Str("program", manifest.Name).
		Str("image_id", r.ImageID.String()).
		Int("journal_bytes", len(journal)).
		Msg("receipt sealed")
	return r, nil
}

// Compress verifies r and re-seals its claim in succinct form.
func (e *Engine) Compress(ctx context.Context, r *zkvm.Receipt) (*zkvm.Receipt, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: nil receipt", zkerrors.ErrIntegrityViolation)
	}
	if err := r.Verify(r.ImageID); err != nil {
		return nil, err
	}
	if r.Seal.Kind != zkvm.SealComposite {
		return nil, fmt.Errorf("%w: cannot compress %s seal", zkerrors.ErrIntegrityViolation, r.Seal.Kind)
	}
	return e.seal(zkvm.SealSuccinct, r.ImageID, r.Journal), nil
}

func (e *Engine) seal(kind zkvm.SealKind, imageID zkvm.Digest, journal []byte) *zkvm.Receipt {
	claim := zkvm.ClaimDigest(kind, imageID, journal)
	return &zkvm.Receipt{
		ImageID: imageID,
		Journal: append([]byte(nil), journal...),
		Seal: zkvm.Seal{
			Kind:      kind,
			PublicKey: append([]byte(nil), e.PublicKey()...),
			Signature: ed25519.Sign(e.key, claim[:]),
		},
	}
}
