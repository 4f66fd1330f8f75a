package zkvm

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

// Verifier applies Receipt.Verify and, when configured with trusted prover
// keys, also requires the seal to come from one of them. A zero Verifier
// accepts any well-formed seal.
type Verifier struct {
	trusted []ed25519.PublicKey
}

// NewVerifier creates a Verifier restricted to the given prover keys.
func NewVerifier(trusted ...ed25519.PublicKey) *Verifier {
	return &Verifier{trusted: trusted}
}

// ParseTrustedKeys decodes hex-encoded Ed25519 public keys.
func ParseTrustedKeys(hexKeys []string) ([]ed25519.PublicKey, error) {
	keys := make([]ed25519.PublicKey, 0, len(hexKeys))
	for _, h := range hexKeys {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("%w: trusted key %q: %w", zkerrors.ErrProverKey, h, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: trusted key %q has %d bytes", zkerrors.ErrProverKey, h, len(raw))
		}
		keys = append(keys, ed25519.PublicKey(raw))
	}
	return keys, nil
}

// Verify checks r against the expected program digest.
func (v *Verifier) Verify(r *Receipt, expected Digest) error {
	if err := r.Verify(expected); err != nil {
		return err
	}
	if v == nil || len(v.trusted) == 0 {
		return nil
	}
	for _, k := range v.trusted {
		if bytes.Equal(k, r.Seal.PublicKey) {
			return nil
		}
	}
	return fmt.Errorf("%w: seal signed by untrusted prover key %x", zkerrors.ErrIntegrityViolation, r.Seal.PublicKey)
}
