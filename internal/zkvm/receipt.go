package zkvm

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

// SealKind names the proof form carried by a Seal.
type SealKind string

// Seal kinds. A composite seal comes from the base proving job, a succinct
// seal from the compression stage.
const (
	SealComposite SealKind = "composite"
	SealSuccinct  SealKind = "succinct"
)

// claimDomain separates claim digests from any other signed message.
const claimDomain = "zkdrop/claim/v1"

// Seal is the opaque proof material attached to a receipt. The reference
// prover fills it with an Ed25519 attestation over the claim.
type Seal struct {
	Kind      SealKind `json:"kind"`
	PublicKey []byte   `json:"public_key"`
	Signature []byte   `json:"signature"`
}

// Receipt asserts that the program with ImageID committed Journal.
// A Receipt is immutable once produced.
type Receipt struct {
	ImageID Digest `json:"image_id"`
	Journal []byte `json:"journal"`
	Seal    Seal   `json:"seal"`
}

// ClaimDigest is the message a seal signs: the seal kind, the image id and
// the SHA-256 of the journal.
func ClaimDigest(kind SealKind, imageID Digest, journal []byte) [32]byte {
	journalHash := sha256.Sum256(journal)
	id := imageID.Bytes()

	var buf bytes.Buffer
	buf.WriteString(claimDomain)
	buf.WriteByte(0)
	buf.WriteString(string(kind))
	buf.WriteByte(0)
	buf.Write(id[:])
	buf.Write(journalHash[:])
	return sha256.Sum256(buf.Bytes())
}

// Verify checks that the receipt was produced by the program with the
// expected digest and that its seal covers the committed journal.
// Every failure wraps ErrIntegrityViolation.
func (r *Receipt) Verify(expected Digest) error {
	if r == nil {
		return fmt.Errorf("%w: nil receipt", zkerrors.ErrIntegrityViolation)
	}
	if r.ImageID != expected {
		return fmt.Errorf("%w: receipt image id %s does not match expected %s",
			zkerrors.ErrIntegrityViolation, r.ImageID, expected)
	}
	if len(r.Seal.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: seal public key has %d bytes", zkerrors.ErrIntegrityViolation, len(r.Seal.PublicKey))
	}
	claim := ClaimDigest(r.Seal.Kind, r.ImageID, r.Journal)
	if !ed25519.Verify(ed25519.PublicKey(r.Seal.PublicKey), claim[:], r.Seal.Signature) {
		return fmt.Errorf("%w: %s seal does not verify", zkerrors.ErrIntegrityViolation, r.Seal.Kind)
	}
	return nil
}

// DecodeJournal unmarshals the committed output into v.
func (r *Receipt) DecodeJournal(v any) error {
	if err := json.Unmarshal(r.Journal, v); err != nil {
		return fmt.Errorf("%w: journal: %w", zkerrors.ErrReceiptDecode, err)
	}
	return nil
}

// Marshal serializes the receipt in the artifact format the remote proving
// service stores and the local prover returns.
func (r *Receipt) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal receipt: %w", err)
	}
	return data, nil
}

// UnmarshalReceipt deserializes an artifact produced by Marshal.
func UnmarshalReceipt(data []byte) (*Receipt, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty artifact", zkerrors.ErrReceiptDecode)
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", zkerrors.ErrReceiptDecode, err)
	}
	return &r, nil
}
