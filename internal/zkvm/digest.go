// Package zkvm defines the boundary types of the proving collaborator:
// program digests, receipts and their seals, and the Prover interface.
package zkvm

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

// DigestWords is the number of 32-bit words in a Digest.
const DigestWords = 8

// Digest is a content-derived program identity: eight 32-bit words.
type Digest [DigestWords]uint32

// ComputeImageID derives the identity digest of an executable image.
// It is the SHA-256 of the image bytes read as little-endian words, so the
// same image always yields the same digest.
func ComputeImageID(image []byte) Digest {
	return DigestFromBytes(sha256.Sum256(image))
}

// DigestFromBytes interprets 32 bytes as eight little-endian words.
func DigestFromBytes(b [32]byte) Digest {
	var d Digest
	for i := range d {
		d[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return d
}

// Bytes returns the little-endian byte form of the digest.
func (d Digest) Bytes() [32]byte {
	var b [32]byte
	for i, w := range d {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

// String returns the hex encoding of Bytes, the form used on the wire.
func (d Digest) String() string {
	b := d.Bytes()
	return hex.EncodeToString(b[:])
}

// IsZero reports whether every word is zero.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest decodes the 64-character hex form produced by String.
func ParseDigest(s string) (Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("%w: digest hex: %w", zkerrors.ErrInputDecode, err)
	}
	if len(raw) != 32 {
		return Digest{}, fmt.Errorf("%w: digest must be 32 bytes, got %d", zkerrors.ErrInputDecode, len(raw))
	}
	var b [32]byte
	copy(b[:], raw)
	return DigestFromBytes(b), nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
