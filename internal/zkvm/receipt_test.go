package zkvm

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

func sealedReceipt(t *testing.T, priv ed25519.PrivateKey, kind SealKind, id Digest, journal []byte) *Receipt {
	t.Helper()
	claim := ClaimDigest(kind, id, journal)
	return &Receipt{
		ImageID: id,
		Journal: journal,
		Seal: Seal{
			Kind:      kind,
			PublicKey: priv.Public().(ed25519.PublicKey),
			Signature: ed25519.Sign(priv, claim[:]),
		},
	}
}

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv
}

func TestComputeImageID(t *testing.T) {
	a := ComputeImageID([]byte("program a"))
	assert.Equal(t, a, ComputeImageID([]byte("program a")), "digest must be deterministic")
	assert.NotEqual(t, a, ComputeImageID([]byte("program b")))
	assert.False(t, a.IsZero())
	assert.True(t, Digest{}.IsZero())
}

func TestDigest_TextRoundTrip(t *testing.T) {
	d := ComputeImageID([]byte("image"))
	assert.Len(t, d.String(), 64)

	parsed, err := ParseDigest(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	var back Digest
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back)

	_, err = ParseDigest("zz")
	require.ErrorIs(t, err, zkerrors.ErrInputDecode)
	_, err = ParseDigest("abcd")
	require.ErrorIs(t, err, zkerrors.ErrInputDecode)
}

func TestReceipt_Verify(t *testing.T) {
	priv := newKey(t)
	idA := ComputeImageID([]byte("program a"))
	idB := ComputeImageID([]byte("program b"))
	journal := []byte(`{"is_valid":true}`)

	t.Run("matching digest verifies", func(t *testing.T) {
		r := sealedReceipt(t, priv, SealComposite, idA, journal)
		require.NoError(t, r.Verify(idA))
	})

	t.Run("receipt for A fails against B", func(t *testing.T) {
		r := sealedReceipt(t, priv, SealComposite, idA, journal)
		require.ErrorIs(t, r.Verify(idB), zkerrors.ErrIntegrityViolation)
	})

	t.Run("relabelled image id fails seal check", func(t *testing.T) {
		r := sealedReceipt(t, priv, SealComposite, idA, journal)
		r.ImageID = idB
		require.ErrorIs(t, r.Verify(idB), zkerrors.ErrIntegrityViolation)
	})

	t.Run("tampered journal fails", func(t *testing.T) {
		r := sealedReceipt(t, priv, SealComposite, idA, journal)
		r.Journal = []byte(`{"is_valid":false}`)
		require.ErrorIs(t, r.Verify(idA), zkerrors.ErrIntegrityViolation)
	})

	t.Run("seal kind is bound", func(t *testing.T) {
		r := sealedReceipt(t, priv, SealComposite, idA, journal)
		r.Seal.Kind = SealSuccinct
		require.ErrorIs(t, r.Verify(idA), zkerrors.ErrIntegrityViolation)
	})

	t.Run("missing key fails", func(t *testing.T) {
		r := sealedReceipt(t, priv, SealComposite, idA, journal)
		r.Seal.PublicKey = nil
		require.ErrorIs(t, r.Verify(idA), zkerrors.ErrIntegrityViolation)
	})

	t.Run("nil receipt fails", func(t *testing.T) {
		var r *Receipt
		require.ErrorIs(t, r.Verify(idA), zkerrors.ErrIntegrityViolation)
	})
}

func TestVerifier_TrustedKeys(t *testing.T) {
	trusted := newKey(t)
	other := newKey(t)
	id := ComputeImageID([]byte("program"))

	v := NewVerifier(trusted.Public().(ed25519.PublicKey))
	require.NoError(t, v.Verify(sealedReceipt(t, trusted, SealComposite, id, []byte("{}")), id))
	require.ErrorIs(t, v.Verify(sealedReceipt(t, other, SealComposite, id, []byte("{}")), id), zkerrors.ErrIntegrityViolation)

	var open *Verifier
	require.NoError(t, open.Verify(sealedReceipt(t, other, SealComposite, id, []byte("{}")), id))
}

func TestParseTrustedKeys(t *testing.T) {
	priv := newKey(t)
	pub := priv.Public().(ed25519.PublicKey)

	keys, err := ParseTrustedKeys([]string{hex.EncodeToString(pub)})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, pub, keys[0])

	_, err = ParseTrustedKeys([]string{"nothex"})
	require.ErrorIs(t, err, zkerrors.ErrProverKey)
	_, err = ParseTrustedKeys([]string{"abcd"})
	require.ErrorIs(t, err, zkerrors.ErrProverKey)
}

func TestReceipt_MarshalAndBase64(t *testing.T) {
	priv := newKey(t)
	id := ComputeImageID([]byte("program"))
	r := sealedReceipt(t, priv, SealComposite, id, []byte(`{"is_valid":true,"message":"ok"}`))

	raw, err := r.Marshal()
	require.NoError(t, err)
	back, err := UnmarshalReceipt(raw)
	require.NoError(t, err)
	assert.Equal(t, r, back)

	encoded, err := EncodeBase64(r)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "H4sI"), "transport form is gzip then base64")

	decoded, err := DecodeBase64(encoded)
	require.NoError(t, err)
	require.NoError(t, decoded.Verify(id))

	var out struct {
		IsValid bool   `json:"is_valid"`
		Message string `json:"message"`
	}
	require.NoError(t, decoded.DecodeJournal(&out))
	assert.True(t, out.IsValid)
	assert.Equal(t, "ok", out.Message)
}

func TestDecodeErrors(t *testing.T) {
	_, err := UnmarshalReceipt(nil)
	require.ErrorIs(t, err, zkerrors.ErrReceiptDecode)

	_, err = UnmarshalReceipt([]byte("{not json"))
	require.ErrorIs(t, err, zkerrors.ErrReceiptDecode)

	_, err = DecodeBase64("%%%")
	require.ErrorIs(t, err, zkerrors.ErrReceiptDecode)

	_, err = DecodeBase64("aGVsbG8=")
	require.ErrorIs(t, err, zkerrors.ErrReceiptDecode)

	r := &Receipt{Journal: []byte("not json")}
	var v map[string]any
	require.ErrorIs(t, r.DecodeJournal(&v), zkerrors.ErrReceiptDecode)
}
