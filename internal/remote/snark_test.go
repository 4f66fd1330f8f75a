package remote

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/zkdrop/internal/constants"
	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/testutil"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

func proveThenCompress(t *testing.T, script testutil.BonsaiScript, verify bool) (*zkvm.Receipt, *jobFixture, error) {
	t.Helper()

	fx := newJobFixture(t, script)
	prog := testProgram(t, programs.AESCTRVerifier)

	res, err := fx.job.Prove(context.Background(), prog, aesInput(t))
	require.NoError(t, err)

	stage := NewSnarkStage(fx.client, testPoller(fx.clock), nil, verify, zerolog.Nop())
	r, err := stage.Compress(context.Background(), prog, res.SessionID)
	return r, fx, err
}

func TestSnarkStage_Compress(t *testing.T) {
	t.Parallel()

	r, fx, err := proveThenCompress(t, testutil.BonsaiScript{
		SnarkStatuses: []constants.SessionStatus{constants.SessionRunning, constants.SessionRunning},
	}, true)
	require.NoError(t, err)

	prog := testProgram(t, programs.AESCTRVerifier)
	assert.Equal(t, zkvm.SealSuccinct, r.Seal.Kind)
	require.NoError(t, r.Verify(prog.ImageID))
	assert.Equal(t, 3, fx.fake.Count("GET /snark/status/"))
	assert.Equal(t, 1, fx.fake.Count("GET /receipts/snark/"))
}

func TestSnarkStage_Failed(t *testing.T) {
	t.Parallel()

	_, _, err := proveThenCompress(t, testutil.BonsaiScript{
		SnarkFinal: constants.SessionFailed,
		SnarkError: "snark prover crashed",
	}, true)

	failed, ok := zkerrors.AsRemoteJobFailed(err)
	require.True(t, ok)
	assert.Equal(t, "snark prover crashed", failed.Message)
}

func TestSnarkStage_TamperedReceipt(t *testing.T) {
	t.Parallel()

	other := testProgram(t, programs.RSAEncrypter)
	script := testutil.BonsaiScript{
		MutateSnark: func(r *zkvm.Receipt) { r.ImageID = other.ImageID },
	}

	_, _, err := proveThenCompress(t, script, true)
	require.ErrorIs(t, err, zkerrors.ErrIntegrityViolation)

	r, _, err := proveThenCompress(t, script, false)
	require.NoError(t, err)
	assert.Equal(t, other.ImageID, r.ImageID)
}

func TestSnarkStage_UnknownSession(t *testing.T) {
	t.Parallel()

	fx := newJobFixture(t, testutil.BonsaiScript{})
	stage := NewSnarkStage(fx.client, testPoller(fx.clock), nil, true, zerolog.Nop())

	_, err := stage.Compress(context.Background(), testProgram(t, programs.AESCTRVerifier), "missing")
	require.ErrorIs(t, err, zkerrors.ErrRemoteTransport)
}
