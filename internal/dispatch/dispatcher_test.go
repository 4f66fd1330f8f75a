package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/zkdrop/internal/constants"
	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/executor"
	"github.com/mrz1836/zkdrop/internal/guest"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/prover"
	"github.com/mrz1836/zkdrop/internal/remote"
	"github.com/mrz1836/zkdrop/internal/retry"
	"github.com/mrz1836/zkdrop/internal/testutil"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

type stubLocal struct {
	calls int
	err   error
}

func (s *stubLocal) Execute(_ context.Context, prog programs.Program, _ []byte) (*zkvm.Receipt, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &zkvm.Receipt{ImageID: prog.ImageID, Journal: []byte(`"local"`)}, nil
}

type stubRemote struct {
	calls int
	err   error
}

func (s *stubRemote) Prove(_ context.Context, prog programs.Program, _ []byte) (*remote.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &remote.Result{
		SessionID: "sess-1",
		Receipt:   &zkvm.Receipt{ImageID: prog.ImageID, Journal: []byte(`"remote"`)},
	}, nil
}

type stubSnark struct {
	sessions []string
	err      error
}

func (s *stubSnark) Compress(_ context.Context, prog programs.Program, sessionID string) (*zkvm.Receipt, error) {
	s.sessions = append(s.sessions, sessionID)
	if s.err != nil {
		return nil, s.err
	}
	return &zkvm.Receipt{ImageID: prog.ImageID, Journal: []byte(`"snark"`)}, nil
}

type jobObservation struct {
	program string
	mode    Mode
	outcome string
}

type recorder struct {
	mu  sync.Mutex
	obs []jobObservation
}

func (r *recorder) ObserveJob(program string, mode Mode, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, jobObservation{program, mode, outcome})
}

func builtin(t *testing.T) *programs.Registry {
	t.Helper()
	reg, err := programs.Builtin()
	require.NoError(t, err)
	return reg
}

func TestDispatcher_RoutesByMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode        Mode
		journal     string
		localCalls  int
		remoteCalls int
		snarkCalls  int
		sessionID   string
	}{
		{ModeLocal, `"local"`, 1, 0, 0, ""},
		{ModeRemote, `"remote"`, 0, 1, 0, "sess-1"},
		{ModeRemoteWithCompression, `"snark"`, 0, 1, 1, "sess-1"},
	}

	for _, tc := range tests {
		t.Run(tc.mode.String(), func(t *testing.T) {
			t.Parallel()

			local, rem, snark, rec := &stubLocal{}, &stubRemote{}, &stubSnark{}, &recorder{}
			d := New(builtin(t), local, zerolog.Nop(), WithRemote(rem, snark), WithRecorder(rec))

			res, err := d.Run(context.Background(), programs.RSAEncrypter, []byte(`{}`), tc.mode)
			require.NoError(t, err)

			assert.Equal(t, tc.journal, string(res.Receipt.Journal))
			assert.Equal(t, tc.mode, res.Mode)
			assert.Equal(t, programs.RSAEncrypter, res.Program.Name)
			assert.Equal(t, tc.sessionID, res.SessionID)
			assert.NotEmpty(t, res.JobID)

			assert.Equal(t, tc.localCalls, local.calls)
			assert.Equal(t, tc.remoteCalls, rem.calls)
			assert.Len(t, snark.sessions, tc.snarkCalls)
			if tc.snarkCalls > 0 {
				assert.Equal(t, []string{"sess-1"}, snark.sessions)
			}
			assert.Equal(t, []jobObservation{{programs.RSAEncrypter, tc.mode, "ok"}}, rec.obs)
		})
	}
}

func TestDispatcher_UnknownProgram(t *testing.T) {
	t.Parallel()

	local, rec := &stubLocal{}, &recorder{}
	d := New(builtin(t), local, zerolog.Nop(), WithRecorder(rec))

	_, err := d.Run(context.Background(), "sha-verifier", nil, ModeLocal)
	require.ErrorIs(t, err, zkerrors.ErrUnknownProgram)
	assert.Zero(t, local.calls)
	assert.Equal(t, "unknown_program", rec.obs[0].outcome)
}

func TestDispatcher_RemoteNotConfigured(t *testing.T) {
	t.Parallel()

	d := New(builtin(t), &stubLocal{}, zerolog.Nop())
	assert.False(t, d.RemoteEnabled())

	for _, mode := range []Mode{ModeRemote, ModeRemoteWithCompression} {
		_, err := d.Run(context.Background(), programs.AESCTRVerifier, nil, mode)
		require.ErrorIs(t, err, zkerrors.ErrRemoteNotConfigured)
	}
}

func TestDispatcher_NoPartialResults(t *testing.T) {
	t.Parallel()

	rem, snark := &stubRemote{}, &stubSnark{err: zkerrors.NewRemoteJobFailed("snark-1", "FAILED", "boom")}
	d := New(builtin(t), &stubLocal{}, zerolog.Nop(), WithRemote(rem, snark))

	res, err := d.Run(context.Background(), programs.AESCTRVerifier, nil, ModeRemoteWithCompression)
	require.ErrorIs(t, err, zkerrors.ErrRemoteJobFailed)
	assert.Nil(t, res)
	assert.Equal(t, 1, rem.calls)

	rem.err = zkerrors.ErrIntegrityViolation
	res, err = d.Run(context.Background(), programs.AESCTRVerifier, nil, ModeRemoteWithCompression)
	require.ErrorIs(t, err, zkerrors.ErrIntegrityViolation)
	assert.Nil(t, res)
	assert.Len(t, snark.sessions, 1)
}

func TestDispatcher_InvalidMode(t *testing.T) {
	t.Parallel()

	d := New(builtin(t), &stubLocal{}, zerolog.Nop())
	_, err := d.Run(context.Background(), programs.AESCTRVerifier, nil, Mode(42))
	require.ErrorIs(t, err, zkerrors.ErrInvalidMode)
}

func aesVectorInput(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(guest.AESCTRInput{
		AESKeyHex:     "de15a7f6957c3eb9a86689106a98e3bea6f4b7222a63aa0ba7afda647d2ff98d",
		IVHex:         "01020300000000000000000000000000",
		PlaintextUTF8: "example fileeee ! ",
		CiphertextHex: "ef8d7b4abcaea121953432bd58aa69589312",
	})
	require.NoError(t, err)
	return data
}

// newIntegrated wires the real executor and remote stages against a fake service.
func newIntegrated(t *testing.T, script testutil.BonsaiScript) *Dispatcher {
	t.Helper()

	key, err := prover.EphemeralKey()
	require.NoError(t, err)
	local := executor.New(prover.NewEngine(key, zerolog.Nop()), zerolog.Nop())

	fake := testutil.NewFakeBonsai(t, script)
	clk := testutil.NewFakeClock(time.Unix(0, 0))
	client, err := remote.NewClient(fake.URL, fake.APIKey,
		remote.WithRetryConfig(retry.Config{MaxAttempts: 2, InitialDelay: time.Second, Clock: clk}))
	require.NoError(t, err)

	poller := remote.Poller{Interval: 15 * time.Second, Clock: clk, Logger: zerolog.Nop()}
	return New(builtin(t), local, zerolog.Nop(), WithRemote(
		remote.NewJobClient(client, poller, zerolog.Nop()),
		remote.NewSnarkStage(client, poller, nil, true, zerolog.Nop()),
	))
}

func TestDispatcher_AESEndToEnd(t *testing.T) {
	t.Parallel()

	d := newIntegrated(t, testutil.BonsaiScript{
		SessionStatuses: []constants.SessionStatus{constants.SessionPending, constants.SessionRunning},
	})
	prog, err := d.Registry().Resolve(programs.AESCTRVerifier)
	require.NoError(t, err)

	for _, mode := range []Mode{ModeLocal, ModeRemote, ModeRemoteWithCompression} {
		t.Run(mode.String(), func(t *testing.T) {
			res, err := d.Run(context.Background(), programs.AESCTRVerifier, aesVectorInput(t), mode)
			require.NoError(t, err)
			require.NoError(t, res.Receipt.Verify(prog.ImageID))

			var out guest.AESCTROutput
			require.NoError(t, res.Receipt.DecodeJournal(&out))
			assert.True(t, out.IsValid)
			assert.Equal(t, mode.IsRemote(), res.SessionID != "")
		})
	}
}

func TestDispatcher_RemoteFailureSurfacesMessage(t *testing.T) {
	t.Parallel()

	d := newIntegrated(t, testutil.BonsaiScript{SessionFinal: constants.SessionFailed, SessionError: "OOM"})

	_, err := d.Run(context.Background(), programs.AESCTRVerifier, aesVectorInput(t), ModeRemote)
	failed, ok := zkerrors.AsRemoteJobFailed(err)
	require.True(t, ok)
	assert.Equal(t, "OOM", failed.Message)
}
