package remote

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/zkdrop/internal/constants"
	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// JobState is the lifecycle position of a remote proving job.
type JobState int

// Job states. A job moves Created → Uploading → Polling and ends in
// Succeeded or Failed.
const (
	JobCreated JobState = iota
	JobUploading
	JobPolling
	JobSucceeded
	JobFailed
)

// String returns the state name.
func (s JobState) String() string {
	switch s {
	case JobCreated:
		return "created"
	case JobUploading:
		return "uploading"
	case JobPolling:
		return "polling"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	default:
		return fmt.Sprintf("JobState(%d)", int(s))
	}
}

// Result is a verified receipt from a remote session.
type Result struct {
	SessionID string
	Receipt   *zkvm.Receipt
}

// JobClient runs one proving session per Prove call.
type JobClient struct {
	svc      Service
	poller   Poller
	verifier *zkvm.Verifier
	logger   zerolog.Logger
	onState  func(JobState)
}

// JobOption configures a JobClient.
type JobOption func(*JobClient)

// WithVerifier restricts accepted receipts to trusted prover keys.
func WithVerifier(v *zkvm.Verifier) JobOption {
	return func(j *JobClient) {
		j.verifier = v
	}
}

// WithStateHook is called on every state transition.
func WithStateHook(fn func(JobState)) JobOption {
	return func(j *JobClient) {
		j.onState = fn
	}
}

// NewJobClient creates a JobClient.
func NewJobClient(svc Service, poller Poller, logger zerolog.Logger, opts ...JobOption) *JobClient {
	j := &JobClient{
		svc:    svc,
		poller: poller,
		logger: logger.With().Str("component", "remote_job").Logger(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Prove uploads the program image and input, runs a session and returns
// the downloaded receipt once it verifies against the program's image id.
func (j *JobClient) Prove(ctx context.Context, prog programs.Program, input []byte) (*Result, error) {
	j.transition(JobCreated)

	res, err := j.run(ctx, prog, input)
	if err != nil {
		j.transition(JobFailed)
		return nil, err
	}
	j.transition(JobSucceeded)
	return res, nil
}

func (j *JobClient) run(ctx context.Context, prog programs.Program, input []byte) (*Result, error) {
	imageID := zkvm.ComputeImageID(prog.Image)
	if imageID != prog.ImageID {
		return nil, fmt.Errorf("%w: image of %s hashes to %s, registry has %s",
			zkerrors.ErrIntegrityViolation, prog.Name, imageID, prog.ImageID)
	}

	j.transition(JobUploading)
	if _, err := j.svc.UploadImage(ctx, imageID.String(), prog.Image); err != nil {
		return nil, err
	}
	inputID, err := j.svc.UploadInput(ctx, input)
	if err != nil {
		return nil, err
	}
	sessionID, err := j.svc.CreateSession(ctx, imageID.String(), inputID, nil, false)
	if err != nil {
		return nil, err
	}

	logger := j.logger.With().Str("program", prog.Name).Str("session_id", sessionID).Logger()
	logger.Info().Msg("remote session created")

	j.transition(JobPolling)
	s, err := j.poller.Wait(ctx, StageSession, sessionID, func(ctx context.Context) (*Session, error) {
		return j.svc.SessionStatus(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	receipt, err := fetchReceipt(ctx, j.svc, s)
	if err != nil {
		return nil, err
	}
	if err := j.verifier.Verify(receipt, prog.ImageID); err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	logger.Info().Msg("remote receipt verified")
	return &Result{SessionID: sessionID, Receipt: receipt}, nil
}

func (j *JobClient) transition(s JobState) {
	if j.onState != nil {
		j.onState(s)
	}
}

// fetchReceipt turns a terminal session into its receipt. Only SUCCEEDED
// carries one; every other terminal status is a job failure.
func fetchReceipt(ctx context.Context, svc Service, s *Session) (*zkvm.Receipt, error) {
	if s.Status != constants.SessionSucceeded {
		return nil, zkerrors.NewRemoteJobFailed(s.ID, s.Status.String(), s.Error)
	}
	if s.ArtifactURL == "" {
		return nil, fmt.Errorf("%w: session %s succeeded without an artifact url",
			zkerrors.ErrMalformedServiceResponse, s.ID)
	}
	data, err := svc.Download(ctx, s.ArtifactURL)
	if err != nil {
		return nil, err
	}
	receipt, err := zkvm.UnmarshalReceipt(data)
	if err != nil {
		return nil, fmt.Errorf("%w: session %s: %w", zkerrors.ErrMalformedServiceResponse, s.ID, err)
	}
	return receipt, nil
}
