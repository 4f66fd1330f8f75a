package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/zkdrop/internal/config"
	"github.com/mrz1836/zkdrop/internal/dispatch"
	"github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/guest"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/signal"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// ProveResponse is the JSON output of the prove command.
type ProveResponse struct {
	Program       string          `json:"program"`
	ImageID       string          `json:"image_id"`
	Mode          string          `json:"mode"`
	JobID         string          `json:"job_id"`
	SessionID     string          `json:"session_id,omitempty"`
	Output        json.RawMessage `json:"output"`
	ReceiptBase64 string          `json:"receipt_base64,omitempty"`
	ReceiptFile   string          `json:"receipt_file,omitempty"`
}

// proveOptions holds the prove command flags.
type proveOptions struct {
	program      string
	input        string
	mode         string
	receiptOut   string
	ephemeralKey bool
}

// AddProveCommand adds the prove command to the root command.
func AddProveCommand(root *cobra.Command) {
	opts := &proveOptions{}
	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Prove one program run and print its output and receipt",
		Long: `Run a registered program on a JSON input and print the committed output
together with the base64 receipt.

Examples:
  zkdrop prove --program aes-ctr-verifier --input request.json
  cat request.json | zkdrop prove --program rsa-encrypter --input - --mode bonsai
  zkdrop prove --program rsa-verifier --input request.json --receipt-out receipt.b64 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProve(cmd.Context(), cmd, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.program, "program", "p", "", "program name (see 'zkdrop programs')")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "input JSON file, or - for stdin")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", dispatch.ModeLocal.String(), "execution mode (local|bonsai|bonsai_snark)")
	cmd.Flags().StringVar(&opts.receiptOut, "receipt-out", "", "write the base64 receipt to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.ephemeralKey, "ephemeral-key", false, "seal with a throwaway prover key")
	_ = cmd.MarkFlagRequired("program")
	root.AddCommand(cmd)
}

func runProve(ctx context.Context, cmd *cobra.Command, opts *proveOptions, stdin io.Reader, w io.Writer) error {
	logger := GetLogger()

	mode, err := dispatch.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	input, err := readInput(opts.input, stdin)
	if err != nil {
		return err
	}
	if err := validateInput(opts.program, input); err != nil {
		return err
	}

	cfg, err := loadConfig(ctx, logger, &config.Config{})
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("ephemeral-key") {
		cfg.Prover.EphemeralKey = opts.ephemeralKey
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	h := signal.NewHandler(ctx)
	defer h.Stop()

	res, err := a.dispatcher.Run(h.Context(), opts.program, input, mode)
	if err != nil {
		if sig := h.Received(); sig != nil && mode != dispatch.ModeLocal {
			logger.Warn().
				Str("signal", sig.String()).
				Str("program", opts.program).
				Msg("proof interrupted, the remote session may still be running on the service")
		}
		return err
	}

	encoded, err := zkvm.EncodeBase64(res.Receipt)
	if err != nil {
		return err
	}

	resp := ProveResponse{
		Program:   res.Program.Name,
		ImageID:   res.Program.ImageID.String(),
		Mode:      res.Mode.String(),
		JobID:     res.JobID,
		SessionID: res.SessionID,
		Output:    json.RawMessage(res.Receipt.Journal),
	}
	if opts.receiptOut != "" {
		if err := os.WriteFile(opts.receiptOut, []byte(encoded+"\n"), 0o600); err != nil {
			return fmt.Errorf("write receipt: %w", err)
		}
		resp.ReceiptFile = opts.receiptOut
	} else {
		resp.ReceiptBase64 = encoded
	}

	if cmd.Flag("output").Value.String() == OutputJSON {
		return writeJSON(w, resp)
	}
	return renderProve(w, resp)
}

// readInput reads the request from a file, or from stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // user-supplied input path
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read input: %w", errors.ErrInputDecode, err)
	}
	return data, nil
}

type validatable interface {
	Validate() error
}

// decodeAndValidate strictly decodes data as I and validates it.
func decodeAndValidate[I validatable](data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var in I
	if err := dec.Decode(&in); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInputDecode, err)
	}
	return in.Validate()
}

// validateInput rejects malformed requests before any proving work.
func validateInput(program string, data []byte) error {
	switch program {
	case programs.AESCTRVerifier:
		return decodeAndValidate[guest.AESCTRInput](data)
	case programs.RSAEncrypter:
		return decodeAndValidate[guest.RSAEncryptInput](data)
	case programs.RSAVerifier:
		return decodeAndValidate[guest.RSAVerifyInput](data)
	default:
		return errors.Wrapf(errors.ErrUnknownProgram, "program %q", program)
	}
}
