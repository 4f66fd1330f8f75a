package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/zkdrop/internal/config"
	"github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// VerifyResponse is the JSON output of the verify command.
type VerifyResponse struct {
	Program   string          `json:"program"`
	ImageID   string          `json:"image_id"`
	SealKind  string          `json:"seal_kind"`
	ProverKey string          `json:"prover_key"`
	Output    json.RawMessage `json:"output"`
}

// verifyOptions holds the verify command flags.
type verifyOptions struct {
	program string
	receipt string
}

// AddVerifyCommand adds the verify command to the root command.
func AddVerifyCommand(root *cobra.Command) {
	opts := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a receipt against a registered program",
		Long: `Decode a base64 receipt and check that it was sealed for the given program.
When prover.trusted_keys is configured the seal must come from one of them.

Examples:
  zkdrop verify --program aes-ctr-verifier --receipt receipt.b64
  zkdrop prove -p rsa-encrypter -i req.json -o json | jq -r .receipt_base64 | zkdrop verify -p rsa-encrypter`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd.Context(), cmd, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.program, "program", "p", "", "program name the receipt must belong to")
	cmd.Flags().StringVarP(&opts.receipt, "receipt", "r", "-", "base64 receipt file, or - for stdin")
	_ = cmd.MarkFlagRequired("program")
	root.AddCommand(cmd)
}

func runVerify(ctx context.Context, cmd *cobra.Command, opts *verifyOptions, stdin io.Reader, w io.Writer) error {
	logger := GetLogger()

	registry, err := programs.Builtin()
	if err != nil {
		return err
	}
	prog, err := registry.Resolve(opts.program)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx, logger, &config.Config{})
	if err != nil {
		return err
	}
	trusted, err := zkvm.ParseTrustedKeys(cfg.Prover.TrustedKeys)
	if err != nil {
		return err
	}

	raw, err := readInput(opts.receipt, stdin)
	if err != nil {
		return err
	}
	receipt, err := zkvm.DecodeBase64(strings.TrimSpace(string(raw)))
	if err != nil {
		return errors.NewExitCode2Error(err)
	}

	if err := zkvm.NewVerifier(trusted...).Verify(receipt, prog.ImageID); err != nil {
		return err
	}
	logger.Debug().Str("program", prog.Name).Msg("receipt verified")

	resp := VerifyResponse{
		Program:   prog.Name,
		ImageID:   receipt.ImageID.String(),
		SealKind:  string(receipt.Seal.Kind),
		ProverKey: hex.EncodeToString(receipt.Seal.PublicKey),
		Output:    json.RawMessage(receipt.Journal),
	}
	if cmd.Flag("output").Value.String() == OutputJSON {
		return writeJSON(w, resp)
	}
	return renderVerify(w, resp)
}
