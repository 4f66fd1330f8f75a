package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/zkdrop/internal/constants"
	"github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/guest"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/server"
	"github.com/mrz1836/zkdrop/internal/testutil"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

func nopLogger(bool, bool) zerolog.Logger { return zerolog.Nop() }

// isolate points zkdrop at an empty home and working directory and returns
// the home directory.
func isolate(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv(constants.EnvHome, home)
	t.Chdir(t.TempDir())
	for _, key := range []string{
		constants.EnvBonsaiAPIURL,
		constants.EnvBonsaiAPIKey,
		constants.EnvHostAppPort,
		"ZKDROP_OUTPUT",
		"ZKDROP_VERBOSE",
		"ZKDROP_QUIET",
	} {
		t.Setenv(key, "")
	}
	return home
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{Version: "test"}, nopLogger)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeInput(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func aesVector() guest.AESCTRInput {
	return guest.AESCTRInput{
		AESKeyHex:     "de15a7f6957c3eb9a86689106a98e3bea6f4b7222a63aa0ba7afda647d2ff98d",
		IVHex:         "01020300000000000000000000000000",
		PlaintextUTF8: "example fileeee ! ",
		CiphertextHex: "ef8d7b4abcaea121953432bd58aa69589312",
	}
}

func TestRootCmd_Help(t *testing.T) {
	isolate(t)

	out, err := run(t, "", "--help")
	require.NoError(t, err)

	for _, want := range []string{"zkdrop", "serve", "prove", "verify", "programs", "--output", "--verbose", "--quiet"} {
		assert.Contains(t, out, want)
	}
}

func TestRootCmd_Version(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info BuildInfo
		want []string
	}{
		{"full", BuildInfo{Version: "1.0.0", Commit: "abc1234", Date: "2026-01-01"}, []string{"1.0.0", "abc1234", "2026-01-01"}},
		{"defaults", BuildInfo{}, []string{"dev", "none", "unknown"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := formatVersion(tc.info)
			for _, want := range tc.want {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestRootCmd_InvalidOutputFormat(t *testing.T) {
	isolate(t)

	_, err := run(t, "", "programs", "--output", "yaml")
	require.ErrorIs(t, err, errors.ErrInvalidOutputFormat)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}

func TestPrograms(t *testing.T) {
	isolate(t)

	out, err := run(t, "", "programs")
	require.NoError(t, err)
	for _, name := range []string{programs.AESCTRVerifier, programs.RSAEncrypter, programs.RSAVerifier, "IMAGE ID"} {
		assert.Contains(t, out, name)
	}

	out, err = run(t, "", "programs", "-o", "json")
	require.NoError(t, err)
	var list []server.ProgramInfo
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 3)
}

func TestProveThenVerify_Local(t *testing.T) {
	home := isolate(t)
	receiptPath := filepath.Join(t.TempDir(), "receipt.b64")

	out, err := run(t, "", "prove", "-p", programs.AESCTRVerifier, "-i", writeInput(t, aesVector()),
		"--receipt-out", receiptPath, "-o", "json")
	require.NoError(t, err)

	var resp ProveResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "local", resp.Mode)
	assert.Equal(t, receiptPath, resp.ReceiptFile)
	assert.Empty(t, resp.ReceiptBase64)
	assert.JSONEq(t, `{"is_valid":true,"message":"ciphertext matches AES-CTR encryption"}`, string(resp.Output))
	assert.FileExists(t, filepath.Join(home, constants.ProverKeyFileName))

	out, err = run(t, "", "verify", "-p", programs.AESCTRVerifier, "-r", receiptPath, "-o", "json")
	require.NoError(t, err)
	var verified VerifyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &verified))
	assert.Equal(t, resp.ImageID, verified.ImageID)
	assert.Equal(t, string(zkvm.SealComposite), verified.SealKind)
	assert.JSONEq(t, string(resp.Output), string(verified.Output))

	_, err = run(t, "", "verify", "-p", programs.RSAVerifier, "-r", receiptPath)
	require.ErrorIs(t, err, errors.ErrIntegrityViolation)
	assert.Equal(t, ExitError, ExitCodeForError(err))
}

func TestProve_TextOutputFromStdin(t *testing.T) {
	isolate(t)

	data, err := json.Marshal(aesVector())
	require.NoError(t, err)

	out, err := run(t, string(data), "prove", "-p", programs.AESCTRVerifier, "--ephemeral-key")
	require.NoError(t, err)
	assert.Contains(t, out, "Result: valid")
	assert.Contains(t, out, "Receipt:\nH4sI")
}

func TestProve_Errors(t *testing.T) {
	isolate(t)

	input := writeInput(t, aesVector())
	short := aesVector()
	short.AESKeyHex = "abcd"

	tests := []struct {
		name string
		args []string
		want error
		code int
	}{
		{"invalid mode", []string{"-p", programs.AESCTRVerifier, "-i", input, "-m", "gpu"}, errors.ErrInvalidMode, ExitInvalidInput},
		{"unknown program", []string{"-p", "sha-verifier", "-i", input}, errors.ErrUnknownProgram, ExitInvalidInput},
		{"bad input", []string{"-p", programs.AESCTRVerifier, "-i", writeInput(t, short)}, errors.ErrInputDecode, ExitInvalidInput},
		{"missing file", []string{"-p", programs.AESCTRVerifier, "-i", filepath.Join(t.TempDir(), "nope.json")}, errors.ErrInputDecode, ExitInvalidInput},
		{"remote not configured", []string{"-p", programs.AESCTRVerifier, "-i", input, "-m", "bonsai", "--ephemeral-key"}, errors.ErrRemoteNotConfigured, ExitError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, "", append([]string{"prove"}, tc.args...)...)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.code, ExitCodeForError(err))
		})
	}
}

func TestProve_RemoteWithCompression(t *testing.T) {
	isolate(t)

	fake := testutil.NewFakeBonsai(t, testutil.BonsaiScript{})
	t.Setenv(constants.EnvBonsaiAPIURL, fake.URL)
	t.Setenv(constants.EnvBonsaiAPIKey, fake.APIKey)

	out, err := run(t, "", "prove", "-p", programs.AESCTRVerifier, "-i", writeInput(t, aesVector()),
		"-m", "bonsai_snark", "--ephemeral-key", "-o", "json")
	require.NoError(t, err)

	var resp ProveResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "bonsai_snark", resp.Mode)
	assert.NotEmpty(t, resp.SessionID)

	receipt, err := zkvm.DecodeBase64(resp.ReceiptBase64)
	require.NoError(t, err)
	assert.Equal(t, zkvm.SealSuccinct, receipt.Seal.Kind)
	assert.Equal(t, 1, fake.Count("POST /snark/create"))
}

func TestVerify_MalformedReceipt(t *testing.T) {
	isolate(t)

	_, err := run(t, "not base64!", "verify", "-p", programs.AESCTRVerifier)
	require.ErrorIs(t, err, errors.ErrReceiptDecode)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}

func TestPrintError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printError(&buf, errors.Wrap(errors.ErrRemoteNotConfigured, "prove"))
	assert.Contains(t, buf.String(), "Error: prove: ")
	assert.Contains(t, buf.String(), "Hint: Set BONSAI_API_URL")
}
