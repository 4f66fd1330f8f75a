package cli

import (
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/zkdrop/internal/errors"
)

func TestIsValidOutputFormat(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidOutputFormat(OutputText))
	assert.True(t, IsValidOutputFormat(OutputJSON))
	assert.False(t, IsValidOutputFormat("yaml"))
	assert.False(t, IsValidOutputFormat(""))
}

func TestExitCodeForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"exit code 2 wrapper", errors.NewExitCode2Error(errors.ErrReceiptDecode), ExitInvalidInput},
		{"invalid output", errors.ErrInvalidOutputFormat, ExitInvalidInput},
		{"invalid mode", fmt.Errorf("parse: %w", errors.ErrInvalidMode), ExitInvalidInput},
		{"unknown program", errors.ErrUnknownProgram, ExitInvalidInput},
		{"input decode", errors.ErrInputDecode, ExitInvalidInput},
		{"cobra unknown flag", fmt.Errorf("unknown flag: --nope"), ExitInvalidInput}, //nolint:err113 // test value
		{"cobra required flag", fmt.Errorf(`required flag(s) "program" not set`), ExitInvalidInput}, //nolint:err113 // test value
		{"integrity", errors.ErrIntegrityViolation, ExitError},
		{"remote failed", errors.NewRemoteJobFailed("s", "FAILED", "OOM"), ExitError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ExitCodeForError(tc.err))
		})
	}
}

func TestBindGlobalFlags_Environment(t *testing.T) {
	t.Setenv("ZKDROP_OUTPUT", "json")
	t.Setenv("ZKDROP_VERBOSE", "true")

	flags := &GlobalFlags{}
	cmd := &cobra.Command{Use: "test"}
	AddGlobalFlags(cmd, flags)

	require.NoError(t, BindGlobalFlags(viper.New(), cmd, flags))
	assert.Equal(t, OutputJSON, flags.Output)
	assert.True(t, flags.Verbose)
	assert.False(t, flags.Quiet)
}

func TestBindGlobalFlags_FlagWins(t *testing.T) {
	t.Setenv("ZKDROP_OUTPUT", "json")

	flags := &GlobalFlags{}
	cmd := &cobra.Command{Use: "test"}
	AddGlobalFlags(cmd, flags)
	require.NoError(t, cmd.ParseFlags([]string{"--output", "text"}))

	require.NoError(t, BindGlobalFlags(viper.New(), cmd, flags))
	assert.Equal(t, OutputText, flags.Output)
}
