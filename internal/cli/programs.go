package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/server"
)

// AddProgramsCommand adds the programs command to the root command.
func AddProgramsCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "programs",
		Short: "List the registered programs and their image IDs",
		Long: `Display every program compiled into this binary with the image ID a receipt
must carry to be accepted for it.

Examples:
  zkdrop programs
  zkdrop programs --output json`,
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrograms(cmd.Context(), cmd, cmd.OutOrStdout())
		},
	}
	root.AddCommand(cmd)
}

func runPrograms(ctx context.Context, cmd *cobra.Command, w io.Writer) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	registry, err := programs.Builtin()
	if err != nil {
		return err
	}
	list := server.DescribePrograms(registry)

	if cmd.Flag("output").Value.String() == OutputJSON {
		return writeJSON(w, list)
	}
	return renderPrograms(w, list)
}
