// Package main provides the entry point for the zkdrop CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/zkdrop/internal/cli"
)

// Set via ldflags at build time.
var (
	version = "dev"     //nolint:gochecknoglobals // ldflags target
	commit  = "none"    //nolint:gochecknoglobals // ldflags target
	date    = "unknown" //nolint:gochecknoglobals // ldflags target
)

func main() {
	ctx := context.Background()
	err := cli.Execute(ctx, cli.BuildInfo{Version: version, Commit: commit, Date: date}, os.Stderr)
	os.Exit(cli.ExitCodeForError(err))
}
