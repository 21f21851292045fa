// Package main is the entry point for the reinstall CLI.
//
// Build-time variables (version, commit, date) are injected via ldflags
// by GoReleaser. During development they default to "dev", "none" and
// "unknown".
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shinji-kodama/reinstall/internal/cli"
)

// version, commit, and date are set by GoReleaser at build time
// via ldflags. They back the --version flag output.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Inject build-time version info into the CLI package.
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	// Cancelling the context kills the running package manager child.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create the root command with all subcommands registered, then
	// execute it. Execute handles error formatting and exit codes.
	rootCmd := cli.NewRootCommand()
	cli.Execute(ctx, rootCmd)
}
