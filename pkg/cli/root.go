package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// NewRootCommand builds the httpmock command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "httpmock",
		Short: "httpmock is a programmable HTTP mock server",
		Long: `httpmock serves canned responses for HTTP requests that match expectations
registered over its control plane, and records every request it receives so
tests can inspect them afterwards.

Configuration can be provided via flags, HTTPMOCK_* environment variables, or a
YAML configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true, // errors are printed by Run
	}

	root.AddCommand(
		newServeCommand(),
		newValidateCommand(),
		newVersionCommand(),
	)
	return root
}

// Run executes the command line args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// Execute runs the CLI with the process arguments and exits on failure.
// This is called by main.main().
func Execute() {
	if code := Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}
