package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/httpmock/pkg/config"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|glob>...",
		Short: "Validate expectation seed files without starting a server",
		Long: `Validate expectation seed files without starting a server.

Each argument is a file path or a glob (** is supported). Every matching file
is parsed and each expectation is compiled exactly as the serve command would
register it.`,
		Example: `  # Validate one file
  httpmock validate expectations.yaml

  # Validate a directory tree
  httpmock validate 'mocks/**/*.{yaml,json}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			total := 0
			for _, pattern := range args {
				files, err := config.ExpandPattern(pattern)
				if err != nil {
					return err
				}
				for _, file := range files {
					defs, err := config.LoadExpectationFile(file)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %d expectation(s) OK\n", file, len(defs))
					total += len(defs)
				}
			}
			fmt.Fprintf(out, "%d expectation(s) valid\n", total)
			return nil
		},
	}
}
