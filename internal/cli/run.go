package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Start the released services and verify them",
		Long: `Start the application services and verify they come up.

Runs from the released state, or from run_failed to retry.

Examples:
  deployctl run staging`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseName(args[0])
			if err != nil {
				return err
			}

			handlers, err := buildHandlers(newLogger(), needs{playbook: true})
			if err != nil {
				return err
			}
			if err := handlers.Run(cmd.Context(), name, consoleReporter{w: os.Stdout}); err != nil {
				return err
			}

			fmt.Printf("\nEnvironment %q is running.\n", name)
			return nil
		},
	}
}
