package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <name>",
		Short: "Deploy the application stack onto the instance",
		Long: `Render the application stack artifacts and copy them onto the instance.

Runs from the configured state, or from release_failed to retry.

Examples:
  deployctl release staging`,
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
			if err := handlers.Release(cmd.Context(), name, consoleReporter{w: os.Stdout}); err != nil {
				return err
			}

			fmt.Printf("\nEnvironment %q released.\n", name)
			fmt.Printf("Next: deployctl run %s\n", name)
			return nil
		},
	}
}
