package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure <name>",
		Short: "Install the runtime on the provisioned instance",
		Long: `Install the container runtime and compose plugin on the instance.

Runs from the provisioned state, or from configure_failed to retry.

Examples:
  deployctl configure staging`,
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
			if err := handlers.Configure(cmd.Context(), name, consoleReporter{w: os.Stdout}); err != nil {
				return err
			}

			fmt.Printf("\nEnvironment %q configured.\n", name)
			fmt.Printf("Next: deployctl release %s\n", name)
			return nil
		},
	}
}
