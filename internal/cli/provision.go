package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newProvisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision <name>",
		Short: "Provision the environment's infrastructure",
		Long: `Create the environment's instance and prepare it for configuration.

Runs from the created state, or from provision_failed to retry the whole
sequence after a failure.

Examples:
  deployctl provision staging`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseName(args[0])
			if err != nil {
				return err
			}

			handlers, err := buildHandlers(newLogger(), needs{infra: true, prober: true})
			if err != nil {
				return err
			}
			if err := handlers.Provision(cmd.Context(), name, consoleReporter{w: os.Stdout}); err != nil {
				return err
			}

			fmt.Printf("\nEnvironment %q provisioned.\n", name)
			fmt.Printf("Next: deployctl configure %s\n", name)
			return nil
		},
	}
}
