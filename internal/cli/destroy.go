package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

func newDestroyCmd() *cobra.Command {
	var autoApprove bool

	cmd := &cobra.Command{
		Use:   "destroy <name>",
		Short: "Destroy the environment's infrastructure",
		Long: `Tear down the environment's infrastructure and clean up its local
working trees. Destroy works from any state; destroying an already
destroyed environment succeeds immediately.

Examples:
  deployctl destroy staging
  deployctl destroy staging --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseName(args[0])
			if err != nil {
				return err
			}

			// Confirm unless --yes is provided
			if !autoApprove {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return apperrors.New(apperrors.KindValidation,
						"stdin is not a terminal, pass --yes to destroy without confirmation")
				}
				fmt.Printf("Are you sure you want to destroy environment %q? [y/N]: ", name)
				var response string
				_, _ = fmt.Scanln(&response)
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Println("Destroy cancelled.")
					return nil
				}
			}

			handlers, err := buildHandlers(newLogger(), needs{infra: true})
			if err != nil {
				return err
			}
			if err := handlers.Destroy(cmd.Context(), name, consoleReporter{w: os.Stdout}); err != nil {
				return err
			}

			fmt.Printf("\nEnvironment %q destroyed.\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoApprove, "yes", false, "skip the confirmation prompt")

	return cmd
}
