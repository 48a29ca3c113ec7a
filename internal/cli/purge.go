package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

func newPurgeCmd() *cobra.Command {
	var (
		autoApprove bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "purge <name>",
		Short: "Remove a destroyed environment's record",
		Long: `Remove the on-disk record of a destroyed environment.

Without --force only destroyed environments can be purged. With --force
the record is removed regardless of its state; remote resources, if any,
are left untouched.

Examples:
  deployctl purge staging
  deployctl purge staging --force --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseName(args[0])
			if err != nil {
				return err
			}

			if !autoApprove {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return apperrors.New(apperrors.KindValidation,
						"stdin is not a terminal, pass --yes to purge without confirmation")
				}
				fmt.Printf("Remove all local records of environment %q? [y/N]: ", name)
				var response string
				_, _ = fmt.Scanln(&response)
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Println("Purge cancelled.")
					return nil
				}
			}

			handlers, err := buildHandlers(newLogger(), needs{})
			if err != nil {
				return err
			}
			if err := handlers.Purge(cmd.Context(), name, force); err != nil {
				return err
			}

			fmt.Printf("Environment %q purged.\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoApprove, "yes", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&force, "force", false, "purge regardless of the environment's state")

	return cmd
}
