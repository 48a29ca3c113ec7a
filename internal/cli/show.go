package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsmith/deployctl/pkg/state"
)

func newShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one environment's state",
		Long: `Show an environment's full record, including the failure context when
the last command failed.

Examples:
  deployctl show staging
  deployctl show staging --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseName(args[0])
			if err != nil {
				return err
			}

			store, err := newStore()
			if err != nil {
				return err
			}
			rec, err := store.Load(name)
			if err != nil {
				return err
			}

			if jsonOutput {
				// The wire format doubles as the JSON output format.
				data, err := state.Encode(rec)
				if err != nil {
					return err
				}
				fmt.Print(string(data))
				return nil
			}

			fmt.Printf("Name:        %s\n", rec.Env.Name)
			fmt.Printf("State:       %s\n", rec.Tag)
			fmt.Printf("Provider:    %s\n", rec.Env.Provider.Provider)
			fmt.Printf("Instance:    %s\n", rec.Env.InstanceName)
			if rec.Env.InstanceIP != "" {
				fmt.Printf("Address:     %s\n", rec.Env.InstanceIP)
			}
			fmt.Printf("Created:     %s\n", rec.Env.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			if rec.Failure != nil {
				fmt.Println()
				fmt.Printf("Failed step: %s\n", rec.Failure.FailedStep)
				fmt.Printf("Error kind:  %s\n", rec.Failure.ErrorKind)
				fmt.Printf("Error:       %s\n", rec.Failure.ErrorSummary)
				fmt.Printf("Occurred:    %s\n", rec.Failure.OccurredAt.Format("2006-01-02 15:04:05 MST"))
				fmt.Printf("Trace ID:    %s\n", rec.Failure.TraceID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the raw state record as JSON")

	return cmd
}
