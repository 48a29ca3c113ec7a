package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List environments",
		Long: `List every environment known to this machine with its current state.

Examples:
  deployctl list
  deployctl list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}

			records, broken, err := store.List()
			if err != nil {
				return err
			}

			if jsonOutput {
				type row struct {
					Name       string `json:"name"`
					State      string `json:"state"`
					InstanceIP string `json:"instance_ip,omitempty"`
				}
				rows := make([]row, 0, len(records))
				for _, rec := range records {
					rows = append(rows, row{
						Name:       rec.Env.Name.String(),
						State:      rec.Tag.String(),
						InstanceIP: rec.Env.InstanceIP,
					})
				}
				out, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
			} else {
				if len(records) == 0 && len(broken) == 0 {
					fmt.Println("No environments found.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSTATE\tINSTANCE IP\tCREATED")
				for _, rec := range records {
					ip := rec.Env.InstanceIP
					if ip == "" {
						ip = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						rec.Env.Name, rec.Tag, ip, rec.Env.CreatedAt.Format("2006-01-02 15:04"))
				}
				w.Flush()
			}

			for name, berr := range broken {
				fmt.Fprintf(os.Stderr, "warning: environment %q has an unreadable state file: %v\n", name, berr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}
