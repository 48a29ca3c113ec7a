package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the deployctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("deployctl %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
