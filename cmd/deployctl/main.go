// Package main provides the deployctl CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/opsmith/deployctl/internal/cli"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if tip := apperrors.TroubleshootingOf(err); tip != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", tip)
		}
		os.Exit(1)
	}
}
