// Package cli implements the deployctl CLI commands.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deployctl",
	Short: "Provision, configure and run deployment environments",
	Long: `deployctl drives the full lifecycle of a deployment environment:
create, provision, configure, release, run, destroy and purge.

Each command performs exactly one lifecycle transition and records the
outcome in a per-environment state file, so a failed command can be
retried or the environment destroyed from any state.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.deployctl/config.yaml)")
	rootCmd.PersistentFlags().String("base-dir", "", "base directory for state and build files (default is $HOME/.deployctl)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// Bind to viper
	_ = viper.BindPFlag("base_dir", rootCmd.PersistentFlags().Lookup("base-dir"))
	viper.SetEnvPrefix("DEPLOYCTL")
	viper.AutomaticEnv()

	// Add subcommands
	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newProvisionCmd())
	rootCmd.AddCommand(newConfigureCmd())
	rootCmd.AddCommand(newReleaseCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDestroyCmd())
	rootCmd.AddCommand(newPurgeCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in home directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".deployctl"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// Read config file if it exists
	_ = viper.ReadInConfig()
}
