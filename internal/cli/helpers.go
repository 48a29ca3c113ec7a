package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/opsmith/deployctl/pkg/ansible"
	"github.com/opsmith/deployctl/pkg/command"
	"github.com/opsmith/deployctl/pkg/environment"
	"github.com/opsmith/deployctl/pkg/sshprobe"
	"github.com/opsmith/deployctl/pkg/state"
	"github.com/opsmith/deployctl/pkg/telemetry"
	"github.com/opsmith/deployctl/pkg/template"
	"github.com/opsmith/deployctl/pkg/tofu"
	"github.com/opsmith/deployctl/pkg/workspace"
)

func newLogger() zerolog.Logger {
	return telemetry.NewLogger(os.Stderr, verbose)
}

func resolveLayout() (workspace.Layout, error) {
	base := viper.GetString("base_dir")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return workspace.Layout{}, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".deployctl")
	}
	return workspace.Default(base), nil
}

func newStore() (*state.Store, error) {
	layout, err := resolveLayout()
	if err != nil {
		return nil, err
	}
	return state.NewStore(layout), nil
}

// needs declares which external tools a command requires, so commands that
// never touch a tool still work on machines where it is not installed.
type needs struct {
	infra    bool
	playbook bool
	prober   bool
}

func buildHandlers(logger zerolog.Logger, n needs) (*command.Handlers, error) {
	store, err := newStore()
	if err != nil {
		return nil, err
	}

	var infra command.InfraClient
	if n.infra {
		if infra, err = tofu.NewClient(logger); err != nil {
			return nil, err
		}
	}
	var playbook command.PlaybookRunner
	if n.playbook {
		if playbook, err = ansible.NewClient(logger); err != nil {
			return nil, err
		}
	}
	var prober command.Prober
	if n.prober {
		prober = sshprobe.NewProber(logger)
	}

	return command.NewHandlers(store, infra, playbook, template.NewRenderer(), prober, logger), nil
}

func parseName(arg string) (environment.Name, error) {
	return environment.NewName(arg)
}
