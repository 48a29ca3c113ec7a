package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// createConfig is the YAML shape of --config for create. It is decoded
// into the domain types through their validating constructors.
type createConfig struct {
	Provider struct {
		Type string `yaml:"type" validate:"required,oneof=lxd hetzner"`
		LXD  struct {
			Profile string `yaml:"profile"`
		} `yaml:"lxd"`
		Hetzner struct {
			APIToken   string `yaml:"api_token"`
			Location   string `yaml:"location"`
			ServerType string `yaml:"server_type"`
			Image      string `yaml:"image"`
		} `yaml:"hetzner"`
	} `yaml:"provider"`
	SSH struct {
		PrivateKeyPath string `yaml:"private_key_path" validate:"required"`
		PublicKeyPath  string `yaml:"public_key_path" validate:"required"`
		Username       string `yaml:"username" validate:"required"`
		Port           int    `yaml:"port"`
	} `yaml:"ssh"`
}

func newCreateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new environment",
		Long: `Create a new environment in the created state.

The environment definition is read from a YAML file:

  provider:
    type: lxd
    lxd:
      profile: default
  ssh:
    private_key_path: /home/me/.ssh/id_ed25519
    public_key_path: /home/me/.ssh/id_ed25519.pub
    username: deploy

Examples:
  deployctl create staging --env-config staging.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseName(args[0])
			if err != nil {
				return err
			}

			env, err := loadCreateConfig(name, configPath)
			if err != nil {
				return err
			}

			handlers, err := buildHandlers(newLogger(), needs{})
			if err != nil {
				return err
			}
			if err := handlers.Create(cmd.Context(), env); err != nil {
				return err
			}

			fmt.Printf("Environment %q created.\n", name)
			fmt.Printf("Next: deployctl provision %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "env-config", "", "environment definition file (YAML)")
	_ = cmd.MarkFlagRequired("env-config")

	return cmd
}

func loadCreateConfig(name environment.Name, path string) (environment.Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return environment.Environment{}, apperrors.Wrap(apperrors.KindConfiguration,
			fmt.Sprintf("failed to read environment definition %s", path), err)
	}

	var cfg createConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return environment.Environment{}, apperrors.Wrap(apperrors.KindConfiguration,
			fmt.Sprintf("environment definition %s is not valid YAML", path), err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return environment.Environment{}, apperrors.Wrap(apperrors.KindValidation,
			"invalid environment definition", err)
	}

	var provider environment.ProviderConfig
	switch environment.Provider(cfg.Provider.Type) {
	case environment.ProviderLXD:
		provider, err = environment.NewLXDProvider(environment.LXDConfig{
			Profile: cfg.Provider.LXD.Profile,
		})
	case environment.ProviderHetzner:
		provider, err = environment.NewHetznerProvider(environment.HetznerConfig{
			APIToken:   cfg.Provider.Hetzner.APIToken,
			Location:   cfg.Provider.Hetzner.Location,
			ServerType: cfg.Provider.Hetzner.ServerType,
			Image:      cfg.Provider.Hetzner.Image,
		})
	default:
		err = apperrors.Newf(apperrors.KindValidation, "unknown provider %q", cfg.Provider.Type)
	}
	if err != nil {
		return environment.Environment{}, err
	}

	creds, err := environment.NewSSHCredentials(
		cfg.SSH.PrivateKeyPath, cfg.SSH.PublicKeyPath, cfg.SSH.Username, cfg.SSH.Port)
	if err != nil {
		return environment.Environment{}, err
	}

	return environment.New(name, provider, creds, time.Now().UTC())
}
