// Package environment defines the deployment environment entity and its
// lifecycle states.
package environment

import (
	"time"
)

// instanceNamePrefix namespaces infrastructure resources created for an
// environment, so instances are recognizable in provider consoles.
const instanceNamePrefix = "deployctl-"

// Environment describes one deployment target. A loaded Environment value
// is a disposable, command-scoped copy: the state store owns the canonical
// on-disk representation and nothing retains a live reference across
// command invocations.
type Environment struct {
	Name         Name           `json:"name"`
	InstanceName string         `json:"instance_name"`
	Provider     ProviderConfig `json:"provider_config"`
	SSH          SSHCredentials `json:"ssh_credentials"`
	CreatedAt    time.Time      `json:"created_at"`

	// InstanceIP is present only once infrastructure exists. It is
	// recorded as soon as provisioning outputs are parsed, so a failure
	// in a later step still persists the address.
	InstanceIP string `json:"instance_ip,omitempty"`
}

// New assembles a validated Environment.
func New(name Name, provider ProviderConfig, ssh SSHCredentials, createdAt time.Time) (Environment, error) {
	if err := provider.Validate(); err != nil {
		return Environment{}, err
	}
	if err := ssh.Validate(); err != nil {
		return Environment{}, err
	}
	return Environment{
		Name:         name,
		InstanceName: instanceNamePrefix + name.String(),
		Provider:     provider,
		SSH:          ssh,
		CreatedAt:    createdAt,
	}, nil
}
