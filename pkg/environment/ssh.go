package environment

import (
	"path/filepath"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// DefaultSSHPort is used when the creation config leaves the port unset.
const DefaultSSHPort = 22

// SSHCredentials holds what the configuration steps need to reach an
// instance. Key paths must be absolute: command invocations may run from
// different working directories, so relative paths would silently point at
// different files per invocation.
type SSHCredentials struct {
	PrivateKeyPath string `json:"private_key_path" validate:"required"`
	PublicKeyPath  string `json:"public_key_path" validate:"required"`
	Username       string `json:"username" validate:"required"`
	Port           int    `json:"port" validate:"min=1,max=65535"`
}

// NewSSHCredentials validates and returns SSH credentials. Relative key
// paths are rejected at construction.
func NewSSHCredentials(privateKeyPath, publicKeyPath, username string, port int) (SSHCredentials, error) {
	if port == 0 {
		port = DefaultSSHPort
	}
	creds := SSHCredentials{
		PrivateKeyPath: privateKeyPath,
		PublicKeyPath:  publicKeyPath,
		Username:       username,
		Port:           port,
	}
	if err := creds.Validate(); err != nil {
		return SSHCredentials{}, err
	}
	return creds, nil
}

// Validate checks field presence and that both key paths are absolute.
func (c SSHCredentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, "invalid ssh credentials", err)
	}
	for _, p := range []string{c.PrivateKeyPath, c.PublicKeyPath} {
		if !filepath.IsAbs(p) {
			return apperrors.Newf(apperrors.KindValidation,
				"ssh key path %q must be absolute", p).
				WithTroubleshooting("Commands run from arbitrary working directories, so relative " +
					"key paths would resolve differently per invocation. Use an absolute path.")
		}
	}
	return nil
}
