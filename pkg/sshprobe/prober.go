// Package sshprobe waits for a freshly provisioned instance to accept SSH
// connections before configuration starts.
package sshprobe

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// Prober dials the instance with exponential backoff until it answers an
// authenticated SSH handshake or the deadline passes.
type Prober struct {
	logger zerolog.Logger

	// DialTimeout bounds one connection attempt.
	DialTimeout time.Duration

	// MaxElapsedTime bounds the whole wait.
	MaxElapsedTime time.Duration
}

// NewProber returns a prober with defaults sized for cloud instance boot.
func NewProber(logger zerolog.Logger) *Prober {
	return &Prober{
		logger:         logger.With().Str("tool", "sshprobe").Logger(),
		DialTimeout:    10 * time.Second,
		MaxElapsedTime: 3 * time.Minute,
	}
}

// WaitUntilReachable blocks until an authenticated SSH session to ip
// succeeds. Expiry surfaces a Timeout error carrying the last dial failure.
func (p *Prober) WaitUntilReachable(ctx context.Context, ip string, creds environment.SSHCredentials) error {
	config, err := p.clientConfig(creds)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", creds.Port))

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxInterval = 15 * time.Second
	policy.MaxElapsedTime = p.MaxElapsedTime

	var lastErr error
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		dialErr := p.dial(addr, config)
		if dialErr != nil {
			lastErr = dialErr
			p.logger.Debug().Str("addr", addr).Int("attempt", attempt).
				Err(dialErr).Msg("instance not reachable yet")
		}
		return dialErr
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		return apperrors.Wrap(apperrors.KindTimeout,
			fmt.Sprintf("instance %s did not become reachable within %s", addr, p.MaxElapsedTime),
			lastErr).
			WithTroubleshooting(fmt.Sprintf(
				"The instance exists but never answered an SSH handshake on %s. Check that "+
					"it finished booting, that its firewall allows port %d, and that the key "+
					"at %s matches the one provisioned onto it.",
				addr, creds.Port, creds.PrivateKeyPath))
	}
	return nil
}

func (p *Prober) clientConfig(creds environment.SSHCredentials) (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(creds.PrivateKeyPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration,
			fmt.Sprintf("failed to read private key %s", creds.PrivateKeyPath), err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration,
			fmt.Sprintf("private key %s is not parseable", creds.PrivateKeyPath), err)
	}
	return &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		// The instance was just created; there is no prior host key to pin.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         p.DialTimeout,
	}, nil
}

func (p *Prober) dial(addr string, config *ssh.ClientConfig) error {
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return err
	}
	return client.Close()
}
