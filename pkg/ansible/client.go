// Package ansible wraps the ansible-playbook binary for configuration
// management against a rendered working directory.
package ansible

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// InventoryFileName is the inventory file every rendered ansible working
// directory contains.
const InventoryFileName = "inventory.ini"

// Client runs playbooks out of a working directory that already contains
// a rendered inventory. One playbook run covers one atomic responsibility.
type Client struct {
	binaryPath string
	logger     zerolog.Logger
}

// NewClient locates ansible-playbook in PATH.
func NewClient(logger zerolog.Logger) (*Client, error) {
	binaryPath, err := exec.LookPath("ansible-playbook")
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfiguration,
			"ansible-playbook binary not found in PATH").
			WithTroubleshooting("Install Ansible (https://docs.ansible.com) and make sure " +
				"ansible-playbook is on your PATH.")
	}
	return &Client{
		binaryPath: binaryPath,
		logger:     logger.With().Str("tool", "ansible-playbook").Logger(),
	}, nil
}

// RunPlaybook executes one playbook from workdir against its inventory.
func (c *Client) RunPlaybook(ctx context.Context, workdir, playbook string) error {
	inventory := filepath.Join(workdir, InventoryFileName)
	if _, err := os.Stat(inventory); err != nil {
		return apperrors.Wrap(apperrors.KindConfiguration,
			fmt.Sprintf("inventory %s missing", inventory), err).
			WithTroubleshooting("The configuration working directory was not rendered. " +
				"Re-run provision to regenerate it.")
	}

	cmd := exec.CommandContext(ctx, c.binaryPath, "-i", InventoryFileName, playbook)
	cmd.Dir = workdir
	// Host keys churn every time an instance is recreated; the prober has
	// already authenticated against the current one.
	cmd.Env = append(os.Environ(), "ANSIBLE_HOST_KEY_CHECKING=False")

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	c.logger.Debug().Str("workdir", workdir).Str("playbook", playbook).Msg("running playbook")

	if err := cmd.Run(); err != nil {
		return apperrors.Wrap(apperrors.KindCommandExecution,
			fmt.Sprintf("playbook %s failed: %s", playbook, lastTaskError(combined.String())), err).
			WithTroubleshooting(fmt.Sprintf(
				"Run %q in %s to reproduce. Full output:\n%s",
				"ansible-playbook -i "+InventoryFileName+" "+playbook, workdir, combined.String()))
	}
	return nil
}

// lastTaskError pulls the most useful line out of ansible output: the last
// fatal line when present, otherwise the last non-empty line.
func lastTaskError(output string) string {
	lines := strings.Split(output, "\n")
	var last string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "fatal:") || strings.HasPrefix(line, "failed:") {
			last = line
		}
	}
	if last == "" {
		for i := len(lines) - 1; i >= 0; i-- {
			if line := strings.TrimSpace(lines[i]); line != "" {
				last = line
				break
			}
		}
	}
	if len(last) > 200 {
		last = last[:200] + "..."
	}
	if last == "" {
		return "no output"
	}
	return last
}
