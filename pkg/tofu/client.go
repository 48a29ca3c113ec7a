// Package tofu wraps the OpenTofu/Terraform binary for provisioning.
package tofu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// OutputKeyInstanceIP is the stable output key under which every provider
// template must publish the instance address.
const OutputKeyInstanceIP = "instance_ip"

// Client executes OpenTofu operations against a working directory.
type Client struct {
	binaryPath string
	binaryName string
	logger     zerolog.Logger
}

// NewClient locates the tofu binary, falling back to terraform.
func NewClient(logger zerolog.Logger) (*Client, error) {
	binaryName := "tofu"
	binaryPath, err := exec.LookPath(binaryName)
	if err != nil {
		binaryName = "terraform"
		binaryPath, err = exec.LookPath(binaryName)
		if err != nil {
			return nil, apperrors.New(apperrors.KindConfiguration,
				"neither tofu nor terraform binary found in PATH").
				WithTroubleshooting("Install OpenTofu (https://opentofu.org) or Terraform and " +
					"make sure the binary is on your PATH.")
		}
	}
	return &Client{
		binaryPath: binaryPath,
		binaryName: binaryName,
		logger:     logger.With().Str("tool", binaryName).Logger(),
	}, nil
}

// Init initializes the working directory. Re-running against an already
// initialized directory is a no-op, which keeps provision retries cheap.
func (c *Client) Init(ctx context.Context, workdir string) error {
	if _, err := os.Stat(filepath.Join(workdir, ".terraform")); err == nil {
		c.logger.Debug().Str("workdir", workdir).Msg("already initialized, skipping init")
		return nil
	}
	_, err := c.run(ctx, workdir, "init", "-input=false")
	return err
}

// Apply creates or updates the infrastructure described in workdir.
func (c *Client) Apply(ctx context.Context, workdir string) error {
	_, err := c.run(ctx, workdir, "apply", "-auto-approve", "-input=false")
	return err
}

// Destroy tears down the infrastructure tracked in workdir's state.
func (c *Client) Destroy(ctx context.Context, workdir string) error {
	_, err := c.run(ctx, workdir, "destroy", "-auto-approve", "-input=false")
	return err
}

// Outputs reads `output -json` and flattens it to string values.
func (c *Client) Outputs(ctx context.Context, workdir string) (map[string]string, error) {
	raw, err := c.run(ctx, workdir, "output", "-json")
	if err != nil {
		return nil, err
	}
	return ParseOutputs([]byte(raw))
}

// tfOutput mirrors one entry of `tofu output -json`.
type tfOutput struct {
	Value     interface{} `json:"value"`
	Sensitive bool        `json:"sensitive"`
}

// ParseOutputs decodes the JSON output map produced by `output -json`.
func ParseOutputs(raw []byte) (map[string]string, error) {
	var decoded map[string]tfOutput
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCommandExecution,
			"failed to parse provisioning outputs", err).
			WithTroubleshooting("The provisioning tool produced output that is not valid JSON. " +
				"Run the tool manually in the environment's tofu working directory to inspect it.")
	}
	outputs := make(map[string]string, len(decoded))
	for key, out := range decoded {
		switch v := out.Value.(type) {
		case string:
			outputs[key] = v
		case float64:
			outputs[key] = strings.TrimSuffix(fmt.Sprintf("%v", v), ".0")
		case bool:
			outputs[key] = fmt.Sprintf("%t", v)
		default:
			// Composite outputs are kept as compact JSON.
			data, err := json.Marshal(v)
			if err != nil {
				continue
			}
			outputs[key] = string(data)
		}
	}
	return outputs, nil
}

func (c *Client) run(ctx context.Context, workdir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	cmd.Dir = workdir
	cmd.Env = append(os.Environ(), "TF_INPUT=0", "TF_IN_AUTOMATION=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug().Str("workdir", workdir).Strs("args", args).Msg("running provisioning tool")

	if err := cmd.Run(); err != nil {
		return stdout.String(), apperrors.Wrap(apperrors.KindCommandExecution,
			fmt.Sprintf("%s %s failed: %s", c.binaryName, args[0], summarize(stderr.String())), err).
			WithTroubleshooting(fmt.Sprintf("Run %q in %s to reproduce. Full stderr:\n%s",
				c.binaryName+" "+strings.Join(args, " "), workdir, stderr.String()))
	}
	return stdout.String(), nil
}

// summarize keeps external tool errors log-friendly: first non-empty
// stderr line, truncated.
func summarize(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 200 {
			return line[:200] + "..."
		}
		return line
	}
	return "no error output"
}
