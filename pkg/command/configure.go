package command

import (
	"context"

	"github.com/opsmith/deployctl/pkg/environment"
	"github.com/opsmith/deployctl/pkg/step"
	"github.com/opsmith/deployctl/pkg/template"
)

// Configure installs the container runtime on the provisioned instance.
// Runs from Provisioned, or from ConfigureFailed to retry. Both playbooks
// are idempotent, so a retry re-running the first one is harmless.
func (h *Handlers) Configure(ctx context.Context, name environment.Name, rep step.Reporter) error {
	return h.runPhase(ctx, name, rep, phase{
		command: "configure",
		start:   environment.Record.StartConfiguring,
		succeed: environment.Record.Configured,
		fail:    environment.Record.ConfigureFailed,
		steps:   h.configureSteps,
	})
}

func (h *Handlers) configureSteps(working *environment.Record) []step.Step {
	ansibleDir := h.layout.AnsibleDir(working.Env.Name)

	return []step.Step{
		{Name: "InstallContainerRuntime", Run: func(ctx context.Context) error {
			return h.playbook.RunPlaybook(ctx, ansibleDir, template.PlaybookInstallDocker)
		}},
		{Name: "InstallComposePlugin", Run: func(ctx context.Context) error {
			return h.playbook.RunPlaybook(ctx, ansibleDir, template.PlaybookInstallCompose)
		}},
	}
}
