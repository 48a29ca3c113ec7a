package command

import (
	"context"

	"github.com/opsmith/deployctl/pkg/environment"
	"github.com/opsmith/deployctl/pkg/step"
	"github.com/opsmith/deployctl/pkg/template"
)

// Release renders the application stack artifacts and copies them onto the
// instance. Runs from Configured, or from ReleaseFailed to retry.
func (h *Handlers) Release(ctx context.Context, name environment.Name, rep step.Reporter) error {
	return h.runPhase(ctx, name, rep, phase{
		command: "release",
		start:   environment.Record.StartReleasing,
		succeed: environment.Record.Released,
		fail:    environment.Record.ReleaseFailed,
		steps:   h.releaseSteps,
	})
}

func (h *Handlers) releaseSteps(working *environment.Record) []step.Step {
	ansibleDir := h.layout.AnsibleDir(working.Env.Name)
	stackDir := h.layout.StackDir(working.Env.Name)

	return []step.Step{
		{Name: "RenderStackArtifacts", Run: func(context.Context) error {
			return h.renderer.RenderStack(working.Env, stackDir)
		}},
		{Name: "DeployStackArtifacts", Run: func(ctx context.Context) error {
			return h.playbook.RunPlaybook(ctx, ansibleDir, template.PlaybookDeployStack)
		}},
	}
}
