package command

import (
	"context"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
	"github.com/opsmith/deployctl/pkg/step"
	"github.com/opsmith/deployctl/pkg/tofu"
)

// Provision creates the environment's infrastructure and prepares the
// configuration working tree. Runs from Created, or from ProvisionFailed to
// retry the whole sequence from the top.
func (h *Handlers) Provision(ctx context.Context, name environment.Name, rep step.Reporter) error {
	return h.runPhase(ctx, name, rep, phase{
		command: "provision",
		start:   environment.Record.StartProvisioning,
		succeed: environment.Record.Provisioned,
		fail:    environment.Record.ProvisionFailed,
		steps:   h.provisionSteps,
	})
}

func (h *Handlers) provisionSteps(working *environment.Record) []step.Step {
	tofuDir := h.layout.TofuDir(working.Env.Name)
	ansibleDir := h.layout.AnsibleDir(working.Env.Name)

	return []step.Step{
		{Name: "RenderInfrastructureTemplates", Run: func(context.Context) error {
			return h.renderer.RenderInfrastructure(working.Env, tofuDir)
		}},
		{Name: "ValidateRenderedTemplates", Run: func(context.Context) error {
			return h.renderer.ValidateInfrastructure(tofuDir)
		}},
		{Name: "InitInfrastructure", Run: func(ctx context.Context) error {
			return h.infra.Init(ctx, tofuDir)
		}},
		{Name: "ApplyInfrastructure", Run: func(ctx context.Context) error {
			return h.infra.Apply(ctx, tofuDir)
		}},
		{Name: "ParseProvisionOutputs", Run: func(ctx context.Context) error {
			outputs, err := h.infra.Outputs(ctx, tofuDir)
			if err != nil {
				return err
			}
			ip, ok := outputs[tofu.OutputKeyInstanceIP]
			if !ok || ip == "" {
				return apperrors.Newf(apperrors.KindCommandExecution,
					"provisioning outputs are missing %q", tofu.OutputKeyInstanceIP).
					WithTroubleshooting("The infrastructure applied but did not publish the instance " +
						"address output. This points at a template defect.")
			}
			// Captured immediately: a later step failure still persists
			// the address, so destroy and diagnosis can use it.
			*working = working.WithInstanceIP(ip)
			return nil
		}},
		{Name: "RenderConfigurationTemplates", Run: func(context.Context) error {
			return h.renderer.RenderConfiguration(working.Env, ansibleDir)
		}},
		{Name: "WaitForConnectivity", Run: func(ctx context.Context) error {
			return h.prober.WaitUntilReachable(ctx, working.Env.InstanceIP, working.Env.SSH)
		}},
	}
}
