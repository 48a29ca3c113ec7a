package command

import (
	"context"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
	"github.com/opsmith/deployctl/pkg/step"
	"github.com/opsmith/deployctl/pkg/template"
)

// Run starts the released stack and verifies the services come up. Runs
// from Released, or from RunFailed to retry. Unlike the other forward
// commands, run has no persisted in-progress state: the instance either
// ends up Running or RunFailed.
func (h *Handlers) Run(ctx context.Context, name environment.Name, rep step.Reporter) error {
	logger := h.logger.With().Str("command", "run").Str("environment", name.String()).Logger()

	rec, err := h.store.Load(name)
	if err != nil {
		return err
	}

	lock, err := h.store.Lock(name, "run")
	if err != nil {
		return err
	}
	defer lock.Unlock()

	// Assert the start state up front so a wrong-state invocation runs
	// nothing and persists nothing.
	if _, err := rec.Running(); err != nil {
		return err
	}
	logger.Info().Str("state", rec.Tag.String()).Msg("command started")

	if stepErr := step.RunAll(ctx, logger, rep, h.runSteps(&rec)); stepErr != nil {
		fc := environment.NewFailureContext(apperrors.StepOf(stepErr), stepErr, h.now())
		failed, terr := rec.RunFailed(fc)
		if terr != nil {
			return terr
		}
		if perr := h.store.Persist(failed); perr != nil {
			return perr
		}
		logger.Error().Str("state", failed.Tag.String()).
			Str("trace_id", fc.TraceID).Msg("command failed")
		return stepErr
	}

	done, err := rec.Running()
	if err != nil {
		return err
	}
	if err := h.store.Persist(done); err != nil {
		return err
	}
	logger.Info().Str("state", done.Tag.String()).Msg("command completed")
	return nil
}

func (h *Handlers) runSteps(working *environment.Record) []step.Step {
	ansibleDir := h.layout.AnsibleDir(working.Env.Name)

	return []step.Step{
		{Name: "StartServices", Run: func(ctx context.Context) error {
			return h.playbook.RunPlaybook(ctx, ansibleDir, template.PlaybookStartServices)
		}},
		{Name: "VerifyServicesRunning", Run: func(ctx context.Context) error {
			return h.playbook.RunPlaybook(ctx, ansibleDir, template.PlaybookVerifyServices)
		}},
	}
}
