package command

import (
	"context"
	"fmt"
	"os"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
	"github.com/opsmith/deployctl/pkg/step"
)

// Destroy tears down an environment's infrastructure and cleans up its
// local working trees. It is reachable from every state and idempotent:
// destroying an already-Destroyed environment succeeds immediately.
//
// Whether infrastructure teardown runs is decided by the presence of the
// provisioning working directory. That is a proxy, not proof: a crash
// between apply and the directory write, or a manually removed directory,
// can leave remote resources behind. Local cleanup always runs.
func (h *Handlers) Destroy(ctx context.Context, name environment.Name, rep step.Reporter) error {
	logger := h.logger.With().Str("command", "destroy").Str("environment", name.String()).Logger()

	rec, err := h.store.Load(name)
	if err != nil {
		return err
	}
	if rec.Tag == environment.TagDestroyed {
		rep.StepSkipped("DestroyInfrastructure", "environment is already destroyed")
		rep.StepSkipped("CleanupWorkspace", "environment is already destroyed")
		logger.Info().Msg("already destroyed, nothing to do")
		return nil
	}

	lock, err := h.store.Lock(name, "destroy")
	if err != nil {
		return err
	}
	defer lock.Unlock()

	destroying := rec.StartDestroying()
	if err := h.store.Persist(destroying); err != nil {
		return err
	}
	logger.Info().Str("state", destroying.Tag.String()).Msg("command started")

	// Teardown first, so cleanup cannot delete the tool state the
	// teardown needs.
	var teardownErr error
	tofuDir := h.layout.TofuDir(name)
	if _, statErr := os.Stat(tofuDir); statErr == nil {
		rep.StepStarted("DestroyInfrastructure")
		if teardownErr = h.infra.Destroy(ctx, tofuDir); teardownErr != nil {
			rep.StepFailed("DestroyInfrastructure", teardownErr)
			logger.Error().Err(teardownErr).Msg("infrastructure teardown failed")
		} else {
			rep.StepCompleted("DestroyInfrastructure")
		}
	} else {
		rep.StepSkipped("DestroyInfrastructure", "no provisioning working directory, nothing was provisioned")
		logger.Info().Msg("skipping teardown, no provisioning working directory")
	}

	// Local cleanup runs regardless of the teardown outcome so a failed
	// destroy still reclaims the rendered working trees.
	rep.StepStarted("CleanupWorkspace")
	cleanupErr := h.cleanupWorkspace(name)
	if cleanupErr != nil {
		rep.StepFailed("CleanupWorkspace", cleanupErr)
		logger.Error().Err(cleanupErr).Msg("workspace cleanup failed")
	} else {
		rep.StepCompleted("CleanupWorkspace")
	}

	if teardownErr != nil || cleanupErr != nil {
		stepName, cause := "DestroyInfrastructure", teardownErr
		if teardownErr == nil {
			stepName, cause = "CleanupWorkspace", cleanupErr
		}
		fc := environment.NewFailureContext(stepName, cause, h.now())
		failed, terr := destroying.DestroyFailed(fc)
		if terr != nil {
			return terr
		}
		if perr := h.store.Persist(failed); perr != nil {
			return perr
		}
		logger.Error().Str("state", failed.Tag.String()).
			Str("trace_id", fc.TraceID).Msg("command failed")
		return cause
	}

	done, err := destroying.Destroyed()
	if err != nil {
		return err
	}
	// Cleanup removed the data directory; persisting recreates it with a
	// fresh Destroyed record so the outcome stays inspectable until purge.
	if err := h.store.Persist(done); err != nil {
		return err
	}
	logger.Info().Str("state", done.Tag.String()).Msg("command completed")
	return nil
}

// cleanupWorkspace removes the environment's build and data subtrees. It
// is idempotent: removing what is already gone is a success.
func (h *Handlers) cleanupWorkspace(name environment.Name) error {
	for _, dir := range []string{h.layout.BuildDir(name), h.layout.DataDir(name)} {
		if err := os.RemoveAll(dir); err != nil {
			return apperrors.Wrap(apperrors.KindIo,
				fmt.Sprintf("failed to remove %s", dir), err)
		}
	}
	return nil
}
