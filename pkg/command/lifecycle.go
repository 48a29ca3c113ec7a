package command

import (
	"context"
	"os"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// Create registers a new environment in the Created state. The name must
// not already be in use.
func (h *Handlers) Create(_ context.Context, env environment.Environment) error {
	if h.store.Exists(env.Name) {
		return apperrors.Newf(apperrors.KindConflict,
			"environment %q already exists", env.Name).
			WithTroubleshooting("Pick a different name, or destroy and purge the existing " +
				"environment first.")
	}
	rec := environment.NewCreated(env)
	if err := h.store.Persist(rec); err != nil {
		return err
	}
	h.logger.Info().Str("command", "create").Str("environment", env.Name.String()).
		Str("state", rec.Tag.String()).Msg("environment created")
	return nil
}

// Purge removes an environment's on-disk record. Without force it only
// applies to Destroyed environments; force also removes records whose
// state file cannot be read.
func (h *Handlers) Purge(_ context.Context, name environment.Name, force bool) error {
	rec, err := h.store.Load(name)
	switch {
	case err == nil:
		if rec.Tag != environment.TagDestroyed && !force {
			return apperrors.Newf(apperrors.KindWrongState,
				"environment %q is in state %q, only destroyed environments can be purged",
				name, rec.Tag).
				WithTroubleshooting("Run \"deployctl destroy " + name.String() + "\" first, or pass " +
					"--force to discard the record while keeping any remote resources untouched.")
		}
	case apperrors.IsNotFound(err):
		return err
	default:
		if !force {
			return err
		}
		h.logger.Warn().Str("environment", name.String()).Err(err).
			Msg("purging unreadable state file")
	}

	if err := h.store.Delete(name); err != nil {
		return err
	}
	// Stale lock files or rendered trees may remain; purge removes the
	// whole footprint.
	for _, dir := range []string{h.layout.DataDir(name), h.layout.BuildDir(name)} {
		if err := os.RemoveAll(dir); err != nil {
			return apperrors.Wrap(apperrors.KindIo, "failed to remove "+dir, err)
		}
	}
	h.logger.Info().Str("command", "purge").Str("environment", name.String()).
		Msg("environment purged")
	return nil
}
