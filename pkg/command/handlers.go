// Package command implements the lifecycle command handlers. Each handler
// owns one lifecycle transition end to end: it loads the environment,
// asserts the start state, persists the in-progress state, runs its step
// sequence, and persists the outcome.
package command

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
	"github.com/opsmith/deployctl/pkg/state"
	"github.com/opsmith/deployctl/pkg/step"
	"github.com/opsmith/deployctl/pkg/workspace"
)

// InfraClient provisions and tears down infrastructure out of a rendered
// working directory.
type InfraClient interface {
	Init(ctx context.Context, workdir string) error
	Apply(ctx context.Context, workdir string) error
	Destroy(ctx context.Context, workdir string) error
	Outputs(ctx context.Context, workdir string) (map[string]string, error)
}

// PlaybookRunner executes one playbook against a rendered working directory.
type PlaybookRunner interface {
	RunPlaybook(ctx context.Context, workdir, playbook string) error
}

// Renderer writes the per-tool working trees for an environment.
type Renderer interface {
	RenderInfrastructure(env environment.Environment, destDir string) error
	RenderConfiguration(env environment.Environment, destDir string) error
	RenderStack(env environment.Environment, destDir string) error
	ValidateInfrastructure(dir string) error
}

// Prober waits for an instance to accept SSH connections.
type Prober interface {
	WaitUntilReachable(ctx context.Context, ip string, creds environment.SSHCredentials) error
}

// Handlers bundles the collaborators every lifecycle command needs.
type Handlers struct {
	store    *state.Store
	layout   workspace.Layout
	infra    InfraClient
	playbook PlaybookRunner
	renderer Renderer
	prober   Prober
	logger   zerolog.Logger

	// now is swappable so tests control failure-context timestamps.
	now func() time.Time
}

// NewHandlers wires the lifecycle handlers.
func NewHandlers(store *state.Store, infra InfraClient, playbook PlaybookRunner,
	renderer Renderer, prober Prober, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:    store,
		layout:   store.Layout(),
		infra:    infra,
		playbook: playbook,
		renderer: renderer,
		prober:   prober,
		logger:   logger,
		now:      time.Now,
	}
}

// phase describes one forward lifecycle command for the shared runner.
type phase struct {
	command string

	// start moves the loaded record into the in-progress state. A
	// WrongState error here aborts before anything is persisted.
	start func(environment.Record) (environment.Record, error)

	// succeed and fail move the working record into its terminal state.
	succeed func(environment.Record) (environment.Record, error)
	fail    func(environment.Record, environment.FailureContext) (environment.Record, error)

	// steps builds the step sequence over the working record. Steps may
	// update the record (e.g. captured provisioning outputs); whatever is
	// in it when a step fails is what gets persisted with the failure.
	steps func(working *environment.Record) []step.Step
}

// runPhase is the generic forward-command algorithm: load, assert start
// state, persist in-progress, run steps, persist terminal state. The
// original step error is always returned to the caller, even when
// persisting the failed state succeeds.
func (h *Handlers) runPhase(ctx context.Context, name environment.Name, rep step.Reporter, p phase) error {
	logger := h.logger.With().Str("command", p.command).Str("environment", name.String()).Logger()

	rec, err := h.store.Load(name)
	if err != nil {
		return err
	}

	lock, err := h.store.Lock(name, p.command)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	working, err := p.start(rec)
	if err != nil {
		// Wrong start state: the state file stays untouched.
		return err
	}
	if err := h.store.Persist(working); err != nil {
		return err
	}
	logger.Info().Str("state", working.Tag.String()).Msg("command started")

	if stepErr := step.RunAll(ctx, logger, rep, p.steps(&working)); stepErr != nil {
		fc := environment.NewFailureContext(apperrors.StepOf(stepErr), stepErr, h.now())
		failed, terr := p.fail(working, fc)
		if terr != nil {
			return terr
		}
		if perr := h.store.Persist(failed); perr != nil {
			logger.Error().Err(perr).Msg("failed to persist failure state")
			return perr
		}
		logger.Error().Str("state", failed.Tag.String()).
			Str("trace_id", fc.TraceID).Msg("command failed")
		return stepErr
	}

	done, err := p.succeed(working)
	if err != nil {
		return err
	}
	if err := h.store.Persist(done); err != nil {
		return err
	}
	logger.Info().Str("state", done.Tag.String()).Msg("command completed")
	return nil
}
