// Package step defines the atomic unit of work inside a command handler.
package step

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// Step is a named, single-purpose unit of work. A step performs one
// externally observable action and either succeeds, feeding whatever it
// produced to the next step through the command's run state, or fails
// with a typed error. Steps never catch and hide errors from deeper
// layers; they translate external-tool failures into the shared taxonomy.
type Step struct {
	// Name identifies the step in failure contexts, scoped per command.
	Name string

	// Run performs the step's single action.
	Run func(ctx context.Context) error
}

// Reporter receives user-facing progress for one command execution. It is
// passed by reference down the call chain and never outlives the command:
// the lifecycle is sequential, so no synchronization is involved.
type Reporter interface {
	StepStarted(name string)
	StepCompleted(name string)
	StepSkipped(name, reason string)
	StepFailed(name string, err error)
}

// NopReporter discards all progress events.
type NopReporter struct{}

func (NopReporter) StepStarted(string)         {}
func (NopReporter) StepCompleted(string)       {}
func (NopReporter) StepSkipped(string, string) {}
func (NopReporter) StepFailed(string, error)   {}

// RunAll executes steps in order, short-circuiting on the first failure.
// The returned error carries the failing step's name; steps after the
// failing one never run. Errors that already carry a taxonomy kind keep
// it; anything else is classified as an I/O failure at this boundary.
func RunAll(ctx context.Context, logger zerolog.Logger, rep Reporter, steps []Step) error {
	for _, s := range steps {
		rep.StepStarted(s.Name)
		logger.Debug().Str("step", s.Name).Msg("step started")

		if err := s.Run(ctx); err != nil {
			err = attach(err, s.Name)
			rep.StepFailed(s.Name, err)
			logger.Error().Str("step", s.Name).Err(err).Msg("step failed")
			return err
		}

		rep.StepCompleted(s.Name)
		logger.Debug().Str("step", s.Name).Msg("step completed")
	}
	return nil
}

// attach tags err with the step name. A step identifier set by a nested
// helper is preserved: a handler never translates one step's failure into
// a different step's context.
func attach(err error, stepName string) error {
	var e *apperrors.Error
	if errors.As(err, &e) {
		if e.Step == "" {
			e.Step = stepName
		}
		return err
	}
	return apperrors.Wrap(apperrors.KindIo, "step failed", err).WithStep(stepName)
}
