package step

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

type recorder struct {
	started   []string
	completed []string
	failed    []string
}

func (r *recorder) StepStarted(name string)         { r.started = append(r.started, name) }
func (r *recorder) StepCompleted(name string)       { r.completed = append(r.completed, name) }
func (r *recorder) StepSkipped(name, reason string) {}
func (r *recorder) StepFailed(name string, _ error) { r.failed = append(r.failed, name) }

func TestRunAllShortCircuitsOnFirstFailure(t *testing.T) {
	var cRan bool
	rec := &recorder{}

	steps := []Step{
		{Name: "A", Run: func(context.Context) error { return nil }},
		{Name: "B", Run: func(context.Context) error {
			return apperrors.New(apperrors.KindCommandExecution, "boom")
		}},
		{Name: "C", Run: func(context.Context) error { cRan = true; return nil }},
	}

	err := RunAll(context.Background(), zerolog.Nop(), rec, steps)
	require.Error(t, err)
	assert.Equal(t, "B", apperrors.StepOf(err))
	assert.False(t, cRan, "step C must never run after B fails")
	assert.Equal(t, []string{"A", "B"}, rec.started)
	assert.Equal(t, []string{"A"}, rec.completed)
	assert.Equal(t, []string{"B"}, rec.failed)
}

func TestRunAllKeepsNestedStepAttribution(t *testing.T) {
	inner := apperrors.New(apperrors.KindTimeout, "expired").WithStep("Inner")
	steps := []Step{{Name: "Outer", Run: func(context.Context) error { return inner }}}

	err := RunAll(context.Background(), zerolog.Nop(), NopReporter{}, steps)
	require.Error(t, err)
	assert.Equal(t, "Inner", apperrors.StepOf(err))
}

func TestRunAllClassifiesPlainErrors(t *testing.T) {
	steps := []Step{{Name: "A", Run: func(context.Context) error { return errors.New("plain") }}}

	err := RunAll(context.Background(), zerolog.Nop(), NopReporter{}, steps)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindIo, apperrors.KindOf(err))
	assert.Equal(t, "A", apperrors.StepOf(err))
}

func TestRunAllSuccess(t *testing.T) {
	rec := &recorder{}
	steps := []Step{
		{Name: "A", Run: func(context.Context) error { return nil }},
		{Name: "B", Run: func(context.Context) error { return nil }},
	}

	require.NoError(t, RunAll(context.Background(), zerolog.Nop(), rec, steps))
	assert.Equal(t, []string{"A", "B"}, rec.completed)
	assert.Empty(t, rec.failed)
}
