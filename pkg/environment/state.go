package environment

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// Tag is the type-level lifecycle position of an environment. The canonical
// sequence per phase is pending -> in progress -> succeeded | failed;
// Destroy is the sole transition reachable from every state.
type Tag string

const (
	TagCreated Tag = "created"

	TagProvisioning    Tag = "provisioning"
	TagProvisioned     Tag = "provisioned"
	TagProvisionFailed Tag = "provision_failed"

	TagConfiguring     Tag = "configuring"
	TagConfigured      Tag = "configured"
	TagConfigureFailed Tag = "configure_failed"

	TagReleasing     Tag = "releasing"
	TagReleased      Tag = "released"
	TagReleaseFailed Tag = "release_failed"

	TagRunning   Tag = "running"
	TagRunFailed Tag = "run_failed"

	TagDestroying    Tag = "destroying"
	TagDestroyed     Tag = "destroyed"
	TagDestroyFailed Tag = "destroy_failed"
)

// knownTags is the closed set of valid state tags. Load rejects anything
// outside it as corrupt rather than coercing to a default.
var knownTags = map[Tag]struct{}{
	TagCreated:         {},
	TagProvisioning:    {},
	TagProvisioned:     {},
	TagProvisionFailed: {},
	TagConfiguring:     {},
	TagConfigured:      {},
	TagConfigureFailed: {},
	TagReleasing:       {},
	TagReleased:        {},
	TagReleaseFailed:   {},
	TagRunning:         {},
	TagRunFailed:       {},
	TagDestroying:      {},
	TagDestroyed:       {},
	TagDestroyFailed:   {},
}

// KnownTag reports whether t is a valid lifecycle tag.
func KnownTag(t Tag) bool {
	_, ok := knownTags[t]
	return ok
}

// IsFailed reports whether the tag is a failure state. Failure states
// always carry a FailureContext.
func (t Tag) IsFailed() bool {
	switch t {
	case TagProvisionFailed, TagConfigureFailed, TagReleaseFailed, TagRunFailed, TagDestroyFailed:
		return true
	}
	return false
}

func (t Tag) String() string { return string(t) }

// FailureContext records which step failed, how, and when. It is attached
// to every failed state and never to a success state.
type FailureContext struct {
	// FailedStep names the step in the command's sequence that failed,
	// scoped per command (e.g. "ApplyInfrastructure").
	FailedStep string `json:"failed_step"`

	// ErrorKind is the taxonomy classification of the failure.
	ErrorKind apperrors.Kind `json:"error_kind"`

	// ErrorSummary is a short human-readable summary, not a stack trace.
	ErrorSummary string `json:"error_summary"`

	OccurredAt time.Time `json:"occurred_at"`

	// TraceID correlates the persisted failure with log output.
	TraceID string `json:"trace_id"`
}

// NewFailureContext builds a FailureContext for a failed step.
func NewFailureContext(step string, err error, occurredAt time.Time) FailureContext {
	return FailureContext{
		FailedStep:   step,
		ErrorKind:    apperrors.KindOf(err),
		ErrorSummary: err.Error(),
		OccurredAt:   occurredAt,
		TraceID:      uuid.New().String(),
	}
}

// Record pairs an Environment with its lifecycle tag and, for failed
// states, the failure context. Transition methods are the only way to
// produce a new tag; they refuse transitions from the wrong predecessor.
type Record struct {
	Tag     Tag
	Env     Environment
	Failure *FailureContext
}

// NewCreated produces the initial record for a freshly created environment.
func NewCreated(env Environment) Record {
	return Record{Tag: TagCreated, Env: env}
}

// Validate checks the tag/failure-context invariant.
func (r Record) Validate() error {
	if !KnownTag(r.Tag) {
		return apperrors.Newf(apperrors.KindCorruptState, "unknown state tag %q", r.Tag)
	}
	if r.Tag.IsFailed() && r.Failure == nil {
		return apperrors.Newf(apperrors.KindCorruptState,
			"state %q requires a failure context", r.Tag)
	}
	if !r.Tag.IsFailed() && r.Failure != nil {
		return apperrors.Newf(apperrors.KindCorruptState,
			"state %q must not carry a failure context", r.Tag)
	}
	return nil
}

// WithInstanceIP returns a copy of the record with the instance address set.
func (r Record) WithInstanceIP(ip string) Record {
	r.Env.InstanceIP = ip
	return r
}

func (r Record) transition(to Tag, failure *FailureContext, from ...Tag) (Record, error) {
	for _, tag := range from {
		if r.Tag == tag {
			return Record{Tag: to, Env: r.Env, Failure: failure}, nil
		}
	}
	return Record{}, apperrors.Newf(apperrors.KindWrongState,
		"environment %q is in state %q, expected %s", r.Env.Name, r.Tag, oneOf(from)).
		WithTroubleshooting("Each command only runs from its designated predecessor state. " +
			"Run \"deployctl show " + r.Env.Name.String() + "\" to inspect the current state " +
			"and pick the command that applies, or destroy and recreate the environment.")
}

func oneOf(tags []Tag) string {
	if len(tags) == 1 {
		return `"` + tags[0].String() + `"`
	}
	s := "one of "
	for i, t := range tags {
		if i > 0 {
			s += ", "
		}
		s += `"` + t.String() + `"`
	}
	return s
}

// StartProvisioning moves to the provisioning in-progress state. A failed
// provision may be retried from the top of its step sequence.
func (r Record) StartProvisioning() (Record, error) {
	return r.transition(TagProvisioning, nil, TagCreated, TagProvisionFailed)
}

// Provisioned marks provisioning as successfully completed.
func (r Record) Provisioned() (Record, error) {
	return r.transition(TagProvisioned, nil, TagProvisioning)
}

// ProvisionFailed marks provisioning as failed with context.
func (r Record) ProvisionFailed(fc FailureContext) (Record, error) {
	return r.transition(TagProvisionFailed, &fc, TagProvisioning)
}

// StartConfiguring moves to the configuring in-progress state.
func (r Record) StartConfiguring() (Record, error) {
	return r.transition(TagConfiguring, nil, TagProvisioned, TagConfigureFailed)
}

// Configured marks configuration as successfully completed.
func (r Record) Configured() (Record, error) {
	return r.transition(TagConfigured, nil, TagConfiguring)
}

// ConfigureFailed marks configuration as failed with context.
func (r Record) ConfigureFailed(fc FailureContext) (Record, error) {
	return r.transition(TagConfigureFailed, &fc, TagConfiguring)
}

// StartReleasing moves to the releasing in-progress state.
func (r Record) StartReleasing() (Record, error) {
	return r.transition(TagReleasing, nil, TagConfigured, TagReleaseFailed)
}

// Released marks the release as successfully completed.
func (r Record) Released() (Record, error) {
	return r.transition(TagReleased, nil, TagReleasing)
}

// ReleaseFailed marks the release as failed with context.
func (r Record) ReleaseFailed(fc FailureContext) (Record, error) {
	return r.transition(TagReleaseFailed, &fc, TagReleasing)
}

// Running marks the application services as started. The run phase has no
// persisted in-progress tag: Released transitions directly to Running or
// RunFailed.
func (r Record) Running() (Record, error) {
	return r.transition(TagRunning, nil, TagReleased, TagRunFailed)
}

// RunFailed marks the run command as failed with context.
func (r Record) RunFailed(fc FailureContext) (Record, error) {
	return r.transition(TagRunFailed, &fc, TagReleased, TagRunFailed)
}

// StartDestroying moves to the destroying state. Destroy is reachable from
// every state, including failure states and a previous destroying state
// left behind by a crash.
func (r Record) StartDestroying() Record {
	return Record{Tag: TagDestroying, Env: r.Env}
}

// Destroyed marks destruction as successfully completed.
func (r Record) Destroyed() (Record, error) {
	return r.transition(TagDestroyed, nil, TagDestroying)
}

// DestroyFailed marks destruction as failed with context.
func (r Record) DestroyFailed(fc FailureContext) (Record, error) {
	return r.transition(TagDestroyFailed, &fc, TagDestroying)
}
