package command

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
	"github.com/opsmith/deployctl/pkg/state"
	"github.com/opsmith/deployctl/pkg/step"
	"github.com/opsmith/deployctl/pkg/workspace"
)

// fakeInfra records invocations and fails on demand.
type fakeInfra struct {
	calls      []string
	applyErr   error
	destroyErr error
	outputs    map[string]string
	outputsErr error
}

func (f *fakeInfra) Init(context.Context, string) error {
	f.calls = append(f.calls, "init")
	return nil
}

func (f *fakeInfra) Apply(context.Context, string) error {
	f.calls = append(f.calls, "apply")
	return f.applyErr
}

func (f *fakeInfra) Destroy(context.Context, string) error {
	f.calls = append(f.calls, "destroy")
	return f.destroyErr
}

func (f *fakeInfra) Outputs(context.Context, string) (map[string]string, error) {
	f.calls = append(f.calls, "outputs")
	if f.outputsErr != nil {
		return nil, f.outputsErr
	}
	if f.outputs == nil {
		return map[string]string{"instance_ip": "10.140.0.11"}, nil
	}
	return f.outputs, nil
}

// fakePlaybook records which playbooks ran and fails a chosen one.
type fakePlaybook struct {
	ran     []string
	failOn  string
	failErr error
}

func (f *fakePlaybook) RunPlaybook(_ context.Context, _ string, playbook string) error {
	f.ran = append(f.ran, playbook)
	if playbook == f.failOn {
		return f.failErr
	}
	return nil
}

// fakeRenderer materializes destination directories like the real renderer
// so the destroy heuristic sees a provisioning working tree.
type fakeRenderer struct {
	infraErr error
}

func (f *fakeRenderer) RenderInfrastructure(_ environment.Environment, destDir string) error {
	if f.infraErr != nil {
		return f.infraErr
	}
	return os.MkdirAll(destDir, 0o755)
}

func (f *fakeRenderer) RenderConfiguration(_ environment.Environment, destDir string) error {
	return os.MkdirAll(destDir, 0o755)
}

func (f *fakeRenderer) RenderStack(_ environment.Environment, destDir string) error {
	return os.MkdirAll(destDir, 0o755)
}

func (f *fakeRenderer) ValidateInfrastructure(string) error { return nil }

type fakeProber struct {
	err   error
	calls int
}

func (f *fakeProber) WaitUntilReachable(context.Context, string, environment.SSHCredentials) error {
	f.calls++
	return f.err
}

type fixture struct {
	handlers *Handlers
	store    *state.Store
	layout   workspace.Layout
	infra    *fakeInfra
	playbook *fakePlaybook
	renderer *fakeRenderer
	prober   *fakeProber
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	layout := workspace.Default(t.TempDir())
	store := state.NewStore(layout)
	f := &fixture{
		store:    store,
		layout:   layout,
		infra:    &fakeInfra{},
		playbook: &fakePlaybook{},
		renderer: &fakeRenderer{},
		prober:   &fakeProber{},
	}
	f.handlers = NewHandlers(store, f.infra, f.playbook, f.renderer, f.prober, zerolog.Nop())
	f.handlers.now = func() time.Time {
		return time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	}
	return f
}

func (f *fixture) createEnv(t *testing.T, name string) environment.Name {
	t.Helper()
	n, err := environment.NewName(name)
	require.NoError(t, err)
	provider, err := environment.NewLXDProvider(environment.LXDConfig{Profile: "default"})
	require.NoError(t, err)
	creds, err := environment.NewSSHCredentials("/tmp/key", "/tmp/key.pub", "deploy", 22)
	require.NoError(t, err)
	env, err := environment.New(n, provider, creds, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, f.handlers.Create(context.Background(), env))
	return n
}

func (f *fixture) tag(t *testing.T, name environment.Name) environment.Tag {
	t.Helper()
	rec, err := f.store.Load(name)
	require.NoError(t, err)
	return rec.Tag
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")

	rec, err := f.store.Load(name)
	require.NoError(t, err)

	err = f.handlers.Create(context.Background(), rec.Env)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestProvisionHappyPath(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")

	require.NoError(t, f.handlers.Provision(context.Background(), name, step.NopReporter{}))

	rec, err := f.store.Load(name)
	require.NoError(t, err)
	assert.Equal(t, environment.TagProvisioned, rec.Tag)
	assert.Equal(t, "10.140.0.11", rec.Env.InstanceIP)
	assert.Nil(t, rec.Failure)
	assert.Equal(t, []string{"init", "apply", "outputs"}, f.infra.calls)
	assert.Equal(t, 1, f.prober.calls)
}

func TestProvisionWrongStateLeavesFileUntouched(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	require.NoError(t, f.handlers.Provision(context.Background(), name, step.NopReporter{}))
	require.NoError(t, f.handlers.Configure(context.Background(), name, step.NopReporter{}))

	before, err := os.ReadFile(f.layout.StateFile(name))
	require.NoError(t, err)

	err = f.handlers.Provision(context.Background(), name, step.NopReporter{})
	require.Error(t, err)
	assert.True(t, apperrors.IsWrongState(err))

	after, readErr := os.ReadFile(f.layout.StateFile(name))
	require.NoError(t, readErr)
	assert.Equal(t, before, after, "a refused command must not touch the state file")
}

func TestProvisionFailureAttributesFailedStep(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	f.infra.applyErr = apperrors.New(apperrors.KindCommandExecution, "quota exceeded")

	err := f.handlers.Provision(context.Background(), name, step.NopReporter{})
	require.Error(t, err)

	rec, loadErr := f.store.Load(name)
	require.NoError(t, loadErr)
	assert.Equal(t, environment.TagProvisionFailed, rec.Tag)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, "ApplyInfrastructure", rec.Failure.FailedStep)
	assert.Equal(t, apperrors.KindCommandExecution, rec.Failure.ErrorKind)
	assert.NotEmpty(t, rec.Failure.TraceID)
	assert.Empty(t, rec.Env.InstanceIP)
	assert.Equal(t, []string{"init", "apply"}, f.infra.calls, "steps after the failure must not run")
	assert.Zero(t, f.prober.calls)
}

func TestProvisionFailureAfterOutputsKeepsInstanceIP(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	f.prober.err = apperrors.New(apperrors.KindTimeout, "never came up")

	err := f.handlers.Provision(context.Background(), name, step.NopReporter{})
	require.Error(t, err)

	rec, loadErr := f.store.Load(name)
	require.NoError(t, loadErr)
	assert.Equal(t, environment.TagProvisionFailed, rec.Tag)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, "WaitForConnectivity", rec.Failure.FailedStep)
	assert.Equal(t, apperrors.KindTimeout, rec.Failure.ErrorKind)
	assert.Equal(t, "10.140.0.11", rec.Env.InstanceIP,
		"the address parsed before the failure must be persisted")
}

func TestProvisionRejectsMissingInstanceIPOutput(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	f.infra.outputs = map[string]string{"something_else": "x"}

	err := f.handlers.Provision(context.Background(), name, step.NopReporter{})
	require.Error(t, err)

	rec, loadErr := f.store.Load(name)
	require.NoError(t, loadErr)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, "ParseProvisionOutputs", rec.Failure.FailedStep)
}

func TestProvisionRetriesFromFailedState(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	f.infra.applyErr = apperrors.New(apperrors.KindCommandExecution, "transient")
	require.Error(t, f.handlers.Provision(context.Background(), name, step.NopReporter{}))
	require.Equal(t, environment.TagProvisionFailed, f.tag(t, name))

	f.infra.applyErr = nil
	require.NoError(t, f.handlers.Provision(context.Background(), name, step.NopReporter{}))
	assert.Equal(t, environment.TagProvisioned, f.tag(t, name))
}

func TestConfigureRunsPlaybooksInOrder(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	require.NoError(t, f.handlers.Provision(context.Background(), name, step.NopReporter{}))

	require.NoError(t, f.handlers.Configure(context.Background(), name, step.NopReporter{}))
	assert.Equal(t, environment.TagConfigured, f.tag(t, name))
	assert.Equal(t, []string{"install-docker.yml", "install-compose.yml"}, f.playbook.ran)
}

func TestConfigureFailureOnSecondPlaybook(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	require.NoError(t, f.handlers.Provision(context.Background(), name, step.NopReporter{}))

	f.playbook.failOn = "install-compose.yml"
	f.playbook.failErr = apperrors.New(apperrors.KindCommandExecution, "apt broke")

	require.Error(t, f.handlers.Configure(context.Background(), name, step.NopReporter{}))

	rec, err := f.store.Load(name)
	require.NoError(t, err)
	assert.Equal(t, environment.TagConfigureFailed, rec.Tag)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, "InstallComposePlugin", rec.Failure.FailedStep)
}

func TestFullLifecycleThroughRunning(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	ctx := context.Background()

	require.NoError(t, f.handlers.Provision(ctx, name, step.NopReporter{}))
	require.NoError(t, f.handlers.Configure(ctx, name, step.NopReporter{}))
	require.NoError(t, f.handlers.Release(ctx, name, step.NopReporter{}))
	require.NoError(t, f.handlers.Run(ctx, name, step.NopReporter{}))

	assert.Equal(t, environment.TagRunning, f.tag(t, name))
	assert.Equal(t, []string{
		"install-docker.yml", "install-compose.yml",
		"deploy-stack.yml",
		"start-services.yml", "verify-services.yml",
	}, f.playbook.ran)
}

func TestRunWrongStatePersistsNothing(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")

	before, err := os.ReadFile(f.layout.StateFile(name))
	require.NoError(t, err)

	err = f.handlers.Run(context.Background(), name, step.NopReporter{})
	require.Error(t, err)
	assert.True(t, apperrors.IsWrongState(err))
	assert.Empty(t, f.playbook.ran, "no step may run from the wrong state")

	after, readErr := os.ReadFile(f.layout.StateFile(name))
	require.NoError(t, readErr)
	assert.Equal(t, before, after)
}

func TestRunFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	ctx := context.Background()
	require.NoError(t, f.handlers.Provision(ctx, name, step.NopReporter{}))
	require.NoError(t, f.handlers.Configure(ctx, name, step.NopReporter{}))
	require.NoError(t, f.handlers.Release(ctx, name, step.NopReporter{}))

	f.playbook.failOn = "verify-services.yml"
	f.playbook.failErr = apperrors.New(apperrors.KindCommandExecution, "service down")
	require.Error(t, f.handlers.Run(ctx, name, step.NopReporter{}))

	rec, err := f.store.Load(name)
	require.NoError(t, err)
	assert.Equal(t, environment.TagRunFailed, rec.Tag)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, "VerifyServicesRunning", rec.Failure.FailedStep)

	f.playbook.failOn = ""
	require.NoError(t, f.handlers.Run(ctx, name, step.NopReporter{}))
	assert.Equal(t, environment.TagRunning, f.tag(t, name))
}

func TestDestroySkipsTeardownWhenNeverProvisioned(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")

	require.NoError(t, f.handlers.Destroy(context.Background(), name, step.NopReporter{}))

	assert.Equal(t, environment.TagDestroyed, f.tag(t, name))
	assert.Empty(t, f.infra.calls, "teardown must not be attempted without a working directory")
}

func TestDestroyRunsTeardownWhenProvisioned(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	ctx := context.Background()
	require.NoError(t, f.handlers.Provision(ctx, name, step.NopReporter{}))
	require.NoError(t, f.handlers.Configure(ctx, name, step.NopReporter{}))
	f.infra.calls = nil

	require.NoError(t, f.handlers.Destroy(ctx, name, step.NopReporter{}))

	assert.Equal(t, environment.TagDestroyed, f.tag(t, name))
	assert.Equal(t, []string{"destroy"}, f.infra.calls, "exactly one teardown call")

	_, err := os.Stat(f.layout.BuildDir(name))
	assert.True(t, os.IsNotExist(err), "build subtree must be cleaned up")

	// The data directory is recreated by the final persist and holds only
	// the fresh Destroyed record.
	entries, err := os.ReadDir(f.layout.DataDir(name))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "environment.json", entries[0].Name())
}

func TestDestroyFromFailedState(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	ctx := context.Background()
	require.NoError(t, f.handlers.Provision(ctx, name, step.NopReporter{}))

	f.playbook.failOn = "install-docker.yml"
	f.playbook.failErr = apperrors.New(apperrors.KindCommandExecution, "apt broke")
	require.Error(t, f.handlers.Configure(ctx, name, step.NopReporter{}))
	require.Equal(t, environment.TagConfigureFailed, f.tag(t, name))

	require.NoError(t, f.handlers.Destroy(ctx, name, step.NopReporter{}))
	assert.Equal(t, environment.TagDestroyed, f.tag(t, name))
}

func TestDestroyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	ctx := context.Background()
	require.NoError(t, f.handlers.Destroy(ctx, name, step.NopReporter{}))

	f.infra.calls = nil
	require.NoError(t, f.handlers.Destroy(ctx, name, step.NopReporter{}))
	assert.Empty(t, f.infra.calls)
	assert.Equal(t, environment.TagDestroyed, f.tag(t, name))
}

func TestDestroyTeardownFailureStillCleansUp(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	ctx := context.Background()
	require.NoError(t, f.handlers.Provision(ctx, name, step.NopReporter{}))

	f.infra.destroyErr = apperrors.New(apperrors.KindCommandExecution, "api unreachable")
	require.Error(t, f.handlers.Destroy(ctx, name, step.NopReporter{}))

	rec, err := f.store.Load(name)
	require.NoError(t, err)
	assert.Equal(t, environment.TagDestroyFailed, rec.Tag)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, "DestroyInfrastructure", rec.Failure.FailedStep)

	_, statErr := os.Stat(f.layout.BuildDir(name))
	assert.True(t, os.IsNotExist(statErr), "cleanup runs even when teardown fails")
}

func TestPurgeRequiresDestroyedState(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	ctx := context.Background()

	err := f.handlers.Purge(ctx, name, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsWrongState(err))

	require.NoError(t, f.handlers.Destroy(ctx, name, step.NopReporter{}))
	require.NoError(t, f.handlers.Purge(ctx, name, false))
	assert.False(t, f.store.Exists(name))

	err = f.handlers.Purge(ctx, name, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPurgeForceRemovesCorruptRecord(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	require.NoError(t, os.WriteFile(f.layout.StateFile(name), []byte("{"), 0o644))

	require.Error(t, f.handlers.Purge(context.Background(), name, false))
	require.NoError(t, f.handlers.Purge(context.Background(), name, true))
	assert.False(t, f.store.Exists(name))
}

func TestCommandsHoldTheEnvironmentLock(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")

	lock, err := f.store.Lock(name, "other")
	require.NoError(t, err)
	defer lock.Unlock()

	err = f.handlers.Provision(context.Background(), name, step.NopReporter{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
	assert.Equal(t, environment.TagCreated, f.tag(t, name))
}

func TestPersistedFailureUsesInjectedClock(t *testing.T) {
	f := newFixture(t)
	name := f.createEnv(t, "demo")
	f.infra.applyErr = apperrors.New(apperrors.KindCommandExecution, "boom")

	require.Error(t, f.handlers.Provision(context.Background(), name, step.NopReporter{}))

	rec, err := f.store.Load(name)
	require.NoError(t, err)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), rec.Failure.OccurredAt)
}
