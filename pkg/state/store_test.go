package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
	"github.com/opsmith/deployctl/pkg/workspace"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(workspace.Default(t.TempDir()))
}

func testRecord(t *testing.T, name string) environment.Record {
	t.Helper()
	n, err := environment.NewName(name)
	require.NoError(t, err)
	provider, err := environment.NewLXDProvider(environment.LXDConfig{Profile: "default"})
	require.NoError(t, err)
	creds, err := environment.NewSSHCredentials("/tmp/key", "/tmp/key.pub", "deploy", 22)
	require.NoError(t, err)
	env, err := environment.New(n, provider, creds, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return environment.NewCreated(env)
}

func TestPersistLoadRoundTrip(t *testing.T) {
	store := testStore(t)

	// Round-trip every terminal state, failed ones with context.
	terminal := []struct {
		tag    environment.Tag
		failed bool
	}{
		{environment.TagCreated, false},
		{environment.TagProvisioned, false},
		{environment.TagProvisionFailed, true},
		{environment.TagConfigured, false},
		{environment.TagConfigureFailed, true},
		{environment.TagReleased, false},
		{environment.TagReleaseFailed, true},
		{environment.TagRunning, false},
		{environment.TagRunFailed, true},
		{environment.TagDestroyed, false},
		{environment.TagDestroyFailed, true},
	}

	for _, tc := range terminal {
		rec := testRecord(t, "demo")
		rec.Tag = tc.tag
		if tc.failed {
			fc := environment.NewFailureContext("RunApply",
				apperrors.New(apperrors.KindTimeout, "wait expired"),
				time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
			rec.Failure = &fc
		}
		rec = rec.WithInstanceIP("10.140.0.11")

		require.NoError(t, store.Persist(rec), tc.tag)
		loaded, err := store.Load(rec.Env.Name)
		require.NoError(t, err, tc.tag)
		assert.Equal(t, rec, loaded, tc.tag)
	}
}

func TestLoadNotFound(t *testing.T) {
	store := testStore(t)
	name, _ := environment.NewName("missing")

	_, err := store.Load(name)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLoadRejectsUnknownStateTag(t *testing.T) {
	store := testStore(t)
	rec := testRecord(t, "demo")
	require.NoError(t, store.Persist(rec))

	path := store.Layout().StateFile(rec.Env.Name)
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"half-deployed": {"context": {}, "state": null}}`), 0o644))

	_, err := store.Load(rec.Env.Name)
	require.Error(t, err)
	assert.True(t, apperrors.IsCorruptState(err))
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	store := testStore(t)
	rec := testRecord(t, "demo")
	require.NoError(t, store.Persist(rec))

	path := store.Layout().StateFile(rec.Env.Name)
	require.NoError(t, os.WriteFile(path, []byte(`{"created": {"context":`), 0o644))

	_, err := store.Load(rec.Env.Name)
	require.Error(t, err)
	assert.True(t, apperrors.IsCorruptState(err))
}

func TestEncodeRefusesInvalidRecords(t *testing.T) {
	rec := testRecord(t, "demo")
	rec.Tag = environment.TagProvisionFailed // failed tag without context

	_, err := Encode(rec)
	require.Error(t, err)
	assert.True(t, apperrors.IsCorruptState(err))
}

func TestPersistIsAtomicAgainstAbandonedTempFiles(t *testing.T) {
	store := testStore(t)
	rec := testRecord(t, "demo")
	require.NoError(t, store.Persist(rec))

	// Simulate a crash between temp-write and rename: a stray temp file
	// with garbage content sits next to the state file.
	dir := store.Layout().DataDir(rec.Env.Name)
	stray := filepath.Join(dir, ".environment-crashed.json")
	require.NoError(t, os.WriteFile(stray, []byte("partial garbag"), 0o644))

	loaded, err := store.Load(rec.Env.Name)
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)
}

func TestPersistOverwritesPreviousState(t *testing.T) {
	store := testStore(t)
	rec := testRecord(t, "demo")
	require.NoError(t, store.Persist(rec))

	next, err := rec.StartProvisioning()
	require.NoError(t, err)
	require.NoError(t, store.Persist(next))

	loaded, err := store.Load(rec.Env.Name)
	require.NoError(t, err)
	assert.Equal(t, environment.TagProvisioning, loaded.Tag)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := testStore(t)
	rec := testRecord(t, "demo")
	require.NoError(t, store.Persist(rec))

	require.NoError(t, store.Delete(rec.Env.Name))
	assert.False(t, store.Exists(rec.Env.Name))
	require.NoError(t, store.Delete(rec.Env.Name))
}

func TestList(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Persist(testRecord(t, "bravo")))
	require.NoError(t, store.Persist(testRecord(t, "alpha")))

	records, broken, err := store.List()
	require.NoError(t, err)
	require.Nil(t, broken)
	require.Len(t, records, 2)
	assert.Equal(t, environment.Name("alpha"), records[0].Env.Name)
	assert.Equal(t, environment.Name("bravo"), records[1].Env.Name)
}

func TestListReportsBrokenEntriesSeparately(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Persist(testRecord(t, "ok")))

	bad := testRecord(t, "bad")
	require.NoError(t, store.Persist(bad))
	require.NoError(t, os.WriteFile(store.Layout().StateFile(bad.Env.Name), []byte("{"), 0o644))

	records, broken, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, environment.Name("ok"), records[0].Env.Name)
	require.Contains(t, broken, "bad")
}

func TestListOnMissingDataRoot(t *testing.T) {
	store := NewStore(workspace.Default(filepath.Join(t.TempDir(), "nothing-here")))
	records, broken, err := store.List()
	require.NoError(t, err)
	assert.Nil(t, records)
	assert.Nil(t, broken)
}

func TestLockConflict(t *testing.T) {
	store := testStore(t)
	rec := testRecord(t, "demo")
	require.NoError(t, store.Persist(rec))

	lock, err := store.Lock(rec.Env.Name, "provision")
	require.NoError(t, err)

	_, err = store.Lock(rec.Env.Name, "destroy")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	require.NoError(t, lock.Unlock())
	second, err := store.Lock(rec.Env.Name, "destroy")
	require.NoError(t, err)
	require.NoError(t, second.Unlock())
	require.NoError(t, second.Unlock(), "double unlock must not fail")
}
