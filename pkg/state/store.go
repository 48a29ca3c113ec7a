// Package state persists environment records to per-environment JSON
// files with atomic write semantics.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
	"github.com/opsmith/deployctl/pkg/workspace"
)

// Store owns the canonical on-disk representation of every environment.
// One JSON file per environment name; the outer object key is the state
// tag so a reader can dispatch on it without ambiguity:
//
//	{"provision_failed": {"context": {...}, "state": {...}}}
type Store struct {
	layout workspace.Layout
}

// NewStore creates a store over the given layout.
func NewStore(layout workspace.Layout) *Store {
	return &Store{layout: layout}
}

// Layout exposes the store's workspace layout.
func (s *Store) Layout() workspace.Layout { return s.layout }

// payload is the value under the state-tag key.
type payload struct {
	Context environment.Environment     `json:"context"`
	State   *environment.FailureContext `json:"state,omitempty"`
}

// Encode serializes a record into the tagged wire format.
func Encode(rec environment.Record) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	doc := map[string]payload{
		rec.Tag.String(): {Context: rec.Env, State: rec.Failure},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindIo, "failed to serialize environment state", err)
	}
	return append(data, '\n'), nil
}

// Decode parses the tagged wire format back into a record. An unknown or
// malformed state tag is a CorruptState error, never silently coerced.
func Decode(data []byte) (environment.Record, error) {
	var doc map[string]payload
	if err := json.Unmarshal(data, &doc); err != nil {
		return environment.Record{}, apperrors.Wrap(apperrors.KindCorruptState,
			"state file is not valid JSON", err).
			WithTroubleshooting("The environment state file could not be parsed. " +
				"Restore it from a backup or purge the environment with --force.")
	}
	if len(doc) != 1 {
		return environment.Record{}, apperrors.Newf(apperrors.KindCorruptState,
			"state file must contain exactly one state tag, found %d", len(doc))
	}
	var rec environment.Record
	for tag, body := range doc {
		rec = environment.Record{
			Tag:     environment.Tag(tag),
			Env:     body.Context,
			Failure: body.State,
		}
	}
	if err := rec.Validate(); err != nil {
		return environment.Record{}, err
	}
	return rec, nil
}

// Load reads the record for an environment name.
func (s *Store) Load(name environment.Name) (environment.Record, error) {
	data, err := os.ReadFile(s.layout.StateFile(name))
	if err != nil {
		if os.IsNotExist(err) {
			return environment.Record{}, apperrors.Newf(apperrors.KindNotFound,
				"environment %q not found", name).
				WithTroubleshooting("No state file exists for this environment. " +
					"Run \"deployctl list\" to see known environments or \"deployctl create\" to create one.")
		}
		return environment.Record{}, apperrors.Wrap(apperrors.KindIo, "failed to read state file", err)
	}
	return Decode(data)
}

// Persist writes the record atomically: serialize to a temporary file in
// the same directory, then rename over the target path, so a crash
// mid-write never leaves a truncated state file.
func (s *Store) Persist(rec environment.Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	target := s.layout.StateFile(rec.Env.Name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.KindIo, "failed to create state directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".environment-*.json")
	if err != nil {
		return apperrors.Wrap(apperrors.KindIo, "failed to create temp state file", err)
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	if cerr := tmp.Close(); cerr != nil && werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmpPath)
		return apperrors.Wrap(apperrors.KindIo, "failed to write state file", werr)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return apperrors.Wrap(apperrors.KindIo, "failed to save state file", err)
	}
	return nil
}

// Exists reports whether a state file exists for the environment name.
func (s *Store) Exists(name environment.Name) bool {
	_, err := os.Stat(s.layout.StateFile(name))
	return err == nil
}

// Delete removes an environment's state file and, if empty afterwards, its
// data directory. Deleting a missing environment is not an error.
func (s *Store) Delete(name environment.Name) error {
	if err := os.Remove(s.layout.StateFile(name)); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(apperrors.KindIo, "failed to delete state file", err)
	}
	// Best effort: drop the now-empty directory.
	_ = os.Remove(s.layout.DataDir(name))
	return nil
}

// List returns the records of every environment under the data root,
// sorted by name. Unreadable entries are returned as errors keyed by name
// so one corrupt file does not hide the rest.
func (s *Store) List() ([]environment.Record, map[string]error, error) {
	entries, err := os.ReadDir(s.layout.DataRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, apperrors.Wrap(apperrors.KindIo, "failed to read data root", err)
	}

	var records []environment.Record
	broken := map[string]error{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name, err := environment.NewName(entry.Name())
		if err != nil {
			continue
		}
		rec, err := s.Load(name)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			broken[entry.Name()] = err
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Env.Name < records[j].Env.Name
	})
	if len(broken) == 0 {
		broken = nil
	}
	return records, broken, nil
}
