package state

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// staleLockAge is the age after which a leftover lock file from a crashed
// process is ignored.
const staleLockAge = time.Hour

// LockInfo is written into the lock file so a blocked invocation can tell
// the user who holds the lock.
type LockInfo struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	PID       int       `json:"pid"`
	Created   time.Time `json:"created"`
}

// Lock is a held per-environment lock.
type Lock struct {
	path string
	info LockInfo
}

// Info returns the lock's metadata.
func (l *Lock) Info() LockInfo { return l.info }

// Unlock releases the lock. Releasing an already-removed lock is not an
// error.
func (l *Lock) Unlock() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(apperrors.KindIo, "failed to remove lock file", err)
	}
	return nil
}

// Lock acquires the per-environment lock file. The lifecycle is inherently
// sequential, so this is a guard against accidental concurrent invocations
// on the same environment name, not a synchronization primitive.
func (s *Store) Lock(name environment.Name, operation string) (*Lock, error) {
	lockPath := s.layout.StateFile(name) + ".lock"

	if data, err := os.ReadFile(lockPath); err == nil {
		var existing LockInfo
		if err := json.Unmarshal(data, &existing); err == nil && time.Since(existing.Created) < staleLockAge {
			return nil, apperrors.Newf(apperrors.KindConflict,
				"environment %q is locked by operation %q (pid %d)",
				name, existing.Operation, existing.PID).
				WithTroubleshooting("Another deployctl command appears to be running against this " +
					"environment. Wait for it to finish, or remove the stale .lock file next to " +
					"the state file if the process is gone.")
		}
	}

	info := LockInfo{
		ID:        uuid.New().String(),
		Operation: operation,
		PID:       os.Getpid(),
		Created:   time.Now(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindIo, "failed to marshal lock info", err)
	}
	if err := os.MkdirAll(s.layout.DataDir(name), 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.KindIo, "failed to create data directory", err)
	}
	if err := os.WriteFile(lockPath, data, 0o644); err != nil {
		return nil, apperrors.Wrap(apperrors.KindIo, "failed to write lock file", err)
	}
	return &Lock{path: lockPath, info: info}, nil
}
