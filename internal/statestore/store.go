package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
)

// batchIDPattern restricts batch IDs to filesystem-safe names. Anything
// else is treated as a path-traversal attempt and rejected.
var batchIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

const (
	stateSuffix = ".json"
	lockSuffix  = ".lock"

	lockRetryDelay = 50 * time.Millisecond
)

// Store persists batch state as one JSON file per batch under a single
// state directory. Writes are atomic (temp file + rename) and guarded
// by an advisory file lock so concurrent invocations against the same
// batch never interleave.
type Store struct {
	dir         string
	lockTimeout time.Duration
}

// New creates a Store rooted at dir, creating the directory if needed
func New(dir string, lockTimeout time.Duration) (*Store, error) {
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, stateErr("init", "", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, stateErr("init", "", err)
	}
	return &Store{dir: abs, lockTimeout: lockTimeout}, nil
}

// Dir returns the state directory
func (s *Store) Dir() string {
	return s.dir
}

// ValidID reports whether id is an acceptable batch id
func ValidID(id string) bool {
	return batchIDPattern.MatchString(id)
}

// statePath validates the batch ID and resolves its state file path,
// rejecting IDs that would escape the state directory or resolve
// through a symlink.
func (s *Store) statePath(batchID string) (string, error) {
	if !batchIDPattern.MatchString(batchID) {
		return "", fmt.Errorf("invalid batch id %q", batchID)
	}
	path := filepath.Join(s.dir, batchID+stateSuffix)
	if filepath.Dir(path) != s.dir {
		return "", fmt.Errorf("batch id %q escapes state directory", batchID)
	}
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("state file %s is a symlink", path)
	}
	return path, nil
}

// Load reads the persisted state for batchID. A missing file returns
// ErrNotFound; an unparsable or invariant-violating file returns a
// StateError, because corruption has to be visible.
func (s *Store) Load(batchID string) (*domain.BatchState, error) {
	path, err := s.statePath(batchID)
	if err != nil {
		return nil, stateErr("load", batchID, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, stateErr("load", batchID, err)
	}

	var state domain.BatchState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, stateErr("load", batchID, fmt.Errorf("corrupted state file: %w", err))
	}
	if err := state.Validate(); err != nil {
		return nil, stateErr("load", batchID, fmt.Errorf("corrupted state file: %w", err))
	}
	return &state, nil
}

// Save atomically replaces the persisted state for batchID: the record
// is written to a temp file in the state directory, synced, then
// renamed over the target. A crash mid-write leaves the previous valid
// state intact.
func (s *Store) Save(batchID string, state *domain.BatchState) error {
	path, err := s.statePath(batchID)
	if err != nil {
		return stateErr("save", batchID, err)
	}
	if err := state.Validate(); err != nil {
		return stateErr("save", batchID, err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return stateErr("save", batchID, err)
	}

	tmp, err := os.CreateTemp(s.dir, batchID+".tmp-*")
	if err != nil {
		return stateErr("save", batchID, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return stateErr("save", batchID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return stateErr("save", batchID, err)
	}
	if err := tmp.Close(); err != nil {
		return stateErr("save", batchID, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return stateErr("save", batchID, err)
	}
	return nil
}

// Cleanup removes the state and lock files for a batch. Missing files
// are fine; cleanup is idempotent.
func (s *Store) Cleanup(batchID string) error {
	path, err := s.statePath(batchID)
	if err != nil {
		return stateErr("cleanup", batchID, err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return stateErr("cleanup", batchID, err)
	}
	if err := os.Remove(filepath.Join(s.dir, batchID+lockSuffix)); err != nil && !os.IsNotExist(err) {
		return stateErr("cleanup", batchID, err)
	}
	return nil
}

// List returns the batch IDs with persisted state, in directory order
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, stateErr("list", "", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, stateSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, stateSuffix))
	}
	return ids, nil
}

// WithLock runs fn while holding the advisory file lock for batchID.
// The lock serializes load-modify-save cycles across processes; a lock
// that cannot be acquired within the store's timeout fails loudly.
func (s *Store) WithLock(ctx context.Context, batchID string, fn func() error) error {
	if !batchIDPattern.MatchString(batchID) {
		return stateErr("lock", batchID, fmt.Errorf("invalid batch id %q", batchID))
	}

	lock := flock.New(filepath.Join(s.dir, batchID+lockSuffix))
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	ok, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return stateErr("lock", batchID, fmt.Errorf("acquiring lock: %w", err))
	}
	if !ok {
		return stateErr("lock", batchID, fmt.Errorf("lock not acquired within %s", s.lockTimeout))
	}
	defer lock.Unlock()

	return fn()
}
