package statestore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when no state exists for a batch ID.
// A missing batch is a normal condition, distinct from a StateError.
var ErrNotFound = errors.New("batch state not found")

// StateError wraps failures that make persisted state unusable:
// corrupted files, path validation failures, lock timeouts, permission
// or disk problems. These abort the current operation; they are never
// papered over with a default state.
type StateError struct {
	Op      string // "load", "save", "lock", "cleanup"
	BatchID string
	Err     error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("statestore: %s %s: %v", e.Op, e.BatchID, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func stateErr(op, batchID string, err error) *StateError {
	return &StateError{Op: op, BatchID: batchID, Err: err}
}
