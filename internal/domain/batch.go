package domain

import (
	"fmt"
	"time"
)

// FailedEntry records a feature index that exhausted its retries
type FailedEntry struct {
	Index        int       `json:"index"`
	ErrorMessage string    `json:"error_message"`
	Timestamp    time.Time `json:"timestamp"`
}

// CheckpointEvent records a context-budget trigger and the estimate at that moment
type CheckpointEvent struct {
	Index                    int       `json:"index"`
	ContextEstimateAtTrigger float64   `json:"context_estimate_at_trigger"`
	Timestamp                time.Time `json:"timestamp"`
}

// BatchState is the single persisted aggregate for one batch run.
// CurrentIndex only advances, and an index is never present in both
// CompletedIndices and FailedEntries; all mutation goes through the
// methods below so those invariants hold everywhere state is touched.
type BatchState struct {
	BatchID          string            `json:"batch_id"`
	Features         []string          `json:"features"`
	CurrentIndex     int               `json:"current_index"`
	CompletedIndices []int             `json:"completed_indices"`
	FailedEntries    []FailedEntry     `json:"failed_entries"`
	ContextEstimate  float64           `json:"context_estimate"`
	CheckpointEvents []CheckpointEvent `json:"checkpoint_events"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Status           BatchStatus       `json:"status"`
}

// NewBatchState creates a fresh in-progress batch over the given features
func NewBatchState(batchID string, features []string, now time.Time) *BatchState {
	return &BatchState{
		BatchID:          batchID,
		Features:         append([]string(nil), features...),
		CurrentIndex:     0,
		CompletedIndices: []int{},
		FailedEntries:    []FailedEntry{},
		CheckpointEvents: []CheckpointEvent{},
		CreatedAt:        now,
		UpdatedAt:        now,
		Status:           BatchInProgress,
	}
}

// IsCompleted reports whether index i passed the quality gate
func (b *BatchState) IsCompleted(i int) bool {
	for _, c := range b.CompletedIndices {
		if c == i {
			return true
		}
	}
	return false
}

// IsFailed reports whether index i exhausted its retries
func (b *BatchState) IsFailed(i int) bool {
	for _, f := range b.FailedEntries {
		if f.Index == i {
			return true
		}
	}
	return false
}

// FailureFor returns the failed entry for index i, if any
func (b *BatchState) FailureFor(i int) (FailedEntry, bool) {
	for _, f := range b.FailedEntries {
		if f.Index == i {
			return f, true
		}
	}
	return FailedEntry{}, false
}

// Disposition returns the accounting category of index i
func (b *BatchState) Disposition(i int) Disposition {
	switch {
	case b.IsCompleted(i):
		return DispositionCompleted
	case b.IsFailed(i):
		return DispositionFailed
	default:
		return DispositionPending
	}
}

// MarkCompleted records index i as passed and advances the cursor.
// It is an error to complete an index that already failed, or to move
// the cursor backwards.
func (b *BatchState) MarkCompleted(i int, now time.Time) error {
	if b.IsFailed(i) {
		return fmt.Errorf("index %d already recorded as failed", i)
	}
	if !b.IsCompleted(i) {
		b.CompletedIndices = append(b.CompletedIndices, i)
	}
	b.advance(i + 1)
	b.UpdatedAt = now
	return nil
}

// RecordFailure records index i as exhausted and advances the cursor so
// that later features are not blocked by this one.
func (b *BatchState) RecordFailure(i int, errMsg string, now time.Time) error {
	if b.IsCompleted(i) {
		return fmt.Errorf("index %d already recorded as completed", i)
	}
	if !b.IsFailed(i) {
		b.FailedEntries = append(b.FailedEntries, FailedEntry{
			Index:        i,
			ErrorMessage: errMsg,
			Timestamp:    now,
		})
	}
	b.advance(i + 1)
	b.UpdatedAt = now
	return nil
}

// advance moves the cursor forward, never backwards
func (b *BatchState) advance(to int) {
	if to > b.CurrentIndex {
		b.CurrentIndex = to
	}
}

// AddContextCost bumps the running context estimate
func (b *BatchState) AddContextCost(cost float64, now time.Time) {
	if cost > 0 {
		b.ContextEstimate += cost
		b.UpdatedAt = now
	}
}

// AllAccounted reports whether every feature is completed or failed
func (b *BatchState) AllAccounted() bool {
	return len(b.CompletedIndices)+len(b.FailedEntries) >= len(b.Features)
}

// Finalize sets the terminal status once every index is accounted for.
// With any failed entry the batch as a whole is failed, never a
// dressed-up success.
func (b *BatchState) Finalize(now time.Time) {
	if !b.AllAccounted() {
		return
	}
	if len(b.FailedEntries) > 0 {
		b.Status = BatchFailed
	} else {
		b.Status = BatchCompleted
	}
	b.UpdatedAt = now
}

// IsTerminal reports whether the batch reached a terminal status
func (b *BatchState) IsTerminal() bool {
	return b.Status == BatchCompleted || b.Status == BatchFailed
}

// Validate checks the structural invariants of a loaded state
func (b *BatchState) Validate() error {
	if b.BatchID == "" {
		return fmt.Errorf("batch has no id")
	}
	if b.CurrentIndex < 0 || b.CurrentIndex > len(b.Features) {
		return fmt.Errorf("current_index %d out of range [0,%d]", b.CurrentIndex, len(b.Features))
	}
	for _, c := range b.CompletedIndices {
		if c < 0 || c >= len(b.Features) {
			return fmt.Errorf("completed index %d out of range", c)
		}
		if b.IsFailed(c) {
			return fmt.Errorf("index %d present in both completed and failed sets", c)
		}
	}
	for _, f := range b.FailedEntries {
		if f.Index < 0 || f.Index >= len(b.Features) {
			return fmt.Errorf("failed index %d out of range", f.Index)
		}
	}
	return nil
}
