// Package budget tracks the estimated working-context size the
// external pipeline accumulates across features and signals when a
// reset checkpoint is due. The monitor is advisory bookkeeping only;
// performing the reset is the scheduler's job.
package budget

import (
	"time"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
)

const (
	// DefaultThreshold is the context estimate above which a reset is due
	DefaultThreshold = 150000
	// DefaultBaseline is the estimate after a reset (a fresh context is
	// not empty: the pipeline reloads project instructions)
	DefaultBaseline = 20000
)

// Estimator maps a pipeline result to the context cost it added. The
// units are a heuristic proxy; the only hard requirement is that the
// estimate grows monotonically between resets and is comparable
// against the threshold.
type Estimator func(result *domain.PipelineResult) float64

// DefaultEstimator charges reported token usage, falling back to a
// flat per-feature cost when the pipeline reports none.
func DefaultEstimator(result *domain.PipelineResult) float64 {
	if result == nil {
		return 0
	}
	if tokens := result.TokensInput + result.TokensOutput; tokens > 0 {
		return float64(tokens)
	}
	return 15000
}

// Monitor decides when the accumulated context estimate requires a reset
type Monitor struct {
	Threshold float64
	Baseline  float64
	Estimate  Estimator
}

// New creates a Monitor with the given threshold and baseline
func New(threshold, baseline float64) *Monitor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if baseline < 0 || baseline >= threshold {
		baseline = DefaultBaseline
	}
	return &Monitor{Threshold: threshold, Baseline: baseline, Estimate: DefaultEstimator}
}

// Charge adds the cost of a pipeline attempt to the running estimate
func (m *Monitor) Charge(state *domain.BatchState, result *domain.PipelineResult, now time.Time) {
	est := m.Estimate
	if est == nil {
		est = DefaultEstimator
	}
	state.AddContextCost(est(result), now)
}

// ShouldReset reports whether the estimate exceeds the threshold
func (m *Monitor) ShouldReset(state *domain.BatchState) bool {
	return state.ContextEstimate > m.Threshold
}

// RecordReset appends a checkpoint event capturing the index and the
// estimate at the trigger, then resets the estimate to the baseline.
func (m *Monitor) RecordReset(state *domain.BatchState, index int, now time.Time) {
	state.CheckpointEvents = append(state.CheckpointEvents, domain.CheckpointEvent{
		Index:                    index,
		ContextEstimateAtTrigger: state.ContextEstimate,
		Timestamp:                now,
	})
	state.ContextEstimate = m.Baseline
	state.UpdatedAt = now
}
