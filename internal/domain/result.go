package domain

import "fmt"

// PipelineResult is the report returned by the external per-feature
// pipeline after one attempt. A result with failing tests is a normal
// outcome, not an error.
type PipelineResult struct {
	TestsTotal     int      `json:"tests_total"`
	TestsPassed    int      `json:"tests_passed"`
	TestsFailed    int      `json:"tests_failed"`
	CoveragePct    float64  `json:"coverage_pct"`
	StepsCompleted []string `json:"steps_completed"`
	TokensInput    int      `json:"tokens_input,omitempty"`
	TokensOutput   int      `json:"tokens_output,omitempty"`
}

// String summarizes the result for logs
func (r *PipelineResult) String() string {
	return fmt.Sprintf("%d/%d tests passing, %.1f%% coverage", r.TestsPassed, r.TestsTotal, r.CoveragePct)
}

// RetryAttempt captures a single attempt at one feature. It is
// ephemeral bookkeeping for the attempt loop and its logs; only
// exhausted failures persist, as FailedEntry records.
type RetryAttempt struct {
	FeatureIndex  int
	AttemptNumber int
	Strategy      RetryStrategy
	Outcome       AttemptOutcome
	Reason        string
}
