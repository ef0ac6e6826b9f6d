package domain

// BatchStatus represents the lifecycle state of a batch
type BatchStatus string

const (
	BatchInProgress BatchStatus = "in_progress"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// RetryStrategy identifies how a retry attempt should approach a feature
type RetryStrategy string

const (
	// StrategyBasicRetry re-runs the pipeline unchanged
	StrategyBasicRetry RetryStrategy = "basic_retry"
	// StrategyFixTestsFirst instructs the pipeline to resolve reported
	// test failures before anything else
	StrategyFixTestsFirst RetryStrategy = "fix_tests_first"
	// StrategyAlternative instructs the pipeline to try a materially
	// different implementation approach
	StrategyAlternative RetryStrategy = "alternative_implementation"
)

// Disposition is the final accounting category of a feature index
type Disposition string

const (
	DispositionCompleted Disposition = "completed"
	DispositionFailed    Disposition = "failed"
	DispositionPending   Disposition = "pending"
)

// AttemptOutcome classifies what happened on a single pipeline attempt
type AttemptOutcome string

const (
	OutcomePassed    AttemptOutcome = "passed"
	OutcomeGateFail  AttemptOutcome = "gate_fail"
	OutcomeInfraFail AttemptOutcome = "infra_fail"
)
