// Package retry maps attempt numbers to escalating retry strategies.
// The table is fixed and deterministic on purpose: the same failure
// history always produces the same strategy sequence.
package retry

import "github.com/hochfrequenz/claude-batch-pipeline/internal/domain"

// DefaultMaxAttempts is the retry ceiling when none is configured
const DefaultMaxAttempts = 3

// escalation is the ordered strategy table keyed by attempt number
var escalation = []domain.RetryStrategy{
	domain.StrategyBasicRetry,
	domain.StrategyFixTestsFirst,
	domain.StrategyAlternative,
}

// Strategist decides the strategy for each retry attempt
type Strategist struct {
	MaxAttempts int
}

// New creates a Strategist with the given retry ceiling
func New(maxAttempts int) *Strategist {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Strategist{MaxAttempts: maxAttempts}
}

// NextStrategy returns the strategy for the given attempt number
// (1-based) or ok=false when retries are exhausted. The prior failure
// reason is accepted for symmetry with the pipeline contract; the
// escalation is driven by attempt number alone.
func (s *Strategist) NextStrategy(attempt int, priorReason string) (domain.RetryStrategy, bool) {
	if attempt < 1 || attempt > s.MaxAttempts {
		return "", false
	}
	if attempt <= len(escalation) {
		return escalation[attempt-1], true
	}
	// Ceiling above the table length keeps using the strongest strategy
	return escalation[len(escalation)-1], true
}
