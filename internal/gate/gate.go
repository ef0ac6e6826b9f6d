// Package gate implements the strict pass criterion a feature result
// must meet before it counts as completed: zero failing tests and a
// minimum coverage. There is no partial credit; a degraded result is
// never represented as success.
package gate

import (
	"fmt"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
)

// DefaultMinCoverage is used when no minimum is configured
const DefaultMinCoverage = 80.0

// Verdict is the outcome of evaluating a pipeline result. A failed
// verdict is ordinary control-flow data, not an error.
type Verdict struct {
	Passed bool
	Reason string
}

// Gate evaluates pipeline results against the pass criterion
type Gate struct {
	MinCoverage float64
}

// New creates a Gate with the given minimum coverage percentage
func New(minCoverage float64) *Gate {
	if minCoverage <= 0 {
		minCoverage = DefaultMinCoverage
	}
	return &Gate{MinCoverage: minCoverage}
}

// Evaluate checks a result: pass only when the failed count is exactly
// zero and coverage meets the minimum. The reason on failure is meant
// for a human deciding whether to retry or abandon.
func (g *Gate) Evaluate(result *domain.PipelineResult) Verdict {
	if result == nil {
		return Verdict{Passed: false, Reason: "pipeline returned no result"}
	}
	if result.TestsFailed > 0 {
		return Verdict{
			Passed: false,
			Reason: fmt.Sprintf("%d/%d tests failing", result.TestsFailed, result.TestsTotal),
		}
	}
	if result.CoveragePct < g.MinCoverage {
		return Verdict{
			Passed: false,
			Reason: fmt.Sprintf("coverage %.1f%% < %.1f%% minimum", result.CoveragePct, g.MinCoverage),
		}
	}
	return Verdict{Passed: true}
}
