// Package pipeline defines the contract with the external per-feature
// implementation pipeline and ships the Claude Code backed runner. The
// batch state machine only sequences, persists and gates this work; how
// a feature gets implemented is entirely the runner's business.
package pipeline

import (
	"context"
	"fmt"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
)

// Runner is the external per-feature pipeline. Run takes a feature
// description and a strategy hint and returns the pipeline's test
// report. A result with failing tests is a normal return value; an
// error means the pipeline itself could not run.
type Runner interface {
	Run(ctx context.Context, feature string, strategy domain.RetryStrategy) (*domain.PipelineResult, error)

	// ResetContext clears the accumulated working context so the next
	// Run starts fresh. Invoked by the scheduler when the context
	// budget monitor fires.
	ResetContext(ctx context.Context) error
}

// InfraError marks a pipeline infrastructure failure: the pipeline
// could not run at all, as opposed to running and reporting failing
// tests. Retried like a quality failure, logged distinctly.
type InfraError struct {
	Stage string
	Err   error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("pipeline infrastructure failure (%s): %v", e.Stage, e.Err)
}

func (e *InfraError) Unwrap() error {
	return e.Err
}

func infraErr(stage string, err error) *InfraError {
	return &InfraError{Stage: stage, Err: err}
}
