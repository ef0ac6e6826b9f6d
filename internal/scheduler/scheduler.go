// Package scheduler owns the batch control loop: pick the next pending
// feature, run it through the external pipeline, gate the result,
// escalate retries, persist state after every transition, and honor the
// context budget. Processing is strictly sequential; the only
// concurrency concern is cross-process exclusion on the state file,
// which the statestore lock covers for the whole run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/budget"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/gate"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/pipeline"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/retry"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/statestore"
)

// Options configures the policy components of a batch run. Zero values
// fall back to the package defaults of each component.
type Options struct {
	MinCoverage      float64
	MaxRetries       int
	ContextThreshold float64
	ContextBaseline  float64
	Progress         io.Writer // human-readable progress lines, optional
}

// Scheduler drives one batch at a time through the pipeline
type Scheduler struct {
	store      *statestore.Store
	runner     pipeline.Runner
	gate       *gate.Gate
	strategist *retry.Strategist
	monitor    *budget.Monitor
	progress   io.Writer
	now        func() time.Time
}

// New creates a Scheduler over the given store and pipeline runner
func New(store *statestore.Store, runner pipeline.Runner, opts Options) *Scheduler {
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}
	return &Scheduler{
		store:      store,
		runner:     runner,
		gate:       gate.New(opts.MinCoverage),
		strategist: retry.New(opts.MaxRetries),
		monitor:    budget.New(opts.ContextThreshold, opts.ContextBaseline),
		progress:   progress,
		now:        time.Now,
	}
}

// Create initializes and persists a fresh batch over the given features
func (s *Scheduler) Create(ctx context.Context, features []string) (*domain.BatchState, error) {
	return s.CreateWithID(ctx, "batch-"+uuid.NewString(), features)
}

// CreateWithID initializes a batch under a caller-chosen id. An
// existing batch under that id is never overwritten: persisted progress
// goes away only through explicit cleanup, so a duplicate id is refused.
func (s *Scheduler) CreateWithID(ctx context.Context, batchID string, features []string) (*domain.BatchState, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("batch needs at least one feature")
	}
	state := domain.NewBatchState(batchID, features, s.now())
	err := s.store.WithLock(ctx, batchID, func() error {
		if _, err := s.store.Load(batchID); err == nil {
			return fmt.Errorf("batch %s already exists; resume it or clean it up first", batchID)
		} else if !errors.Is(err, statestore.ErrNotFound) {
			return err
		}
		return s.store.Save(batchID, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// NextPending scans from the cursor forward and returns the first index
// that is not yet completed or failed. ok=false is the sole
// loop-termination condition of Run.
func NextPending(state *domain.BatchState) (int, bool) {
	for i := state.CurrentIndex; i < len(state.Features); i++ {
		if state.IsCompleted(i) || state.IsFailed(i) {
			continue
		}
		return i, true
	}
	return 0, false
}

// Run processes the batch to completion, holding the state lock for the
// whole run so concurrent invocations against the same batch fail
// loudly instead of interleaving. The state is reloaded under the lock,
// so resuming an interrupted run picks up exactly where the last
// persisted transition left off.
func (s *Scheduler) Run(ctx context.Context, batchID string) (*domain.BatchState, error) {
	var state *domain.BatchState
	err := s.store.WithLock(ctx, batchID, func() error {
		var err error
		state, err = s.store.Load(batchID)
		if err != nil {
			return err
		}
		return s.run(ctx, state)
	})
	return state, err
}

func (s *Scheduler) run(ctx context.Context, state *domain.BatchState) error {
	for {
		idx, ok := NextPending(state)
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			// Interrupted: last persisted state is the resume checkpoint
			return err
		}

		if err := s.processFeature(ctx, state, idx); err != nil {
			return err
		}

		// Budget check after each feature: record and persist the
		// checkpoint first, then perform the external reset.
		if s.monitor.ShouldReset(state) {
			fmt.Fprintf(s.progress, "context estimate %.0f over budget, resetting at index %d\n", state.ContextEstimate, idx)
			s.monitor.RecordReset(state, idx, s.now())
			if err := s.store.Save(state.BatchID, state); err != nil {
				return err
			}
			if err := s.runner.ResetContext(ctx); err != nil {
				return fmt.Errorf("resetting pipeline context: %w", err)
			}
		}
	}

	state.Finalize(s.now())
	return s.store.Save(state.BatchID, state)
}

// processFeature runs one feature through the attempt/retry loop until
// it passes the gate or exhausts its retries. Every transition is
// persisted before the loop moves on.
func (s *Scheduler) processFeature(ctx context.Context, state *domain.BatchState, idx int) error {
	feature := state.Features[idx]
	var attempts []domain.RetryAttempt
	lastReason := ""

	for attempt := 1; ; attempt++ {
		strategy, ok := s.strategist.NextStrategy(attempt, lastReason)
		if !ok {
			// Retries exhausted: record and move on, failures do not
			// block subsequent features
			fmt.Fprintf(s.progress, "[%d] failed after %d attempts (%s): %s\n",
				idx, len(attempts), strategiesTried(attempts), lastReason)
			if err := state.RecordFailure(idx, lastReason, s.now()); err != nil {
				return err
			}
			return s.store.Save(state.BatchID, state)
		}

		fmt.Fprintf(s.progress, "[%d] attempt %d (%s): %s\n", idx, attempt, strategy, feature)
		result, err := s.runner.Run(ctx, feature, strategy)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			var infra *pipeline.InfraError
			if errors.As(err, &infra) {
				// Infrastructure failure: retried like a quality
				// failure, logged distinctly for diagnosis
				fmt.Fprintf(s.progress, "[%d] %v\n", idx, infra)
				lastReason = infra.Error()
				attempts = append(attempts, domain.RetryAttempt{
					FeatureIndex:  idx,
					AttemptNumber: attempt,
					Strategy:      strategy,
					Outcome:       domain.OutcomeInfraFail,
					Reason:        lastReason,
				})
				continue
			}
			return err
		}

		now := s.now()
		s.monitor.Charge(state, result, now)

		verdict := s.gate.Evaluate(result)
		if verdict.Passed {
			fmt.Fprintf(s.progress, "[%d] passed: %s\n", idx, result)
			if err := state.MarkCompleted(idx, now); err != nil {
				return err
			}
			return s.store.Save(state.BatchID, state)
		}

		fmt.Fprintf(s.progress, "[%d] gate failed: %s\n", idx, verdict.Reason)
		lastReason = verdict.Reason
		attempts = append(attempts, domain.RetryAttempt{
			FeatureIndex:  idx,
			AttemptNumber: attempt,
			Strategy:      strategy,
			Outcome:       domain.OutcomeGateFail,
			Reason:        lastReason,
		})
		if err := s.store.Save(state.BatchID, state); err != nil {
			return err
		}
	}
}

func strategiesTried(attempts []domain.RetryAttempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = string(a.Strategy)
	}
	return strings.Join(parts, ", ")
}
