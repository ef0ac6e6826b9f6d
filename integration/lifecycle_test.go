//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/featurelist"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/history"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/pipeline"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/report"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/scheduler"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/statestore"
)

// fakeRunner scripts one pipeline result per feature, failing the
// features listed in failFeatures on every attempt.
type fakeRunner struct {
	failFeatures map[string]bool
	resets       int
	runs         int
	interruptAt  int // run count at which cancel fires, 0 = never
	cancel       context.CancelFunc
}

func (f *fakeRunner) Run(ctx context.Context, feature string, strategy domain.RetryStrategy) (*domain.PipelineResult, error) {
	f.runs++
	if f.interruptAt > 0 && f.runs == f.interruptAt && f.cancel != nil {
		f.cancel()
	}
	if f.failFeatures[feature] {
		return &domain.PipelineResult{TestsTotal: 5, TestsPassed: 3, TestsFailed: 2, CoveragePct: 90}, nil
	}
	return &domain.PipelineResult{TestsTotal: 5, TestsPassed: 5, CoveragePct: 92, TokensInput: 8000, TokensOutput: 2000}, nil
}

func (f *fakeRunner) ResetContext(ctx context.Context) error {
	f.resets++
	return nil
}

var _ pipeline.Runner = (*fakeRunner)(nil)

func writeFeatures(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.txt")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestFullLifecycle walks a batch through the complete flow: parse the
// feature file, create and run the batch, report on it, archive it, and
// clean up the state file.
func TestFullLifecycle(t *testing.T) {
	featuresPath := writeFeatures(t, "add login\nadd logout\nadd sso\n# not a feature\nadd audit log\n")
	features, err := featurelist.Load(featuresPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(features) != 4 {
		t.Fatalf("features = %v", features)
	}

	store, err := statestore.New(t.TempDir(), 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{failFeatures: map[string]bool{"add sso": true}}
	sched := scheduler.New(store, runner, scheduler.Options{MinCoverage: 80, MaxRetries: 3})

	ctx := context.Background()
	state, err := sched.Create(ctx, features)
	if err != nil {
		t.Fatal(err)
	}

	final, err := sched.Run(ctx, state.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != domain.BatchFailed {
		t.Errorf("status = %q, want failed (one feature exhausted retries)", final.Status)
	}

	summary := report.Summarize(final)
	if summary.CompletedCount != 3 || summary.FailedCount != 1 || summary.SkippedCount != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Clean() {
		t.Error("summary with a failed feature must not be clean")
	}

	// Archive, then remove the state file
	archive, err := history.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()
	if err := archive.Archive(final); err != nil {
		t.Fatal(err)
	}
	if err := store.Cleanup(final.BatchID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(final.BatchID); !errors.Is(err, statestore.ErrNotFound) {
		t.Errorf("Load after cleanup = %v, want ErrNotFound", err)
	}

	records, err := archive.ListBatches(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].BatchID != final.BatchID {
		t.Errorf("archived records = %+v", records)
	}
}

// TestInterruptAndResume cancels mid-run, then resumes with a fresh
// scheduler over the same store and verifies no feature runs twice.
func TestInterruptAndResume(t *testing.T) {
	var features []string
	for i := 0; i < 5; i++ {
		features = append(features, fmt.Sprintf("feature %d", i))
	}

	store, err := statestore.New(t.TempDir(), 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeRunner{interruptAt: 3, cancel: cancel}
	sched := scheduler.New(store, runner, scheduler.Options{})

	state, err := sched.Create(context.Background(), features)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sched.Run(ctx, state.BatchID); !errors.Is(err, context.Canceled) {
		t.Fatalf("interrupted run error = %v, want context.Canceled", err)
	}

	persisted, err := store.Load(state.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	completedBefore := len(persisted.CompletedIndices)
	if completedBefore == 0 || completedBefore == len(features) {
		t.Fatalf("completed before resume = %d, want partial progress", completedBefore)
	}

	resumeRunner := &fakeRunner{}
	resumed := scheduler.New(store, resumeRunner, scheduler.Options{})
	final, err := resumed.Run(context.Background(), state.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != domain.BatchCompleted {
		t.Errorf("status = %q, want completed", final.Status)
	}
	if resumeRunner.runs != len(features)-completedBefore {
		t.Errorf("resume ran %d features, want %d (no reprocessing)", resumeRunner.runs, len(features)-completedBefore)
	}
}
