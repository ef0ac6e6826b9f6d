package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/notify"
)

func TestSummarize_AllDispositions(t *testing.T) {
	now := time.Now()
	state := domain.NewBatchState("batch-s", []string{"a", "b", "c", "d", "e"}, now)
	state.MarkCompleted(0, now)
	state.MarkCompleted(1, now)
	state.RecordFailure(2, "3/20 tests failing", now)
	// Indices 3 and 4 never reached: the run was aborted

	s := Summarize(state)

	if s.CompletedCount != 2 || s.FailedCount != 1 || s.SkippedCount != 2 {
		t.Errorf("counts = %d/%d/%d, want 2/1/2", s.CompletedCount, s.FailedCount, s.SkippedCount)
	}
	if total := s.CompletedCount + s.FailedCount + s.SkippedCount; total != 5 {
		t.Errorf("accounted = %d, want every one of the 5 features", total)
	}
	if s.Failed[0].Reason != "3/20 tests failing" {
		t.Errorf("failed reason = %q", s.Failed[0].Reason)
	}
	if s.Clean() {
		t.Error("summary with failures and skips must not be clean")
	}
}

// Scenario A: five features, all pass
func TestSummarize_AllCompleted(t *testing.T) {
	now := time.Now()
	state := domain.NewBatchState("batch-a", []string{"a", "b", "c", "d", "e"}, now)
	for i := 0; i < 5; i++ {
		state.MarkCompleted(i, now)
	}
	state.Finalize(now)

	s := Summarize(state)
	if s.CompletedCount != 5 || s.FailedCount != 0 || s.SkippedCount != 0 {
		t.Errorf("counts = %d/%d/%d, want 5/0/0", s.CompletedCount, s.FailedCount, s.SkippedCount)
	}
	if !s.Clean() {
		t.Error("fully completed batch should be clean")
	}
}

func TestRender_NamesEveryFailure(t *testing.T) {
	now := time.Now()
	state := domain.NewBatchState("batch-r", []string{"add login", "add logout", "add sessions"}, now)
	state.MarkCompleted(0, now)
	state.RecordFailure(1, "coverage 62.0% < 80.0% minimum", now)

	var buf bytes.Buffer
	Render(&buf, state, Summarize(state))
	out := buf.String()

	if !strings.Contains(out, "add logout") || !strings.Contains(out, "coverage 62.0% < 80.0% minimum") {
		t.Errorf("failed feature must be named with its reason:\n%s", out)
	}
	if !strings.Contains(out, "skipped") || !strings.Contains(out, "add sessions") {
		t.Errorf("pending feature must be reported as skipped:\n%s", out)
	}
	if !strings.Contains(out, "1 completed, 1 failed, 1 skipped") {
		t.Errorf("counts line missing:\n%s", out)
	}
}

func TestNotification(t *testing.T) {
	now := time.Now()
	clean := domain.NewBatchState("batch-n", []string{"a"}, now)
	clean.MarkCompleted(0, now)
	clean.Finalize(now)

	if n := Summarize(clean).Notification(); n.Type != notify.NotifySuccess {
		t.Errorf("clean batch notification type = %v, want success", n.Type)
	}

	dirty := domain.NewBatchState("batch-n2", []string{"add sso"}, now)
	dirty.RecordFailure(0, "2/5 tests failing", now)
	dirty.Finalize(now)

	n := Summarize(dirty).Notification()
	if n.Type != notify.NotifyError {
		t.Errorf("failed batch notification type = %v, want error", n.Type)
	}
	if len(n.Details) != 1 || !strings.Contains(n.Details[0], "add sso: 2/5 tests failing") {
		t.Errorf("notification details = %v, want the failed feature with its reason", n.Details)
	}
}
