// Package report turns final batch state into a summary that accounts
// for every feature. A feature the run never reached is reported as
// skipped, never folded into the completed count; a terse "all good"
// over silent losses is exactly the failure mode this package exists
// to prevent.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/notify"
)

// FailedFeature pairs a failed index with its feature text and reason
type FailedFeature struct {
	Index   int
	Feature string
	Reason  string
}

// Summary is the full accounting of a batch run
type Summary struct {
	BatchID        string
	Status         domain.BatchStatus
	CompletedCount int
	FailedCount    int
	SkippedCount   int
	Completed      []int
	Failed         []FailedFeature
	Skipped        []int
	Checkpoints    int
}

// Summarize walks every feature index and records its true disposition
func Summarize(state *domain.BatchState) Summary {
	s := Summary{
		BatchID:     state.BatchID,
		Status:      state.Status,
		Checkpoints: len(state.CheckpointEvents),
	}
	for i := range state.Features {
		switch state.Disposition(i) {
		case domain.DispositionCompleted:
			s.Completed = append(s.Completed, i)
		case domain.DispositionFailed:
			entry, _ := state.FailureFor(i)
			s.Failed = append(s.Failed, FailedFeature{
				Index:   i,
				Feature: state.Features[i],
				Reason:  entry.ErrorMessage,
			})
		default:
			s.Skipped = append(s.Skipped, i)
		}
	}
	s.CompletedCount = len(s.Completed)
	s.FailedCount = len(s.Failed)
	s.SkippedCount = len(s.Skipped)
	return s
}

// Clean reports whether every feature completed: the only condition
// under which the CLI may exit with a success status
func (s Summary) Clean() bool {
	return s.FailedCount == 0 && s.SkippedCount == 0
}

// Render writes the human-readable report
func Render(w io.Writer, state *domain.BatchState, s Summary) {
	fmt.Fprintf(w, "Batch %s: %s\n", s.BatchID, s.Status)
	fmt.Fprintf(w, "%d completed, %d failed, %d skipped (of %d features)\n",
		s.CompletedCount, s.FailedCount, s.SkippedCount, len(state.Features))
	if s.Checkpoints > 0 {
		fmt.Fprintf(w, "%d context reset checkpoint(s)\n", s.Checkpoints)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, i := range s.Completed {
		fmt.Fprintf(tw, "  [%d]\tcompleted\t%s\n", i, state.Features[i])
	}
	for _, f := range s.Failed {
		fmt.Fprintf(tw, "  [%d]\tFAILED\t%s\t%s\n", f.Index, f.Feature, f.Reason)
	}
	for _, i := range s.Skipped {
		fmt.Fprintf(tw, "  [%d]\tskipped\t%s\n", i, state.Features[i])
	}
	tw.Flush()
}

// Notification builds the completion notification for a batch. Failed
// features are named with their reasons so the notification alone says
// what needs attention.
func (s Summary) Notification() notify.Notification {
	ntype := notify.NotifySuccess
	if s.FailedCount > 0 || s.SkippedCount > 0 {
		ntype = notify.NotifyError
	}
	details := make([]string, 0, len(s.Failed))
	for _, f := range s.Failed {
		details = append(details, fmt.Sprintf("[%d] %s: %s", f.Index, f.Feature, f.Reason))
	}
	return notify.Notification{
		Title:   fmt.Sprintf("Batch %s %s", s.BatchID, s.Status),
		Message: fmt.Sprintf("%d completed, %d failed, %d skipped", s.CompletedCount, s.FailedCount, s.SkippedCount),
		Type:    ntype,
		BatchID: s.BatchID,
		Details: details,
	}
}
