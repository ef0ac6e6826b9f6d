package observer

import (
	"context"
	"testing"
	"time"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/statestore"
)

func TestStateWatcher_DeliversFreshState(t *testing.T) {
	store, err := statestore.New(t.TempDir(), time.Second)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	state := domain.NewBatchState("batch-w", []string{"a", "b"}, now)
	if err := store.Save(state.BatchID, state); err != nil {
		t.Fatal(err)
	}

	updates := make(chan *domain.BatchState, 4)
	watcher, err := NewStateWatcher(store, state.BatchID, func(s *domain.BatchState) {
		updates <- s
	})
	if err != nil {
		t.Fatal(err)
	}
	watcher.SetDebounce(20 * time.Millisecond)
	watcher.Start(context.Background())
	defer watcher.Stop()

	state.MarkCompleted(0, time.Now())
	if err := store.Save(state.BatchID, state); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-updates:
		if !got.IsCompleted(0) {
			t.Error("delivered state should reflect the persisted transition")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no state update delivered")
	}
}

func TestStateWatcher_IgnoresOtherBatches(t *testing.T) {
	store, err := statestore.New(t.TempDir(), time.Second)
	if err != nil {
		t.Fatal(err)
	}

	updates := make(chan *domain.BatchState, 4)
	watcher, err := NewStateWatcher(store, "batch-mine", func(s *domain.BatchState) {
		updates <- s
	})
	if err != nil {
		t.Fatal(err)
	}
	watcher.SetDebounce(20 * time.Millisecond)
	watcher.Start(context.Background())
	defer watcher.Stop()

	other := domain.NewBatchState("batch-other", []string{"x"}, time.Now())
	if err := store.Save(other.BatchID, other); err != nil {
		t.Fatal(err)
	}

	select {
	case <-updates:
		t.Error("watcher for batch-mine must not fire on batch-other writes")
	case <-time.After(300 * time.Millisecond):
	}
}
