// Package observer watches a batch's persisted state file and delivers
// fresh state to a callback whenever the scheduler writes a transition.
// Because saves are atomic renames, a reload never sees a half-written
// record; rapid successive writes are debounced.
package observer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/statestore"
)

// StateChangeCallback receives the freshly loaded state after a change
type StateChangeCallback func(state *domain.BatchState)

// StateWatcher monitors one batch's state file
type StateWatcher struct {
	store    *statestore.Store
	batchID  string
	callback StateChangeCallback
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending bool

	cancel context.CancelFunc
}

// NewStateWatcher creates a watcher for the given batch
func NewStateWatcher(store *statestore.Store, batchID string, callback StateChangeCallback) (*StateWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: atomic saves rename a temp
	// file over the target, which replaces the watched inode.
	if err := watcher.Add(store.Dir()); err != nil {
		watcher.Close()
		return nil, err
	}

	return &StateWatcher{
		store:    store,
		batchID:  batchID,
		callback: callback,
		watcher:  watcher,
		debounce: 200 * time.Millisecond,
	}, nil
}

// SetDebounce sets the debounce window for coalescing rapid writes
func (w *StateWatcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start begins watching until the context is cancelled or Stop is called
func (w *StateWatcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				// Keep watching; a transient error loses one event at worst
			}
		}
	}()
}

// Stop stops watching
func (w *StateWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.watcher.Close()
}

func (w *StateWatcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, "/"+w.batchID+".json") {
		return
	}
	// Renames land as Create; direct writes as Write
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *StateWatcher) flush() {
	w.mu.Lock()
	if !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	state, err := w.store.Load(w.batchID)
	if err != nil {
		// Mid-cleanup or corrupted: nothing sensible to deliver
		return
	}
	if w.callback != nil {
		w.callback(state)
	}
}
