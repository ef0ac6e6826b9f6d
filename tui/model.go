// Package tui renders a live dashboard for one batch run. It is a
// read-only observer: the model reloads persisted state on a tick and
// never writes anything.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/report"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/statestore"
)

// Model is the TUI application model
type Model struct {
	store   *statestore.Store
	batchID string

	state   *domain.BatchState
	summary report.Summary
	loadErr error

	width  int
	height int
	scroll int
}

// NewModel creates a dashboard model for the given batch
func NewModel(store *statestore.Store, batchID string) Model {
	return Model{store: store, batchID: batchID}
}

// Init kicks off the first load and the refresh ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), tickCmd())
}

// TickMsg triggers a state refresh
type TickMsg time.Time

// loadedMsg carries a freshly loaded state (or the load error)
type loadedMsg struct {
	state *domain.BatchState
	err   error
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) loadCmd() tea.Cmd {
	store, batchID := m.store, m.batchID
	return func() tea.Msg {
		state, err := store.Load(batchID)
		return loadedMsg{state: state, err: err}
	}
}
