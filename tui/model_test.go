package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
)

func testState(t *testing.T) *domain.BatchState {
	t.Helper()
	now := time.Now()
	state := domain.NewBatchState("batch-tui", []string{"add login", "add logout", "add sso"}, now)
	if err := state.MarkCompleted(0, now); err != nil {
		t.Fatal(err)
	}
	if err := state.RecordFailure(1, "2/5 tests failing", now); err != nil {
		t.Fatal(err)
	}
	return state
}

func TestUpdate_LoadedMessage(t *testing.T) {
	m := Model{batchID: "batch-tui"}
	updated, _ := m.Update(loadedMsg{state: testState(t)})
	model := updated.(Model)

	if model.state == nil {
		t.Fatal("state not stored")
	}
	if model.summary.CompletedCount != 1 || model.summary.FailedCount != 1 || model.summary.SkippedCount != 1 {
		t.Errorf("summary = %+v", model.summary)
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	m := Model{}
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		var msg tea.KeyMsg
		switch key {
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Errorf("key %q did not quit", key)
		}
	}
}

func TestView_RendersDispositions(t *testing.T) {
	m := Model{batchID: "batch-tui", width: 80, height: 24}
	updated, _ := m.Update(loadedMsg{state: testState(t)})
	out := updated.(Model).View()

	if !strings.Contains(out, "add login") {
		t.Error("completed feature missing from view")
	}
	if !strings.Contains(out, "add logout: 2/5 tests failing") {
		t.Error("failed feature must be rendered with its reason")
	}
	if !strings.Contains(out, "1 completed, 1 failed, 1 pending") {
		t.Errorf("header counts missing:\n%s", out)
	}
}

func TestView_LoadErrorBeforeFirstState(t *testing.T) {
	m := Model{batchID: "batch-tui"}
	updated, _ := m.Update(loadedMsg{err: errNotFound{}})
	out := updated.(Model).View()

	if !strings.Contains(out, "cannot load batch") {
		t.Errorf("expected load error view, got:\n%s", out)
	}
}

type errNotFound struct{}

func (errNotFound) Error() string { return "batch state not found" }
