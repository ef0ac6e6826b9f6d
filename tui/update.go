package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/report"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			if m.state != nil && m.scroll < len(m.state.Features)-1 {
				m.scroll++
			}
		}
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.loadCmd(), tickCmd())

	case loadedMsg:
		m.loadErr = msg.err
		if msg.err == nil {
			m.state = msg.state
			m.summary = report.Summarize(msg.state)
		}
		return m, nil
	}

	return m, nil
}
