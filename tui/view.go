package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	cursorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
)

// View renders the dashboard
func (m Model) View() string {
	if m.loadErr != nil && m.state == nil {
		return fmt.Sprintf("cannot load batch %s: %v\n\npress q to quit\n", m.batchID, m.loadErr)
	}
	if m.state == nil {
		return "loading...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Batch %s", m.state.BatchID)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf(
		"%s | %d completed, %d failed, %d pending | context %.0f | %d checkpoint(s)",
		m.state.Status,
		m.summary.CompletedCount,
		m.summary.FailedCount,
		m.summary.SkippedCount,
		m.state.ContextEstimate,
		m.summary.Checkpoints,
	)))
	b.WriteString("\n")
	b.WriteString(m.progressBar())
	b.WriteString("\n\n")

	visible := m.visibleRows()
	start := m.scroll
	if start > len(m.state.Features)-1 {
		start = 0
	}
	end := start + visible
	if end > len(m.state.Features) {
		end = len(m.state.Features)
	}

	for i := start; i < end; i++ {
		b.WriteString(m.featureRow(i))
		b.WriteString("\n")
	}

	b.WriteString(footerStyle.Render("j/k scroll · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) featureRow(i int) string {
	feature := m.state.Features[i]
	switch m.state.Disposition(i) {
	case domain.DispositionCompleted:
		return completedStyle.Render(fmt.Sprintf("  ✓ [%d] %s", i, feature))
	case domain.DispositionFailed:
		entry, _ := m.state.FailureFor(i)
		return failedStyle.Render(fmt.Sprintf("  ✗ [%d] %s: %s", i, feature, entry.ErrorMessage))
	default:
		if i == m.state.CurrentIndex && !m.state.IsTerminal() {
			return cursorStyle.Render(fmt.Sprintf("  ▶ [%d] %s", i, feature))
		}
		return pendingStyle.Render(fmt.Sprintf("  · [%d] %s", i, feature))
	}
}

func (m Model) progressBar() string {
	width := m.width - 4
	if width < 10 {
		width = 40
	}
	total := len(m.state.Features)
	if total == 0 {
		return ""
	}
	done := m.summary.CompletedCount + m.summary.FailedCount
	filled := width * done / total
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func (m Model) visibleRows() int {
	// Header block takes 5 lines, footer 2
	rows := m.height - 7
	if rows < 3 {
		rows = len(m.state.Features)
	}
	return rows
}
