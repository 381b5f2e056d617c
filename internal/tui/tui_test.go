package tui

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/report"
)

func sample(n int) *report.Report {
	var fs []model.Finding
	for i := 0; i < n; i++ {
		fs = append(fs, model.Finding{
			ID:          fmt.Sprint(i),
			RuleID:      "SOL-TX-ORIGIN",
			Class:       fmt.Sprintf("class-%d", i),
			Title:       fmt.Sprintf("finding %d", i),
			Description: "uses tx.origin",
			Severity:    model.SeverityHigh,
			Confidence:  model.ConfidenceHeuristic,
			Locations:   []model.Location{{Contract: "Wallet", Function: fmt.Sprintf("f%d", i), Line: i + 1}},
		})
	}
	return report.Generate(fs, nil, report.Options{})
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m Model, keys ...string) Model {
	var tm tea.Model = m
	for _, k := range keys {
		tm, _ = tm.Update(key(k))
	}
	return tm.(Model)
}

func TestNavigation(t *testing.T) {
	m := New(sample(3))
	assert.Contains(t, m.View(), "> HIGH")

	m = send(m, "down", "down", "down")
	assert.Equal(t, 2, m.cursor)
	m = send(m, "up", "k")
	assert.Equal(t, 0, m.cursor)
	m = send(m, "G")
	assert.Equal(t, 2, m.cursor)

	m = send(m, "enter")
	require.True(t, m.detail)
	assert.Contains(t, m.View(), "uses tx.origin")
	m = send(m, "enter")
	assert.False(t, m.detail)
}

func TestScrollWindow(t *testing.T) {
	var tm tea.Model = New(sample(20))
	tm, _ = tm.Update(tea.WindowSizeMsg{Width: 80, Height: chrome + 5})
	m := tm.(Model)
	for i := 0; i < 9; i++ {
		m = send(m, "j")
	}
	assert.Equal(t, 5, m.offset)
	view := m.View()
	assert.NotContains(t, view, "Wallet.f4:5")
	assert.Contains(t, view, "Wallet.f5:6")
	assert.Contains(t, view, "Wallet.f9:10")
}

func TestQuit(t *testing.T) {
	_, cmd := New(sample(1)).Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEmptyReport(t *testing.T) {
	m := send(New(report.Empty()), "down", "enter")
	assert.False(t, m.detail)
	assert.Contains(t, m.View(), "No findings.")
}
