package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/report"
)

// chrome is the number of lines the header, footer and spacing take.
const chrome = 6

// Model browses the findings of one report.
type Model struct {
	findings []model.Finding
	diags    int
	score    float64
	cursor   int
	offset   int
	detail   bool
	height   int
}

func New(r *report.Report) Model {
	return Model{findings: r.Findings(), diags: len(r.Diagnostics()), score: r.RiskScore()}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.detail && msg.String() == "esc" {
				m.detail = false
				return m, nil
			}
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.findings)-1 {
				m.cursor++
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = max(0, len(m.findings)-1)
		case "enter", " ":
			m.detail = !m.detail && len(m.findings) > 0
		}
	}
	m.scroll()
	return m, nil
}

// scroll keeps the cursor inside the visible window.
func (m *Model) scroll() {
	rows := m.rows()
	if rows <= 0 {
		m.offset = 0
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

func (m Model) rows() int {
	if m.height <= 0 {
		return 0
	}
	return max(1, m.height-chrome)
}

func (m Model) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mush-audit  risk %.1f/100  findings %d  diagnostics %d\n\n", m.score, len(m.findings), m.diags)
	if len(m.findings) == 0 {
		b.WriteString("No findings.\n\nq quit\n")
		return b.String()
	}
	if m.detail {
		writeDetail(&b, m.findings[m.cursor])
		b.WriteString("\nenter back  q quit\n")
		return b.String()
	}
	end := len(m.findings)
	if rows := m.rows(); rows > 0 {
		end = min(end, m.offset+rows)
	}
	for i := m.offset; i < end; i++ {
		f := m.findings[i]
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}
		loc := f.Primary()
		fmt.Fprintf(&b, "%s %-13s %-9s %s.%s:%d  %s\n", cursor, strings.ToUpper(string(f.Severity)), f.Confidence, loc.Contract, loc.Function, loc.Line, f.Title)
	}
	b.WriteString("\n↑/↓ move  enter details  q quit\n")
	return b.String()
}

func writeDetail(b *strings.Builder, f model.Finding) {
	loc := f.Primary()
	fmt.Fprintf(b, "%s\n%s  %s  %s\n", f.Title, strings.ToUpper(string(f.Severity)), f.Confidence, f.RuleID)
	fmt.Fprintf(b, "%s %s.%s line %d\n\n", loc.File, loc.Contract, loc.Function, loc.Line)
	if f.Description != "" {
		fmt.Fprintf(b, "%s\n\n", f.Description)
	}
	if f.Impact != "" {
		fmt.Fprintf(b, "Impact: %s\n", f.Impact)
	}
	if f.EconomicImpact != "" {
		fmt.Fprintf(b, "Economic impact: %s\n", f.EconomicImpact)
	}
	for _, e := range f.Evidence {
		fmt.Fprintf(b, "  - %s\n", e)
	}
	if len(f.Flags) > 0 {
		fmt.Fprintf(b, "Flags: %s\n", strings.Join(f.Flags, ", "))
	}
	if f.Recommendation != "" {
		fmt.Fprintf(b, "\nRecommendation: %s\n", f.Recommendation)
	}
	if f.Snippet != "" {
		fmt.Fprintf(b, "\n%s\n", f.Snippet)
	}
}

// Run launches the interactive browser.
func Run(r *report.Report) error {
	p := tea.NewProgram(New(r))
	_, err := p.Run()
	return err
}
