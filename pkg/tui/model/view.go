package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// View renders the TUI.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("blockprop · "+a.reportPath) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d measurements, sorted by %s", a.total, a.sortKey)) + "\n")

	b.WriteString(a.renderTable())

	if a.mode == ModeFilter {
		b.WriteString("\n" + a.filter.View())
	} else if v := a.filter.Value(); v != "" {
		b.WriteString("\n" + dimStyle.Render("filter: "+v))
	}

	if a.statusMsg != "" {
		b.WriteString("\n" + errStyle.Render(a.statusMsg))
	}

	b.WriteString("\n" + helpStyle.Render("q quit · r reload · s sort · / filter · ↑/↓ select"))

	return paneStyle.Width(a.width - 4).Render(b.String())
}

func (a App) renderTable() string {
	stats := a.visibleStats()
	if len(stats) == 0 {
		return dimStyle.Render("no measurements")
	}

	var b strings.Builder
	header := fmt.Sprintf("%-12s %6s %10s %10s %10s %10s %10s %4s",
		"node", "count", "mean", "p50", "p95", "p99", "max", "neg")
	b.WriteString(headerStyle.Render(header) + "\n")

	maxRows := a.height - 9
	if maxRows < 1 {
		maxRows = 1
	}
	for i, s := range stats {
		if i >= maxRows {
			b.WriteString(dimStyle.Render(fmt.Sprintf("… %d more", len(stats)-maxRows)))
			break
		}
		row := fmt.Sprintf("%-12s %6d %10s %10s %10s %10s %10s %4d",
			s.Node, s.Count, ms(s.Mean), ms(s.P50), ms(s.P95), ms(s.P99), ms(s.Max), s.Negative)
		if i == a.selectedIdx {
			row = selectedStyle.Render(row)
		}
		b.WriteString(row + "\n")
	}
	return b.String()
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
