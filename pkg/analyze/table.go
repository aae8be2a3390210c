package analyze

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	tableTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229"))

	slowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// RenderTable renders the per-node statistics as a styled terminal table.
// Nodes whose p95 exceeds slowThreshold are highlighted.
func RenderTable(stats []NodeStats, title string) string {
	var b strings.Builder

	if title != "" {
		b.WriteString(tableTitleStyle.Render(title) + "\n")
	}

	header := fmt.Sprintf("%-12s %6s %10s %10s %10s %10s %10s %4s",
		"node", "count", "mean", "p50", "p95", "p99", "max", "neg")
	b.WriteString(tableHeaderStyle.Render(header) + "\n")

	slowThreshold := slowCutoff(stats)
	for _, s := range stats {
		row := fmt.Sprintf("%-12s %6d %10s %10s %10s %10s %10s %4d",
			s.Node, s.Count, fmtMs(s.Mean), fmtMs(s.P50), fmtMs(s.P95), fmtMs(s.P99), fmtMs(s.Max), s.Negative)
		switch {
		case s.Count == 0:
			row = dimStyle.Render(row)
		case s.P95 > slowThreshold:
			row = slowStyle.Render(row)
		}
		b.WriteString(row + "\n")
	}
	return b.String()
}

// slowCutoff marks nodes whose p95 is more than twice the fleet median p95.
func slowCutoff(stats []NodeStats) time.Duration {
	if len(stats) == 0 {
		return 0
	}
	p95s := make([]time.Duration, 0, len(stats))
	for _, s := range stats {
		p95s = append(p95s, s.P95)
	}
	sort.Slice(p95s, func(i, j int) bool { return p95s[i] < p95s[j] })
	return 2 * p95s[len(p95s)/2]
}
