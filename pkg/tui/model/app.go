package model

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ozgb/blockprop/pkg/analyze"
	"github.com/ozgb/blockprop/pkg/report"
)

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
)

// SortKey identifies the column the stats table is sorted by.
type SortKey int

const (
	SortNode SortKey = iota
	SortCount
	SortMean
	SortP95
	SortMax

	sortKeyCount
)

func (k SortKey) String() string {
	switch k {
	case SortNode:
		return "node"
	case SortCount:
		return "count"
	case SortMean:
		return "mean"
	case SortP95:
		return "p95"
	case SortMax:
		return "max"
	}
	return "?"
}

// App is the root Bubble Tea model for the report viewer.
type App struct {
	reportPath string

	// State
	stats       []analyze.NodeStats
	total       int
	selectedIdx int
	sortKey     SortKey

	// UI
	mode      Mode
	filter    textinput.Model
	width     int
	height    int
	statusMsg string
}

// New creates a viewer for the given report file.
func New(reportPath string) App {
	fi := textinput.New()
	fi.Placeholder = "filter nodes..."
	fi.CharLimit = 64

	return App{
		reportPath: reportPath,
		filter:     fi,
		sortKey:    SortNode,
	}
}

// Init loads the report.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		loadCmd(a.reportPath),
		tea.SetWindowTitle("blockprop"),
	)
}

// statsMsg carries freshly computed statistics.
type statsMsg struct {
	stats []analyze.NodeStats
	total int
}

// errorMsg carries an error to display in the status bar.
type errorMsg struct{ err error }

func loadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		ms, err := report.Read(path)
		if err != nil {
			return errorMsg{err}
		}
		return statsMsg{stats: analyze.Compute(ms), total: len(ms)}
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case statsMsg:
		a.stats = msg.stats
		a.total = msg.total
		a.statusMsg = ""
		a.clampSelection()
		return a, nil

	case errorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		if a.mode == ModeFilter {
			return a.updateFilter(msg)
		}
		return a.updateNormal(msg)
	}
	return a, nil
}

func (a App) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "r":
		return a, loadCmd(a.reportPath)
	case "s":
		a.sortKey = (a.sortKey + 1) % sortKeyCount
		return a, nil
	case "/":
		a.mode = ModeFilter
		a.filter.Focus()
		return a, textinput.Blink
	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}
		return a, nil
	case "down", "j":
		if a.selectedIdx < len(a.visibleStats())-1 {
			a.selectedIdx++
		}
		return a, nil
	}
	return a, nil
}

func (a App) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = ModeNormal
		a.filter.Blur()
		a.filter.SetValue("")
		a.clampSelection()
		return a, nil
	case "enter":
		a.mode = ModeNormal
		a.filter.Blur()
		a.clampSelection()
		return a, nil
	}
	var cmd tea.Cmd
	a.filter, cmd = a.filter.Update(msg)
	a.clampSelection()
	return a, cmd
}

func (a *App) clampSelection() {
	n := len(a.visibleStats())
	if a.selectedIdx >= n {
		a.selectedIdx = n - 1
	}
	if a.selectedIdx < 0 {
		a.selectedIdx = 0
	}
}

// visibleStats applies the node filter and sort order.
func (a App) visibleStats() []analyze.NodeStats {
	needle := strings.ToLower(strings.TrimSpace(a.filter.Value()))

	out := make([]analyze.NodeStats, 0, len(a.stats))
	for _, s := range a.stats {
		if needle == "" || strings.Contains(strings.ToLower(s.Node), needle) {
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		switch a.sortKey {
		case SortCount:
			return out[i].Count > out[j].Count
		case SortMean:
			return out[i].Mean > out[j].Mean
		case SortP95:
			return out[i].P95 > out[j].P95
		case SortMax:
			return out[i].Max > out[j].Max
		default:
			return out[i].Node < out[j].Node
		}
	})
	return out
}
