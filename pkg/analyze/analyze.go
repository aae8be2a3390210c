// Package analyze aggregates propagation measurements into per-node
// descriptive statistics.
package analyze

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/ozgb/blockprop/pkg/core"
)

// NodeStats is the aggregate for all measurements sharing a node name.
type NodeStats struct {
	Node     string
	Count    int
	Negative int // measurements with a negative delta (clock skew)
	Mean     time.Duration
	Min      time.Duration
	Max      time.Duration
	StdDev   time.Duration
	P50      time.Duration
	P90      time.Duration
	P95      time.Duration
	P99      time.Duration
}

// Compute groups measurements by node and returns per-node statistics,
// sorted by node name.
func Compute(ms []core.Measurement) []NodeStats {
	byNode := make(map[string][]time.Duration)
	for _, m := range ms {
		byNode[m.Node] = append(byNode[m.Node], m.Delta())
	}

	stats := make([]NodeStats, 0, len(byNode))
	for node, deltas := range byNode {
		stats = append(stats, computeNode(node, deltas))
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Node < stats[j].Node })
	return stats
}

func computeNode(node string, deltas []time.Duration) NodeStats {
	n := len(deltas)
	sorted := make([]time.Duration, n)
	copy(sorted, deltas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	negative := 0
	for _, d := range deltas {
		sum += int64(d)
		if d < 0 {
			negative++
		}
	}
	mean := sum / int64(n)

	var variance float64
	for _, d := range deltas {
		diff := float64(int64(d) - mean)
		variance += diff * diff
	}
	variance /= float64(n)

	return NodeStats{
		Node:     node,
		Count:    n,
		Negative: negative,
		Mean:     time.Duration(mean),
		Min:      sorted[0],
		Max:      sorted[n-1],
		StdDev:   time.Duration(math.Sqrt(variance)),
		P50:      percentile(sorted, 0.50),
		P90:      percentile(sorted, 0.90),
		P95:      percentile(sorted, 0.95),
		P99:      percentile(sorted, 0.99),
	}
}

// percentile returns the p-th percentile of a sorted slice using the
// nearest-rank method.
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(n)*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// WriteSummary writes the flat-text statistics summary.
func WriteSummary(w io.Writer, stats []NodeStats, header string) error {
	if header != "" {
		if _, err := fmt.Fprintf(w, "# %s\n", header); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%-12s %6s %10s %10s %10s %10s %10s %10s %10s %10s %4s\n",
		"node", "count", "mean", "min", "max", "stddev", "p50", "p90", "p95", "p99", "neg"); err != nil {
		return err
	}
	for _, s := range stats {
		if _, err := fmt.Fprintf(w, "%-12s %6d %10s %10s %10s %10s %10s %10s %10s %10s %4d\n",
			s.Node, s.Count,
			fmtMs(s.Mean), fmtMs(s.Min), fmtMs(s.Max), fmtMs(s.StdDev),
			fmtMs(s.P50), fmtMs(s.P90), fmtMs(s.P95), fmtMs(s.P99),
			s.Negative); err != nil {
			return err
		}
	}
	return nil
}

func fmtMs(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
