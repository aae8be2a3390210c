package analyze

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozgb/blockprop/pkg/core"
)

func measurements(node string, deltasMs ...int) []core.Measurement {
	sealed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ms := make([]core.Measurement, 0, len(deltasMs))
	for i, d := range deltasMs {
		ms = append(ms, core.Measurement{
			Node:     node,
			Height:   uint64(100 + i),
			Sealed:   sealed,
			Imported: sealed.Add(time.Duration(d) * time.Millisecond),
		})
	}
	return ms
}

func TestCompute_SingleNode(t *testing.T) {
	ms := measurements("bob", 100, 200, 300, 400)
	stats := Compute(ms)
	require.Len(t, stats, 1)

	s := stats[0]
	assert.Equal(t, "bob", s.Node)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 250*time.Millisecond, s.Mean)
	assert.Equal(t, 100*time.Millisecond, s.Min)
	assert.Equal(t, 400*time.Millisecond, s.Max)
	// Nearest-rank: ceil(4*0.5)=2nd, ceil(4*0.9)=4th.
	assert.Equal(t, 200*time.Millisecond, s.P50)
	assert.Equal(t, 400*time.Millisecond, s.P90)
	assert.Equal(t, 400*time.Millisecond, s.P99)
	assert.Zero(t, s.Negative)
	// Population stddev of {100,200,300,400} is ~111.8ms.
	assert.InDelta(t, 111.8, float64(s.StdDev)/float64(time.Millisecond), 0.1)
}

func TestCompute_GroupsAndSortsByNode(t *testing.T) {
	ms := append(measurements("zoe", 50), measurements("bob", 10, 20)...)
	stats := Compute(ms)
	require.Len(t, stats, 2)
	assert.Equal(t, "bob", stats[0].Node)
	assert.Equal(t, 2, stats[0].Count)
	assert.Equal(t, "zoe", stats[1].Node)
	assert.Equal(t, 1, stats[1].Count)
}

func TestCompute_NegativeCounted(t *testing.T) {
	stats := Compute(measurements("bob", -5, 10, 20))
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Negative)
	assert.Equal(t, -5*time.Millisecond, stats[0].Min)
}

func TestCompute_Empty(t *testing.T) {
	assert.Empty(t, Compute(nil))
}

func TestPercentile_NearestRank(t *testing.T) {
	sorted := []time.Duration{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	assert.Equal(t, time.Duration(50), percentile(sorted, 0.50))
	assert.Equal(t, time.Duration(90), percentile(sorted, 0.90))
	assert.Equal(t, time.Duration(100), percentile(sorted, 0.95))
	assert.Equal(t, time.Duration(10), percentile(sorted[:1], 0.99))
	assert.Equal(t, time.Duration(0), percentile(nil, 0.5))
}

func TestWriteSummary(t *testing.T) {
	var b strings.Builder
	stats := Compute(measurements("bob", 100, 200))
	require.NoError(t, WriteSummary(&b, stats, "run 2024_05_01"))

	out := b.String()
	assert.Contains(t, out, "# run 2024_05_01")
	assert.Contains(t, out, "node")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "150.0ms")
}

func TestRenderTable_FlagsSlowNode(t *testing.T) {
	ms := append(measurements("alice", 10, 10, 10), measurements("bob", 10, 10, 10)...)
	ms = append(ms, measurements("tom", 500, 500, 500)...)

	out := RenderTable(Compute(ms), "propagation")
	assert.Contains(t, out, "propagation")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "tom")
}
