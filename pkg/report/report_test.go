package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozgb/blockprop/pkg/core"
)

func sample() []core.Measurement {
	sealed := time.Date(2024, 5, 1, 12, 0, 3, 141_000_000, time.UTC)
	return []core.Measurement{
		{Node: "bob", Height: 100, Sealed: sealed, Imported: sealed.Add(217 * time.Millisecond)},
		{Node: "charlie", Height: 100, Sealed: sealed, Imported: sealed.Add(-3 * time.Millisecond)},
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, Append(path, sample(), "run 2024_05_01_12_30_00", "orphan_imports=2"))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, sample(), got)
}

func TestAppend_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, Append(path, sample()[:1]))
	require.NoError(t, Append(path, sample()[1:]))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, sample(), got)
}

func TestRead_SkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	content := "# header\n\nbob\t100\t2024-05-01T12:00:03.141Z\t2024-05-01T12:00:03.358Z\t217.000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Node)
	assert.Equal(t, 217*time.Millisecond, got[0].Delta())
}

func TestRead_RejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("bob\tnot-a-height\tx\ty\t0\n"), 0644))

	_, err := Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":1:")
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}
