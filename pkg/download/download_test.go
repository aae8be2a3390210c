package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func fakeFetch(lines map[string][]string) Fetch {
	return func(_ context.Context, node string, write func(string) error) error {
		for _, l := range lines[node] {
			if err := write(l); err != nil {
				return err
			}
		}
		return nil
	}
}

func testOptions(base string) Options {
	return Options{
		BaseDir: base,
		Nodes:   []string{"alice", "bob"},
		Start:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
		URL:     "http://localhost:3100",
		Label:   "host",
	}
}

func TestRun_WritesNodeFilesAndDetails(t *testing.T) {
	base := t.TempDir()
	fetch := fakeFetch(map[string][]string{
		"alice": {"a1", "a2"},
		"bob":   {"b1"},
	})

	runDir, err := Run(context.Background(), testOptions(base), fetch, testLogger)
	require.NoError(t, err)
	assert.Equal(t, base, filepath.Dir(runDir))

	data, err := os.ReadFile(filepath.Join(runDir, "alice.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a1\na2\n", string(data))

	data, err = os.ReadFile(filepath.Join(runDir, "bob.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b1\n", string(data))

	d, err := ReadDetails(runDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, d.Nodes)
	assert.Equal(t, "2024-05-01T12:00:00Z", d.StartTime)
	assert.Equal(t, "2024-05-01T13:00:00Z", d.EndTime)
	assert.Equal(t, "http://localhost:3100", d.URL)
	assert.Equal(t, "host", d.Label)
	assert.Equal(t, filepath.Base(runDir), d.RunTimestamp)
	assert.False(t, d.Compressed)
}

func TestRun_Compressed(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.Compress = true
	opts.Nodes = []string{"alice"}

	runDir, err := Run(context.Background(), opts, fakeFetch(map[string][]string{"alice": {"hello"}}), testLogger)
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(runDir, "alice.txt.gz"))
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	d, err := ReadDetails(runDir)
	require.NoError(t, err)
	assert.True(t, d.Compressed)
}

func TestRun_FetchFailureAborts(t *testing.T) {
	opts := testOptions(t.TempDir())
	fetch := func(_ context.Context, node string, _ func(string) error) error {
		if node == "bob" {
			return fmt.Errorf("backend unavailable")
		}
		return nil
	}

	_, err := Run(context.Background(), opts, fetch, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node bob")
}
