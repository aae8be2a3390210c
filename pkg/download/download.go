// Package download writes one raw log file per node into a timestamped run
// directory, together with a metadata file describing the run.
package download

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// RunStampLayout names run directories, e.g. logs/2024_05_01_12_30_00.
const RunStampLayout = "2006_01_02_15_04_05"

// DetailsFile is the metadata file written into every run directory.
const DetailsFile = "log_run_details.json"

// Fetch produces the raw log lines for one node. Implementations are the
// Loki client and the local journal source.
type Fetch func(ctx context.Context, node string, write func(line string) error) error

// Options configures a download run.
type Options struct {
	BaseDir  string // parent of the run directory, e.g. "logs"
	Compress bool   // gzip per-node files
	Nodes    []string
	Start    time.Time
	End      time.Time
	URL      string // recorded in run details
	Label    string // recorded in run details
}

// Details is the run metadata recorded alongside the log files.
type Details struct {
	RunTimestamp string   `json:"run_timestamp"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Nodes        []string `json:"nodes"`
	URL          string   `json:"url"`
	Label        string   `json:"label"`
	OutputDir    string   `json:"output_dir"`
	Compressed   bool     `json:"compressed,omitempty"`
}

// Run downloads logs for all nodes and returns the run directory path.
// A failure for any node aborts the run.
func Run(ctx context.Context, opts Options, fetch Fetch, logger *slog.Logger) (string, error) {
	stamp := time.Now().UTC().Format(RunStampLayout)
	runDir := filepath.Join(opts.BaseDir, stamp)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	details := Details{
		RunTimestamp: stamp,
		StartTime:    opts.Start.UTC().Format(time.RFC3339),
		EndTime:      opts.End.UTC().Format(time.RFC3339),
		Nodes:        opts.Nodes,
		URL:          opts.URL,
		Label:        opts.Label,
		OutputDir:    runDir,
		Compressed:   opts.Compress,
	}
	if err := writeDetails(filepath.Join(runDir, DetailsFile), details); err != nil {
		return "", err
	}
	logger.Info("downloading logs", "dir", runDir, "from", details.StartTime, "to", details.EndTime, "nodes", len(opts.Nodes))

	for _, node := range opts.Nodes {
		count, err := fetchNode(ctx, runDir, node, opts.Compress, fetch)
		if err != nil {
			return "", fmt.Errorf("node %s: %w", node, err)
		}
		logger.Info("saved node logs", "node", node, "lines", count)
	}

	return runDir, nil
}

func fetchNode(ctx context.Context, runDir, node string, compress bool, fetch Fetch) (int, error) {
	name := node + ".txt"
	if compress {
		name += ".gz"
	}
	f, err := os.Create(filepath.Join(runDir, name))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var w *bufio.Writer
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(f)
		w = bufio.NewWriter(gz)
	} else {
		w = bufio.NewWriter(f)
	}

	count := 0
	err = fetch(ctx, node, func(line string) error {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := w.Flush(); err != nil {
		return 0, err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return 0, err
		}
	}
	return count, f.Close()
}

func writeDetails(path string, details Details) error {
	data, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write run details: %w", err)
	}
	return nil
}

// ReadDetails loads the run metadata from a run directory.
func ReadDetails(runDir string) (Details, error) {
	var d Details
	data, err := os.ReadFile(filepath.Join(runDir, DetailsFile))
	if err != nil {
		return d, fmt.Errorf("read run details: %w", err)
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse run details: %w", err)
	}
	return d, nil
}
