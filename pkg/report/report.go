// Package report reads and writes the flat-text propagation report.
//
// One record per line, tab-separated:
//
//	node	height	sealed(RFC3339Nano)	imported(RFC3339Nano)	delta_ms
//
// Lines starting with '#' are comments. The delta column is derived and
// kept only for human readers; Read recomputes it from the timestamps.
package report

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ozgb/blockprop/pkg/core"
)

// Append writes measurements to the report file, creating it if needed.
// Comments are written first, one per '#' line.
func Append(path string, ms []core.Measurement, comments ...string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, c := range comments {
		if _, err := fmt.Fprintf(w, "# %s\n", c); err != nil {
			return err
		}
	}
	for _, m := range ms {
		if _, err := w.WriteString(encode(m) + "\n"); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// Read parses a report file, skipping comments and blank lines.
func Read(path string) ([]core.Measurement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	var ms []core.Measurement
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		ms = append(ms, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ms, nil
}

func encode(m core.Measurement) string {
	deltaMs := float64(m.Delta()) / float64(time.Millisecond)
	return fmt.Sprintf("%s\t%d\t%s\t%s\t%.3f",
		m.Node, m.Height,
		m.Sealed.UTC().Format(time.RFC3339Nano),
		m.Imported.UTC().Format(time.RFC3339Nano),
		deltaMs)
}

func parseLine(line string) (core.Measurement, error) {
	var m core.Measurement
	fields := strings.Split(line, "\t")
	if len(fields) != 5 {
		return m, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	height, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return m, fmt.Errorf("height: %w", err)
	}
	sealed, err := time.Parse(time.RFC3339Nano, fields[2])
	if err != nil {
		return m, fmt.Errorf("sealed timestamp: %w", err)
	}
	imported, err := time.Parse(time.RFC3339Nano, fields[3])
	if err != nil {
		return m, fmt.Errorf("imported timestamp: %w", err)
	}
	m = core.Measurement{
		Node:     fields[0],
		Height:   height,
		Sealed:   sealed.UTC(),
		Imported: imported.UTC(),
	}
	return m, nil
}
