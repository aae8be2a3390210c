// Package extract turns a run directory of raw node logs into propagation
// measurements by pairing seal and import marker lines across the fleet.
package extract

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ozgb/blockprop/pkg/core"
)

// Options configures an extraction pass.
type Options struct {
	Seal    *core.Marker
	Import  *core.Marker
	Layouts []string // timestamp layouts, defaults to core.DefaultLayouts
}

// Result holds the measurements and the counters for everything skipped.
type Result struct {
	Measurements []core.Measurement

	// Skip counters. Unmatched markers are dropped, not an error, but the
	// counts are surfaced so a run with clock or marker trouble is visible.
	OrphanImports  int // import with no seal anywhere in the fleet
	OrphanSeals    int // seal never imported by any other node
	DuplicateSeals int // later seals for an already sealed height
	SelfImports    int // node importing its own sealed block
	BadTimestamps  int // marker lines whose timestamp failed to parse
}

type sealEvent struct {
	node string
	ts   time.Time
}

// Run extracts measurements from every per-node log file in runDir.
// Files are named <node>.txt or <node>.txt.gz; everything else is ignored.
func Run(runDir string, opts Options, logger *slog.Logger) (*Result, error) {
	layouts := opts.Layouts
	if len(layouts) == 0 {
		layouts = core.DefaultLayouts
	}

	files, err := nodeFiles(runDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no node log files in %s", runDir)
	}

	res := &Result{}
	seals := make(map[uint64]sealEvent)
	type importEvent struct {
		node   string
		height uint64
		ts     time.Time
	}
	var imports []importEvent

	for _, path := range files {
		node := nodeName(path)
		err := scanFile(path, func(line string) {
			if h, ok := opts.Seal.Height(line); ok {
				ts, ok := core.ExtractTime(line, layouts)
				if !ok {
					res.BadTimestamps++
					return
				}
				if prev, dup := seals[h]; dup {
					res.DuplicateSeals++
					if ts.Before(prev.ts) {
						seals[h] = sealEvent{node: node, ts: ts}
					}
					return
				}
				seals[h] = sealEvent{node: node, ts: ts}
				return
			}
			if h, ok := opts.Import.Height(line); ok {
				ts, ok := core.ExtractTime(line, layouts)
				if !ok {
					res.BadTimestamps++
					return
				}
				imports = append(imports, importEvent{node: node, height: h, ts: ts})
			}
		})
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node, err)
		}
	}

	imported := make(map[uint64]bool)
	for _, imp := range imports {
		seal, ok := seals[imp.height]
		if !ok {
			res.OrphanImports++
			continue
		}
		if seal.node == imp.node {
			res.SelfImports++
			continue
		}
		imported[imp.height] = true
		res.Measurements = append(res.Measurements, core.Measurement{
			Node:     imp.node,
			Height:   imp.height,
			Sealed:   seal.ts,
			Imported: imp.ts,
		})
	}
	for h := range seals {
		if !imported[h] {
			res.OrphanSeals++
		}
	}

	sort.Slice(res.Measurements, func(i, j int) bool {
		a, b := res.Measurements[i], res.Measurements[j]
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		return a.Height < b.Height
	})

	logger.Info("extracted measurements",
		"measurements", len(res.Measurements),
		"orphan_imports", res.OrphanImports,
		"orphan_seals", res.OrphanSeals,
		"duplicate_seals", res.DuplicateSeals,
		"self_imports", res.SelfImports,
		"bad_timestamps", res.BadTimestamps)
	return res, nil
}

func nodeFiles(runDir string) ([]string, error) {
	plain, err := filepath.Glob(filepath.Join(runDir, "*.txt"))
	if err != nil {
		return nil, err
	}
	gz, err := filepath.Glob(filepath.Join(runDir, "*.txt.gz"))
	if err != nil {
		return nil, err
	}
	files := append(plain, gz...)
	sort.Strings(files)
	return files, nil
}

func nodeName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(name, ".txt")
}

func scanFile(path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	return scanner.Err()
}
