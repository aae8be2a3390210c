// Package journal reads node logs from the local systemd journal, for fleets
// that run on the same host as the benchmark (e.g. CI smoke runs) and are not
// shipped to a log backend.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
)

// Source reads a time range of log lines per systemd unit.
type Source struct {
	// UnitTemplate maps a node name to its unit, e.g. "node-%s.service".
	UnitTemplate string
	logger       *slog.Logger
}

// New creates a journal source. unitTemplate must contain one %s verb for
// the node name.
func New(unitTemplate string, logger *slog.Logger) *Source {
	return &Source{UnitTemplate: unitTemplate, logger: logger}
}

// Lines calls fn for every journal message of the node's unit between start
// and end, in forward order.
func (s *Source) Lines(ctx context.Context, node string, start, end time.Time, fn func(ts time.Time, line string) error) error {
	unit := fmt.Sprintf(s.UnitTemplate, node)

	j, err := sdjournal.NewJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	if err := j.AddMatch(sdjournal.SD_JOURNAL_FIELD_SYSTEMD_UNIT + "=" + unit); err != nil {
		return fmt.Errorf("match unit %s: %w", unit, err)
	}
	if err := j.SeekRealtimeUsec(uint64(start.UnixMicro())); err != nil {
		return fmt.Errorf("seek journal: %w", err)
	}

	endUsec := uint64(end.UnixMicro())
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.Next()
		if err != nil {
			return fmt.Errorf("advance journal: %w", err)
		}
		if n == 0 {
			break
		}
		entry, err := j.GetEntry()
		if err != nil {
			return fmt.Errorf("read journal entry: %w", err)
		}
		if entry.RealtimeTimestamp > endUsec {
			break
		}
		ts := time.UnixMicro(int64(entry.RealtimeTimestamp)).UTC()
		if err := fn(ts, entry.Fields[sdjournal.SD_JOURNAL_FIELD_MESSAGE]); err != nil {
			return err
		}
		count++
	}

	s.logger.Info("read journal", "unit", unit, "lines", count)
	return nil
}
