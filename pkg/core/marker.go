package core

import (
	"fmt"
	"regexp"
	"strconv"
)

// Default marker patterns match Substrate authorship and sync output, e.g.
//
//	🔖 Pre-sealed block for proposal at 1234. Hash now 0x41ad…
//	✨ Imported #1234 (0x41ad…)
const (
	DefaultSealPattern   = `Pre-sealed block for proposal at (\d+)`
	DefaultImportPattern = `Imported #(\d+)`
)

// Marker matches a log line event and extracts the block height from it.
type Marker struct {
	re *regexp.Regexp
}

// NewMarker compiles a marker pattern. The pattern must contain exactly one
// capture group, which must match the block height.
func NewMarker(pattern string) (*Marker, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("marker pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("marker pattern %q: expected 1 capture group for the height, got %d", pattern, re.NumSubexp())
	}
	return &Marker{re: re}, nil
}

// Height reports whether the line matches and returns the captured height.
func (m *Marker) Height(line string) (uint64, bool) {
	sub := m.re.FindStringSubmatch(line)
	if sub == nil {
		return 0, false
	}
	h, err := strconv.ParseUint(sub[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return h, true
}
