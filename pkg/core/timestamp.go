package core

import (
	"strings"
	"time"
)

// DefaultLayouts covers Substrate's tracing output ("2024-05-01 12:00:03.141")
// and RFC3339 variants. Layouts without a zone are taken as UTC.
var DefaultLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

// ExtractTime parses the timestamp embedded at the start of a raw log line.
// It tries each layout against the line's leading whitespace-separated
// fields and returns the first parse that succeeds.
func ExtractTime(line string, layouts []string) (time.Time, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return time.Time{}, false
	}
	candidates := []string{fields[0]}
	if len(fields) > 1 {
		candidates = append(candidates, fields[0]+" "+fields[1])
	}
	for _, layout := range layouts {
		for _, cand := range candidates {
			ts, err := time.Parse(layout, cand)
			if err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
