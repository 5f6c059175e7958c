package core

import (
	"strings"
	"time"
)

// Layouts without a zone are read as wall-clock time in the aggregation
// location, so "2024-01-31" stays on the 31st whatever the server timezone.
var localLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"2006-01",
}

// ParseEventDate parses a record date string as a calendar date in loc.
// Timestamps carrying an offset are converted into loc. The second return
// value is false when no layout matches.
func ParseEventDate(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
