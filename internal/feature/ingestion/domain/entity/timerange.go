package entity

import (
	"fmt"
	"strings"
	"time"
)

// TimeRange is a half-open UTC interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Contains reports whether t falls inside [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// NormalizeUTC is the single place where timestamps enter UTC.
// A time.Time always carries a location, so "naive" input only exists at the
// parsing boundary (see ParseTimestamp), where it is read as UTC.
func NormalizeUTC(t time.Time) time.Time {
	return t.UTC()
}

// naiveLayouts are accepted ISO 8601 layouts without zone information.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO 8601 string into UTC.
// Offset-aware input is converted; input without zone information is taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NormalizeUTC(t), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: not an ISO 8601 date-time", s)
}
