package domain

import (
	"fmt"
	"strings"
	"time"
)

// ParseError reports a single timestamp that matched none of the accepted
// layouts. It drops one candidate slot; it never aborts a batch.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable timestamp %q", e.Raw)
}

// Layouts carrying an explicit offset are tried first. The bare layouts are
// defined to mean UTC: every downstream interval comparison assumes a single
// time base, so input without an offset is not local time, it is UTC.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339Nano,
}

var bareLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseInstant parses one candidate timestamp into an offset-resolved
// instant, normalized to UTC so that equivalent wall-clock-plus-offset
// inputs compare equal regardless of which layout produced them.
func ParseInstant(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, &ParseError{Raw: raw}
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range bareLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &ParseError{Raw: raw}
}
