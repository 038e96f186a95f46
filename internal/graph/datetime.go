package graph

import (
	"strings"
	"time"

	"github.com/ajitpratap0/casegraph/internal/models"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC3339,
}

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04 pm",
	"3:04pm",
	"3 PM",
	"3PM",
	"3 pm",
	"3pm",
}

// ParseDate parses the normalized extractor form (YYYY-MM-DD) and the common
// formats an enrichment source returns.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseClock parses a time of day in 24-hour or 12-hour form.
func ParseClock(s string) (hour, minute int, ok bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ".", ""))
	if s == "" {
		return 0, 0, false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}

// ParseEventTime combines a date and an optional time of day into a UTC
// instant and its precision:
//   - unparseable date: nil, unknown
//   - date inherited from an earlier sentence: estimated
//   - date without a time (00:00 is used) or a hedged time: approximate
//   - date and time: exact
func ParseEventTime(date, clock string, approximate, inherited bool) (*time.Time, models.TimePrecision) {
	day, ok := ParseDate(date)
	if !ok {
		return nil, models.PrecisionUnknown
	}

	hour, minute, hasClock := ParseClock(clock)
	t := day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)

	switch {
	case inherited:
		return &t, models.PrecisionEstimated
	case !hasClock || approximate:
		return &t, models.PrecisionApproximate
	default:
		return &t, models.PrecisionExact
	}
}
