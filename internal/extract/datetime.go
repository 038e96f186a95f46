package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/casegraph/internal/models"
)

const monthAlt = `Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?`

// ISODate is the normalized form of a fully resolved date.
const ISODate = "2006-01-02"

// ClockTime is the normalized form of a time of day.
const ClockTime = "15:04"

var monthByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// MonthFromName resolves an English month name or abbreviation.
func MonthFromName(name string) (time.Month, bool) {
	key := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	if len(key) < 3 {
		return 0, false
	}
	m, ok := monthByPrefix[key[:3]]
	return m, ok
}

// validDate reports whether y-m-d names a real calendar day.
func validDate(y int, m time.Month, d int) bool {
	if y < 1 || m < time.January || m > time.December || d < 1 {
		return false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return t.Year() == y && t.Month() == m && t.Day() == d
}

// setDate normalizes r to ISO form, or keeps the original text and lowers
// the score when the parts do not form a valid date.
func setDate(r *result, y int, m time.Month, d int) {
	if !validDate(y, m, d) {
		r.score -= 40
		r.set("invalid", "true")
		return
	}
	r.value = time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(ISODate)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

var dateMatchers = []matcher{
	{
		name:  "month_day_year",
		re:    regexp.MustCompile(`\b(` + monthAlt + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`),
		score: 90,
		build: func(h hit, r *result) bool {
			m, _ := MonthFromName(h.group(1))
			setDate(r, atoi(h.group(3)), m, atoi(h.group(2)))
			return true
		},
	},
	{
		name:  "day_month_year",
		re:    regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthAlt + `)\.?,?\s+(\d{4})\b`),
		score: 85,
		build: func(h hit, r *result) bool {
			m, _ := MonthFromName(h.group(2))
			setDate(r, atoi(h.group(3)), m, atoi(h.group(1)))
			return true
		},
	},
	{
		name:  "iso",
		re:    regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`),
		score: 90,
		build: func(h hit, r *result) bool {
			setDate(r, atoi(h.group(1)), time.Month(atoi(h.group(2))), atoi(h.group(3)))
			return true
		},
	},
	{
		name:  "numeric_full_year",
		re:    regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})\b`),
		score: 80,
		build: func(h hit, r *result) bool {
			first, second, y := atoi(h.group(1)), atoi(h.group(2)), atoi(h.group(3))
			if first > 12 && second <= 12 {
				// Only a day-first reading is possible.
				first, second = second, first
				r.score -= 15
				r.set("order", "dmy")
			}
			setDate(r, y, time.Month(first), second)
			return true
		},
	},
	{
		name:  "numeric_short_year",
		re:    regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2})\b`),
		score: 60,
		build: func(h hit, r *result) bool {
			yy := atoi(h.group(3))
			y := 2000 + yy
			if yy >= 70 {
				y = 1900 + yy
			}
			setDate(r, y, time.Month(atoi(h.group(1))), atoi(h.group(2)))
			return true
		},
	},
	{
		name:  "month_day",
		re:    regexp.MustCompile(`\b(` + monthAlt + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`),
		score: 50,
		build: func(h hit, r *result) bool {
			m, _ := MonthFromName(h.group(1))
			d := atoi(h.group(2))
			if !validDate(2000, m, d) {
				return false
			}
			r.set("month", fmt.Sprintf("%02d", int(m)))
			r.set("day", fmt.Sprintf("%02d", d))
			return true
		},
	},
	{
		name:  "bare_numeric",
		re:    regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`),
		score: 35,
		build: func(h hit, r *result) bool {
			m, d := atoi(h.group(1)), atoi(h.group(2))
			if !validDate(2000, time.Month(m), d) {
				return false
			}
			r.set("month", fmt.Sprintf("%02d", m))
			r.set("day", fmt.Sprintf("%02d", d))
			return true
		},
	},
}

// DateExtractor finds calendar dates. Fully resolved dates normalize to
// YYYY-MM-DD; partial or invalid dates keep their original text.
type DateExtractor struct {
	Radius int
}

func (e *DateExtractor) Category() models.CandidateCategory { return models.CategoryDate }

func (e *DateExtractor) Extract(text string) []models.Candidate {
	return scan(text, models.CategoryDate, dateMatchers, radiusOr(e.Radius))
}

var hedgeRE = regexp.MustCompile(`(?i)\b(?:around|approximately|approx\.?|about|roughly|circa|sometime|shortly (?:before|after)|or so)\s*$`)

// markHedged flags times introduced by a hedge word.
func markHedged(h hit, r *result) {
	lo := r.start - 30
	if lo < 0 {
		lo = 0
	}
	if hedgeRE.MatchString(h.text[lo:r.start]) {
		r.set("approximate", "true")
	}
}

func setClock(r *result, hour, minute int) bool {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return false
	}
	r.value = fmt.Sprintf("%02d:%02d", hour, minute)
	return true
}

func meridiem(hour int, marker string) int {
	pm := strings.EqualFold(marker, "p")
	switch {
	case pm && hour < 12:
		return hour + 12
	case !pm && hour == 12:
		return 0
	}
	return hour
}

var timeMatchers = []matcher{
	{
		name:  "clock_meridiem",
		re:    regexp.MustCompile(`\b(1[0-2]|0?[1-9]):([0-5]\d)\s*([AaPp])\.?\s?[Mm]\b\.?`),
		score: 90,
		build: func(h hit, r *result) bool {
			markHedged(h, r)
			return setClock(r, meridiem(atoi(h.group(1)), h.group(3)), atoi(h.group(2)))
		},
	},
	{
		name:  "hour_meridiem",
		re:    regexp.MustCompile(`\b(1[0-2]|0?[1-9])\s*([AaPp])\.?\s?[Mm]\b\.?`),
		score: 80,
		build: func(h hit, r *result) bool {
			markHedged(h, r)
			return setClock(r, meridiem(atoi(h.group(1)), h.group(2)), 0)
		},
	},
	{
		name:  "military_hours",
		re:    regexp.MustCompile(`\b([01]\d|2[0-3])([0-5]\d)\s*(?:hours|hrs)\b`),
		score: 75,
		build: func(h hit, r *result) bool {
			markHedged(h, r)
			return setClock(r, atoi(h.group(1)), atoi(h.group(2)))
		},
	},
	{
		name:  "clock_24h",
		re:    regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)(?::[0-5]\d)?\b`),
		score: 65,
		build: func(h hit, r *result) bool {
			markHedged(h, r)
			return setClock(r, atoi(h.group(1)), atoi(h.group(2)))
		},
	},
	{
		name:  "named_time",
		re:    regexp.MustCompile(`(?i)\b(noon|midnight)\b`),
		score: 60,
		build: func(h hit, r *result) bool {
			markHedged(h, r)
			if strings.EqualFold(h.group(1), "noon") {
				return setClock(r, 12, 0)
			}
			return setClock(r, 0, 0)
		},
	},
}

// TimeExtractor finds times of day and normalizes them to 24-hour HH:MM.
// Times preceded by a hedge word carry the "approximate" attribute.
type TimeExtractor struct {
	Radius int
}

func (e *TimeExtractor) Category() models.CandidateCategory { return models.CategoryTime }

func (e *TimeExtractor) Extract(text string) []models.Candidate {
	return scan(text, models.CategoryTime, timeMatchers, radiusOr(e.Radius))
}
