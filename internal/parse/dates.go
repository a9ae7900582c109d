// Package parse holds the forgiving text heuristics used by forms, imports and
// the assistant: flexible dates, status keywords embedded in notes, and
// filename-to-record matching. None of these functions return errors; "no
// confident result" is reported through a boolean or a zero value and callers
// are expected to ask the user instead.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DBDateLayout is the storage representation of calendar dates.
const DBDateLayout = "2006-01-02"

var (
	isoDateRE   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	usFullRE    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	usShortRE   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2})$`)
	usNoYearRE  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	spaceRunsRE = regexp.MustCompile(`\s+`)
)

// fallbackLayouts are tried, in order, once none of the numeric shapes match.
// time.Parse rejects out-of-range days, so none of these roll over.
var fallbackLayouts = []string{
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2006/01/02",
	"01-02-2006",
	"1-2-2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseFlexibleDate parses loosely formatted dates relative to the current
// local day. See ParseFlexibleDateAt.
func ParseFlexibleDate(s string) (time.Time, bool) {
	return ParseFlexibleDateAt(s, time.Now())
}

// ParseFlexibleDateAt converts s into a calendar date (midnight UTC).
//
// Accepted shapes, in priority order: YYYY-MM-DD, M/D/YYYY, M/D/YY (20YY),
// M/D (soonest occurrence on or after now's calendar day), then a handful of
// spelled-out layouts. Impossible dates such as 2026-02-30 or 13/1 yield
// false rather than a normalized neighbour.
func ParseFlexibleDateAt(s string, now time.Time) (time.Time, bool) {
	s = spaceRunsRE.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return time.Time{}, false
	}

	if m := isoDateRE.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := usFullRE.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[3]), atoi(m[1]), atoi(m[2]))
	}
	if m := usShortRE.FindStringSubmatch(s); m != nil {
		return civil(2000+atoi(m[3]), atoi(m[1]), atoi(m[2]))
	}
	if m := usNoYearRE.FindStringSubmatch(s); m != nil {
		return nextOccurrence(atoi(m[1]), atoi(m[2]), now)
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// FormatDateForDB renders t as YYYY-MM-DD. The zero time renders as "" which
// the repositories store as NULL.
func FormatDateForDB(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DBDateLayout)
}

// nextOccurrence resolves a year-less month/day to the smallest year at or
// after now's year whose date is valid and not before today. Feb 29 therefore
// lands on the next leap year.
func nextOccurrence(month, day int, now time.Time) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	// Eight years always contains a leap year that has Feb 29.
	for y := now.Year(); y <= now.Year()+8; y++ {
		t, ok := civil(y, month, day)
		if !ok {
			continue
		}
		if !t.Before(today) {
			return t, true
		}
	}
	return time.Time{}, false
}

// civil builds a UTC midnight date and reports false when time.Date would
// have normalized the input (e.g. April 31 → May 1).
func civil(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
