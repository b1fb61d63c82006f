// Package dates implements civil-date arithmetic for the reminder schedule.
//
// A civil date is a calendar day with no time-of-day or timezone component.
// All schedule decisions compare civil dates only; clock time matters solely
// for resolving "today" at the configured fixed offset.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical on-disk date format.
const Layout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid calendar date")

// CivilDate is a pure calendar date.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

func (d CivilDate) IsZero() bool { return d == CivilDate{} }

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// time returns midnight UTC of the date. UTC keeps AddDate arithmetic free
// of DST edges.
func (d CivilDate) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// FromTime truncates an instant to the calendar date in its location.
func FromTime(t time.Time) CivilDate {
	y, m, day := t.Date()
	return CivilDate{Year: y, Month: m, Day: day}
}

// Today resolves the current civil date at a fixed UTC offset, independent
// of the host timezone.
func Today(now time.Time, offsetMinutes int) CivilDate {
	zone := time.FixedZone("", offsetMinutes*60)
	return FromTime(now.In(zone))
}

// Parse decodes a bare YYYY-MM-DD string.
func Parse(s string) (CivilDate, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return CivilDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return FromTime(t), nil
}

// Normalize accepts a date string that may carry a trailing time and/or zone
// component (e.g. "2026-02-13T09:30:00Z" or "2026-02-13 09:30") and returns
// only the date portion. It fails with ErrInvalidDate when the date portion
// is not a valid calendar date.
func Normalize(raw string) (CivilDate, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	return Parse(s)
}

// AddDays is calendar-correct addition, crossing month and year boundaries.
func AddDays(d CivilDate, n int) CivilDate {
	return FromTime(d.time().AddDate(0, 0, n))
}

// DaysBetween returns b - a in whole days.
func DaysBetween(a, b CivilDate) int {
	return int(b.time().Sub(a.time()).Hours() / 24)
}

// IsDue reports whether candidate is calendar-equal to today.
func IsDue(candidate, today CivilDate) bool {
	return candidate == today
}

// DisplayLabel maps a date's offset from today to a short human label.
// Presentation only; never feeds back into scheduling.
func DisplayLabel(candidate, today CivilDate) string {
	switch DaysBetween(today, candidate) {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	case 2:
		return "the day after tomorrow"
	case -1:
		return "yesterday"
	}
	if off := DaysBetween(today, candidate); off > 2 && off < 7 {
		return candidate.time().Weekday().String()
	}
	return candidate.time().Format("Jan 2 (Mon)")
}
