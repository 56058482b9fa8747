// Package temporal computes event status and display labels from loosely
// formatted dates. Every function takes "today" explicitly and keeps no
// state between calls.
package temporal

import (
	"fmt"
	"time"
)

// DateSpec is a calendar date without a time-of-day component.
type DateSpec struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the DateSpec for y-m-d, or false if the triple is not a
// real calendar date (e.g. February 30).
func NewDate(y int, m time.Month, d int) (DateSpec, bool) {
	if m < time.January || m > time.December || d < 1 {
		return DateSpec{}, false
	}
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != m || t.Day() != d {
		return DateSpec{}, false
	}
	return DateSpec{Year: y, Month: m, Day: d}, true
}

// MustDate is NewDate for literals known to be valid.
func MustDate(y int, m time.Month, d int) DateSpec {
	ds, ok := NewDate(y, m, d)
	if !ok {
		panic(fmt.Sprintf("temporal: invalid date %04d-%02d-%02d", y, int(m), d))
	}
	return ds
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) DateSpec {
	return DateSpec{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Midnight returns local midnight of d in loc (time.Local if nil).
func (d DateSpec) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

const secondsPerDay = 24 * 60 * 60

// noonUTC anchors the date away from any DST transition so that day
// arithmetic is exact.
func (d DateSpec) noonUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

func (d DateSpec) Weekday() time.Weekday {
	return d.noonUTC().Weekday()
}

// AddDays shifts d by n calendar days, normalizing across month and year
// boundaries.
func (d DateSpec) AddDays(n int) DateSpec {
	return DateOf(d.noonUTC().AddDate(0, 0, n))
}

// DaysUntil returns the calendar-day difference other − d.
func (d DateSpec) DaysUntil(other DateSpec) int {
	// Unix seconds, not time.Duration, which saturates after ~292 years.
	return int((other.noonUTC().Unix() - d.noonUTC().Unix()) / secondsPerDay)
}

func (d DateSpec) Before(other DateSpec) bool { return d.Compare(other) < 0 }
func (d DateSpec) After(other DateSpec) bool  { return d.Compare(other) > 0 }

// Compare returns -1, 0 or +1.
func (d DateSpec) Compare(other DateSpec) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d DateSpec) IsZero() bool { return d == DateSpec{} }

// String renders d as YYYY-MM-DD.
func (d DateSpec) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText implements encoding.TextMarshaler so DateSpec can be used
// directly in JSON/YAML payloads.
func (d DateSpec) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DateSpec) UnmarshalText(b []byte) error {
	ds, ok := parseISODate(string(b))
	if !ok {
		return fmt.Errorf("temporal: invalid date %q", string(b))
	}
	*d = ds
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// TimeOfDay is an hour (0–23) and minute (0–59).
type TimeOfDay struct {
	Hour   int
	Minute int
}

// NewTimeOfDay validates h:m.
func NewTimeOfDay(h, m int) (TimeOfDay, bool) {
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: h, Minute: m}, true
}

// String renders the 24-hour form HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Clock renders the 12-hour lower-case form used in labels, e.g. "7:30pm".
func (t TimeOfDay) Clock() string {
	return time.Date(2000, 1, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format("3:04pm")
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	tod, ok := ParseClock(string(b))
	if !ok {
		return fmt.Errorf("temporal: invalid time %q", string(b))
	}
	*t = tod
	return nil
}
