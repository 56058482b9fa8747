package temporal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidRule is returned for a weekday outside 0..6 or an
	// occurrence outside 1..5.
	ErrInvalidRule = errors.New("temporal: invalid recurrence rule")
	// ErrNoSuchOccurrence is returned when no month in the search horizon
	// contains the requested occurrence.
	ErrNoSuchOccurrence = errors.New("temporal: no such occurrence")
)

// maxRuleMonths bounds the month-by-month search in NextRuleDate. Every
// weekday occurs a fifth time at least once in any run of 12 months.
const maxRuleMonths = 12

// RecurrenceRule selects the Nth given weekday of a month, e.g. the second
// Saturday.
type RecurrenceRule struct {
	Weekday       time.Weekday
	NthOccurrence int
}

func (r RecurrenceRule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday %d", ErrInvalidRule, int(r.Weekday))
	}
	if r.NthOccurrence < 1 || r.NthOccurrence > 5 {
		return fmt.Errorf("%w: occurrence %d", ErrInvalidRule, r.NthOccurrence)
	}
	return nil
}

var ordinals = []string{"first", "second", "third", "fourth", "fifth"}

// String renders the rule as a slug, e.g. "second-saturday".
func (r RecurrenceRule) String() string {
	if r.Validate() != nil {
		return fmt.Sprintf("invalid(%d,%d)", r.NthOccurrence, int(r.Weekday))
	}
	return ordinals[r.NthOccurrence-1] + "-" + strings.ToLower(r.Weekday.String())
}

// RRule renders the rule as an RFC 5545 recurrence rule.
func (r RecurrenceRule) RRule() string {
	return fmt.Sprintf("FREQ=MONTHLY;BYDAY=%d%s", r.NthOccurrence, strings.ToUpper(r.Weekday.String()[:2]))
}

// ParseRuleSlug parses slugs such as "first-sunday" or "second-saturday".
func ParseRuleSlug(slug string) (RecurrenceRule, error) {
	ord, day, ok := strings.Cut(strings.ToLower(strings.TrimSpace(slug)), "-")
	if !ok {
		return RecurrenceRule{}, fmt.Errorf("%w: %q", ErrInvalidRule, slug)
	}
	n := 0
	for i, o := range ordinals {
		if o == ord {
			n = i + 1
			break
		}
	}
	wd, okDay := ParseWeekday(day)
	if n == 0 || !okDay {
		return RecurrenceRule{}, fmt.Errorf("%w: %q", ErrInvalidRule, slug)
	}
	return RecurrenceRule{Weekday: wd, NthOccurrence: n}, nil
}

// ParseWeekday accepts full English weekday names in any case.
func ParseWeekday(s string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(s, wd.String()) {
			return wd, true
		}
	}
	return 0, false
}

// NthWeekdayOfMonth returns the rule's date within year/month, or false if
// the month does not contain that occurrence (e.g. a fifth Friday).
func NthWeekdayOfMonth(r RecurrenceRule, year int, month time.Month) (DateSpec, bool) {
	if r.Validate() != nil {
		return DateSpec{}, false
	}
	first := DateSpec{Year: year, Month: month, Day: 1}
	offset := (int(r.Weekday) - int(first.Weekday()) + 7) % 7
	d := first.AddDays(offset + 7*(r.NthOccurrence-1))
	if d.Month != month {
		return DateSpec{}, false
	}
	return d, true
}

// NextRuleDate returns the first date on or after ref matching r.
//
// The reference month is tried first; if its occurrence already passed,
// or the month has no such occurrence, the following months are tried in
// order.
func NextRuleDate(r RecurrenceRule, ref DateSpec) (DateSpec, error) {
	if err := r.Validate(); err != nil {
		return DateSpec{}, err
	}
	y, m := ref.Year, ref.Month
	for range maxRuleMonths {
		if d, ok := NthWeekdayOfMonth(r, y, m); ok && !d.Before(ref) {
			return d, nil
		}
		if m == time.December {
			y, m = y+1, time.January
		} else {
			m++
		}
	}
	return DateSpec{}, fmt.Errorf("%w: %s after %s", ErrNoSuchOccurrence, r, ref)
}

// NextWeekday returns the first date on or after ref falling on wd.
func NextWeekday(wd time.Weekday, ref DateSpec) DateSpec {
	return ref.AddDays((int(wd) - int(ref.Weekday()) + 7) % 7)
}
