package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// Range separators: the word "through", an en-dash, or a hyphen. Only
	// the text before the first separator describes the start.
	rangeSepRe = regexp.MustCompile(`through|–|-`)

	mdyRe   = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	ampmRe  = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	isoRe   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	isoTSRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T`)
	clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	zoneRe  = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)
)

// Parsed is the result of parsing a free-text date/time string.
type Parsed struct {
	Date DateSpec
	// Time is nil when no start time was found.
	Time *TimeOfDay
}

// ParseDateTimeString extracts the start date and optional start time from
// strings such as "4/5/2025 7:30pm through 4/7/2025".
//
// It returns false when no M/D/YYYY date is present or when the date is
// not a real calendar date. Callers treat false as "exclude this record".
func ParseDateTimeString(text string) (Parsed, bool) {
	first := rangeSepRe.Split(text, 2)[0]

	m := mdyRe.FindStringSubmatch(first)
	if m == nil {
		return Parsed{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	date, ok := NewDate(year, monthOf(month), day)
	if !ok {
		return Parsed{}, false
	}

	out := Parsed{Date: date}
	if tod, ok := parseAmPm(first); ok {
		out.Time = &tod
	}
	return out, true
}

// parseAmPm finds the first "H[:MM] am|pm" and converts it to 24h.
func parseAmPm(s string) (TimeOfDay, bool) {
	m := ampmRe.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, false
	}
	h, _ := strconv.Atoi(m[1])
	mm := 0
	if m[2] != "" {
		mm, _ = strconv.Atoi(m[2])
	}
	if h < 1 || h > 12 {
		return TimeOfDay{}, false
	}
	switch pm := strings.EqualFold(m[3], "pm"); {
	case pm && h != 12:
		h += 12
	case !pm && h == 12:
		h = 0
	}
	return NewTimeOfDay(h, mm)
}

// ParseDateValue accepts the date shapes upstream tables use: YYYY-MM-DD,
// ISO timestamps and free text handled by ParseDateTimeString. Timestamps
// with a zone suffix are converted to the process's local zone.
func ParseDateValue(value string) (Parsed, bool) {
	return ParseDateValueIn(value, time.Local)
}

// ParseDateValueIn is ParseDateValue converting zoned timestamps ("Z" or a
// numeric offset) into loc. Timestamps without a suffix are taken as
// written.
func ParseDateValueIn(value string, loc *time.Location) (Parsed, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return Parsed{}, false
	}
	if d, ok := parseISODate(v); ok {
		return Parsed{Date: d}, true
	}
	if isoTSRe.MatchString(v) {
		if zoneRe.MatchString(v) {
			return parseZoned(v, loc)
		}
		d, ok := parseISODate(v[:10])
		if !ok {
			return Parsed{}, false
		}
		out := Parsed{Date: d}
		if len(v) >= 16 {
			if tod, ok := ParseClock(v[11:16]); ok {
				out.Time = &tod
			}
		}
		return out, true
	}
	return ParseDateTimeString(v)
}

func parseZoned(v string, loc *time.Location) (Parsed, bool) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		// Unreadable zone: keep the date, drop the clock.
		d, ok := parseISODate(v[:10])
		return Parsed{Date: d}, ok
	}
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	tod, _ := NewTimeOfDay(t.Hour(), t.Minute())
	return Parsed{Date: DateOf(t), Time: &tod}, true
}

// ParseClock parses a 24-hour "HH:MM" or "HH:MM:SS" column value. Seconds
// are dropped.
func ParseClock(s string) (TimeOfDay, bool) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return TimeOfDay{}, false
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return NewTimeOfDay(h, mm)
}

func parseISODate(s string) (DateSpec, bool) {
	m := isoRe.FindStringSubmatch(s)
	if m == nil {
		return DateSpec{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	return NewDate(y, monthOf(mo), d)
}
