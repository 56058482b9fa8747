// Package specials resolves civic notices (closures, free museum days,
// weekly deals) to concrete dates and builds the "today" and "tomorrow"
// entries shown in the ticker.
package specials

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"citycal/internal/config"
	"citycal/internal/temporal"
)

// Kind says how a Special recurs.
type Kind string

const (
	KindFixed   Kind = "fixed"   // one calendar date
	KindMonthly Kind = "monthly" // Nth weekday of every month
	KindWeekly  Kind = "weekly"  // every given weekday
)

// Special is a compiled civic notice.
type Special struct {
	Kind     Kind
	Message  string
	Location string

	Date    temporal.DateSpec
	Rule    temporal.RecurrenceRule
	Weekday time.Weekday
}

// ErrNoDate marks a fixed special whose date has already passed.
var ErrNoDate = errors.New("specials: no upcoming date")

// Compile converts config entries. An entry with a "recurring" value of
// "every-<weekday>" is weekly, any other value must be an Nth-weekday slug
// such as "first-sunday"; otherwise "date" is required.
func Compile(defs []config.SpecialConfig) ([]Special, error) {
	out := make([]Special, 0, len(defs))
	for i, d := range defs {
		s, err := compileOne(d)
		if err != nil {
			return nil, fmt.Errorf("specials[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func compileOne(d config.SpecialConfig) (Special, error) {
	s := Special{Message: d.Message, Location: d.Location}
	if strings.TrimSpace(s.Message) == "" {
		return Special{}, errors.New("message is required")
	}

	rec := strings.ToLower(strings.TrimSpace(d.Recurring))
	switch {
	case strings.HasPrefix(rec, "every-"):
		wd, ok := temporal.ParseWeekday(strings.TrimPrefix(rec, "every-"))
		if !ok {
			return Special{}, fmt.Errorf("unknown weekday in %q", d.Recurring)
		}
		s.Kind, s.Weekday = KindWeekly, wd
	case rec != "":
		r, err := temporal.ParseRuleSlug(rec)
		if err != nil {
			return Special{}, err
		}
		s.Kind, s.Rule = KindMonthly, r
	default:
		p, ok := temporal.ParseDateValue(d.Date)
		if !ok {
			return Special{}, fmt.Errorf("invalid date %q", d.Date)
		}
		s.Kind, s.Date = KindFixed, p.Date
	}
	return s, nil
}

// NextDate returns the first date on or after today on which s applies.
func (s Special) NextDate(today temporal.DateSpec) (temporal.DateSpec, error) {
	switch s.Kind {
	case KindFixed:
		if s.Date.Before(today) {
			return temporal.DateSpec{}, ErrNoDate
		}
		return s.Date, nil
	case KindMonthly:
		return temporal.NextRuleDate(s.Rule, today)
	case KindWeekly:
		return temporal.NextWeekday(s.Weekday, today), nil
	default:
		return temporal.DateSpec{}, fmt.Errorf("specials: unknown kind %q", s.Kind)
	}
}

// Recurring returns the slug for rule-based specials ("first-sunday",
// "every-wednesday") or "" for fixed ones.
func (s Special) Recurring() string {
	switch s.Kind {
	case KindMonthly:
		return s.Rule.String()
	case KindWeekly:
		return "every-" + strings.ToLower(s.Weekday.String())
	default:
		return ""
	}
}

// RRule renders rule-based specials as an RFC 5545 recurrence rule; fixed
// specials return "".
func (s Special) RRule() string {
	switch s.Kind {
	case KindMonthly:
		return s.Rule.RRule()
	case KindWeekly:
		return "FREQ=WEEKLY;BYDAY=" + strings.ToUpper(s.Weekday.String()[:2])
	default:
		return ""
	}
}

// Notice is one special resolved to a date.
type Notice struct {
	Date      temporal.DateSpec `json:"date"`
	Label     string            `json:"label"`
	Message   string            `json:"message"`
	Location  string            `json:"location,omitempty"`
	Recurring string            `json:"recurring,omitempty"`
	Reminder  bool              `json:"reminder,omitempty"`
}

func notice(s Special, d, today temporal.DateSpec) Notice {
	label, _ := temporal.FormatRelativeLabel(d, nil, temporal.LabelBubble, today)
	return Notice{
		Date:      d,
		Label:     label,
		Message:   s.Message,
		Location:  s.Location,
		Recurring: s.Recurring(),
	}
}

// Today returns the notices that apply on today.
func Today(ss []Special, today temporal.DateSpec) []Notice {
	var out []Notice
	for _, s := range ss {
		if d, err := s.NextDate(today); err == nil && d == today {
			out = append(out, notice(s, d, today))
		}
	}
	return out
}

// Reminders returns "tomorrow" entries: specials whose next date is
// exactly one day after today.
func Reminders(ss []Special, today temporal.DateSpec) []Notice {
	var out []Notice
	for _, s := range ss {
		d, err := s.NextDate(today)
		if err != nil || !temporal.IsDayBefore(d, today) {
			continue
		}
		n := notice(s, d, today)
		n.Reminder = true
		n.Message = "Tomorrow: " + s.Message
		out = append(out, n)
	}
	return out
}

// Upcoming lists every special's next date within days of today, sorted
// by date.
func Upcoming(ss []Special, today temporal.DateSpec, days int) []Notice {
	horizon := today.AddDays(days)
	var out []Notice
	for _, s := range ss {
		d, err := s.NextDate(today)
		if err != nil || d.After(horizon) {
			continue
		}
		out = append(out, notice(s, d, today))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// HolidaysFromConfig converts configured extra holidays.
func HolidaysFromConfig(hs []config.HolidayConfig) ([]Holiday, error) {
	out := make([]Holiday, 0, len(hs))
	for i, h := range hs {
		p, ok := temporal.ParseDateValue(h.Date)
		if !ok {
			return nil, fmt.Errorf("holidays[%d]: invalid date %q", i, h.Date)
		}
		out = append(out, Holiday{Date: p.Date, Name: h.Name})
	}
	return out, nil
}
