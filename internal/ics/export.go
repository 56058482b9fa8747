package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"citycal/internal/temporal"
)

// ExportEvent is one VEVENT of the published calendar.
type ExportEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	URL         string

	Start temporal.DateSpec
	End   temporal.DateSpec // zero means single day
	Time  *temporal.TimeOfDay

	// RRule, when set, makes Start the first occurrence of a series.
	RRule string
}

// ExportOptions names the calendar and fixes the timezone of timed events.
type ExportOptions struct {
	Name     string
	Location *time.Location
	Now      time.Time // DTSTAMP
}

// Export renders events as an RFC 5545 calendar.
func Export(events []ExportEvent, opts ExportOptions) string {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//citycal//City Guide Events//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	cal.SetXWRTimezone(loc.String())

	for _, e := range events {
		ve := cal.AddEvent(e.UID)
		ve.SetDtStampTime(now.UTC())
		ve.SetSummary(e.Summary)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if e.URL != "" {
			ve.SetURL(e.URL)
		}

		last := e.Start
		if !e.End.IsZero() && e.End.After(e.Start) {
			last = e.End
		}
		if e.Time != nil && last == e.Start {
			start := e.Start.Midnight(loc).Add(time.Duration(e.Time.Hour)*time.Hour + time.Duration(e.Time.Minute)*time.Minute)
			ve.SetStartAt(start.UTC())
		} else {
			ve.SetAllDayStartAt(e.Start.Midnight(time.UTC))
			ve.SetAllDayEndAt(last.AddDays(1).Midnight(time.UTC))
		}
		if e.RRule != "" {
			ve.AddRrule(e.RRule)
		}
	}

	return cal.Serialize()
}
