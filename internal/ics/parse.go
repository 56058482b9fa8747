package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "citycal/internal/log"
)

// FeedEvent is a VEVENT reduced to what listings need.
type FeedEvent struct {
	Source Source

	UID         string
	Summary     string
	Description string
	Location    string
	URL         string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on an override of one series instance.
	RecurrenceID *time.Time
}

// ParseICS parses an ICS payload. Broken VEVENTs are logged and skipped;
// only an unreadable calendar is an error.
func ParseICS(src Source, body []byte) ([]FeedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse feed %s: %w", src.ID, err)
	}

	events := make([]FeedEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(src, ve)
		if err != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", err.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (FeedEvent, error) {
	ev := FeedEvent{Source: src}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = uid.Value

	ev.Summary = propValue(ve, ical.ComponentPropertySummary)
	ev.Description = propValue(ve, ical.ComponentPropertyDescription)
	ev.Location = propValue(ve, ical.ComponentPropertyLocation)
	ev.URL = propValue(ve, ical.ComponentPropertyUrl)
	if ev.Location == "" {
		ev.Location = src.Name
	}

	dtstart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtstart == nil {
		return ev, fmt.Errorf("uid %s: missing DTSTART", ev.UID)
	}
	ev.AllDay = isDateValue(dtstart)

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, fmt.Errorf("uid %s: DTSTART: %w", ev.UID, err)
	}
	ev.Start = start

	if end, err := ve.GetEndAt(); err == nil {
		ev.End = end
	} else if ev.AllDay {
		ev.End = start.AddDate(0, 0, 1)
	} else {
		ev.End = start
	}

	ev.RRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part), start.Location()); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil {
		if t, err := parseICSTime(rid.Value, start.Location()); err == nil {
			ev.RecurrenceID = &t
		}
	}

	return ev, nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// isDateValue reports VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses EXDATE-style values; floating times use loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
