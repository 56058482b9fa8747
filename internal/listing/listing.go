// Package listing turns raw event records into labelled, ordered lists.
// It is the only consumer of the temporal engine that renders labels, so
// callers never derive relative dates on their own.
package listing

import (
	"errors"
	"fmt"
	"sort"

	appLog "citycal/internal/log"
	"citycal/internal/model"
	"citycal/internal/temporal"
)

// View selects which evaluated records a list keeps.
type View string

const (
	ViewUpcoming View = "upcoming" // active or future
	ViewWeekend  View = "weekend"  // starts this Friday–Sunday, or active during it
	ViewActive   View = "active"   // on now
	ViewAll      View = "all"      // including past
)

// ParseView maps a query value to a View; empty means upcoming.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case "":
		return ViewUpcoming, nil
	case ViewUpcoming, ViewWeekend, ViewActive, ViewAll:
		return v, nil
	default:
		return "", fmt.Errorf("listing: unknown view %q", s)
	}
}

// WindowOf parses a record's date fields into an EventWindow. A start time
// column takes precedence over a time embedded in Dates.
func WindowOf(r model.Record) (temporal.EventWindow, error) {
	start, ok := temporal.ParseDateValue(r.Dates)
	if !ok {
		return temporal.EventWindow{}, fmt.Errorf("unparseable dates %q", r.Dates)
	}

	var end *temporal.DateSpec
	if r.EndDate != "" {
		p, ok := temporal.ParseDateValue(r.EndDate)
		if !ok {
			return temporal.EventWindow{}, fmt.Errorf("unparseable end date %q", r.EndDate)
		}
		end = &p.Date
	}

	tod := start.Time
	if r.StartTime != "" {
		if t, ok := temporal.ParseClock(r.StartTime); ok {
			tod = &t
		}
	}
	return temporal.NewEventWindow(start.Date, end, tod)
}

// Evaluate parses and labels one record against today.
func Evaluate(r model.Record, today temporal.DateSpec) (model.Listing, error) {
	w, err := WindowOf(r)
	if err != nil {
		return model.Listing{}, err
	}
	long, err := temporal.Evaluate(w, today, temporal.LabelLong)
	if err != nil {
		return model.Listing{}, err
	}
	bubble, err := temporal.FormatRelativeLabel(w.Start, w.StartTime, temporal.LabelBubble, today)
	if err != nil {
		return model.Listing{}, err
	}

	l := model.Listing{
		Record:      r,
		Window:      w,
		Start:       w.Start,
		End:         w.End,
		Status:      long.WindowStatus,
		Label:       long.Label,
		BubbleLabel: bubble,
	}
	if w.StartTime != nil {
		l.Time = w.StartTime.String()
	}
	return l, nil
}

// Build evaluates every record, drops the ones whose dates cannot be
// parsed, keeps those matching view and orders them active first, then by
// start date and time, then by name.
func Build(records []model.Record, today temporal.DateSpec, view View) []model.Listing {
	out := make([]model.Listing, 0, len(records))
	skipped := 0

	for _, r := range records {
		l, err := Evaluate(r, today)
		if err != nil {
			skipped++
			if errors.Is(err, temporal.ErrEndBeforeStart) {
				appLog.Warn("listing: end before start", "id", r.ID, "dates", r.Dates, "end_date", r.EndDate)
			} else {
				appLog.Debug("listing: record skipped", "id", r.ID, "reason", err.Error())
			}
			continue
		}
		if !keep(l, today, view) {
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})

	if skipped > 0 {
		appLog.Debug("listing: build done", "kept", len(out), "skipped", skipped, "view", string(view))
	}
	return out
}

func keep(l model.Listing, today temporal.DateSpec, view View) bool {
	switch view {
	case ViewAll:
		return true
	case ViewActive:
		return l.Status.IsActive
	case ViewWeekend:
		if l.Status.IsPast {
			return false
		}
		we := temporal.WeekendOf(today)
		// Multi-day events still running over the weekend are included.
		return l.Status.IsWeekend || (!l.Start.After(we.Sunday) && !l.End.Before(we.Friday))
	default:
		return !l.Status.IsPast
	}
}

func less(a, b model.Listing) bool {
	if a.Status.IsActive != b.Status.IsActive {
		return a.Status.IsActive
	}
	if c := a.Start.Compare(b.Start); c != 0 {
		return c < 0
	}
	if a.Time != b.Time {
		// Events without a time sort before timed ones on the same day.
		return a.Time < b.Time
	}
	return a.Name < b.Name
}

// Limit truncates ls to at most n entries; n <= 0 means no limit.
func Limit(ls []model.Listing, n int) []model.Listing {
	if n <= 0 || len(ls) <= n {
		return ls
	}
	return ls[:n]
}
