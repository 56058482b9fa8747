package temporal

import (
	"errors"
	"time"
)

// ErrEndBeforeStart is returned when an event window would end before it
// starts.
var ErrEndBeforeStart = errors.New("temporal: window end is before start")

// EventWindow is the inclusive date span during which an event is ongoing.
type EventWindow struct {
	Start     DateSpec
	End       DateSpec
	StartTime *TimeOfDay
}

// NewEventWindow builds a window. A nil end makes a single-day event.
func NewEventWindow(start DateSpec, end *DateSpec, startTime *TimeOfDay) (EventWindow, error) {
	w := EventWindow{Start: start, End: start, StartTime: startTime}
	if end != nil {
		if end.Before(start) {
			return EventWindow{}, ErrEndBeforeStart
		}
		w.End = *end
	}
	return w, nil
}

// WindowStatus is the classification of one window against today.
// Exactly one of IsActive, IsPast and IsFuture is true.
type WindowStatus struct {
	IsActive       bool `json:"is_active"`
	IsPast         bool `json:"is_past"`
	IsFuture       bool `json:"is_future"`
	IsWeekend      bool `json:"is_weekend"`
	DaysUntilStart int  `json:"days_until_start"`
}

// ClassifyWindow compares w to today using date-only comparison. The
// weekend flag tests w.Start against the Friday–Sunday span of today's
// week.
func ClassifyWindow(w EventWindow, today DateSpec) WindowStatus {
	st := WindowStatus{
		IsFuture:       w.Start.After(today),
		IsPast:         w.End.Before(today),
		DaysUntilStart: today.DaysUntil(w.Start),
	}
	st.IsActive = !st.IsFuture && !st.IsPast
	st.IsWeekend = WeekendOf(today).Contains(w.Start)
	return st
}

// Weekend is the Friday through Sunday span of a week, both ends inclusive.
type Weekend struct {
	Friday DateSpec `json:"friday"`
	Sunday DateSpec `json:"sunday"`
}

// WeekendOf returns the weekend belonging to today's week: the coming
// Friday on Monday–Thursday, or the current one when today is already
// Friday, Saturday or Sunday.
func WeekendOf(today DateSpec) Weekend {
	var shift int
	switch wd := today.Weekday(); wd {
	case time.Saturday:
		shift = -1
	case time.Sunday:
		shift = -2
	default:
		shift = int(time.Friday - wd)
	}
	fri := today.AddDays(shift)
	return Weekend{Friday: fri, Sunday: fri.AddDays(2)}
}

func (w Weekend) Contains(d DateSpec) bool {
	return !d.Before(w.Friday) && !d.After(w.Sunday)
}

// Bounds returns [Friday 00:00, Sunday 23:59:59.999999999] in loc.
func (w Weekend) Bounds(loc *time.Location) (time.Time, time.Time) {
	return w.Friday.Midnight(loc), w.Sunday.AddDays(1).Midnight(loc).Add(-time.Nanosecond)
}

// TemporalStatus is a WindowStatus plus the display label.
type TemporalStatus struct {
	WindowStatus
	Label string `json:"label"`
}

// Evaluate classifies w and labels its start in the given mode.
func Evaluate(w EventWindow, today DateSpec, mode LabelMode) (TemporalStatus, error) {
	label, err := FormatRelativeLabel(w.Start, w.StartTime, mode, today)
	if err != nil {
		return TemporalStatus{}, err
	}
	return TemporalStatus{WindowStatus: ClassifyWindow(w, today), Label: label}, nil
}

// IsDayBefore reports whether today is exactly one calendar day before
// target.
func IsDayBefore(target, today DateSpec) bool {
	return today.DaysUntil(target) == 1
}
