package specials

import (
	"fmt"
	"sort"
	"time"

	"citycal/internal/temporal"
)

// Holiday is a day on which city offices are closed.
type Holiday struct {
	Date temporal.DateSpec `json:"date"`
	Name string            `json:"name"`
}

// CityHolidays returns the city's observed holidays for year, sorted by
// date. Floating holidays are resolved from their weekday rules.
func CityHolidays(year int) []Holiday {
	nth := func(m time.Month, wd time.Weekday, n int) temporal.DateSpec {
		d, _ := temporal.NthWeekdayOfMonth(temporal.RecurrenceRule{Weekday: wd, NthOccurrence: n}, year, m)
		return d
	}
	fixed := func(m time.Month, d int) temporal.DateSpec {
		return temporal.MustDate(year, m, d)
	}
	thanksgiving := nth(time.November, time.Thursday, 4)

	hs := []Holiday{
		{fixed(time.January, 1), "New Year's Day"},
		{nth(time.January, time.Monday, 3), "Martin Luther King, Jr. Day"},
		{nth(time.February, time.Monday, 3), "Presidents' Day"},
		{easter(year).AddDays(-2), "Good Friday"},
		{lastWeekday(year, time.May, time.Monday), "Memorial Day"},
		{fixed(time.June, 19), "Juneteenth"},
		{fixed(time.July, 4), "Independence Day"},
		{nth(time.September, time.Monday, 1), "Labor Day"},
		{nth(time.October, time.Monday, 2), "Indigenous Peoples' Day"},
		{fixed(time.November, 11), "Veterans Day"},
		{thanksgiving, "Thanksgiving"},
		{thanksgiving.AddDays(1), "Thanksgiving Friday"},
		{fixed(time.December, 25), "Christmas Day"},
	}
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
	return hs
}

func lastWeekday(year int, m time.Month, wd time.Weekday) temporal.DateSpec {
	if d, ok := temporal.NthWeekdayOfMonth(temporal.RecurrenceRule{Weekday: wd, NthOccurrence: 5}, year, m); ok {
		return d
	}
	d, _ := temporal.NthWeekdayOfMonth(temporal.RecurrenceRule{Weekday: wd, NthOccurrence: 4}, year, m)
	return d
}

// easter computes Easter Sunday (Meeus/Jones/Butcher).
func easter(year int) temporal.DateSpec {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1
	return temporal.MustDate(year, time.Month(month), day)
}

// HolidayAlert is the trash-collection notice shown around a holiday.
type HolidayAlert struct {
	Holiday Holiday           `json:"holiday"`
	Until   temporal.DateSpec `json:"until"`
	Message string            `json:"message"`
}

// Collection runs one day late from the day before a holiday through four
// days after it.
const (
	alertLeadDays  = 1
	alertTrailDays = 4
)

// ActiveHolidayAlert returns the alert for the first holiday whose
// collection-delay window contains today.
func ActiveHolidayAlert(holidays []Holiday, today temporal.DateSpec) (HolidayAlert, bool) {
	for _, h := range holidays {
		end := h.Date.AddDays(alertTrailDays)
		w, err := temporal.NewEventWindow(h.Date.AddDays(-alertLeadDays), &end, nil)
		if err != nil {
			continue
		}
		if temporal.ClassifyWindow(w, today).IsActive {
			return HolidayAlert{
				Holiday: h,
				Until:   end,
				Message: fmt.Sprintf("%s on %s: Trash & recycling collection delayed by one day the week of.",
					h.Name, shortMonthDay(h.Date)),
			}, true
		}
	}
	return HolidayAlert{}, false
}

// HolidaysAround returns the city holidays of the years around today plus
// any extras, sorted by date.
func HolidaysAround(today temporal.DateSpec, extra []Holiday) []Holiday {
	var hs []Holiday
	for y := today.Year - 1; y <= today.Year+1; y++ {
		hs = append(hs, CityHolidays(y)...)
	}
	hs = append(hs, extra...)
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
	return hs
}

func shortMonthDay(d temporal.DateSpec) string {
	return fmt.Sprintf("%s %d", d.Month.String()[:3], d.Day)
}
