package temporal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teambition/rrule-go"
)

func TestNextRuleDate(t *testing.T) {
	tests := []struct {
		name string
		rule RecurrenceRule
		ref  DateSpec
		want DateSpec
	}{
		{"first friday already passed", RecurrenceRule{time.Friday, 1}, refToday, MustDate(2025, time.July, 4)},
		{"first friday on the day", RecurrenceRule{time.Friday, 1}, MustDate(2025, time.June, 6), MustDate(2025, time.June, 6)},
		{"second saturday", RecurrenceRule{time.Saturday, 2}, refToday, MustDate(2025, time.June, 14)},
		{"first sunday across year", RecurrenceRule{time.Sunday, 1}, MustDate(2025, time.December, 10), MustDate(2026, time.January, 4)},
		{"fifth friday skips short months", RecurrenceRule{time.Friday, 5}, refToday, MustDate(2025, time.August, 29)},
		{"fifth sunday this month", RecurrenceRule{time.Sunday, 5}, refToday, MustDate(2025, time.June, 29)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRuleDate(tt.rule, tt.ref)
			if err != nil {
				t.Fatalf("NextRuleDate: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if got.Weekday() != tt.rule.Weekday {
				t.Errorf("weekday = %s, want %s", got.Weekday(), tt.rule.Weekday)
			}
		})
	}
}

func TestNextRuleDate_Invalid(t *testing.T) {
	for _, r := range []RecurrenceRule{
		{time.Friday, 0},
		{time.Friday, 6},
		{time.Weekday(7), 1},
		{time.Weekday(-1), 1},
	} {
		if _, err := NextRuleDate(r, refToday); !errors.Is(err, ErrInvalidRule) {
			t.Errorf("NextRuleDate(%+v) err = %v, want ErrInvalidRule", r, err)
		}
	}
}

func TestNthWeekdayOfMonth(t *testing.T) {
	if _, ok := NthWeekdayOfMonth(RecurrenceRule{time.Friday, 5}, 2025, time.June); ok {
		t.Error("June 2025 has no fifth Friday")
	}
	d, ok := NthWeekdayOfMonth(RecurrenceRule{time.Wednesday, 3}, 2025, time.February)
	if !ok || d != MustDate(2025, time.February, 19) {
		t.Errorf("third Wednesday of Feb 2025 = %s, %v", d, ok)
	}
}

// The rule search must agree with an RFC 5545 implementation for every
// weekday and ordinal.
func TestNextRuleDate_AgreesWithRRule(t *testing.T) {
	dtstart := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		for n := 1; n <= 5; n++ {
			rule := RecurrenceRule{Weekday: wd, NthOccurrence: n}
			rr, err := rrule.StrToRRule(rule.RRule())
			if err != nil {
				t.Fatalf("StrToRRule(%q): %v", rule.RRule(), err)
			}
			rr.DTStart(dtstart)

			for ref := MustDate(2025, time.January, 1); ref.Year == 2025; ref = ref.AddDays(5) {
				got, err := NextRuleDate(rule, ref)
				if err != nil {
					t.Fatalf("%s from %s: %v", rule, ref, err)
				}
				want := DateOf(rr.After(ref.Midnight(time.UTC), true))
				if got != want {
					t.Fatalf("%s from %s = %s, rrule says %s", rule, ref, got, want)
				}
			}
		}
	}
}

func TestParseRuleSlug(t *testing.T) {
	tests := []struct {
		in      string
		want    RecurrenceRule
		wantErr bool
	}{
		{"first-sunday", RecurrenceRule{time.Sunday, 1}, false},
		{"Second-Saturday", RecurrenceRule{time.Saturday, 2}, false},
		{"fifth-monday", RecurrenceRule{time.Monday, 5}, false},
		{"every-wednesday", RecurrenceRule{}, true},
		{"first", RecurrenceRule{}, true},
		{"sixth-friday", RecurrenceRule{}, true},
	}
	for _, tt := range tests {
		got, err := ParseRuleSlug(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRuleSlug(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRuleSlug(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if !tt.wantErr && got.String() != strings.ToLower(tt.in) {
			t.Errorf("String() = %q, want %q", got.String(), strings.ToLower(tt.in))
		}
	}
}

func TestRecurrenceRuleRRule(t *testing.T) {
	if got := (RecurrenceRule{time.Saturday, 2}).RRule(); got != "FREQ=MONTHLY;BYDAY=2SA" {
		t.Errorf("RRule() = %q", got)
	}
}

func TestNextWeekday(t *testing.T) {
	if got := NextWeekday(time.Wednesday, refToday); got != refToday {
		t.Errorf("same weekday should return ref, got %s", got)
	}
	if got := NextWeekday(time.Tuesday, refToday); got != MustDate(2025, time.June, 17) {
		t.Errorf("got %s", got)
	}
}

func TestSecondSaturdayReminderScenario(t *testing.T) {
	rule := RecurrenceRule{Weekday: time.Saturday, NthOccurrence: 2}
	target, err := NextRuleDate(rule, refToday)
	if err != nil {
		t.Fatal(err)
	}
	if target != MustDate(2025, time.June, 14) {
		t.Fatalf("second Saturday = %s", target)
	}
	friday := MustDate(2025, time.June, 13)
	if IsDayBefore(friday, friday) {
		t.Error("same day is not the day before")
	}
	if !IsDayBefore(target, friday) {
		t.Error("June 13 is the day before June 14")
	}
}
