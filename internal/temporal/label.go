package temporal

import (
	"fmt"
	"time"
)

// LabelMode selects the label vocabulary. The two modes are not
// interchangeable.
type LabelMode string

const (
	// LabelLong is the descriptive form: "This Friday, June 13, 7:30pm".
	LabelLong LabelMode = "long"
	// LabelBubble is the short badge form: "Next Friday!".
	LabelBubble LabelMode = "bubble"
)

// ParseLabelMode maps the wire names "long" and "bubble" to a LabelMode.
func ParseLabelMode(s string) (LabelMode, error) {
	switch m := LabelMode(s); m {
	case LabelLong, LabelBubble:
		return m, nil
	default:
		return "", fmt.Errorf("temporal: unknown label mode %q", s)
	}
}

// FormatRelativeLabel renders date relative to today in the given mode.
// tod is optional and only used by LabelLong.
func FormatRelativeLabel(date DateSpec, tod *TimeOfDay, mode LabelMode, today DateSpec) (string, error) {
	diff := today.DaysUntil(date)
	switch mode {
	case LabelLong:
		return longLabel(date, tod, diff), nil
	case LabelBubble:
		return bubbleLabel(date, diff), nil
	default:
		return "", fmt.Errorf("temporal: unknown label mode %q", string(mode))
	}
}

func longLabel(date DateSpec, tod *TimeOfDay, diff int) string {
	weekday := date.Weekday().String()

	var prefix string
	switch {
	case diff == 0:
		prefix = "Today"
	case diff == 1:
		prefix = "Tomorrow"
	case diff > 1 && diff < 7:
		prefix = "This " + weekday
	default:
		prefix = weekday
	}

	label := prefix + ", " + MonthDay(date)
	if tod != nil {
		label += ", " + tod.Clock()
	}
	return label
}

func bubbleLabel(date DateSpec, diff int) string {
	weekday := date.Weekday().String()
	switch {
	case diff == 0:
		return "Today"
	case diff == 1:
		return "Tomorrow!"
	case diff >= 2 && diff <= 6:
		return "This " + weekday + "!"
	case diff >= 7 && diff <= 13:
		return "Next " + weekday + "!"
	default:
		return weekday
	}
}

// MonthDay renders "June 5".
func MonthDay(d DateSpec) string {
	return fmt.Sprintf("%s %d", d.Month, d.Day)
}

func monthOf(m int) time.Month {
	return time.Month(m)
}
