package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"citycal/internal/listing"
	"citycal/internal/model"
	"citycal/internal/specials"
	"citycal/internal/temporal"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	bubbleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("25")).
			Padding(0, 1).
			Width(14)

	activeStyle = bubbleStyle.
			Background(lipgloss.Color("28")).
			Bold(true)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)
)

// renderListings formats a dump for the terminal. lipgloss drops colors
// when stdout is not a TTY.
func renderListings(today temporal.DateSpec, view listing.View, notices []specials.Notice, ls []model.Listing) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s listings for %s", view, today)))
	b.WriteString("\n\n")

	for _, n := range notices {
		b.WriteString(noticeStyle.Render(n.Label + ": " + n.Message))
		b.WriteString("\n")
	}
	if len(notices) > 0 {
		b.WriteString("\n")
	}

	if len(ls) == 0 {
		b.WriteString(detailStyle.Render("Nothing listed."))
		b.WriteString("\n")
		return b.String()
	}
	for _, l := range ls {
		bubble := bubbleStyle.Render(l.BubbleLabel)
		if l.Status.IsActive {
			bubble = activeStyle.Render("ON NOW")
		}
		b.WriteString(bubble)
		b.WriteString(" ")
		b.WriteString(nameStyle.Render(l.Name))
		b.WriteString("\n")

		detail := l.Label
		if l.Location != "" {
			detail += " · " + l.Location
		}
		b.WriteString(strings.Repeat(" ", lipgloss.Width(bubble)+1))
		b.WriteString(detailStyle.Render(detail))
		b.WriteString("\n")
	}
	return b.String()
}
