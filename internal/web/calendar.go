package web

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"citycal/internal/ics"
	appLog "citycal/internal/log"
	"citycal/internal/listing"
	"citycal/internal/model"
	"citycal/internal/specials"
	"citycal/internal/temporal"
)

// uidSpace namespaces exported VEVENT UIDs so a record keeps its UID across
// exports and subscribers update events in place.
var uidSpace = uuid.MustParse("5f0c3b8e-3d7a-4c59-a4f6-9b1e2a6d7c10")

// Content types of the published artifacts.
const (
	CalendarContentType = "text/calendar; charset=utf-8"
	FlyerContentType    = "application/pdf"
)

func exportUID(key string) string {
	return uuid.NewSHA1(uidSpace, []byte(key)).String() + "@citycal"
}

// CalendarICS exports upcoming listings and the next date of every
// special. Rule-based specials carry their RRULE so subscribers see the
// whole series.
func (s *Server) CalendarICS() []byte {
	now := s.clock()
	today := temporal.DateOf(now.In(s.loc))

	var events []ics.ExportEvent
	for _, l := range listing.Build(s.snapshot().Records, today, listing.ViewUpcoming) {
		events = append(events, ics.ExportEvent{
			UID:         exportUID(l.ID),
			Summary:     l.Name,
			Description: l.Description,
			Location:    l.Location,
			URL:         l.Link,
			Start:       l.Start,
			End:         l.End,
			Time:        l.Window.StartTime,
		})
	}
	for i, sp := range s.specials {
		d, err := sp.NextDate(today)
		if err != nil {
			continue
		}
		events = append(events, ics.ExportEvent{
			UID:      exportUID("special-" + strconv.Itoa(i+1) + "-" + sp.Recurring() + "-" + sp.Message),
			Summary:  sp.Message,
			Location: sp.Location,
			Start:    d,
			RRule:    sp.RRule(),
		})
	}

	return []byte(ics.Export(events, ics.ExportOptions{Name: "citycal", Location: s.loc, Now: now}))
}

func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", CalendarContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="citycal.ics"`)
	_, _ = w.Write(s.CalendarICS())
}

// weekendCard is what /weekend renders. data-ready marks the page as
// complete for the screenshot step.
var weekendCard = template.Must(template.New("weekend").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>This weekend</title>
<style>
body{font-family:sans-serif;margin:0;background:#111;color:#fafafa}
main{padding:32px}
h1{margin:0 0 4px}
.sub{color:#aaa;margin-bottom:24px}
.alert{background:#b45309;padding:8px 12px;margin-bottom:16px}
li{margin:0 0 12px;list-style:none}
.label{display:inline-block;background:#2563eb;padding:2px 8px;margin-right:8px}
.on{background:#16a34a}
</style></head>
<body><main data-ready="true">
<h1>This weekend</h1>
<div class="sub">{{.Range}}</div>
{{with .Alert}}<div class="alert">{{.Message}}</div>{{end}}
{{range .Notices}}<div class="alert">{{.Label}}: {{.Message}}</div>{{end}}
<ul>
{{range .Events}}<li>{{if .Status.IsActive}}<span class="label on">ON NOW</span>{{else}}<span class="label">{{.BubbleLabel}}</span>{{end}}<strong>{{.Name}}</strong>{{with .Location}} · {{.}}{{end}}</li>
{{else}}<li>Nothing listed yet.</li>
{{end}}</ul>
</main></body></html>
`))

type weekendCardData struct {
	Range   string
	Alert   *specials.HolidayAlert
	Notices []specials.Notice
	Events  []model.Listing
}

func (s *Server) weekendData() weekendCardData {
	today := s.today()
	we := temporal.WeekendOf(today)

	data := weekendCardData{
		Range:   temporal.MonthDay(we.Friday) + " – " + temporal.MonthDay(we.Sunday),
		Notices: append(specials.Today(s.specials, today), specials.Reminders(s.specials, today)...),
		Events:  listing.Limit(listing.Build(s.snapshot().Records, today, listing.ViewWeekend), 12),
	}
	if a, ok := specials.ActiveHolidayAlert(specials.HolidaysAround(today, s.holidays), today); ok {
		data.Alert = &a
	}
	return data
}

// handleWeekendCard renders the weekend share card.
func (s *Server) handleWeekendCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := weekendCard.Execute(w, s.weekendData()); err != nil {
		appLog.Error("weekend card render failed", err)
	}
}
