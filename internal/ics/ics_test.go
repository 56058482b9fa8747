package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"citycal/internal/model"
	"citycal/internal/temporal"
)

var edt = time.FixedZone("EDT", -4*3600)

const sampleFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:fest-1
DTSTAMP:20250601T000000Z
DTSTART;VALUE=DATE:20250610
DTEND;VALUE=DATE:20250616
SUMMARY:Roots Picnic
LOCATION:Belmont Plateau
END:VEVENT
BEGIN:VEVENT
UID:quizzo
DTSTAMP:20250601T000000Z
DTSTART:20250604T233000Z
DTEND:20250605T013000Z
RRULE:FREQ=WEEKLY;COUNT=6
EXDATE:20250618T233000Z
SUMMARY:Quizzo
END:VEVENT
BEGIN:VEVENT
UID:quizzo
DTSTAMP:20250601T000000Z
RECURRENCE-ID:20250625T233000Z
DTSTART:20250626T233000Z
DTEND:20250627T013000Z
SUMMARY:Quizzo Thursday
END:VEVENT
BEGIN:VEVENT
DTSTAMP:20250601T000000Z
DTSTART:20250601T120000Z
SUMMARY:No UID
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte { return []byte(strings.ReplaceAll(s, "\n", "\r\n")) }

func TestParseICS(t *testing.T) {
	src := Source{ID: "milkboy", Name: "Milkboy"}
	events, err := ParseICS(src, crlf(sampleFeed))
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (UID-less skipped)", len(events))
	}

	fest := events[0]
	if !fest.AllDay || fest.Summary != "Roots Picnic" || fest.Location != "Belmont Plateau" {
		t.Errorf("fest = %+v", fest)
	}
	quizzo := events[1]
	if quizzo.AllDay || quizzo.RRule != "FREQ=WEEKLY;COUNT=6" || len(quizzo.ExDates) != 1 {
		t.Errorf("quizzo = %+v", quizzo)
	}
	if quizzo.Location != "Milkboy" {
		t.Errorf("missing LOCATION should default to source name, got %q", quizzo.Location)
	}
	if events[2].RecurrenceID == nil {
		t.Error("override lost RECURRENCE-ID")
	}

	if _, err := ParseICS(src, nil); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestFeedRecords(t *testing.T) {
	events, err := ParseICS(Source{ID: "milkboy"}, crlf(sampleFeed))
	if err != nil {
		t.Fatal(err)
	}
	recs, err := FeedRecords(events, ExpandConfig{
		Location: edt,
		From:     temporal.MustDate(2025, time.June, 11),
		To:       temporal.MustDate(2025, time.June, 30),
	})
	if err != nil {
		t.Fatal(err)
	}

	byID := make(map[string]model.Record)
	for _, r := range recs {
		byID[r.ID] = r
	}
	if len(byID) != 3 {
		t.Fatalf("records = %+v", recs)
	}

	fest := byID["milkboy:fest-1"]
	if fest.Dates != "2025-06-10" || fest.EndDate != "2025-06-15" || fest.StartTime != "" {
		t.Errorf("fest = %+v", fest)
	}
	wk := byID["milkboy:quizzo@2025-06-11"]
	if wk.StartTime != "19:30" || wk.Source != model.SourceFeed || wk.EndDate != "" {
		t.Errorf("quizzo 06-11 = %+v", wk)
	}
	if _, ok := byID["milkboy:quizzo@2025-06-18"]; ok {
		t.Error("EXDATE instance not removed")
	}
	ov, ok := byID["milkboy:quizzo@2025-06-26"]
	if !ok || ov.Name != "Quizzo Thursday" {
		t.Errorf("override = %+v, %v", ov, ok)
	}

	if _, err := FeedRecords(events, ExpandConfig{
		From: temporal.MustDate(2025, time.June, 11),
		To:   temporal.MustDate(2025, time.June, 1),
	}); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestExpandSeries(t *testing.T) {
	records := []model.Record{
		{ID: "plain", Name: "Flea market", Dates: "6/14/2025"},
		{ID: "swing", Name: "Swing night", Dates: "2025-06-01", StartTime: "18:00:00",
			EndDate: "2025-06-21", RRule: "FREQ=WEEKLY;BYDAY=SA"},
		{ID: "broken", Name: "Broken", Dates: "2025-06-01", RRule: "FREQ=SOMETIMES"},
	}
	got, err := ExpandSeries(records, ExpandConfig{
		Location: edt,
		From:     temporal.MustDate(2025, time.June, 11),
		To:       temporal.MustDate(2025, time.July, 31),
	})
	if err != nil {
		t.Fatal(err)
	}

	wantIDs := []string{"plain", "swing@2025-06-14", "swing@2025-06-21"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %+v", got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	inst := got[1]
	if inst.Source != model.SourceRecurring || inst.RRule != "" || inst.EndDate != "" || inst.StartTime != "18:00" {
		t.Errorf("instance = %+v", inst)
	}
	if got[0].Dates != "6/14/2025" {
		t.Errorf("plain record modified: %+v", got[0])
	}
}

func TestExportRoundTrip(t *testing.T) {
	tod := temporal.TimeOfDay{Hour: 19, Minute: 30}
	body := Export([]ExportEvent{
		{UID: "fest", Summary: "Roots Picnic", Start: temporal.MustDate(2025, time.June, 13), End: temporal.MustDate(2025, time.June, 15)},
		{UID: "jazz", Summary: "Jazz at Chris", Start: temporal.MustDate(2025, time.June, 13), Time: &tod, URL: "https://example.com/jazz"},
		{UID: "barnes", Summary: "Free first Sunday", Start: temporal.MustDate(2025, time.July, 6), RRule: "FREQ=MONTHLY;BYDAY=1SU"},
	}, ExportOptions{Name: "Philly this week", Location: edt, Now: time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)})

	if !strings.Contains(body, "X-WR-CALNAME:Philly this week") {
		t.Errorf("calendar name missing:\n%s", body)
	}

	events, err := ParseICS(Source{ID: "self"}, []byte(body))
	if err != nil {
		t.Fatalf("ParseICS(export): %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("round trip lost events: %d", len(events))
	}
	if !events[0].AllDay || events[0].End.Sub(events[0].Start) != 72*time.Hour {
		t.Errorf("fest = %+v", events[0])
	}
	if events[1].AllDay || !events[1].Start.Equal(time.Date(2025, 6, 13, 23, 30, 0, 0, time.UTC)) {
		t.Errorf("jazz start = %v", events[1].Start)
	}
	if !strings.Contains(events[2].RRule, "BYDAY=1SU") {
		t.Errorf("barnes rrule = %q", events[2].RRule)
	}

	recs, err := FeedRecords(events, ExpandConfig{
		Location: edt,
		From:     temporal.MustDate(2025, time.June, 11),
		To:       temporal.MustDate(2025, time.August, 31),
	})
	if err != nil {
		t.Fatal(err)
	}
	var sundays []string
	for _, r := range recs {
		if strings.HasPrefix(r.ID, "self:barnes@") {
			sundays = append(sundays, r.Dates)
		}
	}
	if strings.Join(sundays, ",") != "2025-07-06,2025-08-03" {
		t.Errorf("barnes occurrences = %v", sundays)
	}
}

func TestFetcher_ConditionalAndFallback(t *testing.T) {
	var fail atomic.Bool
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write(crlf(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "milkboy", URL: srv.URL + "/cal.ics?token=secret"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	if err != nil || first.FromCache || len(first.Body) == 0 {
		t.Fatalf("first fetch = %+v, %v", first, err)
	}

	second, err := f.FetchOne(ctx, src)
	if err != nil || !second.FromCache || string(second.Body) != string(first.Body) {
		t.Fatalf("304 fetch = %+v, %v", second.FromCache, err)
	}

	fail.Store(true)
	third, err := f.FetchOne(ctx, src)
	if err != nil || !third.FromCache {
		t.Fatalf("fallback fetch = %+v, %v", third.FromCache, err)
	}

	fresh := Source{ID: "new", URL: srv.URL + "/other.ics"}
	results, err := f.FetchAll(ctx, []Source{src, fresh})
	if err == nil || !strings.Contains(err.Error(), "feed new") {
		t.Errorf("FetchAll err = %v", err)
	}
	if len(results) != 1 || results[0].Source.ID != "milkboy" {
		t.Errorf("FetchAll results = %+v", results)
	}
	if hits.Load() != 5 {
		t.Errorf("server hits = %d, want 5", hits.Load())
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("https://cal.example.com/feed.ics?token=abc"); got != "https://cal.example.com/...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
	if got := redactURL("not a url"); got != "feed://...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
}
