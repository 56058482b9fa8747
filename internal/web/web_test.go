package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"citycal/internal/auth"
	"citycal/internal/config"
	"citycal/internal/ics"
	"citycal/internal/model"
	"citycal/internal/refresh"
	"citycal/internal/specials"
)

type fakeRecords struct{ recs []model.Record }

func (f fakeRecords) Snapshot() refresh.Snapshot {
	return refresh.Snapshot{Records: f.recs, UpdatedAt: time.Date(2025, 6, 11, 15, 0, 0, 0, time.UTC)}
}

var testRecords = []model.Record{
	{ID: "later", Name: "Wawa Welcome America", Dates: "7/4/2025"},
	{ID: "friday", Name: "Jazz at Chris'", Dates: "6/13/2025 7:30pm", Location: "Chris' Jazz Cafe"},
	{ID: "past", Name: "Odunde", Dates: "6/1/2025"},
	{ID: "fest", Name: "Roots Picnic", Dates: "6/10/2025", EndDate: "6/15/2025"},
	{ID: "tbd", Name: "Someday", Dates: "TBD"},
	{ID: "inverted", Name: "Backwards", Dates: "6/20/2025", EndDate: "6/18/2025"},
}

// wednesday is 2025-06-11 at noon in the configured zone.
var wednesday = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, now time.Time, mutate func(*config.Config, *Options)) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"

	ss, err := specials.Compile([]config.SpecialConfig{
		{Recurring: "every-wednesday", Location: "Philadelphia Museum of Art", Message: "Pay What You Wish"},
		{Date: "2025-06-12", Message: "City offices closed"},
		{Recurring: "first-sunday", Location: "Barnes Foundation", Message: "Free entry to the Barnes"},
	})
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{
		Config:   cfg,
		Records:  fakeRecords{recs: testRecords},
		Specials: ss,
		Clock:    func() time.Time { return now },
	}
	if mutate != nil {
		mutate(cfg, &opts)
	}
	return NewServer(opts).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

type eventsBody struct {
	Today   string `json:"today"`
	View    string `json:"view"`
	Weekend struct {
		Friday string `json:"friday"`
		Sunday string `json:"sunday"`
	} `json:"weekend"`
	Events []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		BubbleLabel string `json:"bubble_label"`
		Time        string `json:"time"`
		Status      struct {
			IsActive bool `json:"is_active"`
		} `json:"status"`
	} `json:"events"`
}

func decodeEvents(t *testing.T, rec *httptest.ResponseRecorder) eventsBody {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var b eventsBody
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return b
}

func eventIDs(b eventsBody) string {
	ids := make([]string, len(b.Events))
	for i, e := range b.Events {
		ids[i] = e.ID
	}
	return strings.Join(ids, ",")
}

func TestHandleEvents(t *testing.T) {
	h := newTestServer(t, wednesday, nil)

	tests := []struct {
		path string
		want string
	}{
		{"/api/events", "fest,friday,later"},
		{"/api/events?view=upcoming&limit=2", "fest,friday"},
		{"/api/events?view=weekend", "fest,friday"},
		{"/api/events?view=active", "fest"},
		{"/api/events?view=all", "fest,past,friday,later"},
	}
	for _, tt := range tests {
		b := decodeEvents(t, get(t, h, tt.path))
		if got := eventIDs(b); got != tt.want {
			t.Errorf("%s: ids = %s, want %s", tt.path, got, tt.want)
		}
	}

	b := decodeEvents(t, get(t, h, "/api/events"))
	if b.Today != "2025-06-11" || b.Weekend.Friday != "2025-06-13" || b.Weekend.Sunday != "2025-06-15" {
		t.Errorf("header = %+v", b)
	}
	if !b.Events[0].Status.IsActive {
		t.Error("fest should be active")
	}
	fri := b.Events[1]
	if fri.Label != "This Friday, June 13, 7:30pm" || fri.BubbleLabel != "This Friday!" || fri.Time != "19:30" {
		t.Errorf("friday = %+v", fri)
	}
}

func TestHandleEvents_LabelsFollowClock(t *testing.T) {
	// The same snapshot read on Friday says Today.
	friday := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC)
	b := decodeEvents(t, get(t, newTestServer(t, friday, nil), "/api/events?view=weekend"))
	if len(b.Events) != 2 || b.Events[1].Label != "Today, June 13, 7:30pm" {
		t.Errorf("events = %+v", b.Events)
	}
}

func TestHandleEvents_BadParams(t *testing.T) {
	h := newTestServer(t, wednesday, nil)
	for _, path := range []string{"/api/events?view=someday", "/api/events?limit=-1", "/api/events?limit=ten"} {
		if rec := get(t, h, path); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
}

func TestHandleSpecials(t *testing.T) {
	rec := get(t, newTestServer(t, wednesday, nil), "/api/specials?days=7")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var b struct {
		Notices   []specials.Notice `json:"today_notices"`
		Reminders []specials.Notice `json:"reminders"`
		Upcoming  []specials.Notice `json:"upcoming"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	if len(b.Notices) != 1 || b.Notices[0].Message != "Pay What You Wish" {
		t.Errorf("today = %+v", b.Notices)
	}
	if len(b.Reminders) != 1 || b.Reminders[0].Message != "Tomorrow: City offices closed" {
		t.Errorf("reminders = %+v", b.Reminders)
	}
	// First Sunday (July 6) is outside the 7-day horizon.
	if len(b.Upcoming) != 2 {
		t.Errorf("upcoming = %+v", b.Upcoming)
	}

	if rec := get(t, newTestServer(t, wednesday, nil), "/api/specials?days=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad days status = %d", rec.Code)
	}
}

func TestHandleHolidayAlert(t *testing.T) {
	if rec := get(t, newTestServer(t, wednesday, nil), "/api/holiday-alert"); rec.Code != http.StatusNoContent {
		t.Errorf("June 11 status = %d", rec.Code)
	}

	sat := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)
	rec := get(t, newTestServer(t, sat, nil), "/api/holiday-alert")
	if rec.Code != http.StatusOK {
		t.Fatalf("June 21 status = %d", rec.Code)
	}
	var a specials.HolidayAlert
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatal(err)
	}
	if a.Holiday.Name != "Juneteenth" || a.Until.String() != "2025-06-23" {
		t.Errorf("alert = %+v", a)
	}
}

func TestHandleCalendar(t *testing.T) {
	rec := get(t, newTestServer(t, wednesday, nil), "/calendar.ics")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("status = %d, type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	events, err := ics.ParseICS(ics.Source{ID: "self"}, rec.Body.Bytes())
	if err != nil {
		t.Fatalf("export does not parse: %v", err)
	}
	// Three upcoming listings plus three specials.
	if len(events) != 6 {
		t.Fatalf("got %d events", len(events))
	}
	rules := make(map[string]bool)
	uids := make(map[string]bool)
	for _, ev := range events {
		rules[ev.RRule] = true
		uids[ev.UID] = true
	}
	if !rules["FREQ=WEEKLY;BYDAY=WE"] || !rules["FREQ=MONTHLY;BYDAY=1SU"] {
		t.Errorf("rules = %v", rules)
	}
	if len(uids) != 6 {
		t.Errorf("UIDs not unique: %v", uids)
	}

	again := get(t, newTestServer(t, wednesday, nil), "/calendar.ics")
	first, _ := ics.ParseICS(ics.Source{ID: "self"}, again.Body.Bytes())
	if first[0].UID != events[0].UID {
		t.Error("UIDs should be stable across exports")
	}
}

func TestWeekendCardAndFlyer(t *testing.T) {
	h := newTestServer(t, wednesday, nil)

	rec := get(t, h, "/weekend")
	body := rec.Body.String()
	for _, want := range []string{`data-ready="true"`, "ON NOW", "Roots Picnic", "This Friday!", "June 13 – June 15"} {
		if !strings.Contains(body, want) {
			t.Errorf("card missing %q", want)
		}
	}

	pdf := get(t, h, "/weekend.pdf")
	if pdf.Code != http.StatusOK || !strings.HasPrefix(pdf.Body.String(), "%PDF") {
		t.Errorf("flyer status = %d, prefix %q", pdf.Code, pdf.Body.String()[:min(8, pdf.Body.Len())])
	}
}

func TestShare(t *testing.T) {
	path := filepath.Join(t.TempDir(), "share.png")
	if err := os.WriteFile(path, []byte("\x89PNG fake"), 0o600); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, wednesday, func(_ *config.Config, o *Options) { o.SharePath = path })
	if rec := get(t, h, "/share.png"); rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "\x89PNG") {
		t.Errorf("share status = %d", rec.Code)
	}
	if rec := get(t, newTestServer(t, wednesday, nil), "/share.png"); rec.Code != http.StatusNotFound {
		t.Errorf("unconfigured share status = %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := auth.HashPassword("cheesesteak")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		ba   *config.BasicAuthConfig
		user string
		pass string
		want int
	}{
		{"plain ok", &config.BasicAuthConfig{Username: "admin", Password: "wit"}, "admin", "wit", http.StatusOK},
		{"plain wrong", &config.BasicAuthConfig{Username: "admin", Password: "wit"}, "admin", "witout", http.StatusUnauthorized},
		{"hash ok", &config.BasicAuthConfig{Username: "admin", PasswordHash: hash}, "admin", "cheesesteak", http.StatusOK},
		{"hash wrong user", &config.BasicAuthConfig{Username: "admin", PasswordHash: hash}, "root", "cheesesteak", http.StatusUnauthorized},
		{"no creds", &config.BasicAuthConfig{Username: "admin", PasswordHash: hash}, "", "", http.StatusUnauthorized},
		{"disabled", &config.BasicAuthConfig{Username: "admin"}, "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, wednesday, func(c *config.Config, _ *Options) { c.BasicAuth = tt.ba })
			req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}

			if health := get(t, h, "/health"); health.Code != http.StatusOK || health.Body.String() != "OK" {
				t.Errorf("/health = %d %q", health.Code, health.Body.String())
			}
		})
	}
}
