package web

import (
	"net/http"
	"time"

	"citycal/internal/listing"
	"citycal/internal/model"
	"citycal/internal/specials"
	"citycal/internal/temporal"
)

const maxDays = 366

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Today     temporal.DateSpec `json:"today"`
	View      listing.View      `json:"view"`
	Weekend   temporal.Weekend  `json:"weekend"`
	UpdatedAt time.Time         `json:"updated_at"`
	Events    []model.Listing   `json:"events"`
}

// handleEvents lists evaluated records.
//
// GET /api/events?view=upcoming|weekend|active|all&limit=N
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := listing.ParseView(q.Get("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseIntParam(q.Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit "+err.Error())
		return
	}

	today := s.today()
	snap := s.snapshot()
	events := listing.Limit(listing.Build(snap.Records, today, view), limit)
	if events == nil {
		events = []model.Listing{}
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Today:     today,
		View:      view,
		Weekend:   temporal.WeekendOf(today),
		UpdatedAt: snap.UpdatedAt,
		Events:    events,
	})
}

// specialsResponse is the JSON response shape for /api/specials.
type specialsResponse struct {
	Today     temporal.DateSpec `json:"today"`
	Notices   []specials.Notice `json:"today_notices"`
	Reminders []specials.Notice `json:"reminders"`
	Upcoming  []specials.Notice `json:"upcoming"`
}

// handleSpecials returns today's notices, tomorrow reminders and every
// special's next date within days (default horizon_days).
func (s *Server) handleSpecials(w http.ResponseWriter, r *http.Request) {
	days, err := parseIntParam(r.URL.Query().Get("days"), s.cfg.HorizonDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "days "+err.Error())
		return
	}
	if days > maxDays {
		days = maxDays
	}

	today := s.today()
	writeJSON(w, http.StatusOK, specialsResponse{
		Today:     today,
		Notices:   nonNil(specials.Today(s.specials, today)),
		Reminders: nonNil(specials.Reminders(s.specials, today)),
		Upcoming:  nonNil(specials.Upcoming(s.specials, today, days)),
	})
}

// handleHolidayAlert returns the trash-delay notice, or 204 outside any
// holiday week.
func (s *Server) handleHolidayAlert(w http.ResponseWriter, _ *http.Request) {
	today := s.today()
	alert, ok := specials.ActiveHolidayAlert(specials.HolidaysAround(today, s.holidays), today)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func nonNil(ns []specials.Notice) []specials.Notice {
	if ns == nil {
		return []specials.Notice{}
	}
	return ns
}
