package model

import "citycal/internal/temporal"

// Source kinds for Record.Source.
const (
	SourceEvents    = "events"    // curated event table (free-text Dates)
	SourceFeed      = "feed"      // venue ICS feed
	SourceRecurring = "recurring" // RRULE series expanded into occurrences
)

// Record is a raw upstream event row before any date interpretation.
// Dates and EndDate are kept exactly as entered; the temporal package
// decides whether they are usable.
type Record struct {
	ID          string `yaml:"id" json:"id"`
	Source      string `yaml:"source,omitempty" json:"source"`
	SourceID    string `yaml:"source_id,omitempty" json:"source_id,omitempty"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Link        string `yaml:"link,omitempty" json:"link,omitempty"`
	Location    string `yaml:"location,omitempty" json:"location,omitempty"`

	// Dates is free text such as "6/13/2025 7pm through 6/15/2025", or an
	// ISO date for feed and series rows.
	Dates string `yaml:"dates" json:"dates"`
	// EndDate is optional; empty means a single-day event.
	EndDate string `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	// StartTime is an optional "HH:MM[:SS]" column that wins over any time
	// found in Dates.
	StartTime string `yaml:"start_time,omitempty" json:"start_time,omitempty"`
	// RRule marks a series row: Dates is the first occurrence, EndDate the
	// last possible one. Series are expanded before listing.
	RRule string `yaml:"rrule,omitempty" json:"rrule,omitempty"`
}

// Listing is a Record that passed date parsing, evaluated against one
// reference day.
type Listing struct {
	Record

	Window temporal.EventWindow `json:"-"`
	Start  temporal.DateSpec    `json:"start"`
	End    temporal.DateSpec    `json:"end"`
	// Time is "HH:MM" or empty.
	Time string `json:"time,omitempty"`

	Status      temporal.WindowStatus `json:"status"`
	Label       string                `json:"label"`
	BubbleLabel string                `json:"bubble_label"`
}
