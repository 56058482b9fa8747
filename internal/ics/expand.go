package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "citycal/internal/log"
	"citycal/internal/model"
	"citycal/internal/temporal"
)

const defaultMaxOccurrences = 500

// ExpandConfig bounds recurrence expansion to an inclusive day range.
type ExpandConfig struct {
	// Location converts timed occurrences to local dates. Nil means time.Local.
	Location *time.Location

	From temporal.DateSpec
	To   temporal.DateSpec

	// MaxOccurrences caps one series. Zero uses defaultMaxOccurrences.
	MaxOccurrences int
}

func (cfg *ExpandConfig) normalize() error {
	if cfg.To.Before(cfg.From) {
		return errors.New("expand: To is before From")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}
	return nil
}

// rangeBounds returns [From 00:00, To 23:59:59.999] in loc.
func (cfg ExpandConfig) rangeBounds(loc *time.Location) (time.Time, time.Time) {
	return cfg.From.Midnight(loc), cfg.To.AddDays(1).Midnight(loc).Add(-time.Nanosecond)
}

// FeedRecords turns parsed feed events into listing records within the
// range, expanding RRULE series, dropping EXDATEs and applying
// RECURRENCE-ID overrides.
func FeedRecords(events []FeedEvent, cfg ExpandConfig) ([]model.Record, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	base := make([]FeedEvent, 0, len(events))
	overrides := make(map[string][]FeedEvent)
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		base = append(base, ev)
	}

	var out []model.Record
	for _, ev := range base {
		if ev.RRule == "" {
			if rec, ok := feedRecord(ev, ev.Start, ev.End, cfg, false); ok {
				out = append(out, rec)
			}
			continue
		}
		out = append(out, expandFeedSeries(ev, overrides[ev.UID], cfg)...)
	}
	return out, nil
}

func expandFeedSeries(ev FeedEvent, overrides []FeedEvent, cfg ExpandConfig) []model.Record {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	from, to := cfg.rangeBounds(ev.Start.Location())
	starts := set.Between(from, to, true)
	if len(starts) > cfg.MaxOccurrences {
		appLog.Warn("expand: series truncated", "uid", ev.UID, "cap", cfg.MaxOccurrences)
		starts = starts[:cfg.MaxOccurrences]
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.Record, 0, len(starts))
	for _, s := range starts {
		inst, start, end := ev, s, s.Add(dur)
		for _, o := range overrides {
			if o.RecurrenceID.Equal(s) {
				inst, start, end = o, o.Start, o.End
				break
			}
		}
		if rec, ok := feedRecord(inst, start, end, cfg, true); ok {
			out = append(out, rec)
		}
	}
	return out
}

// feedRecord maps one occurrence to a Record with ISO dates. All-day DTEND
// is exclusive, so the last day is the one before it.
func feedRecord(ev FeedEvent, start, end time.Time, cfg ExpandConfig, instance bool) (model.Record, bool) {
	var first, last temporal.DateSpec
	var clock string

	if ev.AllDay {
		first = temporal.DateOf(start)
		last = temporal.DateOf(end).AddDays(-1)
	} else {
		ls, le := start.In(cfg.Location), end.In(cfg.Location)
		first = temporal.DateOf(ls)
		last = first
		if le.After(ls) {
			last = temporal.DateOf(le.Add(-time.Nanosecond))
		}
		clock = ls.Format("15:04")
	}
	if last.Before(first) {
		last = first
	}
	if last.Before(cfg.From) || first.After(cfg.To) {
		return model.Record{}, false
	}

	id := ev.Source.ID + ":" + ev.UID
	if instance {
		id += "@" + first.String()
	}
	rec := model.Record{
		ID:          id,
		Source:      model.SourceFeed,
		SourceID:    ev.Source.ID,
		Name:        ev.Summary,
		Description: ev.Description,
		Link:        ev.URL,
		Location:    ev.Location,
		Dates:       first.String(),
		StartTime:   clock,
	}
	if last != first {
		rec.EndDate = last.String()
	}
	return rec, true
}

// ExpandSeries replaces every record carrying an RRule with its occurrences
// inside the range. Dates is the series start and EndDate, when set, the
// last day an occurrence may fall on. Other records pass through untouched.
func ExpandSeries(records []model.Record, cfg ExpandConfig) ([]model.Record, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if r.RRule == "" {
			out = append(out, r)
			continue
		}
		occ, err := expandRecordSeries(r, cfg)
		if err != nil {
			appLog.Warn("expand: series skipped", "id", r.ID, "reason", err.Error())
			continue
		}
		out = append(out, occ...)
	}
	return out, nil
}

func expandRecordSeries(r model.Record, cfg ExpandConfig) ([]model.Record, error) {
	p, ok := temporal.ParseDateValue(r.Dates)
	if !ok {
		return nil, fmt.Errorf("unparseable series start %q", r.Dates)
	}
	tod := p.Time
	if r.StartTime != "" {
		if c, ok := temporal.ParseClock(r.StartTime); ok {
			tod = &c
		}
	}

	dtstart := p.Date.Midnight(cfg.Location)
	if tod != nil {
		dtstart = dtstart.Add(time.Duration(tod.Hour)*time.Hour + time.Duration(tod.Minute)*time.Minute)
	}

	opt, err := rrule.StrToROption(r.RRule)
	if err != nil {
		return nil, fmt.Errorf("rrule %q: %w", r.RRule, err)
	}
	opt.Dtstart = dtstart
	if r.EndDate != "" && opt.Until.IsZero() && opt.Count == 0 {
		endP, ok := temporal.ParseDateValue(r.EndDate)
		if !ok {
			return nil, fmt.Errorf("unparseable series end %q", r.EndDate)
		}
		opt.Until = endP.Date.AddDays(1).Midnight(cfg.Location).Add(-time.Second)
	}
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("rrule %q: %w", r.RRule, err)
	}

	from, to := cfg.rangeBounds(cfg.Location)
	starts := rule.Between(from, to, true)
	if len(starts) > cfg.MaxOccurrences {
		starts = starts[:cfg.MaxOccurrences]
	}

	out := make([]model.Record, 0, len(starts))
	for _, s := range starts {
		d := temporal.DateOf(s.In(cfg.Location))
		inst := r
		inst.ID = r.ID + "@" + d.String()
		inst.Source = model.SourceRecurring
		inst.Dates = d.String()
		inst.EndDate = ""
		inst.RRule = ""
		if tod != nil {
			inst.StartTime = tod.String()
		}
		out = append(out, inst)
	}
	return out, nil
}
