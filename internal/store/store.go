// Package store loads the curated events file.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	appLog "citycal/internal/log"
	"citycal/internal/model"
)

// File is the on-disk layout:
//
//	events:
//	  - id: roots-picnic
//	    name: Roots Picnic
//	    dates: "6/13/2025 7pm through 6/15/2025"
//	recurring:
//	  - id: swing-night
//	    name: Swing Night
//	    dates: 2025-06-07
//	    start_time: "19:00:00"
//	    rrule: FREQ=WEEKLY;BYDAY=SA
type File struct {
	Events    []model.Record `yaml:"events"`
	Recurring []model.Record `yaml:"recurring"`
}

// Load reads path and returns events followed by recurring series. A
// missing file is an empty set, not an error. Rows without an ID get
// a positional one; duplicate IDs are rejected.
func Load(path string) ([]model.Record, error) {
	if path == "" {
		return nil, errors.New("store: empty events file path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Info("events file not found, starting empty", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes an events document.
func Parse(data []byte) ([]model.Record, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("store: parse events: %w", err)
	}

	out := make([]model.Record, 0, len(f.Events)+len(f.Recurring))
	seen := make(map[string]bool)
	var errs []error

	add := func(r model.Record, source string, i int) {
		if r.ID == "" {
			r.ID = source + "-" + strconv.Itoa(i+1)
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("%s[%d]: duplicate id %q", source, i, r.ID))
			return
		}
		seen[r.ID] = true
		r.Source = source
		out = append(out, r)
	}

	for i, r := range f.Events {
		if r.RRule != "" {
			errs = append(errs, fmt.Errorf("events[%d]: rrule belongs under recurring", i))
			continue
		}
		add(r, model.SourceEvents, i)
	}
	for i, r := range f.Recurring {
		if r.RRule == "" {
			errs = append(errs, fmt.Errorf("recurring[%d]: rrule is required", i))
			continue
		}
		add(r, model.SourceRecurring, i)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return out, nil
}
