package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"citycal/internal/model"
)

// Loader yields the curated records on every refresh.
type Loader interface {
	Records(ctx context.Context) ([]model.Record, error)
}

// YAMLFile is a Loader reading an events file from disk.
type YAMLFile string

func (f YAMLFile) Records(_ context.Context) ([]model.Record, error) {
	return Load(string(f))
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	link        TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	dates       TEXT NOT NULL,
	end_date    TEXT NOT NULL DEFAULT '',
	start_time  TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS recurring_events (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	link        TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	start_date  TEXT NOT NULL,
	end_date    TEXT NOT NULL DEFAULT '',
	start_time  TEXT NOT NULL DEFAULT '',
	rrule       TEXT NOT NULL,
	is_active   INTEGER NOT NULL DEFAULT 1
);`

// SQLite is a Loader backed by the events and recurring_events tables.
type SQLite struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}
	return &SQLite{path: path, db: db}, nil
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Records returns every event followed by the active series.
func (s *SQLite) Records(ctx context.Context) ([]model.Record, error) {
	var out []model.Record

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, link, location, dates, end_date, start_time FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	for rows.Next() {
		r := model.Record{Source: model.SourceEvents}
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Link, &r.Location, &r.Dates, &r.EndDate, &r.StartTime); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read events: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, name, description, link, address, start_date, end_date, start_time, rrule
		 FROM recurring_events WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: query recurring_events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r := model.Record{Source: model.SourceRecurring}
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Link, &r.Location, &r.Dates, &r.EndDate, &r.StartTime, &r.RRule); err != nil {
			return nil, fmt.Errorf("store: scan series: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read recurring_events: %w", err)
	}
	return out, nil
}

// Import upserts records by ID in one transaction. Series rows (with an
// RRule) go to recurring_events and are marked active.
func (s *SQLite) Import(ctx context.Context, recs []model.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin import: %w", err)
	}
	defer tx.Rollback()

	n := 0
	for _, r := range recs {
		if r.RRule == "" {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO events (id, name, description, link, location, dates, end_date, start_time)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name, description = excluded.description, link = excluded.link,
					location = excluded.location, dates = excluded.dates, end_date = excluded.end_date,
					start_time = excluded.start_time`,
				r.ID, r.Name, r.Description, r.Link, r.Location, r.Dates, r.EndDate, r.StartTime)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO recurring_events (id, name, description, link, address, start_date, end_date, start_time, rrule, is_active)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name, description = excluded.description, link = excluded.link,
					address = excluded.address, start_date = excluded.start_date, end_date = excluded.end_date,
					start_time = excluded.start_time, rrule = excluded.rrule, is_active = 1`,
				r.ID, r.Name, r.Description, r.Link, r.Location, r.Dates, r.EndDate, r.StartTime, r.RRule)
		}
		if err != nil {
			return 0, fmt.Errorf("store: import %s: %w", r.ID, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit import: %w", err)
	}
	return n, nil
}

// SetActive toggles a series without deleting it.
func (s *SQLite) SetActive(ctx context.Context, id string, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE recurring_events SET is_active = ? WHERE id = ?`, v, id)
	if err != nil {
		return fmt.Errorf("store: set active %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: no series %q", id)
	}
	return nil
}
