// Package refresh keeps the raw record snapshot that handlers evaluate.
//
// Only raw records are cached. Labels and status depend on "today" and are
// computed per request, so a snapshot taken late on Thursday still reads
// "Today" on Friday morning.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"citycal/internal/config"
	"citycal/internal/ics"
	appLog "citycal/internal/log"
	"citycal/internal/model"
	"citycal/internal/store"
	"citycal/internal/temporal"
)

const runTimeout = 2 * time.Minute

// FeedFetcher is satisfied by *ics.Fetcher.
type FeedFetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, error)
}

// Snapshot is an immutable view of the last successful refresh.
type Snapshot struct {
	Records   []model.Record
	UpdatedAt time.Time
}

// Refresher rebuilds the snapshot from the curated events and venue feeds.
type Refresher struct {
	loader  store.Loader
	sources []ics.Source
	fetcher FeedFetcher
	loc     *time.Location
	horizon int
	now     func() time.Time
	after   func(ctx context.Context, snap Snapshot)

	mu   sync.RWMutex
	snap Snapshot

	runMu sync.Mutex // one RunOnce at a time
	cron  *cron.Cron
}

// Options configures a Refresher. A nil Loader reads Config.EventsFile, a
// nil Fetcher caches under Config.CacheDir and a nil Now means time.Now.
type Options struct {
	Config  *config.Config
	Loader  store.Loader
	Fetcher FeedFetcher
	Now     func() time.Time

	// AfterRun is called with the new snapshot after every RunOnce that
	// replaced it, e.g. to publish the calendar.
	AfterRun func(ctx context.Context, snap Snapshot)
}

// New builds a Refresher; nothing runs until RunOnce or Start.
func New(opts Options) (*Refresher, error) {
	if opts.Config == nil {
		return nil, errors.New("refresh: config is nil")
	}
	cfg := opts.Config
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = ics.NewFetcher(cfg.CacheDir, nil)
	}
	loader := opts.Loader
	if loader == nil {
		loader = store.YAMLFile(cfg.EventsFile)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Refresher{
		loader:  loader,
		sources: SourcesFromConfig(cfg.Feeds),
		fetcher: fetcher,
		loc:     cfg.Location(),
		horizon: cfg.HorizonDays,
		now:     now,
		after:   opts.AfterRun,
	}, nil
}

// SourcesFromConfig maps configured feeds to fetch sources. Feeds without
// an ID use their position.
func SourcesFromConfig(feeds []config.FeedConfig) []ics.Source {
	out := make([]ics.Source, 0, len(feeds))
	for i, f := range feeds {
		id := f.ID
		if id == "" {
			id = fmt.Sprintf("feed-%d", i+1)
		}
		out = append(out, ics.Source{ID: id, URL: f.URL, Name: f.Name})
	}
	return out
}

// Snapshot returns the current snapshot. The slice must not be modified.
func (r *Refresher) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// RunOnce rebuilds the snapshot. An unreadable events source keeps the
// previous snapshot; failing feeds only drop their own records and are
// reported in the returned error.
func (r *Refresher) RunOnce(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	started := r.now()
	today := temporal.DateOf(started.In(r.loc))
	rng := ics.ExpandConfig{
		Location: r.loc,
		From:     today.AddDays(-1),
		To:       today.AddDays(r.horizon),
	}

	local, err := r.loader.Records(ctx)
	if err != nil {
		appLog.Error("refresh: curated events unreadable, keeping snapshot", err)
		return err
	}
	records, err := ics.ExpandSeries(local, rng)
	if err != nil {
		return err
	}

	var feedErr error
	if len(r.sources) > 0 {
		results, err := r.fetcher.FetchAll(ctx, r.sources)
		feedErr = err
		for _, res := range results {
			events, err := ics.ParseICS(res.Source, res.Body)
			if err != nil {
				appLog.Error("refresh: feed parse failed", err, "id", res.Source.ID)
				feedErr = errors.Join(feedErr, err)
				continue
			}
			recs, err := ics.FeedRecords(events, rng)
			if err != nil {
				feedErr = errors.Join(feedErr, err)
				continue
			}
			records = append(records, recs...)
		}
	}

	snap := Snapshot{Records: records, UpdatedAt: started}
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	appLog.Info("refresh completed",
		"records", len(records),
		"feeds", len(r.sources),
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	if r.after != nil {
		r.after(ctx, snap)
	}
	return feedErr
}

// Start runs RunOnce on the cron schedule (standard 5-field spec,
// evaluated in the configured timezone).
func (r *Refresher) Start(spec string) error {
	c := cron.New(cron.WithLocation(r.loc))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := r.RunOnce(ctx); err != nil {
			appLog.Warn("scheduled refresh finished with errors", "reason", err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("refresh: schedule %q: %w", spec, err)
	}
	r.cron = c
	c.Start()
	appLog.Info("refresh scheduled", "spec", spec)
	return nil
}

// Stop halts the schedule and waits for a running refresh or ctx.
func (r *Refresher) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}
