// Package cli implements the citycal subcommands. main parses flags with
// kong and hands each command a *Context.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"citycal/internal/config"
	appLog "citycal/internal/log"
	"citycal/internal/publish"
	"citycal/internal/refresh"
	"citycal/internal/specials"
	"citycal/internal/store"
	"citycal/internal/web"
)

// Context is shared by every command.
type Context struct {
	ConfigPath string
	Debug      bool

	// In and Out default to stdin and stdout.
	In  io.Reader
	Out io.Writer

	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *Context) stdout() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Context) stdin() io.Reader {
	if c.In == nil {
		return os.Stdin
	}
	return c.In
}

func (c *Context) clock() func() time.Time {
	if c.Now == nil {
		return time.Now
	}
	return c.Now
}

// loadConfig reads and validates the config file and applies its log level.
// --debug wins over the configured level.
func (c *Context) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level := appLog.ParseLevel(cfg.LogLevel)
	if c.Debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)
	return cfg, nil
}

// env is the wired application: loader, refresher, server and an optional
// publisher.
type env struct {
	cfg       *config.Config
	db        *store.SQLite
	refresher *refresh.Refresher
	server    *web.Server
	publisher *publish.Publisher
}

type envOptions struct {
	SharePath string
	Publish   bool
}

func (c *Context) newEnv(ctx context.Context, cfg *config.Config, opts envOptions) (*env, error) {
	ss, err := specials.Compile(cfg.Specials)
	if err != nil {
		return nil, err
	}
	hs, err := specials.HolidaysFromConfig(cfg.Holidays)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}
	var loader store.Loader
	if cfg.EventsDB != "" {
		db, err := store.OpenSQLite(cfg.EventsDB)
		if err != nil {
			return nil, err
		}
		e.db = db
		loader = db
	}

	if opts.Publish && cfg.Publish != nil {
		p, err := newPublisher(ctx, cfg)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.publisher = p
	}

	ropts := refresh.Options{Config: cfg, Loader: loader, Now: c.clock()}
	if e.publisher != nil {
		ropts.AfterRun = func(ctx context.Context, _ refresh.Snapshot) {
			if err := e.publish(ctx); err != nil {
				appLog.Warn("publish after refresh failed", "reason", err.Error())
			}
		}
	}
	r, err := refresh.New(ropts)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.refresher = r
	e.server = web.NewServer(web.Options{
		Config:    cfg,
		Records:   r,
		Specials:  ss,
		Holidays:  hs,
		Clock:     c.clock(),
		SharePath: opts.SharePath,
		Debug:     c.Debug,
	})
	return e, nil
}

// newPublisher is replaced in tests.
var newPublisher = func(ctx context.Context, cfg *config.Config) (*publish.Publisher, error) {
	return publish.New(ctx, *cfg.Publish)
}

// refreshOnce runs a single refresh. Feed failures are logged and do not
// fail the command as long as the curated events loaded.
func (e *env) refreshOnce(ctx context.Context) error {
	err := e.refresher.RunOnce(ctx)
	if err != nil && e.refresher.Snapshot().UpdatedAt.IsZero() {
		return err
	}
	if err != nil {
		appLog.Warn("refresh finished with feed errors", "reason", err.Error())
	}
	return nil
}

func (e *env) publish(ctx context.Context) error {
	if e.publisher == nil {
		return errors.New("publish is not configured")
	}
	artifacts := []publish.Artifact{
		{Name: "calendar.ics", Body: e.server.CalendarICS(), ContentType: web.CalendarContentType},
	}
	flyer, err := e.server.WeekendFlyer()
	if err != nil {
		appLog.Error("weekend flyer render failed", err)
	} else {
		artifacts = append(artifacts, publish.Artifact{Name: "weekend.pdf", Body: flyer, ContentType: web.FlyerContentType})
	}
	return e.publisher.Upload(ctx, artifacts...)
}

func (e *env) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}
