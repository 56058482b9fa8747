package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"citycal/internal/auth"
	"citycal/internal/capture"
	"citycal/internal/listing"
	appLog "citycal/internal/log"
	"citycal/internal/specials"
	"citycal/internal/store"
	"citycal/internal/temporal"
)

// ServeCmd runs the scheduled refresher and the HTTP API until SIGINT or
// SIGTERM.
type ServeCmd struct {
	Listen  string `help:"Override the configured listen address."`
	Share   string `help:"PNG served at /share.png (see capture)." type:"path"`
	Publish bool   `help:"Upload calendar.ics and weekend.pdf after every refresh." negatable:"" default:"true"`
}

func (c *ServeCmd) Run(ctx *Context) error {
	cfg, err := ctx.loadConfig()
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := ctx.newEnv(sigCtx, cfg, envOptions{SharePath: c.Share, Publish: c.Publish})
	if err != nil {
		return err
	}
	defer e.Close()

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"feeds", len(cfg.Feeds),
		"specials", len(cfg.Specials),
		"events_db", cfg.EventsDB != "",
		"publish", e.publisher != nil,
	)

	if err := e.refreshOnce(sigCtx); err != nil {
		// Serve anyway; the next scheduled run may succeed.
		appLog.Error("initial refresh failed", err)
	}
	if err := e.refresher.Start(cfg.RefreshCron); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.refresher.Stop(stopCtx)
	}()

	err = e.server.ListenAndServe(sigCtx)
	appLog.Info("citycal exiting")
	return err
}

// DumpCmd refreshes once and prints the evaluated listings.
type DumpCmd struct {
	View  string `help:"Listing view." enum:"upcoming,weekend,active,all" default:"upcoming"`
	Limit int    `help:"Maximum listings; 0 means no limit." default:"0"`
	JSON  bool   `help:"Print JSON instead of a table."`
}

func (c *DumpCmd) Run(ctx *Context) error {
	view, err := listing.ParseView(c.View)
	if err != nil {
		return err
	}
	cfg, err := ctx.loadConfig()
	if err != nil {
		return err
	}
	e, err := ctx.newEnv(context.Background(), cfg, envOptions{})
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.refreshOnce(context.Background()); err != nil {
		return err
	}

	today := temporal.DateOf(ctx.clock()().In(cfg.Location()))
	ls := listing.Limit(listing.Build(e.refresher.Snapshot().Records, today, view), c.Limit)

	if c.JSON {
		enc := json.NewEncoder(ctx.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ls)
	}

	ss, err := specials.Compile(cfg.Specials)
	if err != nil {
		return err
	}
	notices := append(specials.Today(ss, today), specials.Reminders(ss, today)...)
	_, err = fmt.Fprint(ctx.stdout(), renderListings(today, view, notices, ls))
	return err
}

// CaptureCmd screenshots a page (by default the weekend card) to PNG.
type CaptureCmd struct {
	URL     string        `help:"Page to capture." default:"http://127.0.0.1:8080/weekend"`
	Output  string        `short:"o" help:"PNG output path." type:"path" default:"share.png"`
	Width   int           `help:"Viewport width in px." default:"1200"`
	Height  int           `help:"Viewport height in px." default:"630"`
	Timeout time.Duration `help:"Give up after this long." default:"30s"`
}

func (c *CaptureCmd) Run(ctx *Context) error {
	if ctx.Debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	err := capture.CapturePagePNG(context.Background(), capture.CaptureOptions{
		URL:        c.URL,
		OutputPath: c.Output,
		Width:      c.Width,
		Height:     c.Height,
		Timeout:    c.Timeout,
	})
	if err != nil {
		return err
	}
	appLog.Info("share card captured", "url", c.URL, "path", c.Output)
	return nil
}

// HashPasswordCmd prints an Argon2id hash for basic_auth.password_hash.
type HashPasswordCmd struct{}

func (c *HashPasswordCmd) Run(ctx *Context) error {
	pw, err := readPassword(ctx)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.stdout(), hash)
	return err
}

// readPassword prompts twice on a terminal and reads one line otherwise.
func readPassword(ctx *Context) (string, error) {
	if f, ok := ctx.stdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		fmt.Fprint(os.Stderr, "Confirm password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(ctx.stdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ImportCmd copies the YAML events file into the SQLite database.
type ImportCmd struct {
	From string `help:"Events file to read; defaults to events_file." type:"path"`
	DB   string `help:"Database to write; defaults to events_db." type:"path"`
}

func (c *ImportCmd) Run(ctx *Context) error {
	cfg, err := ctx.loadConfig()
	if err != nil {
		return err
	}
	from, dbPath := c.From, c.DB
	if from == "" {
		from = cfg.EventsFile
	}
	if dbPath == "" {
		dbPath = cfg.EventsDB
	}
	if dbPath == "" {
		return errors.New("import: no database (set events_db or --db)")
	}

	recs, err := store.Load(from)
	if err != nil {
		return err
	}
	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Import(context.Background(), recs)
	if err != nil {
		return err
	}
	appLog.Info("import completed", "from", from, "db", dbPath, "records", n)
	_, err = fmt.Fprintf(ctx.stdout(), "imported %d records into %s\n", n, dbPath)
	return err
}

// SeriesCmd pauses or resumes a recurring series in the database.
type SeriesCmd struct {
	ID     string `arg:"" help:"Series ID."`
	Active bool   `help:"Whether the series is listed." negatable:"" default:"true"`
	DB     string `help:"Database; defaults to events_db." type:"path"`
}

func (c *SeriesCmd) Run(ctx *Context) error {
	cfg, err := ctx.loadConfig()
	if err != nil {
		return err
	}
	dbPath := c.DB
	if dbPath == "" {
		dbPath = cfg.EventsDB
	}
	if dbPath == "" {
		return errors.New("series: no database (set events_db or --db)")
	}
	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.SetActive(context.Background(), c.ID, c.Active); err != nil {
		return err
	}
	appLog.Info("series updated", "id", c.ID, "active", c.Active)
	return nil
}

// PublishCmd refreshes once and uploads the calendar and flyer.
type PublishCmd struct{}

func (c *PublishCmd) Run(ctx *Context) error {
	cfg, err := ctx.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Publish == nil {
		return errors.New("publish: no publish section in config")
	}
	bg := context.Background()
	e, err := ctx.newEnv(bg, cfg, envOptions{})
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.refreshOnce(bg); err != nil {
		return err
	}
	// newEnv without Publish leaves the hook off so RunOnce does not upload twice.
	p, err := newPublisher(bg, cfg)
	if err != nil {
		return err
	}
	e.publisher = p
	return e.publish(bg)
}
