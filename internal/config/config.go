package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "citycal/internal/log"
)

// FeedConfig describes a single venue ICS feed.
type FeedConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used in listings and logs.
	ID string `yaml:"id" json:"id"`
	// Name is the venue name, used as the location when events lack one.
	Name string `yaml:"name" json:"name"`
}

// SpecialConfig is one civic notice. Exactly one of Date or Recurring is
// expected: Date is YYYY-MM-DD or M/D/YYYY, Recurring is "first-sunday",
// "second-saturday", ... or "every-wednesday".
type SpecialConfig struct {
	Date      string `yaml:"date,omitempty" json:"date,omitempty"`
	Recurring string `yaml:"recurring,omitempty" json:"recurring,omitempty"`
	Location  string `yaml:"location,omitempty" json:"location,omitempty"`
	Message   string `yaml:"message" json:"message"`
}

// HolidayConfig adds a closure on top of the computed city holidays.
type HolidayConfig struct {
	Date string `yaml:"date" json:"date"`
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API. When
// PasswordHash (Argon2id, see "citycal hash-password") is set it wins over
// the plain Password.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password,omitempty" json:"-"`
	PasswordHash string `yaml:"password_hash,omitempty" json:"-"`
}

// PublishConfig uploads the calendar export to S3 after each refresh.
type PublishConfig struct {
	Bucket string `yaml:"bucket" json:"bucket"`
	// Prefix is prepended to object keys, e.g. "guide/".
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone in which "today" is taken (e.g.
	// "America/New_York"). Empty or invalid means the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a standard 5-field cron schedule for re-reading the
	// events file and feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays bounds recurring series expansion and the specials list.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// EventsFile is a YAML list of curated event records.
	EventsFile string `yaml:"events_file" json:"events_file"`

	// EventsDB, when set, is a SQLite database with events and
	// recurring_events tables read instead of EventsFile.
	EventsDB string `yaml:"events_db,omitempty" json:"events_db,omitempty"`

	// CacheDir holds the HTTP cache for feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Feeds    []FeedConfig    `yaml:"feeds" json:"feeds"`
	Specials []SpecialConfig `yaml:"specials" json:"specials"`
	Holidays []HolidayConfig `yaml:"holidays" json:"holidays"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// Publish, if non-nil, enables the S3 upload of calendar.ics.
	Publish *PublishConfig `yaml:"publish,omitempty" json:"publish,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "America/New_York"
	defaultLogLevel    = "info"
	defaultRefreshCron = "*/30 * * * *"
	defaultHorizonDays = 30
	defaultEventsFile  = "/var/lib/citycal/events.yaml"
	defaultCacheDir    = "/var/lib/citycal/feed-cache"
)

func defaultSpecials() []SpecialConfig {
	return []SpecialConfig{
		{Recurring: "first-sunday", Location: "Barnes Foundation", Message: "Free entry to the Barnes today (1st Sunday)"},
		{Recurring: "first-sunday", Location: "Philadelphia Museum of Art", Message: "Art Museum is Pay What You Wish today"},
		{Recurring: "every-wednesday", Location: "Philadelphia Museum of Art", Message: "5-8:45pm Pay What You Wish at Art Museum"},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		LogLevel:    defaultLogLevel,
		RefreshCron: defaultRefreshCron,
		HorizonDays: defaultHorizonDays,
		EventsFile:  defaultEventsFile,
		CacheDir:    defaultCacheDir,
		Feeds:       []FeedConfig{},
		Specials:    defaultSpecials(),
		Holidays:    []HolidayConfig{},
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	// An unparsable schedule would stop the refresher from ever running.
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.EventsFile == "" {
		c.EventsFile = defaultEventsFile
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	// nil means "not configured"; an explicit empty list disables specials.
	if c.Specials == nil {
		c.Specials = defaultSpecials()
	}
	if c.Holidays == nil {
		c.Holidays = []HolidayConfig{}
	}
}

// Validate reports configuration errors that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		if f.URL == "" {
			errs = append(errs, fmt.Errorf("feeds[%d]: url is required", i))
		}
		if f.ID != "" && seen[f.ID] {
			errs = append(errs, fmt.Errorf("feeds[%d]: duplicate id %q", i, f.ID))
		}
		seen[f.ID] = true
	}
	if c.Publish != nil && c.Publish.Bucket == "" {
		errs = append(errs, errors.New("publish: bucket is required"))
	}
	for i, s := range c.Specials {
		if s.Date == "" && s.Recurring == "" {
			errs = append(errs, fmt.Errorf("specials[%d]: date or recurring is required", i))
		}
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to time.Local when it is empty
// or unknown to the host tz database.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".citycal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience wrapper around the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
