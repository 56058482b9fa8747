package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != defaultListen || cfg.RefreshCron != defaultRefreshCron {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestLoad_NormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
listen: ":9090"
refresh: "not a cron spec"
feeds:
  - id: milkboy
    url: https://example.com/milkboy.ics
specials: []
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.RefreshCron != defaultRefreshCron {
		t.Errorf("invalid cron should fall back, got %q", cfg.RefreshCron)
	}
	if cfg.HorizonDays != defaultHorizonDays {
		t.Errorf("HorizonDays = %d", cfg.HorizonDays)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].ID != "milkboy" {
		t.Errorf("Feeds = %+v", cfg.Feeds)
	}
	if len(cfg.Specials) != 0 {
		t.Errorf("explicit empty specials should stay empty, got %d", len(cfg.Specials))
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Holidays = []HolidayConfig{{Date: "2025-06-20", Name: "Snow Day"}}
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"}
	cfg.Publish = &PublishConfig{Bucket: "guide-site"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Holidays) != 1 || got.Holidays[0].Name != "Snow Day" {
		t.Errorf("Holidays = %+v", got.Holidays)
	}
	if got.BasicAuth == nil || got.BasicAuth.Username != "admin" || got.BasicAuth.PasswordHash != cfg.BasicAuth.PasswordHash {
		t.Errorf("BasicAuth = %+v", got.BasicAuth)
	}
	if got.Publish == nil || got.Publish.Bucket != "guide-site" {
		t.Errorf("Publish = %+v", got.Publish)
	}
	if len(got.Specials) != len(defaultSpecials()) {
		t.Errorf("Specials = %d", len(got.Specials))
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Feeds = []FeedConfig{
		{ID: "a", URL: "https://example.com/a.ics"},
		{ID: "a", URL: ""},
	}
	cfg.Specials = append(cfg.Specials, SpecialConfig{Message: "no date"})
	cfg.Publish = &PublishConfig{Prefix: "guide/"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"url is required", "duplicate id", "date or recurring", "bucket is required"} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in %q", want, msg)
		}
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = ""
	if cfg.Location() != time.Local {
		t.Error("empty timezone should be time.Local")
	}
	cfg.Timezone = "Not/AZone"
	if cfg.Location() != time.Local {
		t.Error("unknown timezone should fall back to time.Local")
	}
	cfg.Timezone = "UTC"
	if cfg.Location().String() != "UTC" {
		t.Errorf("Location = %v", cfg.Location())
	}
}
