package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Paintersrp/notetree/internal/config"
)

const sample = `
current_profile: work
profiles:
  work:
    server_url: http://localhost:8080
    api_token: abc
    bookmarks: [n1, n2]
  home:
    server_url: http://home:8080
    api_token: def
retry:
  max_attempts: 5
  base_delay: 250ms
  multiplier: 3
search:
  fast_search: true
  fuzzy: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	home := t.TempDir()
	path := config.GetConfigPath(home)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create config directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDecodesProfilesAndDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.BaseDelay != 250*time.Millisecond || cfg.Retry.Multiplier != 3 {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	if !cfg.Search.FastSearch || !cfg.Search.Fuzzy || cfg.Search.Limit != 100 {
		t.Fatalf("search = %+v", cfg.Search)
	}
	if cfg.CacheEntries != 128 {
		t.Fatalf("cache entries = %d", cfg.CacheEntries)
	}

	if err := cfg.Resolve("", nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	p, name := cfg.Active()
	if name != "work" || p.ServerURL != "http://localhost:8080" || len(p.Bookmarks) != 2 {
		t.Fatalf("active = %s %+v", name, p)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var initErr *config.ConfigInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected ConfigInitError, got %v", err)
	}
}

func TestLoadRequiresProfiles(t *testing.T) {
	_, err := config.Load(writeConfig(t, "log_file: x.log\n"))
	var initErr *config.ConfigInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected ConfigInitError, got %v", err)
	}
}

func TestResolveOrder(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := cfg.Resolve("home", nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, name := cfg.Active(); name != "home" {
		t.Fatalf("explicit profile should win, got %s", name)
	}

	if err := cfg.Resolve("missing", nil); err == nil {
		t.Fatalf("expected error for unknown profile")
	}

	cfg.CurrentProfile = ""
	if err := cfg.Resolve("", nil); !errors.Is(err, config.ErrProfileRequired) {
		t.Fatalf("expected ErrProfileRequired, got %v", err)
	}

	var offered []string
	err = cfg.Resolve("", func(names []string) (string, error) {
		offered = names
		return "home", nil
	})
	if err != nil {
		t.Fatalf("resolve with chooser: %v", err)
	}
	if len(offered) != 2 || offered[0] != "home" || offered[1] != "work" {
		t.Fatalf("offered = %v", offered)
	}
}

func TestSingleProfileNeedsNoChoice(t *testing.T) {
	cfg, err := config.Parse([]byte("profiles:\n  only:\n    server_url: http://x\n    api_token: t\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := cfg.Resolve("", nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, name := cfg.Active(); name != "only" {
		t.Fatalf("active = %s", name)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("NOTETREE_SERVER_URL", "http://override:9000")
	t.Setenv("NOTETREE_API_TOKEN", "secret")

	v := config.NewEnv()

	cfg, err := config.Parse([]byte("profiles:\n  only:\n    server_url: http://x\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := cfg.Resolve("", nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("missing token should fail validation")
	}

	cfg.ApplyOverrides(v)
	p, _ := cfg.Active()
	if p.ServerURL != "http://override:9000" || p.APIToken != "secret" {
		t.Fatalf("profile = %+v", p)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEnvOverridesComeFromEnvironmentOnly(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("NOTETREE_SERVER_URL", "")
	t.Setenv("NOTETREE_API_TOKEN", "")

	path := config.GetConfigPath(home)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := "server_url: http://top-level\nprofiles:\n  only:\n    server_url: http://x\n    api_token: t\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Resolve("", nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cfg.ApplyOverrides(config.NewEnv())
	if p, _ := cfg.Active(); p.ServerURL != "http://x" {
		t.Fatalf("server_url = %q, want the profile's own", p.ServerURL)
	}
}
