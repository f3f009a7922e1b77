package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/erikgeiser/promptkit/selection"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Paintersrp/notetree/internal/retry"
	"github.com/Paintersrp/notetree/internal/search"
)

// Profile is one note server the user can connect to.
type Profile struct {
	ServerURL string   `yaml:"server_url" json:"server_url"`
	APIToken  string   `yaml:"api_token"  json:"api_token"`
	Bookmarks []string `yaml:"bookmarks"  json:"bookmarks"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"   json:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"   json:"multiplier"`
}

type SearchConfig struct {
	FastSearch      bool `yaml:"fast_search"      json:"fast_search"`
	IncludeArchived bool `yaml:"include_archived" json:"include_archived"`
	Limit           int  `yaml:"limit"            json:"limit"`
	Fuzzy           bool `yaml:"fuzzy"            json:"fuzzy"`
}

type Config struct {
	CurrentProfile string              `yaml:"current_profile" json:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"        json:"profiles"`
	Retry          RetryConfig         `yaml:"retry"           json:"retry"`
	Search         SearchConfig        `yaml:"search"          json:"search"`
	LogFile        string              `yaml:"log_file"        json:"log_file"`
	CacheEntries   int                 `yaml:"cache_entries"   json:"cache_entries"`

	active     *Profile `yaml:"-"`
	activeName string   `yaml:"-"`
}

const (
	defaultCacheEntries = 128
	defaultSearchLimit  = 100
)

// ErrProfileRequired is returned when several profiles exist, none is marked
// current, and there is no terminal to ask on.
var ErrProfileRequired = errors.New("several profiles configured; pass --profile or set current_profile")

// Chooser picks one profile name out of several.
type Chooser func(names []string) (string, error)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, initErrorf("no config file at %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Profiles) == 0 {
		return nil, initErrorf("no profiles are configured")
	}
	cfg.ensureDefaults()
	return cfg, nil
}

func (cfg *Config) ensureDefaults() {
	for name, p := range cfg.Profiles {
		if p == nil {
			cfg.Profiles[name] = &Profile{}
		}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = retry.DefaultMaxAttempts
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = retry.DefaultBaseDelay
	}
	if cfg.Retry.Multiplier < 1 {
		cfg.Retry.Multiplier = retry.DefaultMultiplier
	}
	if cfg.Search.Limit <= 0 {
		cfg.Search.Limit = defaultSearchLimit
	}
	if cfg.CacheEntries <= 0 {
		cfg.CacheEntries = defaultCacheEntries
	}
}

func (cfg *Config) ProfileNames() []string {
	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve activates a profile. An explicit name wins, then current_profile,
// then the only profile. With several candidates left, choose is asked if
// given.
func (cfg *Config) Resolve(name string, choose Chooser) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(cfg.CurrentProfile)
	}
	if name == "" {
		names := cfg.ProfileNames()
		switch {
		case len(names) == 1:
			name = names[0]
		case choose != nil:
			picked, err := choose(names)
			if err != nil {
				return fmt.Errorf("select profile: %w", err)
			}
			name = picked
		default:
			return ErrProfileRequired
		}
	}
	return cfg.activate(name)
}

func (cfg *Config) activate(name string) error {
	p, ok := cfg.Profiles[name]
	if !ok {
		return initErrorf("profile %q does not exist", name)
	}
	cfg.active = p
	cfg.activeName = name
	return nil
}

// Active returns the resolved profile and its name.
func (cfg *Config) Active() (*Profile, string) {
	return cfg.active, cfg.activeName
}

// ApplyOverrides copies server_url and api_token from v onto the active
// profile when set there; v is expected to carry the environment bindings.
func (cfg *Config) ApplyOverrides(v *viper.Viper) {
	if cfg.active == nil || v == nil {
		return
	}
	if url := strings.TrimSpace(v.GetString("server_url")); url != "" {
		cfg.active.ServerURL = url
	}
	if token := strings.TrimSpace(v.GetString("api_token")); token != "" {
		cfg.active.APIToken = token
	}
}

// Validate checks that the active profile can reach a server.
func (cfg *Config) Validate() error {
	if cfg.active == nil {
		return initErrorf("no profile is active")
	}
	if strings.TrimSpace(cfg.active.ServerURL) == "" {
		return initErrorf("profile %q has no server_url", cfg.activeName)
	}
	if strings.TrimSpace(cfg.active.APIToken) == "" {
		return initErrorf("profile %q has no api_token", cfg.activeName)
	}
	return nil
}

func (r RetryConfig) Gateway() retry.Config {
	return retry.Config{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		Multiplier:  r.Multiplier,
	}
}

func (s SearchConfig) Query(text string) search.Query {
	return search.Query{
		Text:            text,
		FastSearch:      s.FastSearch,
		IncludeArchived: s.IncludeArchived,
		Limit:           s.Limit,
	}
}

// PromptProfile asks on the terminal which profile to use.
func PromptProfile(names []string) (string, error) {
	sel := selection.New("Select a profile.", names)
	sel.Filter = nil
	return sel.RunPrompt()
}
