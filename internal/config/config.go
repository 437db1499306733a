// Package config loads the YAML configuration: embedded defaults first,
// then the user's file layered on top, then validation. On first run the
// defaults are written out so there is a file to edit.
package config

import (
	"embed"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// GitHubTokenEnv overrides the github/technical API token from the
// environment.
const GitHubTokenEnv = "ROBOGLOBE_GITHUB_TOKEN"

// NarrativeConfig tunes the composite index. Zero values defer to the
// engine defaults.
type NarrativeConfig struct {
	Weights         map[string]float64 `yaml:"weights,omitempty"`
	CacheTTL        string             `yaml:"cache_ttl,omitempty"`
	TrendWindowDays int                `yaml:"trend_window_days,omitempty"`
	TrendThreshold  float64            `yaml:"trend_threshold,omitempty"`
}

// HistoryConfig selects and locates the score log backend.
type HistoryConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
}

// DatasetConfig locates the company dataset. An empty path serves the
// embedded dataset.
type DatasetConfig struct {
	Path string `yaml:"path,omitempty"`
	TTL  string `yaml:"ttl,omitempty"`
}

type GitHubSource struct {
	Enabled        bool     `yaml:"enabled"`
	Orgs           []string `yaml:"orgs"`
	Token          string   `yaml:"token,omitempty"`
	ActivityTarget int      `yaml:"activity_target,omitempty"`
}

// ResolvedToken returns the configured token, or the environment override
// when the file leaves it empty.
func (g GitHubSource) ResolvedToken() string {
	if g.Token != "" {
		return g.Token
	}
	return os.Getenv(GitHubTokenEnv)
}

type NewsSource struct {
	Enabled bool     `yaml:"enabled"`
	Feeds   []string `yaml:"feeds"`
	MaxAge  string   `yaml:"max_age,omitempty"`
}

type ContractsSource struct {
	Enabled     bool     `yaml:"enabled"`
	Endpoint    string   `yaml:"endpoint,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
	BaselineUSD float64  `yaml:"baseline_usd,omitempty"`
	WindowDays  int      `yaml:"window_days,omitempty"`
}

type FundingSource struct {
	Enabled    bool `yaml:"enabled"`
	WindowDays int  `yaml:"window_days,omitempty"`
}

type TechnicalSource struct {
	Enabled       bool     `yaml:"enabled"`
	Repos         []string `yaml:"repos"`
	CadenceTarget int      `yaml:"cadence_target,omitempty"`
}

type IndexAlphaSource struct {
	Enabled   bool     `yaml:"enabled"`
	Tickers   []string `yaml:"tickers"`
	Benchmark string   `yaml:"benchmark,omitempty"`
	Range     string   `yaml:"range,omitempty"`
}

type PolymarketSource struct {
	Enabled bool   `yaml:"enabled"`
	Slug    string `yaml:"slug"`
}

// SourcesConfig switches the component scorers on and off and carries
// their per-source settings.
type SourcesConfig struct {
	GitHub     GitHubSource     `yaml:"github"`
	News       NewsSource       `yaml:"news"`
	Contracts  ContractsSource  `yaml:"contracts"`
	Funding    FundingSource    `yaml:"funding"`
	Technical  TechnicalSource  `yaml:"technical"`
	IndexAlpha IndexAlphaSource `yaml:"index_alpha"`
	Polymarket PolymarketSource `yaml:"polymarket"`
}

type Config struct {
	ListenAddr   string          `yaml:"listen_addr"`
	DashboardURL string          `yaml:"dashboard_url,omitempty"`
	SignalTTL    string          `yaml:"signal_ttl,omitempty"`
	Narrative    NarrativeConfig `yaml:"narrative"`
	History      HistoryConfig   `yaml:"history"`
	Dataset      DatasetConfig   `yaml:"dataset"`
	Sources      SourcesConfig   `yaml:"sources"`
}

// SignalCacheTTL returns the shared scorer cache TTL, 15 minutes when
// unset or malformed.
func (c *Config) SignalCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.SignalTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// CacheTTLDuration returns the narrative cache TTL, zero when unset so the
// engine default applies.
func (n NarrativeConfig) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(n.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

// TTLDuration returns the dataset reload TTL, zero when unset so the store
// default applies.
func (d DatasetConfig) TTLDuration() time.Duration {
	ttl, err := time.ParseDuration(d.TTL)
	if err != nil {
		return 0
	}
	return ttl
}

// MaxAgeDuration returns the article freshness window, zero when unset so
// the scorer default applies.
func (n NewsSource) MaxAgeDuration() time.Duration {
	d, err := time.ParseDuration(n.MaxAge)
	if err != nil {
		return 0
	}
	return d
}

// ResolvedBackend returns the history backend, defaulting to the JSON
// file store.
func (h HistoryConfig) ResolvedBackend() string {
	if h.Backend == "" {
		return "file"
	}
	return h.Backend
}

// ResolvedPath returns the history file location, with an XDG data-dir
// default per backend.
func (h HistoryConfig) ResolvedPath() string {
	if h.Path != "" {
		return h.Path
	}
	name := "history.json"
	if h.ResolvedBackend() == "sqlite" {
		name = "history.db"
	}
	return filepath.Join(xdg.DataHome, "roboglobe", name)
}

// EnabledComponents lists the component names switched on, in weight-table
// order.
func (c *Config) EnabledComponents() []string {
	var names []string
	if c.Sources.IndexAlpha.Enabled {
		names = append(names, "indexAlpha")
	}
	if c.Sources.Polymarket.Enabled {
		names = append(names, "polymarket")
	}
	if c.Sources.Contracts.Enabled {
		names = append(names, "contracts")
	}
	if c.Sources.GitHub.Enabled {
		names = append(names, "github")
	}
	if c.Sources.News.Enabled {
		names = append(names, "news")
	}
	if c.Sources.Funding.Enabled {
		names = append(names, "funding")
	}
	if c.Sources.Technical.Enabled {
		names = append(names, "technical")
	}
	return names
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "roboglobe", "config.yaml")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path (or the XDG default), layered over the
// embedded defaults. A missing file is not an error: the defaults are
// written there for next time and used as-is.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: keep running on embedded defaults if the
			// write fails.
			_ = writeDefaults(path)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	if w := cfg.Narrative.Weights; len(w) > 0 {
		sum := 0.0
		for name, v := range w {
			if v < 0 {
				return fmt.Errorf("narrative weight for %s is negative", name)
			}
			sum += v
		}
		if math.Abs(sum-1.0) > 1e-9 {
			return fmt.Errorf("narrative weights sum to %v, want 1.0", sum)
		}
	}

	for _, d := range []struct{ name, value string }{
		{"signal_ttl", cfg.SignalTTL},
		{"narrative.cache_ttl", cfg.Narrative.CacheTTL},
		{"dataset.ttl", cfg.Dataset.TTL},
		{"sources.news.max_age", cfg.Sources.News.MaxAge},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", d.name, d.value, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s: duration must be positive, got %q", d.name, d.value)
		}
	}

	switch cfg.History.ResolvedBackend() {
	case "file", "sqlite":
	default:
		return fmt.Errorf("history backend %q unknown (valid: file, sqlite)", cfg.History.Backend)
	}

	for i, feed := range cfg.Sources.News.Feeds {
		if err := checkHTTPURL(feed); err != nil {
			return fmt.Errorf("news feed %d: %w", i, err)
		}
	}
	if ep := cfg.Sources.Contracts.Endpoint; ep != "" {
		if err := checkHTTPURL(ep); err != nil {
			return fmt.Errorf("contracts endpoint: %w", err)
		}
	}
	return nil
}

func checkHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}
