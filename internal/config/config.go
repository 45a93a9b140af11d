package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FetchConfig describes where daily exports are downloaded from.
type FetchConfig struct {
	// BaseURL is scheme://host of the timeline service.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Cookie authenticates requests. Prefer the LOCHIST_COOKIE env var
	// over storing it here.
	Cookie string `yaml:"cookie,omitempty" json:"-"`
	// Begin / End are inclusive dates (YYYY-MM-DD).
	Begin string `yaml:"begin" json:"begin"`
	End   string `yaml:"end" json:"end"`
	// Overwrite re-downloads days already present in DataDir.
	Overwrite bool `yaml:"overwrite" json:"overwrite"`
	// MaxJitterMs bounds the random pause before each request.
	MaxJitterMs int `yaml:"max_jitter_ms" json:"max_jitter_ms"`
	Retries     int `yaml:"retries" json:"retries"`
}

// ExportConfig lists optional output files. Empty paths are skipped.
type ExportConfig struct {
	ICSPath    string `yaml:"ics_path" json:"ics_path"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

// CaptureConfig controls the PNG snapshot of the map page.
type CaptureConfig struct {
	Output string `yaml:"output" json:"output"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web view.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// DataDir holds one history-YYYY-MM-DD.kml file per day.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Timezone is the IANA zone events are rendered in. Empty means the
	// system local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Strict aborts loading on the first bad record instead of skipping it.
	Strict bool `yaml:"strict" json:"strict"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Listen is the HTTP listen address for -serve.
	Listen string `yaml:"listen" json:"listen"`

	// Refresh is the cron schedule used by -watch to fetch the previous
	// day and rebuild the table.
	Refresh string `yaml:"refresh" json:"refresh"`

	Fetch   FetchConfig   `yaml:"fetch" json:"fetch"`
	Export  ExportConfig  `yaml:"export" json:"export"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults.
func (c *Config) Normalize() {
	if c.DataDir == "" {
		c.DataDir = "./history"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Refresh == "" {
		c.Refresh = "0 6 * * *"
	}
	if c.Fetch.BaseURL == "" {
		c.Fetch.BaseURL = "https://www.google.com"
	}
	if c.Fetch.MaxJitterMs <= 0 {
		c.Fetch.MaxJitterMs = 300
	}
	if c.Fetch.Retries <= 0 {
		c.Fetch.Retries = 3
	}
	if c.Capture.Output == "" {
		c.Capture.Output = "./map.png"
	}
}

// Location resolves Timezone. Empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FetchRange parses Fetch.Begin / Fetch.End. ok is false when either is unset.
func (c *Config) FetchRange() (begin, end time.Time, ok bool, err error) {
	if c.Fetch.Begin == "" || c.Fetch.End == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	begin, err = time.Parse("2006-01-02", c.Fetch.Begin)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("fetch.begin: %w", err)
	}
	end, err = time.Parse("2006-01-02", c.Fetch.End)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("fetch.end: %w", err)
	}
	return begin, end, true, nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written there with 0600
// permissions and returned.
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
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// since the file may hold a cookie.
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

	tmp, err := os.CreateTemp(dir, ".lochist-config-*.tmp")
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

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
