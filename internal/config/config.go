package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"freqpick/internal/timezone"
)

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "UTC"
	defaultRefreshCron  = "*/15 * * * *"
	defaultHorizonDays  = 30
	defaultPreviewLimit = 10
	maxPreviewLimit     = 500
	defaultCacheDir     = "./var/ics-cache"
)

// ICSConfig describes a single ICS subscription whose recurring events are
// classified by the feed refresher.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// SourceID returns ID, falling back to Name and then URL.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone reference dates are interpreted in when a
	// request does not name one.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for re-reading
	// the ICS feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is how far ahead upcoming occurrences of feed events are
	// listed.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// PreviewLimit is the default number of occurrences a preview returns.
	PreviewLimit int `yaml:"preview_limit" json:"preview_limit"`

	// CacheDir holds the ETag/Last-Modified cache of fetched feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		RefreshCron:  defaultRefreshCron,
		HorizonDays:  defaultHorizonDays,
		PreviewLimit: defaultPreviewLimit,
		CacheDir:     defaultCacheDir,
		ICS:          []ICSConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.PreviewLimit <= 0 {
		c.PreviewLimit = defaultPreviewLimit
	}
	if c.PreviewLimit > maxPreviewLimit {
		c.PreviewLimit = maxPreviewLimit
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Validate reports settings that Normalize cannot repair: an unknown zone or
// an unparsable refresh schedule.
func (c *Config) Validate() error {
	if _, err := timezone.ParseTimezone(c.Timezone); err != nil {
		return errors.Wrap(err, "config: timezone")
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return errors.Wrapf(err, "config: refresh %q", c.RefreshCron)
	}
	for i, src := range c.ICS {
		if src.URL == "" {
			return errors.Errorf("config: ics[%d] has no url", i)
		}
	}
	return nil
}

// Location resolves Timezone. Validate has already rejected bad names, so
// callers may ignore the error and use the UTC fallback.
func (c *Config) Location() (*time.Location, error) {
	return timezone.ParseTimezone(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshalled, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory with 0700 if needed.
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
		return errors.Wrap(err, "create config dir")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	tmp, err := os.CreateTemp(dir, ".freqpick-config-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp config")
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

	return errors.Wrap(os.Rename(tmpName, path), "rename config")
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
