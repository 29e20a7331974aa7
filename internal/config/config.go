package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StaticEventConfig declares an event directly in the config file. These
// are merged into every extraction pass, so standing meetings get reminders
// even when the rendered page omits them. Recurrence uses a raw RRULE
// string ("FREQ=WEEKLY;BYDAY=MO" etc.); empty means a single occurrence.
type StaticEventConfig struct {
	Title string `yaml:"title" json:"title"`
	// Start and End are RFC3339 timestamps in the configured timezone.
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`

	AllDay     bool   `yaml:"all_day,omitempty" json:"all_day,omitempty"`
	Location   string `yaml:"location,omitempty" json:"location,omitempty"`
	MeetingURL string `yaml:"meeting_url,omitempty" json:"meeting_url,omitempty"`

	RRule string `yaml:"rrule,omitempty" json:"rrule,omitempty"`
	// ExDates lists RFC3339 instants excluded from the recurrence.
	ExDates []string `yaml:"exdates,omitempty" json:"exdates,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the local API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the local API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display timezone (e.g. "Asia/Tokyo").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule for the fetch cycle
	// (e.g. "*/5 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LeadMinutes is how many minutes before an event's start the
	// reminder fires.
	LeadMinutes int `yaml:"lead_minutes" json:"lead_minutes"`

	// JoinGraceSeconds is the post-start window during which an auto-join
	// still fires immediately instead of being treated as missed.
	JoinGraceSeconds int `yaml:"join_grace_seconds" json:"join_grace_seconds"`

	// AutoJoin opens an event's meeting URL at its start time.
	AutoJoin bool `yaml:"auto_join" json:"auto_join"`

	// BrowserProfile is the persistent Chromium profile directory holding
	// the Google session.
	BrowserProfile string `yaml:"browser_profile" json:"browser_profile"`
	// Headless controls whether the driven browser shows a window.
	Headless bool `yaml:"headless" json:"headless"`

	// CachePath is where the last successfully normalized event set is
	// persisted for fallback.
	CachePath string `yaml:"cache_path" json:"cache_path"`
	// LogPath, if non-empty, mirrors log output into this file.
	LogPath string `yaml:"log_path,omitempty" json:"log_path,omitempty"`

	// RetryAttempts bounds the reload-and-retry loop when an extraction
	// pass yields zero events. RetrySettleSeconds is the delay between
	// attempts while the page finishes rendering.
	RetryAttempts      int `yaml:"retry_attempts" json:"retry_attempts"`
	RetrySettleSeconds int `yaml:"retry_settle_seconds" json:"retry_settle_seconds"`

	// ShowAllDay includes all-day events in the API output and schedule.
	ShowAllDay bool `yaml:"show_all_day" json:"show_all_day"`

	// OwnCalendarOnly drops events classified as belonging to someone
	// else's calendar. Filtering is skipped when no account alias can be
	// discovered.
	OwnCalendarOnly bool `yaml:"own_calendar_only" json:"own_calendar_only"`

	// StaticEvents are config-declared events merged into every pass.
	StaticEvents []StaticEventConfig `yaml:"static_events,omitempty" json:"static_events,omitempty"`

	// BasicAuth, if non-nil, protects all API endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".calbar")
	return &Config{
		Listen:             "127.0.0.1:8793",
		Timezone:           "Asia/Tokyo",
		RefreshCron:        "*/5 * * * *",
		LeadMinutes:        5,
		JoinGraceSeconds:   60,
		AutoJoin:           false,
		BrowserProfile:     filepath.Join(base, "browser_profile"),
		Headless:           true,
		CachePath:          filepath.Join(base, "cache.json"),
		LogPath:            filepath.Join(base, "calbar.log"),
		RetryAttempts:      3,
		RetrySettleSeconds: 2,
		ShowAllDay:         true,
		OwnCalendarOnly:    true,
		StaticEvents:       []StaticEventConfig{},
		BasicAuth:          nil,
	}
}

// Normalize fills in missing/zero values so partially filled configs from
// older versions still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.LeadMinutes <= 0 {
		c.LeadMinutes = def.LeadMinutes
	}
	if c.JoinGraceSeconds <= 0 {
		c.JoinGraceSeconds = def.JoinGraceSeconds
	}
	if c.BrowserProfile == "" {
		c.BrowserProfile = def.BrowserProfile
	}
	if c.CachePath == "" {
		c.CachePath = def.CachePath
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = def.RetryAttempts
	}
	if c.RetrySettleSeconds <= 0 {
		c.RetrySettleSeconds = def.RetrySettleSeconds
	}
	if c.StaticEvents == nil {
		c.StaticEvents = []StaticEventConfig{}
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written (0600, parent
// directory created) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
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

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory as needed.
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

	tmp, err := os.CreateTemp(dir, ".calbar-config-*.tmp")
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

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
