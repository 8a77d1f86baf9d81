package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ============================================================
// MAIN CONFIG
// ============================================================

type Config struct {
	Services   []ServiceConfig  `yaml:"services"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Advanced   AdvancedConfig   `yaml:"advanced"`
}

// ============================================================
// SERVICE CONFIG
// ============================================================

type ServiceConfig struct {
	Name      string `yaml:"name"`
	Unit      string `yaml:"unit"`
	HealthURL string `yaml:"health_url"`
}

// SystemdUnit returns the systemd unit for the service, defaulting to the
// service name when no explicit unit is configured.
func (s ServiceConfig) SystemdUnit() string {
	if s.Unit != "" {
		return s.Unit
	}
	return s.Name
}

// ============================================================
// THRESHOLDS
// ============================================================

type ThresholdsConfig struct {
	CPUPercent    float64 `yaml:"cpu_percent"`
	MemoryPercent float64 `yaml:"memory_percent"`
	// Pointer so an explicit 0 ("any error fires") is distinguishable from
	// the key being absent.
	ErrorCount *int `yaml:"error_count"`
}

// ErrorThreshold returns the log error threshold, defaulting to 10 when the
// key is absent. Zero is a valid setting: any error line over zero fires.
func (t ThresholdsConfig) ErrorThreshold() int {
	if t.ErrorCount == nil {
		return 10
	}
	return *t.ErrorCount
}

// ============================================================
// ALERTS CONFIG
// ============================================================

type AlertsConfig struct {
	Cooldown    string        `yaml:"cooldown"`
	StateFile   string        `yaml:"state_file"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	Channels    AlertChannels `yaml:"channels"`
}

type AlertChannels struct {
	Webhook  WebhookConfig  `yaml:"webhook"`
	Slack    SlackConfig    `yaml:"slack"`
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type SlackConfig struct {
	Enabled bool   `yaml:"enabled"`
	Webhook string `yaml:"webhook"`
}

type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Webhook string `yaml:"webhook"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// CooldownDuration returns the alert cooldown. Values below one minute are
// treated as misconfiguration and replaced with the default.
func (a AlertsConfig) CooldownDuration() time.Duration {
	d := ParseDuration(a.Cooldown)
	if d < time.Minute {
		return time.Hour
	}
	return d
}

// ============================================================
// ADVANCED CONFIG
// ============================================================

type AdvancedConfig struct {
	ProbeAttempts  int    `yaml:"probe_attempts"`
	ProbeBackoff   string `yaml:"probe_backoff"`
	ServiceTimeout string `yaml:"service_timeout"`
	HTTPTimeout    string `yaml:"http_timeout"`
	LogWindow      string `yaml:"log_window"`
	ErrorMarker    string `yaml:"error_marker"`
	ExcerptLines   int    `yaml:"excerpt_lines"`
	MetricsPort    int    `yaml:"metrics_port"`
}

// ============================================================
// HELPER FUNCTIONS
// ============================================================

// ParseDuration parses duration strings like "1h", "5m", "30s"
func ParseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// ============================================================
// LOAD FUNCTION
// ============================================================

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for _, s := range c.Services {
		if s.Name == "" {
			return fmt.Errorf("service with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate service %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Thresholds.CPUPercent == 0 {
		c.Thresholds.CPUPercent = 80
	}
	if c.Thresholds.MemoryPercent == 0 {
		c.Thresholds.MemoryPercent = 80
	}
	if c.Alerts.Cooldown == "" {
		c.Alerts.Cooldown = "1h"
	}
	if c.Advanced.ProbeAttempts == 0 {
		c.Advanced.ProbeAttempts = 3
	}
	if c.Advanced.ProbeBackoff == "" {
		c.Advanced.ProbeBackoff = "2s"
	}
	if c.Advanced.ServiceTimeout == "" {
		c.Advanced.ServiceTimeout = "30s"
	}
	if c.Advanced.HTTPTimeout == "" {
		c.Advanced.HTTPTimeout = "5s"
	}
	if c.Advanced.LogWindow == "" {
		c.Advanced.LogWindow = "1h"
	}
	if c.Advanced.ErrorMarker == "" {
		c.Advanced.ErrorMarker = "error"
	}
	if c.Advanced.ExcerptLines == 0 {
		c.Advanced.ExcerptLines = 5
	}
}
