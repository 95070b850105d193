// Package config provides YAML-based configuration loading for Arena.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "20s" or "50ms" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"20s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level Arena configuration, loaded from config.yaml.
type Config struct {
	UserID    string          `yaml:"user_id"`
	Backend   BackendConfig   `yaml:"backend"`
	Arena     ArenaConfig     `yaml:"arena"`
	DB        DBConfig        `yaml:"db"`
	Notify    NotifyConfig    `yaml:"notify"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// BackendConfig holds connection settings for the arena conversation API.
type BackendConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// ArenaConfig tunes the local answer state.
type ArenaConfig struct {
	TruncateBudget     int      `yaml:"truncate_budget"`
	MaxTasks           int      `yaml:"max_tasks"`
	MaxSessionsPerTask int      `yaml:"max_sessions_per_task"`
	CoalesceInterval   Duration `yaml:"coalesce_interval"`
}

// DBConfig holds settings for the session archive database. Driver is
// "mysql" or "sqlite".
type DBConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Path     string `yaml:"path"` // sqlite only
}

// NotifyConfig configures chat notifications for finished sessions.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack bot credentials.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	AppToken  string `yaml:"app_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord bot credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// RefreshConfig schedules periodic task-list hydration.
type RefreshConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// DashboardConfig configures the local HTTP dashboard.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = Duration(15 * time.Second)
	}
	if c.Arena.TruncateBudget == 0 {
		c.Arena.TruncateBudget = 2048
	}
	if c.Arena.MaxTasks == 0 {
		c.Arena.MaxTasks = 20
	}
	if c.Arena.MaxSessionsPerTask == 0 {
		c.Arena.MaxSessionsPerTask = 50
	}
	if c.Arena.CoalesceInterval == 0 {
		c.Arena.CoalesceInterval = Duration(50 * time.Millisecond)
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.Database == "" {
			c.DB.Database = "arena"
		}
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "arena.db"
	}
	if c.Refresh.Schedule == "" {
		c.Refresh.Schedule = "@every 5m"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8642
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.base_url is required")
	}
	switch c.DB.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not supported (use mysql or sqlite)", c.DB.Driver))
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required when a slack bot token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required when a discord bot token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
