package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the bot and the CLI.
type Config struct {
	TelegramToken  string        `mapstructure:"telegram_token"`
	DatabaseURL    string        `mapstructure:"database_url"`
	ReportInterval time.Duration `mapstructure:"-"`
	ReportTime     string        `mapstructure:"report_time"`
	Timezone       string        `mapstructure:"timezone"`
	StatsCacheTTL  time.Duration `mapstructure:"stats_cache_ttl"`
	AlertLead      time.Duration `mapstructure:"alert_lead"` // before a time block starts
}

const (
	defaultDatabaseURL   = "habit_tracker.db"
	defaultReportHours   = 5
	defaultStatsCacheTTL = 5 * time.Minute
	defaultAlertLead     = 15 * time.Minute
)

// Load reads configuration from an optional YAML file and environment
// variables. Environment variables win over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("database_url", defaultDatabaseURL)
	v.SetDefault("report_interval_hours", defaultReportHours)
	v.SetDefault("stats_cache_ttl", defaultStatsCacheTTL)
	v.SetDefault("alert_lead", defaultAlertLead)
	v.SetDefault("timezone", "")
	v.SetDefault("report_time", "")
	v.SetDefault("telegram_token", "")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	cfg.ReportTime = strings.TrimSpace(cfg.ReportTime)
	cfg.ReportInterval = parseInterval(strings.TrimSpace(v.GetString("report_interval_hours")))

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = defaultReportHours * time.Hour
	}
	if cfg.AlertLead <= 0 {
		cfg.AlertLead = defaultAlertLead
	}

	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
		}
	}

	return cfg, nil
}

// Validate checks settings needed by the bot.
func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	return nil
}

// Location returns the default viewer time zone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
