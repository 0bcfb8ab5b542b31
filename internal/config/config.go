// Package config handles Muster configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds Muster configuration
type Config struct {
	// Database path (SQLite)
	DatabasePath string

	// Google API credential/token files
	CredentialsFile string
	TokenFile       string

	// Bot API endpoint for outbound messages
	BotBaseURL string
	BotToken   string

	// Directory cache
	DirectoryTTL    time.Duration
	DirectoryDomain string

	// Notification settings
	ReminderInterval time.Duration // minimum gap between owner-facing sends
	ReportInterval   time.Duration // minimum gap between manager-facing reports
	StartSkew        time.Duration // start dates further out are "not yet begun"

	// Escalation settings
	OverdueThreshold time.Duration // overdue-by before peers are recruited
	ShameBatchSize   int
	ShameBatchDelay  time.Duration

	// Scheduler settings
	Timezone      string // working-hours window is computed here
	SyncSchedule  string // cron spec for the sync tick
	SweepSchedule string // cron spec for the daily escalation sweep
	WorkdayStart  int    // hour, inclusive
	WorkdayEnd    int    // hour, exclusive
	SheetsPerTick int    // bounded prefix of the sync queue per tick

	// Verbose mode for debugging
	Verbose bool
}

// Load loads configuration from environment and defaults
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:     defaultDatabasePath(),
		CredentialsFile:  "credentials.json",
		TokenFile:        "token.json",
		DirectoryTTL:     10 * time.Minute,
		ReminderInterval: 24 * time.Hour,
		ReportInterval:   24 * time.Hour,
		StartSkew:        10 * time.Minute,
		OverdueThreshold: 48 * time.Hour,
		ShameBatchSize:   5,
		ShameBatchDelay:  2 * time.Second,
		Timezone:         "Australia/Melbourne",
		SyncSchedule:     "*/30 * * * *",
		SweepSchedule:    "0 9 * * *",
		WorkdayStart:     9,
		WorkdayEnd:       18,
		SheetsPerTick:    1,
	}

	// Environment overrides
	if v := os.Getenv("MUSTER_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("MUSTER_CREDENTIALS_FILE"); v != "" {
		cfg.CredentialsFile = v
	}
	if v := os.Getenv("MUSTER_TOKEN_FILE"); v != "" {
		cfg.TokenFile = v
	}
	if v := os.Getenv("MUSTER_BOT_BASE_URL"); v != "" {
		cfg.BotBaseURL = v
	}
	if v := os.Getenv("MUSTER_BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("MUSTER_DIRECTORY_TTL"); v != "" {
		cfg.DirectoryTTL = parseDurationOrDefault(v, 10*time.Minute)
	}
	if v := os.Getenv("MUSTER_DIRECTORY_DOMAIN"); v != "" {
		cfg.DirectoryDomain = v
	}
	if v := os.Getenv("MUSTER_REMINDER_INTERVAL"); v != "" {
		cfg.ReminderInterval = parseDurationOrDefault(v, 24*time.Hour)
	}
	if v := os.Getenv("MUSTER_REPORT_INTERVAL"); v != "" {
		cfg.ReportInterval = parseDurationOrDefault(v, 24*time.Hour)
	}
	if v := os.Getenv("MUSTER_START_SKEW"); v != "" {
		cfg.StartSkew = parseDurationOrDefault(v, 10*time.Minute)
	}
	if v := os.Getenv("MUSTER_OVERDUE_THRESHOLD"); v != "" {
		cfg.OverdueThreshold = parseDurationOrDefault(v, 48*time.Hour)
	}
	if v := os.Getenv("MUSTER_SHAME_BATCH_SIZE"); v != "" {
		cfg.ShameBatchSize = parseIntOrDefault(v, 5)
	}
	if v := os.Getenv("MUSTER_SHAME_BATCH_DELAY"); v != "" {
		cfg.ShameBatchDelay = parseDurationOrDefault(v, 2*time.Second)
	}
	if v := os.Getenv("MUSTER_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("MUSTER_SYNC_SCHEDULE"); v != "" {
		cfg.SyncSchedule = v
	}
	if v := os.Getenv("MUSTER_SWEEP_SCHEDULE"); v != "" {
		cfg.SweepSchedule = v
	}
	if v := os.Getenv("MUSTER_WORKDAY_START"); v != "" {
		cfg.WorkdayStart = parseIntOrDefault(v, 9)
	}
	if v := os.Getenv("MUSTER_WORKDAY_END"); v != "" {
		cfg.WorkdayEnd = parseIntOrDefault(v, 18)
	}
	if v := os.Getenv("MUSTER_SHEETS_PER_TICK"); v != "" {
		cfg.SheetsPerTick = parseIntOrDefault(v, 1)
	}
	if v := os.Getenv("MUSTER_VERBOSE"); v != "" {
		cfg.Verbose = v == "true" || v == "1"
	}

	if cfg.WorkdayStart < 0 || cfg.WorkdayEnd > 24 || cfg.WorkdayStart >= cfg.WorkdayEnd {
		return nil, fmt.Errorf("invalid workday window %d-%d", cfg.WorkdayStart, cfg.WorkdayEnd)
	}
	if cfg.SheetsPerTick < 1 {
		cfg.SheetsPerTick = 1
	}

	return cfg, nil
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// defaultDatabasePath returns SQLite in the project directory
func defaultDatabasePath() string {
	dir, err := os.Getwd()
	if err != nil {
		return filepath.Join(".muster", "muster.db")
	}
	return filepath.Join(dir, ".muster", "muster.db")
}

func parseIntOrDefault(s string, def int) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return def
	}
	return i
}

func parseDurationOrDefault(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
