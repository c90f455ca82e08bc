package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config represents the core termsync configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" toml:"database"`
	Feed      FeedConfig      `mapstructure:"feed" toml:"feed"`
	Import    ImportConfig    `mapstructure:"import" toml:"import"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" toml:"scheduler"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// FeedConfig configures the remote feed client
type FeedConfig struct {
	TimeoutSeconds        int `mapstructure:"timeout_seconds" toml:"timeout_seconds"`                   // Per-request HTTP timeout (default: 300)
	VersionCallsPerMinute int `mapstructure:"version_calls_per_minute" toml:"version_calls_per_minute"` // Rate limit for release-version queries (default: 30)
}

// ImportConfig configures local archive intake
type ImportConfig struct {
	IntakeDir    string `mapstructure:"intake_dir" toml:"intake_dir"`       // Directory scanned for dropped .zip/.json archives
	ProcessedDir string `mapstructure:"processed_dir" toml:"processed_dir"` // Consumed archives are moved here
}

// SchedulerConfig configures the periodic import trigger
type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled" toml:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes" toml:"interval_minutes"` // How often to run a subscription import (default: 1440)
}

// FeedTimeout returns the configured HTTP timeout as a duration.
func (c *Config) FeedTimeout() time.Duration {
	if c.Feed.TimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Feed.TimeoutSeconds) * time.Second
}

// SchedulerInterval returns the configured scheduler interval as a duration.
func (c *Config) SchedulerInterval() time.Duration {
	if c.Scheduler.IntervalMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Scheduler.IntervalMinutes) * time.Minute
}

// DataDir returns the termsync data directory (~/.termsync), creating it if needed.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".termsync"
	}
	dir := filepath.Join(home, ".termsync")
	os.MkdirAll(dir, 0755)
	return dir
}

// DefaultConfigPath returns the path of the termsync config file.
func DefaultConfigPath() string {
	return filepath.Join(DataDir(), "termsync.toml")
}
