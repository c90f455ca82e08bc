package config

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// SetDefaults applies default values to a Viper instance
func SetDefaults(v *viper.Viper) {
	dataDir := DataDir()

	v.SetDefault("database.path", filepath.Join(dataDir, "termsync.db"))
	v.SetDefault("feed.timeout_seconds", 300)
	v.SetDefault("feed.version_calls_per_minute", 30)
	v.SetDefault("import.intake_dir", filepath.Join(dataDir, "imports"))
	v.SetDefault("import.processed_dir", filepath.Join(dataDir, "imports", "processed"))
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval_minutes", 1440)
}

// Default returns a Config populated with default values only.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults are statically known; unmarshal cannot fail
	_ = v.Unmarshal(&cfg)
	return &cfg
}
