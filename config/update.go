package config

import (
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/termhub/termsync/errors"
)

// settings maps dotted config keys to typed apply functions. Only keys listed
// here can be changed through Update.
var settings = map[string]func(cfg *Config, value string) error{
	"database.path":                 stringSetting(func(cfg *Config, v string) { cfg.Database.Path = v }),
	"feed.timeout_seconds":          intSetting(func(cfg *Config, n int) { cfg.Feed.TimeoutSeconds = n }),
	"feed.version_calls_per_minute": intSetting(func(cfg *Config, n int) { cfg.Feed.VersionCallsPerMinute = n }),
	"import.intake_dir":             stringSetting(func(cfg *Config, v string) { cfg.Import.IntakeDir = v }),
	"import.processed_dir":          stringSetting(func(cfg *Config, v string) { cfg.Import.ProcessedDir = v }),
	"scheduler.enabled":             boolSetting(func(cfg *Config, b bool) { cfg.Scheduler.Enabled = b }),
	"scheduler.interval_minutes":    intSetting(func(cfg *Config, n int) { cfg.Scheduler.IntervalMinutes = n }),
}

// Update loads the default config file, applies one keyed setting, and writes
// the file back with a backup of the previous contents.
func Update(key, value string) error {
	return UpdateAt(DefaultConfigPath(), key, value)
}

// UpdateAt applies one keyed setting to the config file at path. A missing
// file is created from the defaults.
func UpdateAt(path, key, value string) error {
	apply, ok := settings[key]
	if !ok {
		return errors.Newf("unknown config key %q (known keys: %s)", key, strings.Join(SettingKeys(), ", "))
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		cfg = Default()
	}

	if err := apply(cfg, value); err != nil {
		return errors.Wrapf(err, "invalid value for %s", key)
	}
	return SaveTo(cfg, path)
}

// SettingKeys lists the keys Update accepts.
func SettingKeys() []string {
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func stringSetting(set func(*Config, string)) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		set(cfg, value)
		return nil
	}
}

func intSetting(set func(*Config, int)) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Newf("expected an integer, got %q", value)
		}
		set(cfg, n)
		return nil
	}
}

func boolSetting(set func(*Config, bool)) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Newf("expected a boolean, got %q", value)
		}
		set(cfg, b)
		return nil
	}
}
