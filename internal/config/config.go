package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Log      LogConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// ImportConfig holds import pipeline behavior.
type ImportConfig struct {
	// CheckBatchDuplicates extends duplicate detection to rows within
	// the same file, not just already-persisted transactions. Off by
	// default: identical rows in one file are individually inserted.
	CheckBatchDuplicates bool `mapstructure:"check_batch_duplicates"`
	// Timezone used when interpreting bare calendar dates from rows.
	Timezone string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// Load reads configuration from file and env. Env var overrides use prefix POCKETSORT_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "pocketsort", "pocketsort.db"))
	v.SetDefault("import.check_batch_duplicates", false)
	v.SetDefault("import.timezone", "UTC")
	v.SetDefault("log.level", "info")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("POCKETSORT_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "pocketsort"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("POCKETSORT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("POCKETSORT_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "pocketsort", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("import.check_batch_duplicates", cfg.Import.CheckBatchDuplicates)
	v.Set("import.timezone", cfg.Import.Timezone)
	v.Set("log.level", cfg.Log.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
