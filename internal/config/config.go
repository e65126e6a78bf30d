// Package config loads veriport configuration from the project TOML file
// and environment variables. Precedence (lowest to highest): built-in
// defaults, veriport.toml, VERIPORT_* environment variables; command line
// flags are applied on top by the CLI layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"veriport.toml", "vp.toml"}

// Config holds all configuration for the migration tool
type Config struct {
	Source  Endpoint      `toml:"source"`
	Target  Endpoint      `toml:"target"`
	Migrate MigrateConfig `toml:"migrate"`
	Journal JournalConfig `toml:"journal"`
	Logging LoggingConfig `toml:"logging"`
}

// Endpoint identifies one block explorer API
type Endpoint struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// MigrateConfig holds migration pipeline settings
type MigrateConfig struct {
	// Concurrency caps in-flight migrations; 0 runs every address at once
	Concurrency int `toml:"concurrency"`
	// PollAttempts is the total status poll budget per contract
	PollAttempts uint `toml:"poll_attempts"`
	// PollIntervalSeconds is the fixed wait between polls
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// QualifyContractName submits "<Name>.sol:<Name>" instead of the bare name
	QualifyContractName bool `toml:"qualify_contract_name"`
	// SkipMigrated consults the journal and skips addresses already
	// migrated to the same target
	SkipMigrated bool `toml:"skip_migrated"`
	// RequestsPerSecond rate-limits each explorer client
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// JournalConfig holds migration journal settings
type JournalConfig struct {
	// Path of the sqlite journal; empty means ~/.veriport/journal.db
	Path string `toml:"path"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// Load reads configuration. path selects an explicit TOML file; when empty
// the project config files are searched in the current directory and a
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	file, explicit := path, path != ""
	if !explicit {
		for _, candidate := range projectConfigFiles {
			if _, err := os.Stat(candidate); err == nil {
				file = candidate
				break
			}
		}
	}

	if file != "" {
		if _, err := toml.DecodeFile(file, cfg); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("loading config %s: %w", file, err)
			}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Migrate: MigrateConfig{
			PollAttempts:        10,
			PollIntervalSeconds: 10,
			QualifyContractName: true,
			RequestsPerSecond:   5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Source.URL = getEnv("VERIPORT_SOURCE_URL", cfg.Source.URL)
	cfg.Source.APIKey = getEnv("VERIPORT_SOURCE_API_KEY", cfg.Source.APIKey)
	cfg.Target.URL = getEnv("VERIPORT_TARGET_URL", cfg.Target.URL)
	cfg.Target.APIKey = getEnv("VERIPORT_TARGET_API_KEY", cfg.Target.APIKey)
	cfg.Migrate.Concurrency = getEnvInt("VERIPORT_CONCURRENCY", cfg.Migrate.Concurrency)
	cfg.Journal.Path = getEnv("VERIPORT_JOURNAL_PATH", cfg.Journal.Path)
	cfg.Logging.Level = getEnv("VERIPORT_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("VERIPORT_LOG_FORMAT", cfg.Logging.Format)
}

// JournalPath resolves the journal location, defaulting to the user's
// veriport directory
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "veriport-journal.db"
	}
	return filepath.Join(home, ".veriport", "journal.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
