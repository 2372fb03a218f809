// Package config assembles the server configuration from defaults, an
// optional YAML file and BRIGADE_* environment variables (including a .env
// file). Command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "BRIGADE_"

// MemoryPath as DBPath or JournalDir keeps that state in memory only.
const MemoryPath = ":memory:"

// DataDir is the directory under the user's home holding the default
// database and journal.
const DataDir = ".brigade"

// ServerConfig holds configuration for the brigade server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json

	// DBPath is the SQLite database path (default ~/.brigade/brigade.db,
	// ":memory:" for testing).
	DBPath string `yaml:"db_path"`

	// JournalDir is the badger directory (default ~/.brigade/journal,
	// ":memory:" for testing).
	JournalDir        string        `yaml:"journal_dir"`
	JournalGCInterval time.Duration `yaml:"journal_gc_interval"`
	// JournalRetention is how long committed journal entries are kept.
	JournalRetention time.Duration `yaml:"journal_retention"`

	MenuFile string `yaml:"menu_file"` // Menu used for seeding instead of the built-in one
	SeedMenu bool   `yaml:"seed_menu"` // Seed every new workspace with the menu
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":8080",
		LogLevel:          "info",
		LogFormat:         "text",
		JournalGCInterval: 5 * time.Minute,
		JournalRetention:  time.Hour,
	}
}

// ResolvePaths fills an empty DBPath or JournalDir with its default
// location under home.
func (c *ServerConfig) ResolvePaths(home string) {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(home, DataDir, "brigade.db")
	}
	if c.JournalDir == "" {
		c.JournalDir = filepath.Join(home, DataDir, "journal")
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// non-empty) and then with the environment. A .env file in the working
// directory is read when present.
func Load(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return cfg, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MergeFile overlays the YAML document at path. Keys missing from the file
// keep their current values.
func (c *ServerConfig) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays BRIGADE_* variables obtained through lookup.
func (c *ServerConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("ADDR", &c.Addr)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("DB_PATH", &c.DBPath)
	str("JOURNAL_DIR", &c.JournalDir)
	str("MENU_FILE", &c.MenuFile)

	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
		return nil
	}
	if err := dur("JOURNAL_GC_INTERVAL", &c.JournalGCInterval); err != nil {
		return err
	}
	if err := dur("JOURNAL_RETENTION", &c.JournalRetention); err != nil {
		return err
	}
	if v, ok := lookup(EnvPrefix + "SEED_MENU"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSEED_MENU: %w", EnvPrefix, err)
		}
		c.SeedMenu = b
	}
	return nil
}

// Validate reports settings the server cannot start with.
func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.JournalGCInterval <= 0 {
		return fmt.Errorf("journal_gc_interval must be positive, got %s", c.JournalGCInterval)
	}
	if c.JournalRetention <= 0 {
		return fmt.Errorf("journal_retention must be positive, got %s", c.JournalRetention)
	}
	return nil
}
