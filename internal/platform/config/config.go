// Package config loads application configuration from environment variables.
// All variables use the PIM_ prefix.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Storage     StorageConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Progress    ProgressConfig
	Log         LogConfig
	CatalogPath string
}

// StorageConfig selects where learners and credentials are kept.
type StorageConfig struct {
	Backend string // "file" or "postgres"
	DataDir string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
	Migrate  bool // apply schema migrations at startup
}

// CacheConfig holds Redis settings. An empty URL disables the session lock.
type CacheConfig struct {
	URL    string
	Prefix string
	// SessionLockTTL bounds how long a crashed session keeps its user
	// locked. A live session extends the lock, so it may run longer.
	SessionLockTTL time.Duration
}

// ProgressConfig tunes how grading results are committed.
type ProgressConfig struct {
	SaveAttempts int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string // "json", "text" or "color"
	File   string // empty logs to stderr
}

// Load reads configuration from environment variables with PIM_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			Backend: envStr("PIM_STORAGE_BACKEND", BackendFile),
			DataDir: envStr("PIM_DATA_DIR", "./data"),
		},
		Database: DatabaseConfig{
			URL:      envStr("PIM_DATABASE_URL", ""),
			MaxConns: envInt("PIM_DATABASE_MAX_CONNS", 4),
			MinConns: envInt("PIM_DATABASE_MIN_CONNS", 1),
			Migrate:  envBool("PIM_DATABASE_MIGRATE", true),
		},
		Cache: CacheConfig{
			URL:            envStr("PIM_CACHE_URL", ""),
			Prefix:         envStr("PIM_CACHE_PREFIX", "pim"),
			SessionLockTTL: time.Duration(envInt("PIM_SESSION_LOCK_TTL", 3600)) * time.Second,
		},
		Progress: ProgressConfig{
			SaveAttempts: envInt("PIM_SAVE_ATTEMPTS", 3),
		},
		Log: LogConfig{
			Level:  envStr("PIM_LOG_LEVEL", "info"),
			Format: envStr("PIM_LOG_FORMAT", "json"),
			File:   envStr("PIM_LOG_FILE", "pim.log"),
		},
		CatalogPath: envStr("PIM_CATALOG_PATH", ""),
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = filepath.Join(cfg.Storage.DataDir, "courses.json")
	}

	return cfg, nil
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("PIM_DATA_DIR is required for the file backend")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("PIM_DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("PIM_STORAGE_BACKEND must be 'file' or 'postgres', got %q", c.Storage.Backend)
	}

	switch c.Log.Format {
	case "json", "text", "color":
	default:
		return fmt.Errorf("PIM_LOG_FORMAT must be 'json', 'text' or 'color', got %q", c.Log.Format)
	}

	if c.Progress.SaveAttempts < 1 {
		return fmt.Errorf("PIM_SAVE_ATTEMPTS must be at least 1, got %d", c.Progress.SaveAttempts)
	}
	if c.Cache.URL != "" && c.Cache.SessionLockTTL <= 0 {
		return fmt.Errorf("PIM_SESSION_LOCK_TTL must be positive when PIM_CACHE_URL is set")
	}

	return nil
}

// UsersPath is the learner file of the file backend.
func (c *Config) UsersPath() string {
	return filepath.Join(c.Storage.DataDir, "users.json")
}

// LoginsPath is the credential file of the file backend.
func (c *Config) LoginsPath() string {
	return filepath.Join(c.Storage.DataDir, "logins.json")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
