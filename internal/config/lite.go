// Package config provides configuration management for the assessment servers.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/clinical-assessment-engine/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the definition store and exports

	// Cache settings
	CacheMaxItems int           // Maximum results in the memory cache
	CacheTTL      time.Duration // Result cache TTL

	// Catalog
	Definitions []string // Extra definition globs
	Strict      bool     // Fail start-up on any invalid definition

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".clinical-assessment")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      10 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("ASSESSMENT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("ASSESSMENT_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("ASSESSMENT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("ASSESSMENT_DEFINITIONS"); v != "" {
		cfg.Definitions = splitList(v)
	}
	if v := os.Getenv("ASSESSMENT_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Strict = b
		}
	}

	if v := os.Getenv("ASSESSMENT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ASSESSMENT_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// DefinitionsDBPath returns the path to the SQLite definition store.
func (c *LiteConfig) DefinitionsDBPath() string {
	return filepath.Join(c.DataDir, "definitions.db")
}

// ExportDir returns the directory for exported reports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// Catalog returns the catalog settings: builtins, the configured globs and the SQLite store.
func (c *LiteConfig) Catalog() domain.CatalogConfig {
	return domain.CatalogConfig{
		Definitions: c.Definitions,
		Store:       "sqlite",
		SQLitePath:  c.DefinitionsDBPath(),
		Strict:      c.Strict,
	}
}

// Logging returns the logging settings.
func (c *LiteConfig) Logging() domain.LoggingConfig {
	// stdout carries the MCP protocol.
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
