package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Empty(t, cfg.Definitions)
	assert.False(t, cfg.Strict)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("ASSESSMENT_DATA_DIR", "/tmp/test-assessment")
	t.Setenv("ASSESSMENT_CACHE_MAX_ITEMS", "500")
	t.Setenv("ASSESSMENT_CACHE_TTL", "1h")
	t.Setenv("ASSESSMENT_DEFINITIONS", "/etc/a/*.yaml, /srv/b/**/*.yaml")
	t.Setenv("ASSESSMENT_STRICT", "true")
	t.Setenv("ASSESSMENT_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-assessment", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, []string{"/etc/a/*.yaml", "/srv/b/**/*.yaml"}, cfg.Definitions)
	assert.True(t, cfg.Strict)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_IgnoresInvalidValues(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("ASSESSMENT_CACHE_MAX_ITEMS", "-3")
	t.Setenv("ASSESSMENT_CACHE_TTL", "soon")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.clinical-assessment"}

	assert.Equal(t, "/home/user/.clinical-assessment/definitions.db", cfg.DefinitionsDBPath())
	assert.Equal(t, "/home/user/.clinical-assessment/exports", cfg.ExportDir())

	catalog := cfg.Catalog()
	assert.Equal(t, "sqlite", catalog.Store)
	assert.Equal(t, cfg.DefinitionsDBPath(), catalog.SQLitePath)
	assert.Equal(t, "stderr", cfg.Logging().Output)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "assessment")}

	err := cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"ASSESSMENT_DATA_DIR",
		"ASSESSMENT_CACHE_MAX_ITEMS",
		"ASSESSMENT_CACHE_TTL",
		"ASSESSMENT_DEFINITIONS",
		"ASSESSMENT_STRICT",
		"ASSESSMENT_LOG_LEVEL",
		"ASSESSMENT_LOG_FORMAT",
	}
	for _, v := range vars {
		// t.Setenv restores the previous value once the test ends.
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
