package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks variables that would leak in from the host; viper treats
// empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "SERVER_PORT", "DATA_FILE", "STORAGE_DRIVER", "BACKUP_DIR",
		"LOG_LEVEL", "LOG_FORMAT", "ENABLE_METRICS", "METRICS_PORT",
		"RATE_LIMIT_REQUESTS", "STATIC_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.GetAddr())
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, StorageDriverFile, cfg.Storage.Driver)
	assert.Equal(t, "data.json", cfg.Storage.DataFile)
	assert.True(t, cfg.Storage.Seed)
	assert.True(t, cfg.Storage.QuarantineCorrupt)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "*", cfg.Security.CORSAllowedOrigins)
	assert.Equal(t, 100, cfg.Security.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.Security.RateLimitWindow)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Metrics.SeparateListener(cfg.Server.Port))
	assert.True(t, cfg.App.IsDevelopment())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("DATA_FILE", "/var/lib/habits/habits.json")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("METRICS_PORT", "9090")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "/var/lib/habits/habits.json", cfg.Storage.DataFile)
	assert.Equal(t, "/var/lib/habits", cfg.Storage.GetBackupDir())
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 30*time.Second, cfg.Security.RateLimitWindow)
	assert.True(t, cfg.Metrics.SeparateListener(cfg.Server.Port))
}

func TestLoadServerPortFallsBackToServerPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "4000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "habitkeeper.yaml")
	content := `
server:
  port: 5050
  static_dir: ./public
storage:
  data_file: /tmp/habits/data.json
  backup_dir: /tmp/habits/backups
  seed: false
logger:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, "./public", cfg.Server.StaticDir)
	assert.Equal(t, "/tmp/habits/backups", cfg.Storage.GetBackupDir())
	assert.False(t, cfg.Storage.Seed)
	assert.Equal(t, "debug", cfg.Logger.Level)

	t.Setenv("PORT", "6060")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port, "environment wins over the config file")
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"port zero":         func(c *Config) { c.Server.Port = 0 },
		"port too high":     func(c *Config) { c.Server.Port = 70000 },
		"negative metrics":  func(c *Config) { c.Metrics.Port = -1 },
		"unknown driver":    func(c *Config) { c.Storage.Driver = "s3" },
		"empty data file":   func(c *Config) { c.Storage.DataFile = "  " },
		"negative rate cap": func(c *Config) { c.Security.RateLimitRequests = -5 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}

	t.Run("memory driver without data file", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage.Driver = StorageDriverMemory
		cfg.Storage.DataFile = ""
		assert.NoError(t, validateConfig(cfg))
	})
}

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 3000},
		Storage: StorageConfig{Driver: StorageDriverFile, DataFile: "data.json"},
	}
}
