package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "STORE_DRIVER", "DATABASE_PATH", "DATABASE_URL", "JWT_SECRET", "APP_ENV",
		"RULES_FILE", "HOLIDAY_MODE", "EMAIL_ENABLED", "SMTP_HOST", "LOG_LEVEL", "LOG_FORMAT", "STORE_TIMEOUT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "leave.db", cfg.DatabasePath)
	assert.Equal(t, "reference", cfg.HolidayMode)
	assert.Equal(t, time.Duration(0), cfg.StoreTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FlagsOverrideEnvironmentAndDotenv(t *testing.T) {
	// GIVEN: A .env file and an environment variable
	// WHEN: Flags are also given
	// THEN: Flags win over env, env wins over the file
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DATABASE_PATH=from-file.db\nSTORE_TIMEOUT=3s\nHOLIDAY_MODE=rules\n"), 0o600))
	t.Setenv("STORE_DRIVER", "gorm")
	t.Setenv("HOLIDAY_MODE", "reference")

	cfg, err := Load([]string{"-env-file", envFile, "-port", "9090"})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DriverGorm, cfg.StoreDriver)
	assert.Equal(t, "from-file.db", cfg.DatabasePath)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, "reference", cfg.HolidayMode)

	cfg, err = Load([]string{"-env-file", envFile, "-db", ":memory:", "-driver", "sqlite"})
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.DatabasePath)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
}

func TestLoad_BadFlag(t *testing.T) {
	_, err := Load([]string{"-port", "eighty"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		clearEnv(t)
		return FromEnv()
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, "STORE_DRIVER"},
		{"postgres without gorm", func(c *Config) { c.DatabaseURL = "postgres://localhost/leave" }, "DATABASE_URL"},
		{"production without secret", func(c *Config) { c.Environment = "production" }, "JWT_SECRET"},
		{"email without host", func(c *Config) { c.EmailEnabled = true }, "SMTP_HOST"},
		{"bad holiday mode", func(c *Config) { c.HolidayMode = "lunar" }, "HOLIDAY_MODE"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("postgres with gorm", func(t *testing.T) {
		cfg := valid()
		cfg.StoreDriver = DriverGorm
		cfg.DatabaseURL = "postgres://localhost/leave"
		assert.NoError(t, cfg.Validate())
	})
}

func TestNewLogger(t *testing.T) {
	cfg := Config{LogLevel: "debug", LogFormat: "json"}

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
