/*
Package config loads server configuration.

PURPOSE:

	Collects every setting from three layers, later layers winning:
	  1. .env file in the working directory (optional)
	  2. Environment variables
	  3. Command-line flags (-port, -db, -driver, -env-file)

ENVIRONMENT:

	PORT              HTTP port (default 8080)
	STORE_DRIVER      sqlite | gorm (default sqlite)
	DATABASE_PATH     SQLite file, ":memory:" allowed (default leave.db)
	DATABASE_URL      PostgreSQL DSN for the gorm driver; empty = gorm over DATABASE_PATH
	JWT_SECRET        HMAC secret for bearer tokens
	APP_ENV           development | production
	RULES_FILE        JSON rule-set (see factory package)
	HOLIDAY_MODE      reference | rules
	EMAIL_ENABLED     send notification mail
	EMAIL_FROM, SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASSWORD, SMTP_USE_TLS
	LOG_LEVEL         logrus level (default info)
	LOG_FORMAT        text | json
	STORE_TIMEOUT     per unit-of-work timeout, e.g. 5s (0 = none)

SEE ALSO:
  - cmd/server/main.go: Consumer
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite = "sqlite"
	DriverGorm   = "gorm"
)

type Config struct {
	Port         int
	StoreDriver  string
	DatabasePath string
	DatabaseURL  string
	JWTSecret    string
	Environment  string
	RulesFile    string
	HolidayMode  string
	EmailEnabled bool
	EmailFrom    string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPUseTLS   bool
	LogLevel     string
	LogFormat    string
	StoreTimeout time.Duration
}

// Load reads the .env file, the environment and then args (usually
// os.Args[1:]).
func Load(args []string) (Config, error) {
	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	port := flags.Int("port", 0, "HTTP server port")
	dbPath := flags.String("db", "", "SQLite database path (\":memory:\" for in-memory)")
	driver := flags.String("driver", "", "store driver: sqlite or gorm")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadDotenv(*envFile); err != nil {
		return Config{}, err
	}

	cfg := FromEnv()
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *driver != "" {
		cfg.StoreDriver = *driver
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults only.
func FromEnv() Config {
	return Config{
		Port:         getEnvInt("PORT", 8080),
		StoreDriver:  getEnv("STORE_DRIVER", DriverSQLite),
		DatabasePath: getEnv("DATABASE_PATH", "leave.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		Environment:  getEnv("APP_ENV", "development"),
		RulesFile:    getEnv("RULES_FILE", ""),
		HolidayMode:  getEnv("HOLIDAY_MODE", "reference"),
		EmailEnabled: getEnvBool("EMAIL_ENABLED", false),
		EmailFrom:    getEnv("EMAIL_FROM", "no-reply@example.com"),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:   getEnvBool("SMTP_USE_TLS", true),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 0),
	}
}

// loadDotenv loads path if it exists. Variables already set in the
// environment are not overridden.
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.StoreDriver {
	case DriverSQLite, DriverGorm:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverGorm, c.StoreDriver)
	}
	if c.DatabaseURL == "" && strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.DatabaseURL != "" && c.StoreDriver != DriverGorm {
		return fmt.Errorf("DATABASE_URL requires STORE_DRIVER=%s", DriverGorm)
	}
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	switch c.HolidayMode {
	case "reference", "rules":
	default:
		return fmt.Errorf("HOLIDAY_MODE must be reference or rules, got %q", c.HolidayMode)
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.StoreTimeout < 0 {
		return fmt.Errorf("STORE_TIMEOUT must not be negative")
	}
	return nil
}

// NewLogger builds the root logger from LogLevel and LogFormat.
func (c Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}
