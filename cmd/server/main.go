/*
main.go - Application entry point

PURPOSE:

	Initializes and starts the leave ledger server.
	Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
 1. Load configuration (.env, environment, flags)
 2. Build the logrus logger
 3. Open the store (database/sql SQLite or gorm over SQLite/PostgreSQL)
 4. Load rules and the holiday calendar
 5. Wire notifiers and the engine
 6. Configure HTTP router
 7. Start server with graceful shutdown

COMMAND-LINE FLAGS:

	-port      HTTP server port (overrides PORT)
	-db        SQLite database path (overrides DATABASE_PATH)
	           Use ":memory:" for in-memory database
	-driver    sqlite | gorm (overrides STORE_DRIVER)
	-env-file  dotenv file (default .env)

GRACEFUL SHUTDOWN:

	On SIGINT/SIGTERM:
	1. Stop accepting new connections
	2. Wait for active requests to complete (30s timeout)
	3. Close database connection
	4. Exit

EXAMPLES:

	# Run with file database
	./server -db="./data/leave.db"

	# Run against PostgreSQL
	STORE_DRIVER=gorm DATABASE_URL="postgres://..." ./server

SEE ALSO:
  - config/config.go: Every setting
  - api/server.go: Router configuration
  - cmd/token: Development tokens
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/notify"
	"github.com/warp/leave-ledger/store/gormstore"
	"github.com/warp/leave-ledger/store/sqlite"
	"github.com/warp/leave-ledger/timeoff"
)

const devSecret = "development-only-secret"

type closableStore interface {
	timeoff.Store
	Close() error
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	// Initialize store
	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	rules := timeoff.DefaultRules()
	if cfg.RulesFile != "" {
		if rules, err = factory.NewRulesFactory().LoadFile(cfg.RulesFile); err != nil {
			return err
		}
		logger.WithField("file", cfg.RulesFile).Info("rules loaded")
	}
	mode, err := timeoff.ParseHolidayMode(cfg.HolidayMode)
	if err != nil {
		return err
	}

	notifiers := notify.Multi{notify.NewLog(logger)}
	if cfg.EmailEnabled {
		notifiers = append(notifiers, notify.NewEmail(notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			UseTLS:   cfg.SMTPUseTLS,
		})))
	}

	engine := timeoff.NewEngine(store, timeoff.Options{
		Rules:        rules,
		Calendar:     timeoff.NewFederalCalendar(mode),
		Notifier:     notifiers,
		Logger:       logger,
		StoreTimeout: cfg.StoreTimeout,
	})

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = devSecret
	}

	// Create router
	router := api.NewRouter(api.NewHandler(engine, logger), api.RouterOptions{JWTSecret: secret})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"port":   cfg.Port,
			"driver": cfg.StoreDriver,
			"env":    cfg.Environment,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(cfg config.Config, logger *logrus.Logger) (closableStore, error) {
	switch {
	case cfg.StoreDriver == config.DriverGorm && cfg.DatabaseURL != "":
		return gormstore.Open(gormstore.DriverPostgres, cfg.DatabaseURL, logger)
	case cfg.StoreDriver == config.DriverGorm:
		return gormstore.Open(gormstore.DriverSQLite, cfg.DatabasePath, logger)
	default:
		return sqlite.New(cfg.DatabasePath)
	}
}
