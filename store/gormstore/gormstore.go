/*
Package gormstore provides an ORM-backed implementation of timeoff.Store.

PURPOSE:

	Relational store for deployments that run on PostgreSQL (or SQLite through
	the same ORM). Unlike store/sqlite it keeps balances AGGREGATED: one row per
	(user_id, year) with a total/used column pair per leave type. The adapter
	normalizes that row into per-type timeoff.Balance values, so the engine
	never sees the difference.

KEY TABLES:

	users:             Identity + role
	leave_balances:    One row per (user, year); NULL total = type not initialized
	time_off_requests: Time-off requests with cached working_days
	overtime_requests: Overtime entries
	audit_logs:        Append-only audit trail (details as JSON text)

CONCURRENCY:

	WithTx holds a process mutex for the whole unit of work. On PostgreSQL the
	balance and request reads inside a unit of work also take row locks
	(SELECT ... FOR UPDATE), so two processes sharing the database serialize on
	the same rows. Balance writes check the row version; a mismatch returns
	generic.ErrConcurrentModification. The version is shared by the four leave
	types of a row.

CASCADE:

	DeleteUser removes balances, requests and overtime in the same transaction
	as the user row. Audit entries are kept.

USAGE:

	store, err := gormstore.Open(gormstore.DriverPostgres, dsn, logger)
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

SEE ALSO:
  - timeoff/store.go: Interface definitions
  - store/sqlite: database/sql implementation with per-type balance rows
*/
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store implements timeoff.Store on top of gorm.
type Store struct {
	db     *gorm.DB
	mu     sync.Mutex
	locks  bool
	logger logrus.FieldLogger
}

var _ timeoff.Store = (*Store)(nil)

// Open connects with the given driver and migrates the schema.
// For DriverSQLite the dsn is a file path or ":memory:".
func Open(driver, dsn string, logger logrus.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown gorm driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database instance: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return New(db, driver == DriverPostgres, logger)
}

// New wraps an open gorm connection. rowLocks enables SELECT ... FOR UPDATE
// and should only be set for dialects that support it.
func New(db *gorm.DB, rowLocks bool, logger logrus.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := db.AutoMigrate(&userModel{}, &balanceRow{}, &requestModel{}, &overtimeModel{}, &auditModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db, locks: rowLocks, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx timeoff.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&txStore{db: db, locks: s.locks})
	})
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u timeoff.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).Create(&userModel{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return generic.NewValidationError(generic.CodeInvalidInput, "user "+u.ID+" already exists")
	}
	return err
}

// DeleteUser removes the user and everything they own except audit entries.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		res := db.Where("id = ?", id).Delete(&userModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &generic.NotFoundError{Entity: "user", ID: id}
		}
		for _, model := range []any{&balanceRow{}, &requestModel{}, &overtimeModel{}} {
			if err := db.Where("user_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		s.logger.WithField("user_id", id).Debug("user deleted with balances and requests")
		return nil
	})
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	m, err := newAuditModel(e)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// QueryAudit returns matching entries, newest first.
func (s *Store) QueryAudit(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	q := s.db.WithContext(ctx).Model(&auditModel{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", string(f.EntityType))
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", f.To.UTC())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []auditModel
	if err := q.Order("created_at DESC").Order("seq DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]generic.AuditEntry, 0, len(rows))
	for _, m := range rows {
		e, err := m.toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode audit details %s: %w", m.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
