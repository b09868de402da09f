/*
Package sqlite provides a SQLite-backed implementation of timeoff.Store.

PURPOSE:

	Embedded single-file store. Keeps balances as PER-TYPE rows keyed by
	(user_id, year, leave_type), which is already the canonical Balance shape.

KEY TABLES:

	users:             Identity + role
	balances:          One row per (user, year, leave type), with a version
	requests:          Time-off requests with cached working_days
	overtime_requests: Overtime entries
	audit_logs:        Append-only audit trail (details as JSON)

CASCADE:

	balances, requests and overtime_requests reference users(id) with
	ON DELETE CASCADE. audit_logs has no foreign key so entries outlive the
	users they mention.

CONCURRENCY:

	WithTx holds a store mutex for the whole unit of work, so writers are
	serialized in-process. On top of that every balance write checks the
	row's version (optimistic locking) and returns
	generic.ErrConcurrentModification on mismatch, which also protects
	against a second process writing the same file.

WAL MODE:

	SQLite is opened with WAL (Write-Ahead Logging) and a busy timeout.
	":memory:" databases are pinned to a single connection because every
	connection would otherwise see its own empty database.

NUMBERS AND DATES:

	Day amounts are stored as decimal TEXT (no float drift). Calendar days
	are stored as YYYY-MM-DD, timestamps as fixed-width UTC text so string
	ordering equals time ordering.

USAGE:

	store, err := sqlite.New("./data/leave.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	engine := timeoff.NewEngine(store, timeoff.Options{})

MIGRATION:

	Schema is auto-migrated on New(). For production, use a proper
	migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - timeoff/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - store/gormstore: ORM implementation with aggregated balance rows
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// timestampLayout is fixed-width so lexical order is chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements timeoff.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ timeoff.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

	-- Per-type balance rows: remaining_days is stored redundantly and must
	-- equal total_days - used_days.
	CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		leave_type TEXT NOT NULL,
		total_days TEXT NOT NULL,
		used_days TEXT NOT NULL,
		remaining_days TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, year, leave_type)
	);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		working_days TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_user_status
		ON requests(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_requests_user_start
		ON requests(user_id, start_date);

	CREATE TABLE IF NOT EXISTS overtime_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		hours TEXT NOT NULL,
		request_date TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_overtime_user_period
		ON overtime_requests(user_id, year, month);

	-- Append-only; no foreign key so entries survive user deletion.
	CREATE TABLE IF NOT EXISTS audit_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		details_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_logs(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_user
		ON audit_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_created
		ON audit_logs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx timeoff.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, u timeoff.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, string(u.Role), formatTimestamp(u.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return generic.NewValidationError(generic.CodeInvalidInput, "user "+u.ID+" already exists")
	}
	return err
}

// DeleteUser removes a user; foreign keys cascade to their rows.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Entity: "user", ID: id}
	}
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AppendAudit appends one entry. Entries are never updated or deleted.
func (s *Store) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.Action), string(e.EntityType), e.EntityID, string(details),
		formatTimestamp(e.CreatedAt),
	)
	return err
}

// QueryAudit returns matching entries, newest first.
func (s *Store) QueryAudit(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(f.EntityType))
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, formatTimestamp(*f.From))
	}
	if f.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, formatTimestamp(*f.To))
	}

	query := `SELECT id, user_id, action, entity_type, entity_id, details_json, created_at FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []generic.AuditEntry
	for rows.Next() {
		var (
			e                          generic.AuditEntry
			action, entityType, detail string
			details                    sql.NullString
			createdAt                  string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &action, &entityType, &e.EntityID, &details, &createdAt); err != nil {
			return nil, err
		}
		e.Action = generic.AuditAction(action)
		e.EntityType = generic.AuditEntityType(entityType)
		detail = details.String
		if detail != "" && detail != "null" {
			if err := json.Unmarshal([]byte(detail), &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details %s: %w", e.ID, err)
			}
		}
		e.CreatedAt = parseTimestamp(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(timestampLayout, s)
	return t
}

func parseDate(s string) generic.TimePoint {
	tp, _ := generic.ParseDate(s)
	return tp
}

func parseAmount(value string, unit generic.Unit) (generic.Amount, error) {
	return generic.ParseAmount(value, unit)
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
