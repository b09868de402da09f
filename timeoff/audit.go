/*
audit.go - Best-effort audit trail and the unit-of-work runner

PURPOSE:

	Every create/update/delete performed by the engine leaves an audit entry
	with a before/after payload. Auditing is an observation side-channel:
	a failing audit write is logged and dropped, it never fails or rolls back
	the operation that produced it.

HOW ENTRIES ARE WRITTEN:

	Operations record entries into their unit of work while the transaction
	runs. The runner flushes them through AuditTrail.Log only after the
	transaction commits, so a rolled-back approval leaves no entries behind and
	a broken audit table cannot abort a commit.

RETRIES:

	A unit of work that fails with generic.ErrConcurrentModification (optimistic
	version conflict on a balance row) is re-run from scratch, up to
	maxAttempts times. Recorded entries are discarded between attempts.

SEE ALSO:
  - generic/audit.go: AuditEntry, AuditFilter, AuditLog
*/
package timeoff

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-ledger/generic"
)

const maxAttempts = 3

// =============================================================================
// AUDIT TRAIL
// =============================================================================

type AuditTrail struct {
	Log    generic.AuditLog
	Logger logrus.FieldLogger
	Clock  func() time.Time
}

func NewAuditTrail(log generic.AuditLog, logger logrus.FieldLogger) *AuditTrail {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuditTrail{Log: log, Logger: logger, Clock: time.Now}
}

// Record appends one entry, swallowing storage errors.
func (t *AuditTrail) Record(ctx context.Context, userID string, action generic.AuditAction, entityType generic.AuditEntityType, entityID string, details map[string]any) {
	t.write(ctx, generic.AuditEntry{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	})
}

func (t *AuditTrail) write(ctx context.Context, entry generic.AuditEntry) {
	if t == nil || t.Log == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.Clock().UTC()
	}
	if err := t.Log.AppendAudit(ctx, entry); err != nil {
		t.Logger.WithFields(logrus.Fields{
			"action":      entry.Action,
			"entity_type": entry.EntityType,
			"entity_id":   entry.EntityID,
			"error":       err,
		}).Warn("audit write failed")
	}
}

// GetLogs returns matching entries, newest first.
func (t *AuditTrail) GetLogs(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	entries, err := t.Log.QueryAudit(ctx, filter)
	if err != nil {
		return nil, generic.WrapStore("query audit", err)
	}
	return entries, nil
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

// work is the state of one transactional attempt.
type work struct {
	tx    Tx
	now   time.Time
	audit []generic.AuditEntry
}

func (w *work) record(actorID string, action generic.AuditAction, entityType generic.AuditEntityType, entityID string, details map[string]any) {
	w.audit = append(w.audit, generic.AuditEntry{
		ID:         uuid.NewString(),
		UserID:     actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  w.now,
	})
}

// runner executes units of work with retry, optional timeout and audit flush.
type runner struct {
	store   Store
	trail   *AuditTrail
	logger  logrus.FieldLogger
	clock   func() time.Time
	timeout time.Duration
}

func (r *runner) run(ctx context.Context, op string, fn func(ctx context.Context, w *work) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		w := &work{now: r.clock().UTC()}
		err = r.store.WithTx(ctx, func(tx Tx) error {
			w.tx = tx
			w.audit = w.audit[:0]
			return fn(ctx, w)
		})
		if err == nil {
			for _, entry := range w.audit {
				r.trail.write(ctx, entry)
			}
			return nil
		}
		if !generic.IsRetryable(err) {
			break
		}
		r.logger.WithFields(logrus.Fields{"op": op, "attempt": attempt}).Debug("retrying after concurrent modification")
	}

	err = generic.WrapStore(op, err)
	var dbErr *generic.DatabaseError
	if errors.As(err, &dbErr) {
		r.logger.WithFields(logrus.Fields{"op": op, "error": dbErr.Detail()}).Error("store operation failed")
	}
	return err
}
