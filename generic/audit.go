package generic

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Separate from balances, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

type AuditEntityType string

const (
	AuditEntityRequest  AuditEntityType = "REQUEST"
	AuditEntityBalance  AuditEntityType = "BALANCE"
	AuditEntityOvertime AuditEntityType = "OVERTIME"
	AuditEntityUser     AuditEntityType = "USER"
)

// AuditEntry records who did what when. Details is an opaque key-value payload
// (previous/new values, reasons, dates).
type AuditEntry struct {
	ID         string
	UserID     string // actor
	Action     AuditAction
	EntityType AuditEntityType
	EntityID   string
	Details    map[string]any
	CreatedAt  time.Time
}

// AuditFilter narrows AuditLog.QueryAudit. Zero fields match everything.
type AuditFilter struct {
	UserID     string
	EntityType AuditEntityType
	EntityID   string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// Matches applies the filter in memory.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// AuditLog stores audit entries. Append-only: there is no update or delete.
// QueryAudit returns entries newest-first.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}
