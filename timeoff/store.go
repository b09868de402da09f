/*
store.go - Persistence contract for the consistency engine

PURPOSE:

	Defines the interface between the engine and the database. The engine never
	sees a schema: a store hands back canonical Balance/Request values whatever
	its table layout is (per-type rows or one aggregated row per user and year).

KEY INTERFACES:

	Tx:    Entity operations available inside one atomic unit of work
	Store: Opens units of work (WithTx), appends/queries audit entries and
	       manages users

LOOKUP CONVENTION:

	Find* methods return (nil, nil) when the row is absent. Callers turn that
	into NotFoundError where it matters.

CONCURRENCY CONTRACT:

	WithTx must serialize conflicting units of work on the same balance row
	(user, year, type) and the same request row. Implementations either
	serialize writers (memory, sqlite) or lock rows (postgres). UpsertBalance
	additionally performs an optimistic version check: it persists only when
	the stored version equals Balance.Version, otherwise it returns
	generic.ErrConcurrentModification and the engine retries the unit of work.

IMPLEMENTATIONS:
  - store/memory:    In-memory, snapshot rollback (tests)
  - store/sqlite:    Embedded single-file store, per-type balance rows
  - store/gormstore: ORM-backed relational store, aggregated balance rows

SEE ALSO:
  - ledger.go: Uses FindBalance/UpsertBalance
  - request.go: Uses the request operations
*/
package timeoff

import (
	"context"

	"github.com/warp/leave-ledger/generic"
)

// Tx is the transaction handle. Every call made through a Tx commits or rolls
// back together.
type Tx interface {
	// Requests
	CreateRequest(ctx context.Context, r Request) error
	FindRequestByID(ctx context.Context, id string) (*Request, error)
	UpdateRequestStatus(ctx context.Context, r Request) error
	DeleteRequest(ctx context.Context, id string) error
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)
	CountRequestsInYear(ctx context.Context, userID string, year int) (int, error)
	FindOverlappingApprovedRequests(ctx context.Context, userID string, period generic.Period) ([]Request, error)
	FindActiveDuplicate(ctx context.Context, userID string, leaveType LeaveType, period generic.Period) (*Request, error)

	// Balances
	FindBalance(ctx context.Context, userID string, year int, leaveType LeaveType) (*Balance, error)
	UpsertBalance(ctx context.Context, b *Balance) error

	// Overtime
	CreateOvertime(ctx context.Context, o OvertimeRequest) error
	FindOvertimeByID(ctx context.Context, id string) (*OvertimeRequest, error)
	UpdateOvertimeStatus(ctx context.Context, o OvertimeRequest) error
	ListOvertime(ctx context.Context, filter OvertimeFilter) ([]OvertimeRequest, error)

	// Users
	FindUser(ctx context.Context, id string) (*User, error)
	ListUsersByRole(ctx context.Context, role Role) ([]User, error)
}

// Store opens units of work and hosts the side-channel audit log.
type Store interface {
	generic.AuditLog

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	CreateUser(ctx context.Context, u User) error
	// DeleteUser cascades to the user's balances, requests and overtime.
	// Audit entries are kept.
	DeleteUser(ctx context.Context, id string) error
}
