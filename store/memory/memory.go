// Package memory provides an in-memory timeoff.Store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store keeps every table in maps. WithTx holds a single lock for the whole
// unit of work, so units of work are serialized, and restores a snapshot when
// fn fails.
type Store struct {
	mu       sync.Mutex
	users    map[string]timeoff.User
	balances map[balanceKey]timeoff.Balance
	requests map[string]timeoff.Request
	overtime map[string]timeoff.OvertimeRequest

	auditMu sync.RWMutex
	audit   []generic.AuditEntry

	// FailAudit makes AppendAudit fail; used to exercise best-effort auditing.
	FailAudit error
}

type balanceKey struct {
	UserID string
	Year   int
	Type   timeoff.LeaveType
}

var _ timeoff.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]timeoff.User),
		balances: make(map[balanceKey]timeoff.Balance),
		requests: make(map[string]timeoff.Request),
		overtime: make(map[string]timeoff.OvertimeRequest),
	}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (s *Store) WithTx(ctx context.Context, fn func(timeoff.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.snapshot()
	if err := fn(&tx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	users    map[string]timeoff.User
	balances map[balanceKey]timeoff.Balance
	requests map[string]timeoff.Request
	overtime map[string]timeoff.OvertimeRequest
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		users:    cloneMap(s.users),
		balances: cloneMap(s.balances),
		requests: cloneMap(s.requests),
		overtime: cloneMap(s.overtime),
	}
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.balances = snap.balances
	s.requests = snap.requests
	s.overtime = snap.overtime
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) CreateUser(_ context.Context, u timeoff.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return generic.NewValidationError(generic.CodeInvalidInput, "user "+u.ID+" already exists")
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return &generic.NotFoundError{Entity: "user", ID: id}
	}
	delete(s.users, id)
	for k := range s.balances {
		if k.UserID == id {
			delete(s.balances, k)
		}
	}
	for k, r := range s.requests {
		if r.UserID == id {
			delete(s.requests, k)
		}
	}
	for k, o := range s.overtime {
		if o.UserID == id {
			delete(s.overtime, k)
		}
	}
	return nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (s *Store) AppendAudit(_ context.Context, e generic.AuditEntry) error {
	if s.FailAudit != nil {
		return s.FailAudit
	}
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

func (s *Store) QueryAudit(_ context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.auditMu.RLock()
	defer s.auditMu.RUnlock()

	var out []generic.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		if f.Matches(s.audit[i]) {
			out = append(out, s.audit[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONAL VIEW - valid only inside WithTx
// =============================================================================

type tx struct {
	s *Store
}

func (t *tx) CreateRequest(_ context.Context, r timeoff.Request) error {
	if _, ok := t.s.users[r.UserID]; !ok {
		return &generic.NotFoundError{Entity: "user", ID: r.UserID}
	}
	t.s.requests[r.ID] = r
	return nil
}

func (t *tx) FindRequestByID(_ context.Context, id string) (*timeoff.Request, error) {
	r, ok := t.s.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *tx) UpdateRequestStatus(_ context.Context, r timeoff.Request) error {
	cur, ok := t.s.requests[r.ID]
	if !ok {
		return &generic.NotFoundError{Entity: "request", ID: r.ID}
	}
	cur.Status = r.Status
	cur.Reason = r.Reason
	cur.UpdatedAt = r.UpdatedAt
	t.s.requests[r.ID] = cur
	return nil
}

func (t *tx) DeleteRequest(_ context.Context, id string) error {
	if _, ok := t.s.requests[id]; !ok {
		return &generic.NotFoundError{Entity: "request", ID: id}
	}
	delete(t.s.requests, id)
	return nil
}

func (t *tx) ListRequests(_ context.Context, f timeoff.RequestFilter) ([]timeoff.Request, error) {
	var out []timeoff.Request
	for _, r := range t.s.requests {
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Year != 0 && r.StartDate.Year() != f.Year {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) CountRequestsInYear(_ context.Context, userID string, year int) (int, error) {
	n := 0
	for _, r := range t.s.requests {
		if r.UserID == userID && r.StartDate.Year() == year {
			n++
		}
	}
	return n, nil
}

func (t *tx) FindOverlappingApprovedRequests(_ context.Context, userID string, p generic.Period) ([]timeoff.Request, error) {
	var out []timeoff.Request
	for _, r := range t.s.requests {
		if r.UserID == userID && r.Status == timeoff.StatusApproved && r.Period().Overlaps(p) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (t *tx) FindActiveDuplicate(_ context.Context, userID string, lt timeoff.LeaveType, p generic.Period) (*timeoff.Request, error) {
	for _, r := range t.s.requests {
		if r.UserID != userID || r.Type != lt {
			continue
		}
		if r.Status != timeoff.StatusPending && r.Status != timeoff.StatusApproved {
			continue
		}
		if r.StartDate.Equal(p.Start) && r.EndDate.Equal(p.End) {
			return &r, nil
		}
	}
	return nil, nil
}

func (t *tx) FindBalance(_ context.Context, userID string, year int, lt timeoff.LeaveType) (*timeoff.Balance, error) {
	b, ok := t.s.balances[balanceKey{userID, year, lt}]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (t *tx) UpsertBalance(_ context.Context, b *timeoff.Balance) error {
	k := balanceKey{b.UserID, b.Year, b.Type}
	cur, ok := t.s.balances[k]
	switch {
	case b.Version == 0 && ok:
		return generic.ErrConcurrentModification
	case b.Version != 0 && (!ok || cur.Version != b.Version):
		return generic.ErrConcurrentModification
	}
	b.Version++
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	t.s.balances[k] = *b
	return nil
}

func (t *tx) CreateOvertime(_ context.Context, o timeoff.OvertimeRequest) error {
	if _, ok := t.s.users[o.UserID]; !ok {
		return &generic.NotFoundError{Entity: "user", ID: o.UserID}
	}
	t.s.overtime[o.ID] = o
	return nil
}

func (t *tx) FindOvertimeByID(_ context.Context, id string) (*timeoff.OvertimeRequest, error) {
	o, ok := t.s.overtime[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (t *tx) UpdateOvertimeStatus(_ context.Context, o timeoff.OvertimeRequest) error {
	cur, ok := t.s.overtime[o.ID]
	if !ok {
		return &generic.NotFoundError{Entity: "overtime request", ID: o.ID}
	}
	cur.Status = o.Status
	cur.Notes = o.Notes
	cur.UpdatedAt = o.UpdatedAt
	t.s.overtime[o.ID] = cur
	return nil
}

func (t *tx) ListOvertime(_ context.Context, f timeoff.OvertimeFilter) ([]timeoff.OvertimeRequest, error) {
	var out []timeoff.OvertimeRequest
	for _, o := range t.s.overtime {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Year != 0 && o.Year != f.Year {
			continue
		}
		if f.Month != 0 && o.Month != f.Month {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) FindUser(_ context.Context, id string) (*timeoff.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (t *tx) ListUsersByRole(_ context.Context, role timeoff.Role) ([]timeoff.User, error) {
	var out []timeoff.User
	for _, u := range t.s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
