// Package storetest holds the behavioural contract every timeoff.Store
// implementation must satisfy. Each store package runs it from its own tests:
//
//	func TestStoreContract(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) timeoff.Store { return memory.New() })
//	}
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// Factory opens an empty store. It should register cleanup with t.
type Factory func(t *testing.T) timeoff.Store

var (
	created = time.Date(2025, time.February, 3, 9, 0, 0, 0, time.UTC)

	alice = timeoff.User{ID: "u-alice", Name: "Alice", Email: "alice@example.com", Role: timeoff.RoleEmployee, CreatedAt: created}
	bob   = timeoff.User{ID: "u-bob", Name: "Bob", Email: "bob@example.com", Role: timeoff.RoleAdmin, CreatedAt: created}
)

// Run executes the contract against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("Requests", func(t *testing.T) { testRequests(t, open(t)) })
	t.Run("BalanceVersions", func(t *testing.T) { testBalanceVersions(t, open(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("Overtime", func(t *testing.T) { testOvertime(t, open(t)) })
	t.Run("DeleteUserCascades", func(t *testing.T) { testDeleteUserCascades(t, open(t)) })
	t.Run("AuditNewestFirst", func(t *testing.T) { testAudit(t, open(t)) })
	t.Run("EngineRoundTrip", func(t *testing.T) { testEngineRoundTrip(t, open(t)) })
	t.Run("FractionalAmounts", func(t *testing.T) { testFractionalAmounts(t, open(t)) })
	t.Run("ConcurrentApprovals", func(t *testing.T) { testConcurrentApprovals(t, open(t)) })
}

func seedUsers(t *testing.T, s timeoff.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, alice))
	require.NoError(t, s.CreateUser(ctx, bob))
}

func inTx(t *testing.T, s timeoff.Store, fn func(tx timeoff.Tx)) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(tx timeoff.Tx) error {
		fn(tx)
		return nil
	}))
}

func day(month time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(2025, month, d)
}

func request(id string, start, end generic.TimePoint, status timeoff.RequestStatus) timeoff.Request {
	return timeoff.Request{
		ID:          id,
		UserID:      alice.ID,
		Type:        timeoff.LeaveVacation,
		StartDate:   start,
		EndDate:     end,
		WorkingDays: generic.Days(3),
		Status:      status,
		Reason:      "trip",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// =============================================================================
// CONTRACT
// =============================================================================

func testUsers(t *testing.T, s timeoff.Store) {
	ctx := context.Background()
	seedUsers(t, s)

	err := s.CreateUser(ctx, alice)
	require.Error(t, err)
	assert.Equal(t, generic.CodeInvalidInput, generic.ErrorCode(err))

	inTx(t, s, func(tx timeoff.Tx) {
		u, err := tx.FindUser(ctx, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "alice@example.com", u.Email)
		assert.Equal(t, timeoff.RoleEmployee, u.Role)

		missing, err := tx.FindUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)

		admins, err := tx.ListUsersByRole(ctx, timeoff.RoleAdmin)
		require.NoError(t, err)
		require.Len(t, admins, 1)
		assert.Equal(t, bob.ID, admins[0].ID)
	})
}

func testRequests(t *testing.T, s timeoff.Store) {
	ctx := context.Background()
	seedUsers(t, s)

	inTx(t, s, func(tx timeoff.Tx) {
		require.NoError(t, tx.CreateRequest(ctx, request("r-1", day(time.March, 3), day(time.March, 5), timeoff.StatusApproved)))
		require.NoError(t, tx.CreateRequest(ctx, request("r-2", day(time.April, 7), day(time.April, 9), timeoff.StatusPending)))
		require.NoError(t, tx.CreateRequest(ctx, request("r-3", day(time.May, 5), day(time.May, 6), timeoff.StatusRejected)))
	})

	inTx(t, s, func(tx timeoff.Tx) {
		r, err := tx.FindRequestByID(ctx, "r-1")
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, "2025-03-03", r.StartDate.String())
		assert.True(t, r.WorkingDays.Equal(generic.Days(3)))
		assert.Equal(t, "trip", r.Reason)

		missing, err := tx.FindRequestByID(ctx, "r-x")
		require.NoError(t, err)
		assert.Nil(t, missing)

		// Only APPROVED requests overlap; boundaries are inclusive.
		overlapping, err := tx.FindOverlappingApprovedRequests(ctx, alice.ID, generic.Period{Start: day(time.March, 5), End: day(time.April, 8)})
		require.NoError(t, err)
		require.Len(t, overlapping, 1)
		assert.Equal(t, "r-1", overlapping[0].ID)

		none, err := tx.FindOverlappingApprovedRequests(ctx, alice.ID, generic.Period{Start: day(time.March, 6), End: day(time.March, 31)})
		require.NoError(t, err)
		assert.Empty(t, none)

		// REJECTED requests count toward the yearly cap.
		n, err := tx.CountRequestsInYear(ctx, alice.ID, 2025)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		n, err = tx.CountRequestsInYear(ctx, alice.ID, 2026)
		require.NoError(t, err)
		assert.Zero(t, n)

		dup, err := tx.FindActiveDuplicate(ctx, alice.ID, timeoff.LeaveVacation, generic.Period{Start: day(time.April, 7), End: day(time.April, 9)})
		require.NoError(t, err)
		require.NotNil(t, dup)
		assert.Equal(t, "r-2", dup.ID)

		rejectedDup, err := tx.FindActiveDuplicate(ctx, alice.ID, timeoff.LeaveVacation, generic.Period{Start: day(time.May, 5), End: day(time.May, 6)})
		require.NoError(t, err)
		assert.Nil(t, rejectedDup)

		pending, err := tx.ListRequests(ctx, timeoff.RequestFilter{UserID: alice.ID, Status: timeoff.StatusPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "r-2", pending[0].ID)
	})

	inTx(t, s, func(tx timeoff.Tx) {
		r, err := tx.FindRequestByID(ctx, "r-2")
		require.NoError(t, err)
		r.Status = timeoff.StatusRejected
		r.Reason = "team offsite"
		r.UpdatedAt = created.Add(time.Hour)
		require.NoError(t, tx.UpdateRequestStatus(ctx, *r))

		require.NoError(t, tx.DeleteRequest(ctx, "r-3"))
		assert.True(t, generic.IsNotFound(tx.DeleteRequest(ctx, "r-3")))
	})

	inTx(t, s, func(tx timeoff.Tx) {
		r, err := tx.FindRequestByID(ctx, "r-2")
		require.NoError(t, err)
		assert.Equal(t, timeoff.StatusRejected, r.Status)
		assert.Equal(t, "team offsite", r.Reason)

		all, err := tx.ListRequests(ctx, timeoff.RequestFilter{Year: 2025})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func testBalanceVersions(t *testing.T, s timeoff.Store) {
	ctx := context.Background()
	seedUsers(t, s)

	fresh := func(lt timeoff.LeaveType, total float64) *timeoff.Balance {
		return &timeoff.Balance{
			UserID:    alice.ID,
			Year:      2025,
			Type:      lt,
			Total:     generic.Days(total),
			Used:      generic.Days(0),
			Remaining: generic.Days(total),
			UpdatedAt: created,
		}
	}

	inTx(t, s, func(tx timeoff.Tx) {
		vacation := fresh(timeoff.LeaveVacation, 22)
		require.NoError(t, tx.UpsertBalance(ctx, vacation))
		assert.NotZero(t, vacation.Version)

		// Another type of the same (user, year) initializes independently.
		require.NoError(t, tx.UpsertBalance(ctx, fresh(timeoff.LeaveSick, 8)))

		// A second initialization of the same key is a conflict.
		err := tx.UpsertBalance(ctx, fresh(timeoff.LeaveVacation, 22))
		assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	})

	inTx(t, s, func(tx timeoff.Tx) {
		b, err := tx.FindBalance(ctx, alice.ID, 2025, timeoff.LeaveVacation)
		require.NoError(t, err)
		require.NotNil(t, b)
		assert.True(t, b.Total.Equal(generic.Days(22)))
		assert.True(t, b.Remaining.Equal(generic.Days(22)))

		stale := *b
		b.Used = generic.Days(2.5)
		b.Remaining = b.Total.Sub(b.Used)
		require.NoError(t, tx.UpsertBalance(ctx, b))

		stale.Used = generic.Days(1)
		stale.Remaining = stale.Total.Sub(stale.Used)
		assert.ErrorIs(t, tx.UpsertBalance(ctx, &stale), generic.ErrConcurrentModification)

		missing, err := tx.FindBalance(ctx, alice.ID, 2025, timeoff.LeavePersonal)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	inTx(t, s, func(tx timeoff.Tx) {
		b, err := tx.FindBalance(ctx, alice.ID, 2025, timeoff.LeaveVacation)
		require.NoError(t, err)
		assert.True(t, b.Used.Equal(generic.Days(2.5)))
		assert.True(t, b.Remaining.Equal(generic.Days(19.5)))
		assert.True(t, b.Consistent())

		sick, err := tx.FindBalance(ctx, alice.ID, 2025, timeoff.LeaveSick)
		require.NoError(t, err)
		assert.True(t, sick.Total.Equal(generic.Days(8)))
	})
}

func testRollback(t *testing.T, s timeoff.Store) {
	ctx := context.Background()
	seedUsers(t, s)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx timeoff.Tx) error {
		require.NoError(t, tx.CreateRequest(ctx, request("r-1", day(time.March, 3), day(time.March, 5), timeoff.StatusPending)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	inTx(t, s, func(tx timeoff.Tx) {
		r, err := tx.FindRequestByID(ctx, "r-1")
		require.NoError(t, err)
		assert.Nil(t, r)
	})
}

func testOvertime(t *testing.T, s timeoff.Store) {
	ctx := context.Background()
	seedUsers(t, s)

	o := timeoff.OvertimeRequest{
		ID:          "o-1",
		UserID:      alice.ID,
		Hours:       generic.Hours(20),
		RequestDate: day(time.January, 27),
		Month:       time.January,
		Year:        2025,
		Status:      timeoff.StatusPending,
		Notes:       "release week",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	inTx(t, s, func(tx timeoff.Tx) {
		require.NoError(t, tx.CreateOvertime(ctx, o))
	})

	inTx(t, s, func(tx timeoff.Tx) {
		got, err := tx.FindOvertimeByID(ctx, "o-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Hours.Equal(generic.Hours(20)))
		assert.True(t, got.CreditDays().Equal(generic.Days(2.5)))
		assert.Equal(t, time.January, got.Month)

		got.Status = timeoff.StatusApproved
		require.NoError(t, tx.UpdateOvertimeStatus(ctx, *got))

		list, err := tx.ListOvertime(ctx, timeoff.OvertimeFilter{UserID: alice.ID, Year: 2025, Month: time.January})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, timeoff.StatusApproved, list[0].Status)

		empty, err := tx.ListOvertime(ctx, timeoff.OvertimeFilter{Month: time.February})
		require.NoError(t, err)
		assert.Empty(t, empty)

		missing, err := tx.FindOvertimeByID(ctx, "o-x")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func testDeleteUserCascades(t *testing.T, s timeoff.Store) {
	ctx := context.Background()
	seedUsers(t, s)

	inTx(t, s, func(tx timeoff.Tx) {
		require.NoError(t, tx.CreateRequest(ctx, request("r-1", day(time.March, 3), day(time.March, 5), timeoff.StatusPending)))
		require.NoError(t, tx.UpsertBalance(ctx, &timeoff.Balance{
			UserID: alice.ID, Year: 2025, Type: timeoff.LeaveVacation,
			Total: generic.Days(22), Used: generic.Days(0), Remaining: generic.Days(22), UpdatedAt: created,
		}))
	})
	require.NoError(t, s.AppendAudit(ctx, generic.AuditEntry{
		ID: "a-1", UserID: alice.ID, Action: generic.AuditCreate,
		EntityType: generic.AuditEntityRequest, EntityID: "r-1", CreatedAt: created,
	}))

	require.NoError(t, s.DeleteUser(ctx, alice.ID))
	assert.True(t, generic.IsNotFound(s.DeleteUser(ctx, alice.ID)))

	inTx(t, s, func(tx timeoff.Tx) {
		r, err := tx.FindRequestByID(ctx, "r-1")
		require.NoError(t, err)
		assert.Nil(t, r)
		b, err := tx.FindBalance(ctx, alice.ID, 2025, timeoff.LeaveVacation)
		require.NoError(t, err)
		assert.Nil(t, b)
	})

	entries, err := s.QueryAudit(ctx, generic.AuditFilter{UserID: alice.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func testAudit(t *testing.T, s timeoff.Store) {
	ctx := context.Background()
	for i, id := range []string{"a-1", "a-2", "a-3"} {
		require.NoError(t, s.AppendAudit(ctx, generic.AuditEntry{
			ID:         id,
			UserID:     bob.ID,
			Action:     generic.AuditUpdate,
			EntityType: generic.AuditEntityBalance,
			EntityID:   "u-alice:2025:VACATION",
			Details:    map[string]any{"reason": "adjustment", "step": float64(i)},
			CreatedAt:  created.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.AppendAudit(ctx, generic.AuditEntry{
		ID: "a-4", UserID: alice.ID, Action: generic.AuditCreate,
		EntityType: generic.AuditEntityRequest, EntityID: "r-1", CreatedAt: created,
	}))

	entries, err := s.QueryAudit(ctx, generic.AuditFilter{EntityType: generic.AuditEntityBalance})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a-3", entries[0].ID)
	assert.Equal(t, "a-1", entries[2].ID)
	assert.Equal(t, "adjustment", entries[0].Details["reason"])

	limited, err := s.QueryAudit(ctx, generic.AuditFilter{UserID: bob.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "a-3", limited[0].ID)

	from := created.Add(90 * time.Second)
	windowed, err := s.QueryAudit(ctx, generic.AuditFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "a-3", windowed[0].ID)
}

// testEngineRoundTrip drives the engine end to end: approving deducts the
// cached working days, deleting the approved request restores them.
func testEngineRoundTrip(t *testing.T, s timeoff.Store) {
	ctx := context.Background()
	seedUsers(t, s)

	now := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)
	engine := timeoff.NewEngine(s, timeoff.Options{
		Rules: timeoff.DefaultRules(),
		Clock: func() time.Time { return now },
	})
	employee := timeoff.Actor{UserID: alice.ID, Role: timeoff.RoleEmployee}
	admin := timeoff.Actor{UserID: bob.ID, Role: timeoff.RoleAdmin}

	r, err := engine.Requests.Create(ctx, employee, timeoff.RequestInput{
		UserID:    alice.ID,
		Type:      timeoff.LeaveVacation,
		StartDate: day(time.March, 3),
		EndDate:   day(time.March, 7),
	})
	require.NoError(t, err)
	assert.True(t, r.WorkingDays.Equal(generic.Days(5)))

	_, err = engine.Requests.Approve(ctx, admin, r.ID, 0)
	require.NoError(t, err)

	b, err := engine.Ledger.GetBalance(ctx, alice.ID, 2025, timeoff.LeaveVacation)
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(generic.Days(5)))
	assert.True(t, b.Remaining.Equal(generic.Days(17)))

	require.NoError(t, engine.Requests.Delete(ctx, employee, r.ID, 0))
	b, err = engine.Ledger.GetBalance(ctx, alice.ID, 2025, timeoff.LeaveVacation)
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(generic.Days(0)))
	assert.True(t, b.Remaining.Equal(generic.Days(22)))

	summary, err := engine.Ledger.Summary(ctx, alice.ID, 2025)
	require.NoError(t, err)
	assert.Len(t, summary, len(timeoff.LeaveTypes))

	trail, err := engine.Audit.GetLogs(ctx, generic.AuditFilter{EntityID: r.ID})
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, generic.AuditDelete, trail[0].Action)
}

// testFractionalAmounts stores amounts finer than four decimal places.
// 1.25 overtime hours credit 0.15625 days.
func testFractionalAmounts(t *testing.T, s timeoff.Store) {
	ctx := context.Background()
	seedUsers(t, s)

	credit := generic.Hours(1.25).ToDays()
	require.Equal(t, "0.15625", credit.Value.String())

	inTx(t, s, func(tx timeoff.Tx) {
		require.NoError(t, tx.UpsertBalance(ctx, &timeoff.Balance{
			UserID: alice.ID, Year: 2025, Type: timeoff.LeaveVacation,
			Total: generic.Days(22).Add(credit), Used: credit, Remaining: generic.Days(22), UpdatedAt: created,
		}))
		r := request("r-1", day(time.March, 3), day(time.March, 3), timeoff.StatusPending)
		r.WorkingDays = credit
		require.NoError(t, tx.CreateRequest(ctx, r))
	})

	inTx(t, s, func(tx timeoff.Tx) {
		b, err := tx.FindBalance(ctx, alice.ID, 2025, timeoff.LeaveVacation)
		require.NoError(t, err)
		require.NotNil(t, b)
		assert.Equal(t, "22.15625", b.Total.Value.String())
		assert.Equal(t, "0.15625", b.Used.Value.String())
		assert.True(t, b.Consistent())

		r, err := tx.FindRequestByID(ctx, "r-1")
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.True(t, r.WorkingDays.Equal(credit), "got %s", r.WorkingDays)
	})
}

// testConcurrentApprovals races two approvals that only fit the balance
// one at a time: 8 days available, two 5-day requests.
func testConcurrentApprovals(t *testing.T, s timeoff.Store) {
	ctx := context.Background()
	seedUsers(t, s)

	now := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)
	engine := timeoff.NewEngine(s, timeoff.Options{
		Rules: timeoff.DefaultRules(),
		Clock: func() time.Time { return now },
	})
	employee := timeoff.Actor{UserID: alice.ID, Role: timeoff.RoleEmployee}
	admin := timeoff.Actor{UserID: bob.ID, Role: timeoff.RoleAdmin}

	_, err := engine.Ledger.SetTotal(ctx, admin, alice.ID, 2025, timeoff.LeaveVacation, generic.Days(8))
	require.NoError(t, err)

	var ids []string
	for _, p := range []generic.Period{
		{Start: day(time.March, 3), End: day(time.March, 7)},
		{Start: day(time.March, 10), End: day(time.March, 14)},
	} {
		r, err := engine.Requests.Create(ctx, employee, timeoff.RequestInput{
			UserID: alice.ID, Type: timeoff.LeaveVacation, StartDate: p.Start, EndDate: p.End,
		})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = engine.Requests.Approve(ctx, admin, id, 2025)
		}(i, id)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, generic.ErrInsufficientBalance):
			insufficient++
		default:
			t.Errorf("unexpected approval error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	b, err := engine.Ledger.GetBalance(ctx, alice.ID, 2025, timeoff.LeaveVacation)
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(generic.Days(5)), "used %s", b.Used)
	assert.True(t, b.Remaining.Equal(generic.Days(3)), "remaining %s", b.Remaining)
	assert.True(t, b.Consistent())

	approved, err := engine.Requests.List(ctx, admin, timeoff.RequestFilter{UserID: alice.ID, Status: timeoff.StatusApproved})
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}
