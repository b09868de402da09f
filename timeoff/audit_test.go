package timeoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/store/memory"
	"github.com/warp/leave-ledger/timeoff"
)

func TestAudit_WriteFailureNeverFailsTheOperation(t *testing.T) {
	// GIVEN: An audit log that rejects every write
	// WHEN: Creating and approving a request
	// THEN: Both succeed and the failures are logged as warnings
	f := newFixture(t)
	ctx := context.Background()
	f.store.FailAudit = errors.New("disk full")

	r, err := f.engine.Requests.Create(ctx, employee, vacation(date(2025, time.March, 3), date(2025, time.March, 7)))
	require.NoError(t, err)
	_, err = f.engine.Requests.Approve(ctx, admin, r.ID, 2025)
	require.NoError(t, err)

	assert.True(t, f.vacationBalance(t).Used.Equal(days(5)))

	var warned int
	for _, e := range f.logs.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "audit write failed" {
			warned++
		}
	}
	assert.Equal(t, 3, warned) // CREATE/REQUEST, UPDATE/REQUEST, UPDATE/BALANCE
}

func TestAuditTrail_NewestFirstWithFilters(t *testing.T) {
	store := memory.New()
	logger, _ := test.NewNullLogger()
	trail := timeoff.NewAuditTrail(store, logger)
	ctx := context.Background()

	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	trail.Clock = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	trail.Record(ctx, "admin-1", generic.AuditCreate, generic.AuditEntityRequest, "req-1", nil)
	trail.Record(ctx, "admin-1", generic.AuditUpdate, generic.AuditEntityBalance, "emp-1:2025:VACATION", nil)
	trail.Record(ctx, "emp-1", generic.AuditDelete, generic.AuditEntityRequest, "req-1", nil)

	all, err := trail.GetLogs(ctx, generic.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, generic.AuditDelete, all[0].Action)
	assert.Equal(t, generic.AuditCreate, all[2].Action)
	for _, e := range all {
		assert.NotEmpty(t, e.ID)
	}

	byUser, err := trail.GetLogs(ctx, generic.AuditFilter{UserID: "admin-1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byEntity, err := trail.GetLogs(ctx, generic.AuditFilter{EntityType: generic.AuditEntityRequest, EntityID: "req-1"})
	require.NoError(t, err)
	assert.Len(t, byEntity, 2)

	from := base.Add(90 * time.Minute)
	to := base.Add(150 * time.Minute)
	window, err := trail.GetLogs(ctx, generic.AuditFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, generic.AuditEntityBalance, window[0].EntityType)

	limited, err := trail.GetLogs(ctx, generic.AuditFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// =============================================================================
// USERS
// =============================================================================

func TestUsers_CreateRequiresAdminAndValidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreateUser(ctx, manager, timeoff.User{Name: "New", Email: "new@example.com"})
	requireCode(t, err, generic.CodeNotAuthorized)

	_, err = f.engine.CreateUser(ctx, admin, timeoff.User{Name: "New", Email: "not-an-email"})
	requireCode(t, err, generic.CodeInvalidInput)

	u, err := f.engine.CreateUser(ctx, admin, timeoff.User{Name: " New ", Email: "new@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "New", u.Name)
	assert.Equal(t, timeoff.RoleEmployee, u.Role)

	entries := f.auditFor(t, generic.AuditEntityUser)
	require.Len(t, entries, 1)
	assert.Equal(t, u.ID, entries[0].EntityID)
}

func TestUsers_DeleteCascadesButKeepsAudit(t *testing.T) {
	// GIVEN: A user with a balance and an approved request
	// WHEN: An admin deletes the user
	// THEN: Requests and balances are gone, audit entries remain
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.engine.Requests.Create(ctx, employee, vacation(date(2025, time.March, 3), date(2025, time.March, 7)))
	require.NoError(t, err)
	_, err = f.engine.Requests.Approve(ctx, admin, r.ID, 2025)
	require.NoError(t, err)
	auditBefore := len(f.auditFor(t, ""))

	require.NoError(t, f.engine.DeleteUser(ctx, admin, employee.UserID))

	_, err = f.engine.Requests.Get(ctx, admin, r.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	_, err = f.engine.Ledger.GetBalance(ctx, employee.UserID, 2025, timeoff.LeaveVacation)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.Len(t, f.auditFor(t, ""), auditBefore+1)

	err = f.engine.DeleteUser(ctx, admin, employee.UserID)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestEngine_WorkingDays(t *testing.T) {
	f := newFixture(t)
	n, err := f.engine.WorkingDays(date(2025, time.November, 24), date(2025, time.November, 28))
	require.NoError(t, err)
	assert.Equal(t, 4, n) // Thanksgiving
}

func TestEngine_WorkingDays_SpanLimit(t *testing.T) {
	f := newFixture(t)

	// A full leap year is the longest accepted range.
	_, err := f.engine.WorkingDays(date(2024, time.January, 1), date(2024, time.December, 31))
	require.NoError(t, err)

	for _, end := range []generic.TimePoint{date(2025, time.January, 1), date(2100, time.December, 31)} {
		_, err = f.engine.WorkingDays(date(2024, time.January, 1), end)
		requireCode(t, err, generic.CodeInvalidRange)
	}
}
