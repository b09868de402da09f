package timeoff_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

func TestLedger_CreateOnReadDefaults(t *testing.T) {
	// GIVEN: A user without balance rows
	// WHEN: Reading the summary
	// THEN: Every type is created with the default allotment
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.engine.Ledger.Summary(ctx, employee.UserID, 2025)
	require.NoError(t, err)
	require.Len(t, summary, 4)

	want := map[timeoff.LeaveType]float64{
		timeoff.LeaveVacation:  22,
		timeoff.LeaveSick:      8,
		timeoff.LeavePaidLeave: 0,
		timeoff.LeavePersonal:  3,
	}
	for _, b := range summary {
		assert.True(t, b.Total.Equal(days(want[b.Type])), "%s total %s", b.Type, b.Total)
		assert.True(t, b.Used.IsZero())
		assert.True(t, b.Consistent())
		assert.NotZero(t, b.Version)
	}

	// Creating a row is not a mutation: no audit entries
	assert.Empty(t, f.auditFor(t, generic.AuditEntityBalance))
}

func TestLedger_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Ledger.GetBalance(context.Background(), "ghost", 2025, timeoff.LeaveVacation)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestLedger_InvalidKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Ledger.GetBalance(context.Background(), employee.UserID, 2025, "SABBATICAL")
	requireCode(t, err, generic.CodeInvalidInput)
}

func TestLedger_DeductAndRestoreKeepInvariant(t *testing.T) {
	// GIVEN: 10 vacation days
	// WHEN: A sequence of fractional deductions and restores
	// THEN: remaining == total - used after each step, and the net effect cancels
	f := newFixture(t)
	ctx := context.Background()
	f.setVacation(t, 10)

	steps := []struct {
		restore bool
		days    float64
	}{
		{false, 3}, {false, 2.5}, {true, 1}, {false, 0.5}, {true, 2.5}, {true, 3}, {true, 0.5},
	}
	for _, s := range steps {
		var (
			b   timeoff.Balance
			err error
		)
		if s.restore {
			b, err = f.engine.Ledger.Restore(ctx, admin.UserID, employee.UserID, 2025, timeoff.LeaveVacation, days(s.days), "restore")
		} else {
			b, err = f.engine.Ledger.Deduct(ctx, admin.UserID, employee.UserID, 2025, timeoff.LeaveVacation, days(s.days), "deduct")
		}
		require.NoError(t, err)
		assert.True(t, b.Consistent(), "after %+v: %+v", s, b)
	}

	b := f.vacationBalance(t)
	assert.True(t, b.Used.IsZero(), "used %s", b.Used)
	assert.True(t, b.Remaining.Equal(days(10)))
}

func TestLedger_InsufficientBalance(t *testing.T) {
	// GIVEN: 2 vacation days
	// WHEN: Deducting 3
	// THEN: InsufficientBalanceError with required/available, balance untouched
	f := newFixture(t)
	ctx := context.Background()
	f.setVacation(t, 2)

	_, err := f.engine.Ledger.Deduct(ctx, admin.UserID, employee.UserID, 2025, timeoff.LeaveVacation, days(3), "too much")
	require.ErrorIs(t, err, generic.ErrInsufficientBalance)

	var insufficient *generic.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "VACATION", insufficient.Type)
	assert.True(t, insufficient.Required.Equal(days(3)))
	assert.True(t, insufficient.Available.Equal(days(2)))
	assert.True(t, insufficient.Shortfall().Equal(days(1)))

	b := f.vacationBalance(t)
	assert.True(t, b.Used.IsZero())
}

func TestLedger_ExactRemainingIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.setVacation(t, 2)
	b, err := f.engine.Ledger.Deduct(context.Background(), admin.UserID, employee.UserID, 2025, timeoff.LeaveVacation, days(2), "all of it")
	require.NoError(t, err)
	assert.True(t, b.Remaining.IsZero())
}

func TestLedger_RestoreNeverFailsInsufficiency(t *testing.T) {
	// GIVEN: A fully used balance
	// WHEN: Restoring more than was used
	// THEN: The restore succeeds; remaining may exceed total
	f := newFixture(t)
	ctx := context.Background()
	f.setVacation(t, 0)

	b, err := f.engine.Ledger.Restore(ctx, admin.UserID, employee.UserID, 2025, timeoff.LeaveVacation, days(2), "trusted restore")
	require.NoError(t, err)
	assert.True(t, b.Remaining.Equal(days(2)))
	assert.True(t, b.Used.Equal(days(-2)))
	assert.True(t, b.Consistent())
}

func TestLedger_CreditRaisesTotal(t *testing.T) {
	f := newFixture(t)
	f.setVacation(t, 10)

	b, err := f.engine.Ledger.Credit(context.Background(), admin.UserID, employee.UserID, 2025, timeoff.LeaveVacation, days(2.5), "overtime")
	require.NoError(t, err)
	assert.True(t, b.Total.Equal(days(12.5)))
	assert.True(t, b.Remaining.Equal(days(12.5)))
	assert.True(t, b.Used.IsZero())
}

func TestLedger_MutationsAreAudited(t *testing.T) {
	// GIVEN: A deduction
	// THEN: One UPDATE/BALANCE entry with previous, new and reason
	f := newFixture(t)
	ctx := context.Background()
	f.setVacation(t, 10)

	_, err := f.engine.Ledger.Deduct(ctx, manager.UserID, employee.UserID, 2025, timeoff.LeaveVacation, days(4), "manual")
	require.NoError(t, err)

	entries := f.auditFor(t, generic.AuditEntityBalance)
	require.Len(t, entries, 2) // SetTotal + Deduct
	latest := entries[0]
	assert.Equal(t, generic.AuditUpdate, latest.Action)
	assert.Equal(t, manager.UserID, latest.UserID)
	assert.Equal(t, "emp-1:2025:VACATION", latest.EntityID)
	assert.Equal(t, "manual", latest.Details["reason"])
	assert.Equal(t, "10", latest.Details["previous"].(map[string]any)["remaining_days"])
	assert.Equal(t, "6", latest.Details["new"].(map[string]any)["remaining_days"])
}

func TestLedger_SetTotalRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Ledger.SetTotal(context.Background(), manager, employee.UserID, 2025, timeoff.LeaveVacation, days(30))
	requireCode(t, err, generic.CodeNotAuthorized)
}

func TestLedger_SetTotalPreservesUsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setVacation(t, 10)
	_, err := f.engine.Ledger.Deduct(ctx, admin.UserID, employee.UserID, 2025, timeoff.LeaveVacation, days(4), "x")
	require.NoError(t, err)

	b, err := f.engine.Ledger.SetTotal(ctx, admin, employee.UserID, 2025, timeoff.LeaveVacation, days(20))
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(days(4)))
	assert.True(t, b.Remaining.Equal(days(16)))
}

func TestLedger_CustomAllotments(t *testing.T) {
	f := newFixture(t, func(o *timeoff.Options) {
		o.Rules.Allotments = timeoff.Allotments{timeoff.LeaveVacation: days(25)}
	})
	b := f.vacationBalance(t)
	assert.True(t, b.Total.Equal(days(25)))

	sick, err := f.engine.Ledger.GetBalance(context.Background(), employee.UserID, 2025, timeoff.LeaveSick)
	require.NoError(t, err)
	assert.True(t, sick.Total.IsZero())
}
