package timeoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

func atMonthEnd(o *timeoff.Options) {
	o.Clock = func() time.Time { return time.Date(2025, time.January, 27, 16, 0, 0, 0, time.UTC) }
}

func overtime(hours float64) timeoff.OvertimeInput {
	return timeoff.OvertimeInput{UserID: employee.UserID, Hours: generic.Hours(hours), Notes: "release"}
}

func TestSubmissionWindow(t *testing.T) {
	tests := []struct {
		today generic.TimePoint
		open  bool
	}{
		{date(2025, time.January, 24), false},
		{date(2025, time.January, 25), true},
		{date(2025, time.January, 31), true},
		{date(2025, time.February, 21), false},
		{date(2025, time.February, 22), true},
		{date(2024, time.February, 23), true},
		{date(2025, time.April, 23), false},
		{date(2025, time.April, 24), true},
	}
	for _, tt := range tests {
		t.Run(tt.today.String(), func(t *testing.T) {
			_, open := timeoff.SubmissionWindow(tt.today)
			assert.Equal(t, tt.open, open)
		})
	}
}

func TestOvertime_OutsideWindow(t *testing.T) {
	// GIVEN: today is 2025-01-10
	// THEN: SubmissionWindowError pointing at Jan 25
	f := newFixture(t)
	_, err := f.engine.Overtime.Create(context.Background(), employee, overtime(4))
	require.ErrorIs(t, err, generic.ErrSubmissionWindow)

	var win *generic.SubmissionWindowError
	require.True(t, errors.As(err, &win))
	assert.Equal(t, "2025-01-25", win.WindowOpens.String())
	assert.Equal(t, generic.CodeSubmissionWindow, generic.ErrorCode(err))
}

func TestOvertime_CreateInWindow(t *testing.T) {
	f := newFixture(t, atMonthEnd)
	o, err := f.engine.Overtime.Create(context.Background(), employee, overtime(6))
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusPending, o.Status)
	assert.Equal(t, time.January, o.Month)
	assert.Equal(t, 2025, o.Year)
	assert.Equal(t, "2025-01-27", o.RequestDate.String())
	assert.Contains(t, f.notifier.Events(), "overtime")

	entries := f.auditFor(t, generic.AuditEntityOvertime)
	require.Len(t, entries, 1)
	assert.Equal(t, generic.AuditCreate, entries[0].Action)
}

func TestOvertime_DateMustFallInCurrentMonth(t *testing.T) {
	tests := []struct {
		name string
		date generic.TimePoint
		ok   bool
	}{
		{"earlier this month", date(2025, time.January, 6), true},
		{"backdated years", date(2019, time.March, 2), false},
		{"previous month", date(2024, time.December, 30), false},
		{"next month", date(2025, time.February, 3), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN: The submission window is open for January 2025
			f := newFixture(t, atMonthEnd)
			in := overtime(4)
			in.RequestDate = tt.date

			// WHEN: The employee files overtime dated outside January
			o, err := f.engine.Overtime.Create(context.Background(), employee, in)

			// THEN: Only current-month dates are accepted and nothing leaks into another year
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, time.January, o.Month)
				assert.Equal(t, 2025, o.Year)
				return
			}
			requireCode(t, err, generic.CodeInvalidInput)
			stored, err := f.engine.Overtime.List(context.Background(), admin, timeoff.OvertimeFilter{UserID: employee.UserID})
			require.NoError(t, err)
			assert.Empty(t, stored)
			assert.Empty(t, f.auditFor(t, generic.AuditEntityOvertime))
		})
	}
}

func TestOvertime_RequiresPositiveHours(t *testing.T) {
	f := newFixture(t, atMonthEnd)
	for _, h := range []float64{0, -3} {
		_, err := f.engine.Overtime.Create(context.Background(), employee, overtime(h))
		requireCode(t, err, generic.CodeInvalidInput)
	}
}

func TestOvertime_ApproveCreditsVacation(t *testing.T) {
	// GIVEN: 20 overtime hours
	// WHEN: Approved
	// THEN: Vacation remaining grows by 2.5 days
	f := newFixture(t, atMonthEnd)
	ctx := context.Background()
	before := f.vacationBalance(t)

	o, err := f.engine.Overtime.Create(ctx, employee, overtime(20))
	require.NoError(t, err)
	approved, err := f.engine.Overtime.Approve(ctx, admin, o.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusApproved, approved.Status)

	after := f.vacationBalance(t)
	assert.True(t, after.Remaining.Equal(before.Remaining.Add(days(2.5))), "remaining %s", after.Remaining)
	assert.True(t, after.Used.Equal(before.Used))
	assert.True(t, after.Consistent())

	_, err = f.engine.Overtime.Approve(ctx, admin, o.ID, 0)
	requireCode(t, err, generic.CodeNotPending)
}

func TestOvertime_RejectHasNoBalanceEffect(t *testing.T) {
	f := newFixture(t, atMonthEnd)
	ctx := context.Background()
	before := f.vacationBalance(t)

	o, err := f.engine.Overtime.Create(ctx, employee, overtime(8))
	require.NoError(t, err)
	rejected, err := f.engine.Overtime.Reject(ctx, manager, o.ID, "not pre-approved")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusRejected, rejected.Status)
	assert.Equal(t, "not pre-approved", rejected.Notes)

	assert.True(t, f.vacationBalance(t).Remaining.Equal(before.Remaining))
}

func TestOvertime_Authorization(t *testing.T) {
	f := newFixture(t, atMonthEnd)
	ctx := context.Background()

	in := overtime(4)
	in.UserID = other.UserID
	_, err := f.engine.Overtime.Create(ctx, employee, in)
	requireCode(t, err, generic.CodeNotAuthorized)

	o, err := f.engine.Overtime.Create(ctx, employee, overtime(4))
	require.NoError(t, err)
	_, err = f.engine.Overtime.Approve(ctx, employee, o.ID, 0)
	requireCode(t, err, generic.CodeNotAuthorized)

	_, err = f.engine.Overtime.Approve(ctx, admin, "missing", 0)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestOvertime_List(t *testing.T) {
	f := newFixture(t, atMonthEnd)
	ctx := context.Background()

	_, err := f.engine.Overtime.Create(ctx, employee, overtime(4))
	require.NoError(t, err)
	in := overtime(2)
	in.UserID = other.UserID
	_, err = f.engine.Overtime.Create(ctx, other, in)
	require.NoError(t, err)

	mine, err := f.engine.Overtime.List(ctx, employee, timeoff.OvertimeFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := f.engine.Overtime.List(ctx, admin, timeoff.OvertimeFilter{Year: 2025, Month: time.January})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
