package timeoff_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

func codes(res timeoff.ValidationResult) []string {
	var out []string
	for _, e := range res.Errors {
		out = append(out, e.Code)
	}
	return out
}

func TestValidator_ValidRequest(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Requests.Validate(context.Background(), employee, vacation(date(2025, time.March, 3), date(2025, time.March, 7)))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 5, res.WorkingDays)
}

func TestValidator_InvalidRange(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Requests.Validate(context.Background(), employee, vacation(date(2025, time.March, 7), date(2025, time.March, 3)))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{generic.CodeInvalidRange}, codes(res))
	assert.Zero(t, res.WorkingDays)
}

func TestValidator_Blackout(t *testing.T) {
	f := newFixture(t, func(o *timeoff.Options) {
		o.Rules.Blackouts = []generic.Period{{Start: date(2025, time.December, 20), End: date(2025, time.December, 31)}}
	})
	res, err := f.engine.Requests.Validate(context.Background(), employee, vacation(date(2025, time.December, 22), date(2025, time.December, 23)))
	require.NoError(t, err)
	assert.Equal(t, []string{generic.CodeBlackoutDate}, codes(res))

	// Only the start date is checked against blackouts
	res, err = f.engine.Requests.Validate(context.Background(), employee, vacation(date(2025, time.December, 18), date(2025, time.December, 22)))
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidator_MaxConsecutiveDays(t *testing.T) {
	// GIVEN: A 31-day inclusive span with a 30-day limit
	f := newFixture(t)
	f.setVacation(t, 40)
	res, err := f.engine.Requests.Validate(context.Background(), employee, vacation(date(2025, time.March, 1), date(2025, time.March, 31)))
	require.NoError(t, err)
	assert.Equal(t, []string{generic.CodeMaxConsecutiveDays}, codes(res))

	// Exactly 30 days passes
	res, err = f.engine.Requests.Validate(context.Background(), employee, vacation(date(2025, time.March, 1), date(2025, time.March, 30)))
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidator_Notice(t *testing.T) {
	// GIVEN: today is 2025-01-10 and 7 days notice are required
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		start generic.TimePoint
		valid bool
	}{
		{"three days ahead", date(2025, time.January, 13), false},
		{"six days ahead", date(2025, time.January, 16), false},
		{"seven days ahead", date(2025, time.January, 17), true},
		{"today", date(2025, time.January, 10), true},
		{"backfill", date(2025, time.January, 6), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.engine.Requests.Validate(ctx, employee, vacation(tt.start, tt.start))
			require.NoError(t, err)
			if tt.valid {
				assert.True(t, res.Valid, "%v", codes(res))
			} else {
				assert.Equal(t, []string{generic.CodeInsufficientNotice}, codes(res))
			}
		})
	}
}

func TestValidator_ZeroLimitDisablesCheck(t *testing.T) {
	f := newFixture(t, func(o *timeoff.Options) { o.Rules.MinNoticeDays = 0 })
	res, err := f.engine.Requests.Validate(context.Background(), employee, vacation(date(2025, time.January, 13), date(2025, time.January, 13)))
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidator_OverlapOnlyWithApproved(t *testing.T) {
	// GIVEN: An approved request Mar 3-7 and a pending one Mar 17-18
	f := newFixture(t)
	ctx := context.Background()

	approved, err := f.engine.Requests.Create(ctx, employee, vacation(date(2025, time.March, 3), date(2025, time.March, 7)))
	require.NoError(t, err)
	_, err = f.engine.Requests.Approve(ctx, admin, approved.ID, 0)
	require.NoError(t, err)
	_, err = f.engine.Requests.Create(ctx, employee, vacation(date(2025, time.March, 17), date(2025, time.March, 18)))
	require.NoError(t, err)

	// WHEN: Validating ranges touching each
	res, err := f.engine.Requests.Validate(ctx, employee, vacation(date(2025, time.March, 7), date(2025, time.March, 10)))
	require.NoError(t, err)
	assert.Equal(t, []string{generic.CodeOverlappingRequest}, codes(res))

	res, err = f.engine.Requests.Validate(ctx, employee, vacation(date(2025, time.March, 18), date(2025, time.March, 19)))
	require.NoError(t, err)
	assert.True(t, res.Valid, "pending requests do not block: %v", codes(res))

	// Other users are unaffected
	in := vacation(date(2025, time.March, 3), date(2025, time.March, 7))
	in.UserID = other.UserID
	res, err = f.engine.Requests.Validate(ctx, other, in)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidator_RequestLimitCountsEveryStatus(t *testing.T) {
	f := newFixture(t, func(o *timeoff.Options) { o.Rules.MaxRequestsPerYear = 2 })
	ctx := context.Background()

	first, err := f.engine.Requests.Create(ctx, employee, vacation(date(2025, time.March, 3), date(2025, time.March, 3)))
	require.NoError(t, err)
	_, err = f.engine.Requests.Reject(ctx, manager, first.ID, "busy")
	require.NoError(t, err)
	_, err = f.engine.Requests.Create(ctx, employee, vacation(date(2025, time.March, 10), date(2025, time.March, 10)))
	require.NoError(t, err)

	_, err = f.engine.Requests.Create(ctx, employee, vacation(date(2025, time.March, 17), date(2025, time.March, 17)))
	requireCode(t, err, generic.CodeRequestLimitExceeded)

	// Next year has its own cap
	_, err = f.engine.Requests.Create(ctx, employee, vacation(date(2026, time.March, 2), date(2026, time.March, 2)))
	require.NoError(t, err)
}

func TestValidator_InsufficientBalanceUsesDefaultsWithoutWriting(t *testing.T) {
	// GIVEN: No balance row; default vacation is 22
	// WHEN: Validating 23 working days
	// THEN: INSUFFICIENT_BALANCE and no row is created
	f := newFixture(t, func(o *timeoff.Options) { o.Rules.MaxConsecutiveDays = 0 })
	ctx := context.Background()

	res, err := f.engine.Requests.Validate(ctx, employee, vacation(date(2025, time.March, 3), date(2025, time.April, 2)))
	require.NoError(t, err)
	assert.Equal(t, 23, res.WorkingDays)
	assert.Equal(t, []string{generic.CodeInsufficientBalance}, codes(res))

	err = f.store.WithTx(ctx, func(tx timeoff.Tx) error {
		b, err := tx.FindBalance(ctx, employee.UserID, 2025, timeoff.LeaveVacation)
		assert.Nil(t, b)
		return err
	})
	require.NoError(t, err)
}

func TestValidator_CollectsAllViolationsInOrder(t *testing.T) {
	// GIVEN: A start inside a blackout, 3 days ahead, spanning 31 days,
	// over a 2-day balance
	f := newFixture(t, func(o *timeoff.Options) {
		o.Rules.Blackouts = []generic.Period{{Start: date(2025, time.January, 12), End: date(2025, time.January, 14)}}
	})
	f.setVacation(t, 2)

	res, err := f.engine.Requests.Validate(context.Background(), employee, vacation(date(2025, time.January, 13), date(2025, time.February, 12)))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{
		generic.CodeBlackoutDate,
		generic.CodeMaxConsecutiveDays,
		generic.CodeInsufficientNotice,
		generic.CodeInsufficientBalance,
	}, codes(res))
}

func TestValidator_MissingDates(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Requests.Validate(context.Background(), employee, vacation(generic.TimePoint{}, date(2025, time.March, 3)))
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}
