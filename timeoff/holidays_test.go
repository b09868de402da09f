package timeoff_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

var reference = timeoff.NewFederalCalendar(timeoff.HolidaysReference)

func TestWorkingDays_FullWeekWithoutHolidays(t *testing.T) {
	// GIVEN: Mon 2025-01-27 .. Fri 2025-01-31, no holiday
	// WHEN: Counting working days
	// THEN: 5
	n, err := generic.CountWorkingDays(reference, date(2025, time.January, 27), date(2025, time.January, 31))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestWorkingDays_SingleHoliday(t *testing.T) {
	// GIVEN: New Year's Day alone
	// THEN: 0 working days
	n, err := generic.CountWorkingDays(reference, date(2025, time.January, 1), date(2025, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWorkingDays_SingleWorkday(t *testing.T) {
	n, err := generic.CountWorkingDays(reference, date(2025, time.January, 2), date(2025, time.January, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWorkingDays_SkipsWeekendsAndFloatingHoliday(t *testing.T) {
	// GIVEN: Mon 2025-01-20 (MLK Day) .. Sun 2025-02-02
	// THEN: 10 weekdays minus MLK Day = 9
	n, err := generic.CountWorkingDays(reference, date(2025, time.January, 20), date(2025, time.February, 2))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
}

func TestWorkingDays_DateOnlyAndTimestampAgree(t *testing.T) {
	// GIVEN: The same calendar days as date-only strings and as timestamps
	// THEN: Identical counts
	plainStart := generic.MustParseDate("2025-01-27")
	plainEnd := generic.MustParseDate("2025-01-31")
	stampStart := generic.MustParseDate("2025-01-27T00:00:00Z")
	stampEnd := generic.MustParseDate("2025-01-31T17:45:00Z")

	a, err := generic.CountWorkingDays(reference, plainStart, plainEnd)
	require.NoError(t, err)
	b, err := generic.CountWorkingDays(reference, stampStart, stampEnd)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, plainEnd.Equal(stampEnd))
}

func TestWorkingDays_OffsetTimestampAnchorsToUTCDay(t *testing.T) {
	// 2025-01-24T22:00:00-05:00 is Saturday 2025-01-25 in UTC
	tp := generic.MustParseDate("2025-01-24T22:00:00-05:00")
	assert.Equal(t, "2025-01-25", tp.String())
	assert.True(t, tp.IsWeekend())
}

func TestWorkingDays_InvalidDate(t *testing.T) {
	_, err := generic.CountWorkingDays(reference, generic.TimePoint{}, date(2025, time.January, 3))
	assert.ErrorIs(t, err, generic.ErrInvalidDate)

	_, err = generic.ParseDate("not-a-date")
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestWorkingDays_ReversedRange(t *testing.T) {
	_, err := generic.CountWorkingDays(reference, date(2025, time.January, 31), date(2025, time.January, 27))
	requireCode(t, err, generic.CodeInvalidRange)
}

func TestReferenceCalendar_FloatingHolidaysOnlyInReferenceYear(t *testing.T) {
	// GIVEN: MLK Day 2025 (Jan 20) and 2026 (Jan 19)
	// THEN: Only the reference year is recognized; fixed dates work in any year
	assert.True(t, reference.IsHoliday(date(2025, time.January, 20)))
	assert.False(t, reference.IsHoliday(date(2026, time.January, 19)))
	assert.True(t, reference.IsHoliday(date(2026, time.December, 25)))
	assert.True(t, reference.IsHoliday(date(2031, time.July, 4)))
}

func TestReferenceCalendar_IsHolidayDoesNotAllocate(t *testing.T) {
	days := []generic.TimePoint{
		date(2025, time.January, 20),
		date(2025, time.March, 4),
		date(2026, time.January, 19),
	}
	allocs := testing.AllocsPerRun(100, func() {
		for _, d := range days {
			reference.IsHoliday(d)
		}
	})
	assert.Zero(t, allocs)
}

func TestReferenceCalendar_HolidaysInIsSorted(t *testing.T) {
	got := reference.HolidaysIn(timeoff.ReferenceYear)
	require.Len(t, got, 11)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Date.Before(got[i].Date), "%s before %s", got[i-1].Date, got[i].Date)
	}
	assert.Len(t, reference.HolidaysIn(timeoff.ReferenceYear), 11, "repeated calls must not grow the table")
}

func TestRulesCalendar_MatchesReferenceTableFor2025(t *testing.T) {
	rules := timeoff.NewFederalCalendar(timeoff.HolidaysRules)
	assert.Equal(t, reference.HolidaysIn(timeoff.ReferenceYear), rules.HolidaysIn(timeoff.ReferenceYear))
	assert.Len(t, rules.HolidaysIn(2025), 11)
}

func TestRulesCalendar_OtherYears(t *testing.T) {
	rules := timeoff.NewFederalCalendar(timeoff.HolidaysRules)

	tests := []struct {
		name string
		day  generic.TimePoint
	}{
		{"MLK Day 2026", date(2026, time.January, 19)},
		{"Presidents Day 2026", date(2026, time.February, 16)},
		{"Good Friday 2026", date(2026, time.April, 3)},
		{"Memorial Day 2026", date(2026, time.May, 25)},
		{"Labor Day 2026", date(2026, time.September, 7)},
		{"Thanksgiving 2026", date(2026, time.November, 26)},
		{"Good Friday 2024", date(2024, time.March, 29)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, rules.IsHoliday(tt.day))
		})
	}
	assert.False(t, rules.IsHoliday(date(2026, time.January, 20)))
}

func TestParseHolidayMode(t *testing.T) {
	m, err := timeoff.ParseHolidayMode("")
	require.NoError(t, err)
	assert.Equal(t, timeoff.HolidaysReference, m)

	m, err = timeoff.ParseHolidayMode("rules")
	require.NoError(t, err)
	assert.Equal(t, timeoff.HolidaysRules, m)

	_, err = timeoff.ParseHolidayMode("lunar")
	assert.Error(t, err)
}
