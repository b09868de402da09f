package generic

import (
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - A calendar day anchored to UTC
// =============================================================================

// DateLayout is the date-only wire format.
const DateLayout = "2006-01-02"

// TimePoint is a calendar day. The zero value is "no date" and is rejected by
// every calendar operation with InvalidDateError.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime anchors a timestamp to its UTC calendar day. A zero time stays zero.
func FromTime(t time.Time) TimePoint {
	if t.IsZero() {
		return TimePoint{}
	}
	u := t.UTC()
	return NewTimePoint(u.Year(), u.Month(), u.Day())
}

// ParseDate accepts a date-only string (YYYY-MM-DD) or an RFC3339 timestamp.
// Timestamps are converted to UTC before the calendar day is taken, so
// "2025-01-27" and "2025-01-27T09:30:00Z" resolve to the same day.
func ParseDate(s string) (TimePoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimePoint{}, &InvalidDateError{Input: s}
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return FromTime(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return FromTime(t), nil
	}
	return TimePoint{}, &InvalidDateError{Input: s}
}

// MustParseDate is ParseDate for tests and constant tables.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }
func (tp TimePoint) String() string        { return tp.Time.Format(DateLayout) }

// IsWeekend reports Saturday or Sunday.
func (tp TimePoint) IsWeekend() bool {
	wd := tp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// HolidayCalendar answers whether a calendar day is a recognized holiday.
type HolidayCalendar interface {
	IsHoliday(date TimePoint) bool
}

// NoHolidays is a calendar without holidays.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(TimePoint) bool { return false }

// IsWorkday reports whether date is neither a weekend nor a holiday.
func IsWorkday(calendar HolidayCalendar, date TimePoint) bool {
	if date.IsWeekend() {
		return false
	}
	if calendar != nil && calendar.IsHoliday(date) {
		return false
	}
	return true
}

// CountWorkingDays counts the days in [start, end] that are neither weekends
// nor holidays. A single-day range returns 0 or 1.
func CountWorkingDays(calendar HolidayCalendar, start, end TimePoint) (int, error) {
	if start.IsZero() {
		return 0, &InvalidDateError{Input: "start"}
	}
	if end.IsZero() {
		return 0, &InvalidDateError{Input: "end"}
	}
	if end.Before(start) {
		return 0, NewValidationError(CodeInvalidRange, "end date is before start date")
	}

	count := 0
	for day := start; day.BeforeOrEqual(end); day = day.AddDays(1) {
		if IsWorkday(calendar, day) {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int { return int(to.Time.Sub(from.Time).Hours() / 24) }
func StartOfYear(year int) TimePoint     { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint       { return NewTimePoint(year, time.December, 31) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return FromTime(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}
