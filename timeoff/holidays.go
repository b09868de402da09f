/*
holidays.go - Company holiday calendar

PURPOSE:

	Classifies calendar days as holidays for working-day counts.

FIXED-DATE HOLIDAYS (every year):

	New Year's Day (01-01), Juneteenth (06-19), Independence Day (07-04),
	Veterans Day (11-11), Christmas Day (12-25)

FLOATING HOLIDAYS:

	MLK Day, Presidents Day, Good Friday, Memorial Day, Labor Day, Thanksgiving.

	HolidaysReference (default): floating holidays come from a table for
	ReferenceYear only. For any other year they are NOT holidays. This is a
	known limitation kept on purpose until the product decides otherwise.

	HolidaysRules: floating holidays are derived for any year from their
	Nth-weekday rules (Good Friday from the Easter date).

SEE ALSO:
  - generic/time.go: CountWorkingDays
*/
package timeoff

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// ReferenceYear is the only year the floating-holiday table covers.
const ReferenceYear = 2025

type HolidayMode string

const (
	HolidaysReference HolidayMode = "reference"
	HolidaysRules     HolidayMode = "rules"
)

func ParseHolidayMode(s string) (HolidayMode, error) {
	switch HolidayMode(s) {
	case "", HolidaysReference:
		return HolidaysReference, nil
	case HolidaysRules:
		return HolidaysRules, nil
	}
	return "", fmt.Errorf("unknown holiday mode %q", s)
}

// Holiday is a named calendar day.
type Holiday struct {
	Date generic.TimePoint
	Name string
}

type monthDay struct {
	Month time.Month
	Day   int
}

var fixedHolidays = map[monthDay]string{
	{time.January, 1}:   "New Year's Day",
	{time.June, 19}:     "Juneteenth",
	{time.July, 4}:      "Independence Day",
	{time.November, 11}: "Veterans Day",
	{time.December, 25}: "Christmas Day",
}

var referenceFloating = map[monthDay]string{
	{time.January, 20}:  "Martin Luther King Jr. Day",
	{time.February, 17}: "Presidents Day",
	{time.April, 18}:    "Good Friday",
	{time.May, 26}:      "Memorial Day",
	{time.September, 1}: "Labor Day",
	{time.November, 27}: "Thanksgiving Day",
}

// referenceHolidays is referenceFloating dated in ReferenceYear. Callers must not modify it.
var referenceHolidays = func() []Holiday {
	out := make([]Holiday, 0, len(referenceFloating))
	for md, name := range referenceFloating {
		out = append(out, Holiday{Date: generic.NewTimePoint(ReferenceYear, md.Month, md.Day), Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}()

// =============================================================================
// FEDERAL CALENDAR
// =============================================================================

// FederalCalendar implements generic.HolidayCalendar.
type FederalCalendar struct {
	Mode HolidayMode
}

var _ generic.HolidayCalendar = FederalCalendar{}

func NewFederalCalendar(mode HolidayMode) FederalCalendar {
	return FederalCalendar{Mode: mode}
}

func (c FederalCalendar) IsHoliday(date generic.TimePoint) bool {
	if date.IsZero() {
		return false
	}
	_, ok := c.name(date)
	return ok
}

func (c FederalCalendar) name(date generic.TimePoint) (string, bool) {
	md := monthDay{date.Month(), date.Day()}
	if name, ok := fixedHolidays[md]; ok {
		return name, true
	}
	if c.Mode != HolidaysRules {
		if date.Year() != ReferenceYear {
			return "", false
		}
		name, ok := referenceFloating[md]
		return name, ok
	}
	for _, h := range c.floating(date.Year()) {
		if h.Date.Equal(date) {
			return h.Name, true
		}
	}
	return "", false
}

func (c FederalCalendar) floating(year int) []Holiday {
	switch c.Mode {
	case HolidaysRules:
		return []Holiday{
			{Date: nthWeekday(year, time.January, time.Monday, 3), Name: "Martin Luther King Jr. Day"},
			{Date: nthWeekday(year, time.February, time.Monday, 3), Name: "Presidents Day"},
			{Date: easter(year).AddDays(-2), Name: "Good Friday"},
			{Date: lastWeekday(year, time.May, time.Monday), Name: "Memorial Day"},
			{Date: nthWeekday(year, time.September, time.Monday, 1), Name: "Labor Day"},
			{Date: nthWeekday(year, time.November, time.Thursday, 4), Name: "Thanksgiving Day"},
		}
	default:
		if year != ReferenceYear {
			return nil
		}
		return referenceHolidays
	}
}

// HolidaysIn lists the holidays of a year, sorted by date.
func (c FederalCalendar) HolidaysIn(year int) []Holiday {
	var out []Holiday
	for md, name := range fixedHolidays {
		out = append(out, Holiday{Date: generic.NewTimePoint(year, md.Month, md.Day), Name: name})
	}
	out = append(out, c.floating(year)...)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// =============================================================================
// DATE RULES
// =============================================================================

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) generic.TimePoint {
	first := generic.NewTimePoint(year, month, 1)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDays(offset + 7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) generic.TimePoint {
	last := generic.EndOfMonth(year, month)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDays(-offset)
}

// easter returns Easter Sunday (anonymous Gregorian algorithm).
func easter(year int) generic.TimePoint {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return generic.NewTimePoint(year, time.Month(month), day)
}
