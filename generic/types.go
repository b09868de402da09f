/*
Package generic provides the domain-agnostic primitives of the leave ledger.

PURPOSE:

	This package contains the building blocks every other package relies on:
	decimal amounts, calendar-day time points, inclusive periods, the working-day
	calendar, the error taxonomy and the audit entry types. It knows nothing
	about leave types, requests or users.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 5 days, 20 hours)
  - Unit: days or hours; hours convert to days at a fixed 8h workday

DESIGN PRINCIPLES:
 1. Precision: Uses decimal.Decimal so 2.5 days stays 2.5 days
 2. No forced rounding: fractional days are kept as-is
 3. Value semantics: Amount methods never mutate the receiver

USAGE:

	used := generic.Days(5)
	credit := generic.Hours(20).ToDays() // 2.5 days
	remaining := generic.Days(22).Sub(used)

SEE ALSO:
  - time.go: TimePoint and the working-day calendar
  - errors.go: Error taxonomy shared by all packages
  - audit.go: Audit entry types
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// HoursPerDay is the conversion ratio between overtime hours and leave days.
const HoursPerDay = 8

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// Days is shorthand for NewAmount(value, UnitDays).
func Days(value float64) Amount { return NewAmount(value, UnitDays) }

// Hours is shorthand for NewAmount(value, UnitHours).
func Hours(value float64) Amount { return NewAmount(value, UnitHours) }

// ParseAmount parses a decimal string stored by a persistence layer.
func ParseAmount(value string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d, Unit: unit}, nil
}

// ToDays converts an hour amount to days at HoursPerDay. Day amounts are returned unchanged.
func (a Amount) ToDays() Amount {
	if a.Unit == UnitHours {
		return Amount{Value: a.Value.Div(decimal.NewFromInt(HoursPerDay)), Unit: UnitDays}
	}
	return a
}

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) String() string            { return a.Value.String() + " " + string(a.Unit) }

// Float64 returns the amount as a float for JSON responses.
func (a Amount) Float64() float64 {
	f, _ := a.Value.Float64()
	return f
}
