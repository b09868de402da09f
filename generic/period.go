package generic

// =============================================================================
// PERIOD - Inclusive calendar-day range
// =============================================================================

// Period is the inclusive range [Start, End].
//
// Examples:
//   - A leave request: Mon 2025-01-27 .. Fri 2025-01-31
//   - A blackout window: 2025-12-22 .. 2025-12-31
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Valid reports that both ends are set and Start <= End.
func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && p.Start.BeforeOrEqual(p.End)
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps uses the closed-interval test: a.Start <= b.End AND a.End >= b.Start.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && p.End.AfterOrEqual(other.Start)
}

// LengthDays is the inclusive calendar-day span.
func (p Period) LengthDays() int {
	return DaysBetween(p.Start, p.End) + 1
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
