package timeoff

import (
	"github.com/warp/leave-ledger/generic"
)

// Rules configures the Validator and the default allotments.
// A zero limit disables the corresponding check.
type Rules struct {
	MinNoticeDays      int
	MaxConsecutiveDays int
	MaxRequestsPerYear int
	Blackouts          []generic.Period
	Allotments         Allotments
}

// DefaultRules are used when no rules file is configured.
func DefaultRules() Rules {
	return Rules{
		MinNoticeDays:      7,
		MaxConsecutiveDays: 30,
		MaxRequestsPerYear: 20,
		Allotments:         DefaultAllotments(),
	}
}

// InBlackout reports whether date falls inside any blackout period.
func (r Rules) InBlackout(date generic.TimePoint) (generic.Period, bool) {
	for _, p := range r.Blackouts {
		if p.Contains(date) {
			return p, true
		}
	}
	return generic.Period{}, false
}
