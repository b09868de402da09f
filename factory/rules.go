/*
Package factory provides JSON to Go rule-set conversion.

PURPOSE:

	Converts a JSON rule-set into timeoff.Rules: the validator limits, the
	blackout periods and the default allotments used for lazily created
	balances. HR can change the rules without a code change by pointing
	RULES_FILE at a new document.

JSON SCHEMA:

	{
	  "min_notice_days": 7,
	  "max_consecutive_days": 30,
	  "max_requests_per_year": 20,
	  "blackouts": [
	    {"start": "2025-12-20", "end": "2025-12-31", "name": "Year-end freeze"}
	  ],
	  "allotments": {
	    "vacation": 22,
	    "sick": 8,
	    "paid_leave": 0,
	    "personal": 3
	  }
	}

DEFAULTS:

	Omitted limits keep the value of timeoff.DefaultRules(). An explicit 0
	disables the check. Omitted allotment types keep their default.

USAGE:

	f := factory.NewRulesFactory()
	rules, err := f.ParseRules(jsonString)
	rules, err := f.LoadFile("rules.json")

SEE ALSO:
  - timeoff/rules.go: Rules type definition
  - timeoff/validator.go: Consumer of the limits
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesJSON is the JSON representation of a rule-set.
type RulesJSON struct {
	MinNoticeDays      *int               `json:"min_notice_days,omitempty"`
	MaxConsecutiveDays *int               `json:"max_consecutive_days,omitempty"`
	MaxRequestsPerYear *int               `json:"max_requests_per_year,omitempty"`
	Blackouts          []BlackoutJSON     `json:"blackouts,omitempty"`
	Allotments         map[string]float64 `json:"allotments,omitempty"`
}

// BlackoutJSON is an inclusive date range in which requests may not start.
type BlackoutJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Name  string `json:"name,omitempty"`
}

// =============================================================================
// RULES FACTORY
// =============================================================================

// RulesFactory converts JSON rule-sets to timeoff.Rules.
type RulesFactory struct{}

func NewRulesFactory() *RulesFactory {
	return &RulesFactory{}
}

// LoadFile reads and parses a rule-set file.
func (f *RulesFactory) LoadFile(path string) (timeoff.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return timeoff.Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	return f.ParseRules(string(data))
}

// ParseRules parses a JSON string into Rules.
func (f *RulesFactory) ParseRules(jsonStr string) (timeoff.Rules, error) {
	var rj RulesJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return timeoff.Rules{}, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RulesJSON to Rules, starting from the defaults.
func (f *RulesFactory) FromJSON(rj RulesJSON) (timeoff.Rules, error) {
	rules := timeoff.DefaultRules()

	limits := []struct {
		name string
		src  *int
		dst  *int
	}{
		{"min_notice_days", rj.MinNoticeDays, &rules.MinNoticeDays},
		{"max_consecutive_days", rj.MaxConsecutiveDays, &rules.MaxConsecutiveDays},
		{"max_requests_per_year", rj.MaxRequestsPerYear, &rules.MaxRequestsPerYear},
	}
	for _, l := range limits {
		if l.src == nil {
			continue
		}
		if *l.src < 0 {
			return timeoff.Rules{}, fmt.Errorf("%s must not be negative", l.name)
		}
		*l.dst = *l.src
	}

	for i, bj := range rj.Blackouts {
		p, err := parseBlackout(bj)
		if err != nil {
			return timeoff.Rules{}, fmt.Errorf("blackout %d: %w", i, err)
		}
		rules.Blackouts = append(rules.Blackouts, p)
	}

	for name, value := range rj.Allotments {
		lt, err := timeoff.ParseLeaveType(name)
		if err != nil {
			return timeoff.Rules{}, fmt.Errorf("allotments: %w", err)
		}
		if value < 0 {
			return timeoff.Rules{}, fmt.Errorf("allotments: %s must not be negative", name)
		}
		rules.Allotments[lt] = generic.Days(value)
	}

	return rules, nil
}

// ToJSON converts Rules back to RulesJSON.
func (f *RulesFactory) ToJSON(rules timeoff.Rules) RulesJSON {
	notice, consecutive, perYear := rules.MinNoticeDays, rules.MaxConsecutiveDays, rules.MaxRequestsPerYear
	rj := RulesJSON{
		MinNoticeDays:      &notice,
		MaxConsecutiveDays: &consecutive,
		MaxRequestsPerYear: &perYear,
		Allotments:         make(map[string]float64, len(rules.Allotments)),
	}
	for _, p := range rules.Blackouts {
		rj.Blackouts = append(rj.Blackouts, BlackoutJSON{Start: p.Start.String(), End: p.End.String()})
	}
	sort.Slice(rj.Blackouts, func(i, j int) bool { return rj.Blackouts[i].Start < rj.Blackouts[j].Start })
	for lt, amount := range rules.Allotments {
		rj.Allotments[toKey(lt)] = amount.Float64()
	}
	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseBlackout(bj BlackoutJSON) (generic.Period, error) {
	start, err := generic.ParseDate(bj.Start)
	if err != nil {
		return generic.Period{}, err
	}
	end, err := generic.ParseDate(bj.End)
	if err != nil {
		return generic.Period{}, err
	}
	p := generic.Period{Start: start, End: end}
	if !p.Valid() {
		return generic.Period{}, fmt.Errorf("start %s is after end %s", start, end)
	}
	return p, nil
}

func toKey(lt timeoff.LeaveType) string {
	switch lt {
	case timeoff.LeaveVacation:
		return "vacation"
	case timeoff.LeaveSick:
		return "sick"
	case timeoff.LeavePaidLeave:
		return "paid_leave"
	case timeoff.LeavePersonal:
		return "personal"
	default:
		return string(lt)
	}
}

// =============================================================================
// PRESET RULE-SETS
// =============================================================================

// StandardRulesJSON is the default rule-set with a year-end freeze.
func StandardRulesJSON(year int) string {
	return fmt.Sprintf(`{
  "min_notice_days": 7,
  "max_consecutive_days": 30,
  "max_requests_per_year": 20,
  "blackouts": [
    {"start": "%d-12-20", "end": "%d-12-31", "name": "Year-end freeze"}
  ],
  "allotments": {"vacation": 22, "sick": 8, "paid_leave": 0, "personal": 3}
}`, year, year)
}
