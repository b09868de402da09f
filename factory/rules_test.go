package factory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

func TestParseRules_Full(t *testing.T) {
	f := NewRulesFactory()
	rules, err := f.ParseRules(StandardRulesJSON(2025))
	require.NoError(t, err)

	assert.Equal(t, 7, rules.MinNoticeDays)
	assert.Equal(t, 30, rules.MaxConsecutiveDays)
	assert.Equal(t, 20, rules.MaxRequestsPerYear)
	require.Len(t, rules.Blackouts, 1)

	_, in := rules.InBlackout(generic.NewTimePoint(2025, time.December, 24))
	assert.True(t, in)
	_, in = rules.InBlackout(generic.NewTimePoint(2025, time.December, 19))
	assert.False(t, in)

	assert.True(t, rules.Allotments[timeoff.LeaveVacation].Equal(generic.Days(22)))
	assert.True(t, rules.Allotments[timeoff.LeavePersonal].Equal(generic.Days(3)))
}

func TestParseRules_DefaultsAndZeroDisables(t *testing.T) {
	// GIVEN: Only a zero notice period and a vacation override
	// THEN: Notice disabled, other limits and allotments keep their defaults
	f := NewRulesFactory()
	rules, err := f.ParseRules(`{"min_notice_days": 0, "allotments": {"VACATION": 25.5}}`)
	require.NoError(t, err)

	assert.Equal(t, 0, rules.MinNoticeDays)
	assert.Equal(t, 30, rules.MaxConsecutiveDays)
	assert.Equal(t, 20, rules.MaxRequestsPerYear)
	assert.True(t, rules.Allotments[timeoff.LeaveVacation].Equal(generic.Days(25.5)))
	assert.True(t, rules.Allotments[timeoff.LeaveSick].Equal(generic.Days(8)))
}

func TestParseRules_Errors(t *testing.T) {
	f := NewRulesFactory()
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"min_notice_days": `},
		{"negative limit", `{"max_requests_per_year": -1}`},
		{"unknown leave type", `{"allotments": {"sabbatical": 10}}`},
		{"negative allotment", `{"allotments": {"sick": -1}}`},
		{"bad blackout date", `{"blackouts": [{"start": "2025-13-01", "end": "2025-12-31"}]}`},
		{"reversed blackout", `{"blackouts": [{"start": "2025-12-31", "end": "2025-12-01"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseRules(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewRulesFactory()
	rules, err := f.ParseRules(StandardRulesJSON(2026))
	require.NoError(t, err)

	back, err := f.FromJSON(f.ToJSON(rules))
	require.NoError(t, err)
	assert.Equal(t, rules.MinNoticeDays, back.MinNoticeDays)
	assert.Equal(t, rules.Blackouts, back.Blackouts)
	for lt, amount := range rules.Allotments {
		assert.True(t, back.Allotments[lt].Equal(amount), "%s", lt)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_consecutive_days": 10}`), 0o600))

	rules, err := NewRulesFactory().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, rules.MaxConsecutiveDays)

	_, err = NewRulesFactory().LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
