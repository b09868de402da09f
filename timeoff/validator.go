/*
validator.go - Pre-submission checks for time-off requests

PURPOSE:

	Runs every business rule against a candidate request and collects ALL
	violations. CreateRequest reports the first one; the dry-run endpoint
	reports the full list.

CHECK ORDER (also the order of ValidationResult.Errors):

 1. INVALID_RANGE          start <= end

 2. BLACKOUT_DATE          start is not inside a blackout period

 3. MAX_CONSECUTIVE_DAYS   inclusive calendar span <= MaxConsecutiveDays

 4. INSUFFICIENT_NOTICE    future starts need MinNoticeDays of notice;
    today and past starts always pass (backfill)

 5. OVERLAPPING_REQUEST    no APPROVED request of the user intersects the range

 6. REQUEST_LIMIT_EXCEEDED requests (any status) starting in the year < cap

 7. INSUFFICIENT_BALANCE   working days <= remaining of (user, start year, type)

    Checks 3 and 7 need a valid range and are skipped when check 1 fails.
    A zero limit in Rules disables its check.

READ-ONLY:

	The balance check reads the stored row or, when none exists, the default
	allotment the ledger would create. Validation never writes.

SEE ALSO:
  - rules.go: Rules
  - request.go: Create runs the validator inside its unit of work
*/
package timeoff

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// RequestInput is a candidate time-off request.
type RequestInput struct {
	UserID    string
	Type      LeaveType
	StartDate generic.TimePoint
	EndDate   generic.TimePoint
	Reason    string
}

func (in RequestInput) Period() generic.Period {
	return generic.Period{Start: in.StartDate, End: in.EndDate}
}

// ValidationResult lists every violated rule. WorkingDays is set whenever
// the range is valid.
type ValidationResult struct {
	Valid       bool
	Errors      []*generic.ValidationError
	WorkingDays int
}

// First returns the first violation, or nil.
func (r ValidationResult) First() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

func (r *ValidationResult) add(code, format string, args ...any) {
	r.Errors = append(r.Errors, generic.NewValidationError(code, fmt.Sprintf(format, args...)))
}

// =============================================================================
// VALIDATOR
// =============================================================================

type Validator struct {
	Rules    Rules
	Calendar generic.HolidayCalendar
	Clock    func() time.Time
}

func NewValidator(rules Rules, calendar generic.HolidayCalendar) *Validator {
	return &Validator{Rules: rules, Calendar: calendar, Clock: time.Now}
}

// Validate runs every check against in using tx for lookups.
// Only malformed input and storage failures are returned as errors.
func (v *Validator) Validate(ctx context.Context, tx Tx, in RequestInput) (ValidationResult, error) {
	if in.StartDate.IsZero() {
		return ValidationResult{}, &generic.InvalidDateError{Input: "start_date"}
	}
	if in.EndDate.IsZero() {
		return ValidationResult{}, &generic.InvalidDateError{Input: "end_date"}
	}

	var res ValidationResult
	period := in.Period()
	rangeOK := period.Valid()

	if !rangeOK {
		res.add(generic.CodeInvalidRange, "start date %s is after end date %s", in.StartDate, in.EndDate)
	}

	if blackout, ok := v.Rules.InBlackout(in.StartDate); ok {
		res.add(generic.CodeBlackoutDate, "start date %s falls in blackout period %s", in.StartDate, blackout)
	}

	if rangeOK && v.Rules.MaxConsecutiveDays > 0 && period.LengthDays() > v.Rules.MaxConsecutiveDays {
		res.add(generic.CodeMaxConsecutiveDays, "request spans %d days, maximum is %d",
			period.LengthDays(), v.Rules.MaxConsecutiveDays)
	}

	today := generic.FromTime(v.Clock())
	if v.Rules.MinNoticeDays > 0 && in.StartDate.After(today) {
		if notice := generic.DaysBetween(today, in.StartDate); notice < v.Rules.MinNoticeDays {
			res.add(generic.CodeInsufficientNotice, "requests need %d days notice, got %d",
				v.Rules.MinNoticeDays, notice)
		}
	}

	overlapping, err := tx.FindOverlappingApprovedRequests(ctx, in.UserID, period)
	if err != nil {
		return ValidationResult{}, err
	}
	if len(overlapping) > 0 {
		res.add(generic.CodeOverlappingRequest, "overlaps approved request %s (%s)",
			overlapping[0].ID, overlapping[0].Period())
	}

	if v.Rules.MaxRequestsPerYear > 0 {
		count, err := tx.CountRequestsInYear(ctx, in.UserID, in.StartDate.Year())
		if err != nil {
			return ValidationResult{}, err
		}
		if count >= v.Rules.MaxRequestsPerYear {
			res.add(generic.CodeRequestLimitExceeded, "limit of %d requests in %d reached",
				v.Rules.MaxRequestsPerYear, in.StartDate.Year())
		}
	}

	if rangeOK {
		days, err := generic.CountWorkingDays(v.Calendar, in.StartDate, in.EndDate)
		if err != nil {
			return ValidationResult{}, err
		}
		res.WorkingDays = days

		remaining, err := v.remaining(ctx, tx, in.UserID, in.StartDate.Year(), in.Type)
		if err != nil {
			return ValidationResult{}, err
		}
		if generic.NewAmountFromInt(days, generic.UnitDays).GreaterThan(remaining) {
			res.add(generic.CodeInsufficientBalance, "request needs %d %s days, %s remaining",
				days, in.Type, remaining.Value)
		}
	}

	res.Valid = len(res.Errors) == 0
	return res, nil
}

func (v *Validator) remaining(ctx context.Context, tx Tx, userID string, year int, leaveType LeaveType) (generic.Amount, error) {
	b, err := tx.FindBalance(ctx, userID, year, leaveType)
	if err != nil {
		return generic.Amount{}, err
	}
	if b != nil {
		return b.Remaining, nil
	}
	return v.Rules.Allotments.NewBalance(userID, year, leaveType).Remaining, nil
}
