/*
overtime.go - Overtime submission and conversion into vacation credit

PURPOSE:

	Employees log overtime hours at month end. Approval converts the hours
	into vacation days at HoursPerDay (8) hours per day and credits them to the
	VACATION balance; rejection has no balance effect.

SUBMISSION WINDOW:

	Overtime can only be created during the last 7 calendar days of the
	current month: lastDayOfMonth.Day - today.Day < 7. Otherwise the call
	fails with SubmissionWindowError naming the day the window opens.

CONVERSION:

	creditDays = hours / 8, fractional (20h -> 2.5 days). The credit raises
	Total, so Remaining grows by creditDays and Used is untouched.

SEE ALSO:
  - ledger.go: credit
*/
package timeoff

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-ledger/generic"
)

// SubmissionWindowDays is the length of the month-end overtime window.
const SubmissionWindowDays = 7

// OvertimeInput is a candidate overtime entry. A zero RequestDate means
// today; any other date must fall in the current month.
type OvertimeInput struct {
	UserID      string
	Hours       generic.Amount
	RequestDate generic.TimePoint
	Notes       string
}

type OvertimeService struct {
	ledger   *Ledger
	notifier Notifier
	logger   logrus.FieldLogger
	clock    func() time.Time
	run      *runner
}

// SubmissionWindow returns the first day of the window for today's month and
// whether today is inside it.
func SubmissionWindow(today generic.TimePoint) (generic.TimePoint, bool) {
	last := generic.EndOfMonth(today.Year(), today.Month())
	opens := last.AddDays(-(SubmissionWindowDays - 1))
	return opens, last.Day()-today.Day() < SubmissionWindowDays
}

// Create stores a PENDING overtime entry.
func (s *OvertimeService) Create(ctx context.Context, actor Actor, in OvertimeInput) (OvertimeRequest, error) {
	if in.UserID == "" {
		return OvertimeRequest{}, generic.NewValidationError(generic.CodeInvalidInput, "user id is required")
	}
	if !actor.CanActFor(in.UserID) {
		return OvertimeRequest{}, generic.NewValidationError(generic.CodeNotAuthorized, "cannot submit overtime for another user")
	}
	if !in.Hours.IsPositive() {
		return OvertimeRequest{}, generic.NewValidationError(generic.CodeInvalidInput, "overtime hours must be positive")
	}

	today := generic.FromTime(s.clock())
	if opens, ok := SubmissionWindow(today); !ok {
		return OvertimeRequest{}, &generic.SubmissionWindowError{Today: today, WindowOpens: opens}
	}
	date := in.RequestDate
	if date.IsZero() {
		date = today
	}
	if date.Year() != today.Year() || date.Month() != today.Month() {
		return OvertimeRequest{}, generic.NewValidationError(generic.CodeInvalidInput,
			fmt.Sprintf("overtime must be dated within the current month (%d-%02d), got %s", today.Year(), today.Month(), date))
	}

	var (
		created   OvertimeRequest
		requester User
		admins    []User
	)
	err := s.run.run(ctx, "create overtime", func(ctx context.Context, w *work) error {
		owner, err := w.tx.FindUser(ctx, in.UserID)
		if err != nil {
			return err
		}
		if owner == nil {
			return &generic.NotFoundError{Entity: "user", ID: in.UserID}
		}

		o := OvertimeRequest{
			ID:          uuid.NewString(),
			UserID:      in.UserID,
			Hours:       generic.Amount{Value: in.Hours.Value, Unit: generic.UnitHours},
			RequestDate: date,
			Month:       today.Month(),
			Year:        today.Year(),
			Status:      StatusPending,
			Notes:       in.Notes,
			CreatedAt:   w.now,
			UpdatedAt:   w.now,
		}
		if err := w.tx.CreateOvertime(ctx, o); err != nil {
			return err
		}
		w.record(actor.UserID, generic.AuditCreate, generic.AuditEntityOvertime, o.ID, o.details())

		if admins, err = w.tx.ListUsersByRole(ctx, RoleAdmin); err != nil {
			return err
		}
		created, requester = o, *owner
		return nil
	})
	if err != nil {
		return OvertimeRequest{}, err
	}

	if len(admins) > 0 {
		if err := s.notifier.NotifyOvertimeSubmitted(ctx, admins, requester, created); err != nil {
			s.logger.WithFields(logrus.Fields{
				"event":       "overtime submitted",
				"overtime_id": created.ID,
				"error":       err,
			}).Warn("notification failed")
		}
	}
	return created, nil
}

// Approve moves PENDING overtime to APPROVED and credits hours/8 vacation
// days to year (0 = the overtime's own year).
func (s *OvertimeService) Approve(ctx context.Context, actor Actor, id string, year int) (OvertimeRequest, error) {
	if !actor.CanApprove() {
		return OvertimeRequest{}, generic.NewValidationError(generic.CodeNotAuthorized, "only managers and admins can approve overtime")
	}
	var out OvertimeRequest
	err := s.run.run(ctx, "approve overtime", func(ctx context.Context, w *work) error {
		o, err := s.pending(ctx, w, id)
		if err != nil {
			return err
		}
		y := year
		if y == 0 {
			y = o.Year
		}

		prev := o.Status
		o.Status = StatusApproved
		o.UpdatedAt = w.now
		if err := w.tx.UpdateOvertimeStatus(ctx, o); err != nil {
			return err
		}
		credit := o.CreditDays()
		reason := fmt.Sprintf("Approved overtime request %s (%s hours)", o.ID, o.Hours.Value)
		if _, err := s.ledger.credit(ctx, w, actor.UserID, o.UserID, y, LeaveVacation, credit, reason); err != nil {
			return err
		}
		w.record(actor.UserID, generic.AuditUpdate, generic.AuditEntityOvertime, o.ID, map[string]any{
			"previous_status": string(prev),
			"new_status":      string(o.Status),
			"approver_id":     actor.UserID,
			"credit_days":     credit.Value.String(),
			"year":            y,
		})
		out = o
		return nil
	})
	return out, err
}

// Reject moves PENDING overtime to REJECTED.
func (s *OvertimeService) Reject(ctx context.Context, actor Actor, id, notes string) (OvertimeRequest, error) {
	if !actor.CanApprove() {
		return OvertimeRequest{}, generic.NewValidationError(generic.CodeNotAuthorized, "only managers and admins can reject overtime")
	}
	var out OvertimeRequest
	err := s.run.run(ctx, "reject overtime", func(ctx context.Context, w *work) error {
		o, err := s.pending(ctx, w, id)
		if err != nil {
			return err
		}
		prev := o.Status
		o.Status = StatusRejected
		o.UpdatedAt = w.now
		if notes != "" {
			o.Notes = notes
		}
		if err := w.tx.UpdateOvertimeStatus(ctx, o); err != nil {
			return err
		}
		w.record(actor.UserID, generic.AuditUpdate, generic.AuditEntityOvertime, o.ID, map[string]any{
			"previous_status": string(prev),
			"new_status":      string(o.Status),
			"approver_id":     actor.UserID,
		})
		out = o
		return nil
	})
	return out, err
}

// List returns matching overtime entries. Employees only see their own.
func (s *OvertimeService) List(ctx context.Context, actor Actor, filter OvertimeFilter) ([]OvertimeRequest, error) {
	if !actor.CanApprove() {
		filter.UserID = actor.UserID
	}
	var out []OvertimeRequest
	err := s.run.run(ctx, "list overtime", func(ctx context.Context, w *work) error {
		os, err := w.tx.ListOvertime(ctx, filter)
		out = os
		return err
	})
	return out, err
}

func (s *OvertimeService) pending(ctx context.Context, w *work, id string) (OvertimeRequest, error) {
	o, err := w.tx.FindOvertimeByID(ctx, id)
	if err != nil {
		return OvertimeRequest{}, err
	}
	if o == nil {
		return OvertimeRequest{}, &generic.NotFoundError{Entity: "overtime request", ID: id}
	}
	if o.Status != StatusPending {
		return OvertimeRequest{}, generic.NewValidationError(generic.CodeNotPending,
			fmt.Sprintf("overtime request %s is %s, not PENDING", o.ID, o.Status))
	}
	return *o, nil
}
