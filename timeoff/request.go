/*
request.go - Time-off request lifecycle

PURPOSE:

	State machine over a time-off request. Each transition runs as one unit of
	work: the request row, the balance row and the audit entries change
	together or not at all.

STATE MACHINE:

	PENDING --approve--> APPROVED   (deducts cached WorkingDays)
	PENDING --reject---> REJECTED   (no balance effect)
	PENDING --delete---> (removed)
	APPROVED --delete--> (removed)  (restores cached WorkingDays)

	APPROVED and REJECTED are terminal. Approving or rejecting anything but a
	PENDING request fails with NOT_PENDING; re-approval is an error, never a
	no-op.

CACHED WORKING DAYS:

	WorkingDays is computed once at creation. Approval and deletion reuse the
	stored value so deduction and restoration are exact inverses even if the
	holiday tables change in between.

AUTHORIZATION:

	create:         the user themself or an admin
	approve/reject: managers and admins
	delete:         the owner or an admin

NOTIFICATIONS:

	Sent after commit. A failed notification is logged and never fails the
	operation.

SEE ALSO:
  - validator.go: Rules run by Create
  - ledger.go: deduct/restore composed into Approve/Delete
*/
package timeoff

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-ledger/generic"
)

type RequestService struct {
	ledger    *Ledger
	validator *Validator
	notifier  Notifier
	logger    logrus.FieldLogger
	run       *runner
}

// =============================================================================
// CREATE
// =============================================================================

// Create validates and stores a PENDING request.
func (s *RequestService) Create(ctx context.Context, actor Actor, in RequestInput) (Request, error) {
	if err := s.checkInput(actor, in); err != nil {
		return Request{}, err
	}

	var (
		created   Request
		requester User
		admins    []User
	)
	err := s.run.run(ctx, "create request", func(ctx context.Context, w *work) error {
		owner, err := w.tx.FindUser(ctx, in.UserID)
		if err != nil {
			return err
		}
		if owner == nil {
			return &generic.NotFoundError{Entity: "user", ID: in.UserID}
		}

		dup, err := w.tx.FindActiveDuplicate(ctx, in.UserID, in.Type, in.Period())
		if err != nil {
			return err
		}
		if dup != nil {
			return &generic.DuplicateRequestError{ExistingID: dup.ID, Status: string(dup.Status)}
		}

		res, err := s.validator.Validate(ctx, w.tx, in)
		if err != nil {
			return err
		}
		if !res.Valid {
			return res.First()
		}

		r := Request{
			ID:          uuid.NewString(),
			UserID:      in.UserID,
			Type:        in.Type,
			StartDate:   in.StartDate,
			EndDate:     in.EndDate,
			WorkingDays: generic.NewAmountFromInt(res.WorkingDays, generic.UnitDays),
			Status:      StatusPending,
			Reason:      in.Reason,
			CreatedAt:   w.now,
			UpdatedAt:   w.now,
		}
		if err := w.tx.CreateRequest(ctx, r); err != nil {
			return err
		}
		w.record(actor.UserID, generic.AuditCreate, generic.AuditEntityRequest, r.ID, r.details())

		if admins, err = w.tx.ListUsersByRole(ctx, RoleAdmin); err != nil {
			return err
		}
		created, requester = r, *owner
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	s.notify("request submitted", created.ID, s.notifier.NotifyRequestSubmitted(ctx, requester, created))
	if len(admins) > 0 {
		s.notify("admins notified", created.ID, s.notifier.NotifyAdminsOfNewRequest(ctx, admins, requester, created))
	}
	return created, nil
}

// Validate is a dry run of Create: it reports every violated rule and the
// working-day count without writing anything.
func (s *RequestService) Validate(ctx context.Context, actor Actor, in RequestInput) (ValidationResult, error) {
	if err := s.checkInput(actor, in); err != nil {
		return ValidationResult{}, err
	}
	var out ValidationResult
	err := s.run.run(ctx, "validate request", func(ctx context.Context, w *work) error {
		res, err := s.validator.Validate(ctx, w.tx, in)
		out = res
		return err
	})
	return out, err
}

func (s *RequestService) checkInput(actor Actor, in RequestInput) error {
	if in.UserID == "" {
		return generic.NewValidationError(generic.CodeInvalidInput, "user id is required")
	}
	if !actor.CanActFor(in.UserID) {
		return generic.NewValidationError(generic.CodeNotAuthorized, "cannot submit requests for another user")
	}
	if !in.Type.Valid() {
		return generic.NewValidationError(generic.CodeInvalidInput, fmt.Sprintf("unknown leave type %q", in.Type))
	}
	if in.StartDate.IsZero() {
		return &generic.InvalidDateError{Input: "start_date"}
	}
	if in.EndDate.IsZero() {
		return &generic.InvalidDateError{Input: "end_date"}
	}
	return nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Approve moves a PENDING request to APPROVED and deducts its working days
// from the balance of year (0 = the request's start year). Insufficient
// balance rolls the status change back.
func (s *RequestService) Approve(ctx context.Context, actor Actor, id string, year int) (Request, error) {
	if !actor.CanApprove() {
		return Request{}, generic.NewValidationError(generic.CodeNotAuthorized, "only managers and admins can approve requests")
	}

	var (
		approved  Request
		requester *User
	)
	err := s.run.run(ctx, "approve request", func(ctx context.Context, w *work) error {
		r, err := s.pending(ctx, w, id)
		if err != nil {
			return err
		}
		if year == 0 {
			year = r.Year()
		}

		prev := r.Status
		r.Status = StatusApproved
		r.UpdatedAt = w.now
		if err := w.tx.UpdateRequestStatus(ctx, r); err != nil {
			return err
		}
		reason := fmt.Sprintf("Approved time off request %s", r.ID)
		if _, err := s.ledger.deduct(ctx, w, actor.UserID, r.UserID, year, r.Type, r.WorkingDays, reason); err != nil {
			return err
		}
		w.record(actor.UserID, generic.AuditUpdate, generic.AuditEntityRequest, r.ID, map[string]any{
			"previous_status": string(prev),
			"new_status":      string(r.Status),
			"approver_id":     actor.UserID,
			"year":            year,
		})

		if requester, err = w.tx.FindUser(ctx, r.UserID); err != nil {
			return err
		}
		approved = r
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	if requester != nil {
		s.notify("request approved", approved.ID, s.notifier.NotifyRequestApproved(ctx, *requester, approved))
	}
	return approved, nil
}

// Reject moves a PENDING request to REJECTED. A non-empty reason replaces
// the request's reason.
func (s *RequestService) Reject(ctx context.Context, actor Actor, id, reason string) (Request, error) {
	if !actor.CanApprove() {
		return Request{}, generic.NewValidationError(generic.CodeNotAuthorized, "only managers and admins can reject requests")
	}

	var (
		rejected  Request
		requester *User
	)
	err := s.run.run(ctx, "reject request", func(ctx context.Context, w *work) error {
		r, err := s.pending(ctx, w, id)
		if err != nil {
			return err
		}

		prev := r.Status
		r.Status = StatusRejected
		r.UpdatedAt = w.now
		if reason != "" {
			r.Reason = reason
		}
		if err := w.tx.UpdateRequestStatus(ctx, r); err != nil {
			return err
		}
		w.record(actor.UserID, generic.AuditUpdate, generic.AuditEntityRequest, r.ID, map[string]any{
			"previous_status": string(prev),
			"new_status":      string(r.Status),
			"approver_id":     actor.UserID,
			"reason":          r.Reason,
		})

		if requester, err = w.tx.FindUser(ctx, r.UserID); err != nil {
			return err
		}
		rejected = r
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	if requester != nil {
		s.notify("request rejected", rejected.ID, s.notifier.NotifyRequestRejected(ctx, *requester, rejected))
	}
	return rejected, nil
}

// Delete removes a request. Deleting an APPROVED request restores its
// working days to the balance of year (0 = the request's start year).
func (s *RequestService) Delete(ctx context.Context, actor Actor, id string, year int) error {
	return s.run.run(ctx, "delete request", func(ctx context.Context, w *work) error {
		r, err := s.find(ctx, w, id)
		if err != nil {
			return err
		}
		if !actor.CanActFor(r.UserID) {
			return generic.NewValidationError(generic.CodeNotAuthorized, "only the owner or an admin can delete a request")
		}
		y := year
		if y == 0 {
			y = r.Year()
		}

		if r.Status == StatusApproved {
			reason := fmt.Sprintf("Deleted time off request %s", r.ID)
			if _, err := s.ledger.restore(ctx, w, actor.UserID, r.UserID, y, r.Type, r.WorkingDays, reason); err != nil {
				return err
			}
		}
		if err := w.tx.DeleteRequest(ctx, r.ID); err != nil {
			return err
		}
		w.record(actor.UserID, generic.AuditDelete, generic.AuditEntityRequest, r.ID, r.details())
		return nil
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns one request. Employees only see their own.
func (s *RequestService) Get(ctx context.Context, actor Actor, id string) (Request, error) {
	var out Request
	err := s.run.run(ctx, "get request", func(ctx context.Context, w *work) error {
		r, err := s.find(ctx, w, id)
		if err != nil {
			return err
		}
		if !actor.CanApprove() && r.UserID != actor.UserID {
			return &generic.NotFoundError{Entity: "request", ID: id}
		}
		out = r
		return nil
	})
	return out, err
}

// List returns matching requests. Employees are restricted to their own.
func (s *RequestService) List(ctx context.Context, actor Actor, filter RequestFilter) ([]Request, error) {
	if !actor.CanApprove() {
		filter.UserID = actor.UserID
	}
	var out []Request
	err := s.run.run(ctx, "list requests", func(ctx context.Context, w *work) error {
		rs, err := w.tx.ListRequests(ctx, filter)
		out = rs
		return err
	})
	return out, err
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *RequestService) find(ctx context.Context, w *work, id string) (Request, error) {
	r, err := w.tx.FindRequestByID(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if r == nil {
		return Request{}, &generic.NotFoundError{Entity: "request", ID: id}
	}
	return *r, nil
}

func (s *RequestService) pending(ctx context.Context, w *work, id string) (Request, error) {
	r, err := s.find(ctx, w, id)
	if err != nil {
		return Request{}, err
	}
	if r.Status != StatusPending {
		return Request{}, generic.NewValidationError(generic.CodeNotPending,
			fmt.Sprintf("request %s is %s, not PENDING", r.ID, r.Status))
	}
	return r, nil
}

func (s *RequestService) notify(event, id string, err error) {
	if err == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"event":      event,
		"request_id": id,
		"error":      err,
	}).Warn("notification failed")
}
