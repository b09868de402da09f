// Package timeoff implements the balance/request consistency engine.
// It owns the request lifecycle, the per-type balance ledger, pre-submission
// validation, overtime conversion and the audit trail. Persistence is reached
// only through the Store contract in store.go.
package timeoff

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveType string

const (
	LeaveVacation  LeaveType = "VACATION"
	LeaveSick      LeaveType = "SICK"
	LeavePaidLeave LeaveType = "PAID_LEAVE"
	LeavePersonal  LeaveType = "PERSONAL"
)

// LeaveTypes lists every leave type in display order.
var LeaveTypes = []LeaveType{LeaveVacation, LeaveSick, LeavePaidLeave, LeavePersonal}

// ParseLeaveType accepts any casing ("vacation", "PAID_LEAVE").
func ParseLeaveType(s string) (LeaveType, error) {
	t := LeaveType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", generic.NewValidationError(generic.CodeInvalidInput, fmt.Sprintf("unknown leave type %q", s))
	}
	return t, nil
}

func (t LeaveType) Valid() bool {
	for _, lt := range LeaveTypes {
		if t == lt {
			return true
		}
	}
	return false
}

// =============================================================================
// USERS & ACTORS
// =============================================================================

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return r, nil
	}
	return "", generic.NewValidationError(generic.CodeInvalidInput, fmt.Sprintf("unknown role %q", s))
}

// User owns balances and requests. Deleting a user cascades to both.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Actor is the identity supplied by the session layer for every operation.
// The engine trusts it and only enforces role checks.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanApprove reports whether the actor may approve or reject requests.
func (a Actor) CanApprove() bool { return a.Role == RoleAdmin || a.Role == RoleManager }

// CanActFor reports whether the actor may operate on userID's requests.
func (a Actor) CanActFor(userID string) bool { return a.IsAdmin() || a.UserID == userID }

// =============================================================================
// BALANCE - Per (user, year, leave type)
// =============================================================================

// Balance is the canonical per-type balance. Storage adapters that keep a
// single aggregated row per (user, year) normalize into this shape.
//
// INVARIANT: Remaining == Total - Used after every mutation.
type Balance struct {
	UserID    string
	Year      int
	Type      LeaveType
	Total     generic.Amount
	Used      generic.Amount
	Remaining generic.Amount
	Version   int64 // 0 = not yet persisted
	UpdatedAt time.Time
}

// Consistent checks the remaining = total - used invariant.
func (b Balance) Consistent() bool {
	return b.Remaining.Equal(b.Total.Sub(b.Used))
}

func (b Balance) Key() string {
	return fmt.Sprintf("%s:%d:%s", b.UserID, b.Year, b.Type)
}

func (b Balance) snapshot() map[string]any {
	return map[string]any{
		"total_days":     b.Total.Value.String(),
		"used_days":      b.Used.Value.String(),
		"remaining_days": b.Remaining.Value.String(),
	}
}

// Allotments holds the default total per leave type for lazily created balances.
type Allotments map[LeaveType]generic.Amount

// DefaultAllotments are the system defaults: 22 vacation, 8 sick, 0 paid leave, 3 personal.
func DefaultAllotments() Allotments {
	return Allotments{
		LeaveVacation:  generic.Days(22),
		LeaveSick:      generic.Days(8),
		LeavePaidLeave: generic.Days(0),
		LeavePersonal:  generic.Days(3),
	}
}

// NewBalance returns an unpersisted balance holding the default allotment.
func (a Allotments) NewBalance(userID string, year int, t LeaveType) Balance {
	total, ok := a[t]
	if !ok {
		total = generic.Days(0)
	}
	return Balance{
		UserID:    userID,
		Year:      year,
		Type:      t,
		Total:     total,
		Used:      generic.Days(0),
		Remaining: total,
	}
}

// =============================================================================
// TIME-OFF REQUEST
// =============================================================================

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

// Request is a time-off request. WorkingDays is computed once at creation and
// reused by approval and deletion so deduction and restoration are exact inverses.
type Request struct {
	ID          string
	UserID      string
	Type        LeaveType
	StartDate   generic.TimePoint
	EndDate     generic.TimePoint
	WorkingDays generic.Amount
	Status      RequestStatus
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r Request) Period() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}

// Year is the balance year a request is charged to by default.
func (r Request) Year() int { return r.StartDate.Year() }

func (r Request) details() map[string]any {
	return map[string]any{
		"type":         string(r.Type),
		"start_date":   r.StartDate.String(),
		"end_date":     r.EndDate.String(),
		"working_days": r.WorkingDays.Value.String(),
		"status":       string(r.Status),
		"reason":       r.Reason,
	}
}

// RequestFilter narrows request listings. Zero fields match everything.
type RequestFilter struct {
	UserID string
	Status RequestStatus
	Year   int
}

// =============================================================================
// OVERTIME REQUEST
// =============================================================================

// OvertimeRequest converts into vacation credit (hours / 8) when approved.
type OvertimeRequest struct {
	ID          string
	UserID      string
	Hours       generic.Amount
	RequestDate generic.TimePoint
	Month       time.Month
	Year        int
	Status      RequestStatus
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreditDays is the vacation credit this overtime earns.
func (o OvertimeRequest) CreditDays() generic.Amount { return o.Hours.ToDays() }

func (o OvertimeRequest) details() map[string]any {
	return map[string]any{
		"hours":        o.Hours.Value.String(),
		"request_date": o.RequestDate.String(),
		"month":        int(o.Month),
		"year":         o.Year,
		"status":       string(o.Status),
		"notes":        o.Notes,
	}
}

// OvertimeFilter narrows overtime listings.
type OvertimeFilter struct {
	UserID string
	Status RequestStatus
	Year   int
	Month  time.Month
}
