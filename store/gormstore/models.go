package gormstore

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// TABLE MODELS
// =============================================================================

type userModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:255;not null"`
	Email     string    `gorm:"size:255;not null"`
	Role      string    `gorm:"size:20;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

// balanceRow is the aggregated balance: one row per (user, year) with a
// total/used column pair per leave type. A NULL total means the leave type
// has not been initialized for that year yet.
type balanceRow struct {
	UserID         string              `gorm:"primaryKey;size:64"`
	Year           int                 `gorm:"primaryKey"`
	VacationTotal  decimal.NullDecimal `gorm:"type:numeric"`
	VacationUsed   decimal.NullDecimal `gorm:"type:numeric"`
	SickTotal      decimal.NullDecimal `gorm:"type:numeric"`
	SickUsed       decimal.NullDecimal `gorm:"type:numeric"`
	PaidLeaveTotal decimal.NullDecimal `gorm:"type:numeric"`
	PaidLeaveUsed  decimal.NullDecimal `gorm:"type:numeric"`
	PersonalTotal  decimal.NullDecimal `gorm:"type:numeric"`
	PersonalUsed   decimal.NullDecimal `gorm:"type:numeric"`
	Version        int64               `gorm:"not null;default:1"`
	UpdatedAt      time.Time
}

func (balanceRow) TableName() string { return "leave_balances" }

// columns returns the total and used column names of a leave type.
func columns(lt timeoff.LeaveType) (total, used string) {
	switch lt {
	case timeoff.LeaveVacation:
		return "vacation_total", "vacation_used"
	case timeoff.LeaveSick:
		return "sick_total", "sick_used"
	case timeoff.LeavePaidLeave:
		return "paid_leave_total", "paid_leave_used"
	default:
		return "personal_total", "personal_used"
	}
}

func (r *balanceRow) fields(lt timeoff.LeaveType) (total, used *decimal.NullDecimal) {
	switch lt {
	case timeoff.LeaveVacation:
		return &r.VacationTotal, &r.VacationUsed
	case timeoff.LeaveSick:
		return &r.SickTotal, &r.SickUsed
	case timeoff.LeavePaidLeave:
		return &r.PaidLeaveTotal, &r.PaidLeaveUsed
	default:
		return &r.PersonalTotal, &r.PersonalUsed
	}
}

func (r *balanceRow) has(lt timeoff.LeaveType) bool {
	total, _ := r.fields(lt)
	return total.Valid
}

func (r *balanceRow) set(b timeoff.Balance) {
	total, used := r.fields(b.Type)
	*total = decimal.NullDecimal{Decimal: b.Total.Value, Valid: true}
	*used = decimal.NullDecimal{Decimal: b.Used.Value, Valid: true}
}

// balance normalizes one leave type of the row into the canonical shape.
// Remaining is derived, never stored.
func (r *balanceRow) balance(lt timeoff.LeaveType) timeoff.Balance {
	total, used := r.fields(lt)
	b := timeoff.Balance{
		UserID:    r.UserID,
		Year:      r.Year,
		Type:      lt,
		Total:     generic.Amount{Value: total.Decimal, Unit: generic.UnitDays},
		Used:      generic.Amount{Value: used.Decimal, Unit: generic.UnitDays},
		Version:   r.Version,
		UpdatedAt: r.UpdatedAt,
	}
	b.Remaining = b.Total.Sub(b.Used)
	return b
}

type requestModel struct {
	ID          string          `gorm:"primaryKey;size:36"`
	UserID      string          `gorm:"size:64;not null;index:idx_requests_user_start,priority:1;index:idx_requests_user_status,priority:1"`
	LeaveType   string          `gorm:"size:20;not null"`
	StartDate   string          `gorm:"type:varchar(10);not null;index:idx_requests_user_start,priority:2"`
	EndDate     string          `gorm:"type:varchar(10);not null"`
	WorkingDays decimal.Decimal `gorm:"type:numeric;not null"`
	Status      string          `gorm:"size:20;not null;index:idx_requests_user_status,priority:2"`
	Reason      string          `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

func (requestModel) TableName() string { return "time_off_requests" }

func newRequestModel(r timeoff.Request) requestModel {
	return requestModel{
		ID:          r.ID,
		UserID:      r.UserID,
		LeaveType:   string(r.Type),
		StartDate:   r.StartDate.String(),
		EndDate:     r.EndDate.String(),
		WorkingDays: r.WorkingDays.Value,
		Status:      string(r.Status),
		Reason:      r.Reason,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (m requestModel) toDomain() timeoff.Request {
	start, _ := generic.ParseDate(m.StartDate)
	end, _ := generic.ParseDate(m.EndDate)
	return timeoff.Request{
		ID:          m.ID,
		UserID:      m.UserID,
		Type:        timeoff.LeaveType(m.LeaveType),
		StartDate:   start,
		EndDate:     end,
		WorkingDays: generic.Amount{Value: m.WorkingDays, Unit: generic.UnitDays},
		Status:      timeoff.RequestStatus(m.Status),
		Reason:      m.Reason,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

type overtimeModel struct {
	ID          string          `gorm:"primaryKey;size:36"`
	UserID      string          `gorm:"size:64;not null;index:idx_overtime_user_period,priority:1"`
	Hours       decimal.Decimal `gorm:"type:numeric;not null"`
	RequestDate string          `gorm:"type:varchar(10);not null"`
	Month       int             `gorm:"not null;index:idx_overtime_user_period,priority:3"`
	Year        int             `gorm:"not null;index:idx_overtime_user_period,priority:2"`
	Status      string          `gorm:"size:20;not null"`
	Notes       string          `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

func (overtimeModel) TableName() string { return "overtime_requests" }

func newOvertimeModel(o timeoff.OvertimeRequest) overtimeModel {
	return overtimeModel{
		ID:          o.ID,
		UserID:      o.UserID,
		Hours:       o.Hours.Value,
		RequestDate: o.RequestDate.String(),
		Month:       int(o.Month),
		Year:        o.Year,
		Status:      string(o.Status),
		Notes:       o.Notes,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func (m overtimeModel) toDomain() timeoff.OvertimeRequest {
	date, _ := generic.ParseDate(m.RequestDate)
	return timeoff.OvertimeRequest{
		ID:          m.ID,
		UserID:      m.UserID,
		Hours:       generic.Amount{Value: m.Hours, Unit: generic.UnitHours},
		RequestDate: date,
		Month:       time.Month(m.Month),
		Year:        m.Year,
		Status:      timeoff.RequestStatus(m.Status),
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

// auditModel has no relation to users so entries outlive the users they name.
type auditModel struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	ID         string    `gorm:"size:36;not null;uniqueIndex"`
	UserID     string    `gorm:"size:64;not null;index"`
	Action     string    `gorm:"size:20;not null"`
	EntityType string    `gorm:"size:20;not null;index:idx_audit_entity,priority:1"`
	EntityID   string    `gorm:"size:64;not null;index:idx_audit_entity,priority:2"`
	Details    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (auditModel) TableName() string { return "audit_logs" }

func newAuditModel(e generic.AuditEntry) (auditModel, error) {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return auditModel{}, err
	}
	return auditModel{
		ID:         e.ID,
		UserID:     e.UserID,
		Action:     string(e.Action),
		EntityType: string(e.EntityType),
		EntityID:   e.EntityID,
		Details:    string(details),
		CreatedAt:  e.CreatedAt,
	}, nil
}

func (m auditModel) toDomain() (generic.AuditEntry, error) {
	e := generic.AuditEntry{
		ID:         m.ID,
		UserID:     m.UserID,
		Action:     generic.AuditAction(m.Action),
		EntityType: generic.AuditEntityType(m.EntityType),
		EntityID:   m.EntityID,
		CreatedAt:  m.CreatedAt.UTC(),
	}
	if m.Details != "" && m.Details != "null" {
		if err := json.Unmarshal([]byte(m.Details), &e.Details); err != nil {
			return generic.AuditEntry{}, err
		}
	}
	return e, nil
}
