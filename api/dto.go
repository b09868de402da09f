/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication. These types decouple
	the domain model from the external API contract: day amounts become JSON
	numbers, calendar days become YYYY-MM-DD strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:

	Validation is done by the engine, not in DTOs. Handlers only parse dates
	and leave types.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateTimeOffRequest is the body of POST /api/requests and
// POST /api/requests/validate. UserID defaults to the caller.
type CreateTimeOffRequest struct {
	UserID    string `json:"user_id,omitempty"`
	Type      string `json:"type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason,omitempty"`
}

// DecisionRequest is the optional body of approve/reject endpoints.
type DecisionRequest struct {
	Year   int    `json:"year,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// AdjustBalanceRequest is the body of PUT /api/balances/{userID}.
type AdjustBalanceRequest struct {
	Year  int     `json:"year"`
	Type  string  `json:"type"`
	Total float64 `json:"total"`
}

// CreateOvertimeRequest is the body of POST /api/overtime.
type CreateOvertimeRequest struct {
	UserID      string  `json:"user_id,omitempty"`
	Hours       float64 `json:"hours"`
	RequestDate string  `json:"request_date,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type RequestDTO struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	WorkingDays float64   `json:"working_days"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toRequestDTO(r timeoff.Request) RequestDTO {
	return RequestDTO{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        string(r.Type),
		StartDate:   r.StartDate.String(),
		EndDate:     r.EndDate.String(),
		WorkingDays: r.WorkingDays.Float64(),
		Status:      string(r.Status),
		Reason:      r.Reason,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ValidationDTO is the dry-run result: every violated rule, in check order.
type ValidationDTO struct {
	Valid       bool            `json:"valid"`
	WorkingDays int             `json:"working_days"`
	Errors      []ErrorResponse `json:"errors"`
}

func toValidationDTO(res timeoff.ValidationResult) ValidationDTO {
	dto := ValidationDTO{Valid: res.Valid, WorkingDays: res.WorkingDays, Errors: []ErrorResponse{}}
	for _, e := range res.Errors {
		dto.Errors = append(dto.Errors, ErrorResponse{Error: e.Message, Code: e.Code})
	}
	return dto
}

type BalanceDTO struct {
	Type      string  `json:"type"`
	Total     float64 `json:"total"`
	Used      float64 `json:"used"`
	Remaining float64 `json:"remaining"`
}

// BalanceSummaryDTO lists every leave type of one (user, year).
type BalanceSummaryDTO struct {
	UserID   string       `json:"user_id"`
	Year     int          `json:"year"`
	Balances []BalanceDTO `json:"balances"`
}

func toBalanceDTO(b timeoff.Balance) BalanceDTO {
	return BalanceDTO{
		Type:      string(b.Type),
		Total:     b.Total.Float64(),
		Used:      b.Used.Float64(),
		Remaining: b.Remaining.Float64(),
	}
}

type OvertimeDTO struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Hours       float64   `json:"hours"`
	CreditDays  float64   `json:"credit_days"`
	RequestDate string    `json:"request_date"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toOvertimeDTO(o timeoff.OvertimeRequest) OvertimeDTO {
	return OvertimeDTO{
		ID:          o.ID,
		UserID:      o.UserID,
		Hours:       o.Hours.Float64(),
		CreditDays:  o.CreditDays().Float64(),
		RequestDate: o.RequestDate.String(),
		Month:       int(o.Month),
		Year:        o.Year,
		Status:      string(o.Status),
		Notes:       o.Notes,
		CreatedAt:   o.CreatedAt,
	}
}

type UserDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type AuditEntryDTO struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func toAuditDTO(e generic.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:         e.ID,
		UserID:     e.UserID,
		Action:     string(e.Action),
		EntityType: string(e.EntityType),
		EntityID:   e.EntityID,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt,
	}
}

type WorkingDaysDTO struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	WorkingDays int    `json:"working_days"`
}

type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
