/*
errors.go - Centralized error types for the leave ledger

PURPOSE:

	All error types in one place for consistency and discoverability.
	Every structured error unwraps to a sentinel so callers can use
	errors.Is() for the category and errors.As() for the details.

ERROR CATEGORIES:
 1. Validation errors - Business rule violations (stable Code)
 2. Balance errors    - Insufficient remaining days
 3. Lookup errors     - Missing requests, users, overtime entries
 4. Store errors      - Wrapped storage faults (DatabaseError)

CODES:

	Every error maps to a stable machine-readable code through ErrorCode().
	The HTTP layer returns the code plus the human-readable message.

SEE ALSO:
  - timeoff/validator.go: Produces ValidationError values
  - timeoff/ledger.go: Produces InsufficientBalanceError
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the category of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a deduction exceeds remaining days.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateRequest is returned when an active request already covers the same keys.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrDatabase is the category of every wrapped storage failure.
	ErrDatabase = errors.New("database error")

	// ErrInvalidDate is returned for missing or unparseable dates.
	ErrInvalidDate = errors.New("invalid date")

	// ErrSubmissionWindow is returned when overtime is submitted outside the month-end window.
	ErrSubmissionWindow = errors.New("outside submission window")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// CODES
// =============================================================================

const (
	CodeInvalidRange         = "INVALID_RANGE"
	CodeInsufficientNotice   = "INSUFFICIENT_NOTICE"
	CodeOverlappingRequest   = "OVERLAPPING_REQUEST"
	CodeRequestLimitExceeded = "REQUEST_LIMIT_EXCEEDED"
	CodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
	CodeBlackoutDate         = "BLACKOUT_DATE"
	CodeMaxConsecutiveDays   = "MAX_CONSECUTIVE_DAYS"
	CodeNotPending           = "NOT_PENDING"
	CodeNotAuthorized        = "NOT_AUTHORIZED"
	CodeInvalidInput         = "INVALID_INPUT"

	CodeNotFound               = "NOT_FOUND"
	CodeDuplicateRequest       = "DUPLICATE_REQUEST"
	CodeDatabase               = "DATABASE_ERROR"
	CodeInvalidDate            = "INVALID_DATE"
	CodeSubmissionWindow       = "SUBMISSION_WINDOW"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError is a user input or business-rule violation.
type ValidationError struct {
	Code    string
	Message string
}

func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	Type      string
	Required  Amount
	Available Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: required %v, available %v",
		e.Type, e.Required.Value, e.Available.Value)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall is how many days are missing.
func (e *InsufficientBalanceError) Shortfall() Amount { return e.Required.Sub(e.Available) }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateRequestError points at the active request that already covers the same keys.
type DuplicateRequestError struct {
	ExistingID string
	Status     string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("a %s request with the same dates and type already exists (%s); check your existing requests",
		e.Status, e.ExistingID)
}

func (e *DuplicateRequestError) Unwrap() error { return ErrDuplicateRequest }

// DatabaseError wraps any storage-layer failure. Error() never exposes the cause.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string { return "database operation failed: " + e.Op }

func (e *DatabaseError) Unwrap() []error { return []error{ErrDatabase, e.Err} }

// Detail returns the full cause for server-side logs.
func (e *DatabaseError) Detail() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

// InvalidDateError is returned for NaN/null/unparseable dates.
type InvalidDateError struct {
	Input string
}

func (e *InvalidDateError) Error() string { return fmt.Sprintf("invalid date: %q", e.Input) }
func (e *InvalidDateError) Unwrap() error { return ErrInvalidDate }

// SubmissionWindowError reports that overtime was submitted too early in the month.
type SubmissionWindowError struct {
	Today       TimePoint
	WindowOpens TimePoint
}

func (e *SubmissionWindowError) Error() string {
	return fmt.Sprintf("overtime can only be submitted during the last 7 days of the month (opens %s, today %s)",
		e.WindowOpens, e.Today)
}

func (e *SubmissionWindowError) Unwrap() error { return ErrSubmissionWindow }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// WrapStore wraps a storage failure as DatabaseError, leaving domain errors untouched.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}
	return &DatabaseError{Op: op, Err: err}
}

// IsDomainError reports errors that are expected outcomes rather than faults.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateRequest) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrSubmissionWindow) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateRequest) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrSubmissionWindow)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ErrorCode maps an error to its stable machine-readable code.
func ErrorCode(err error) string {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Code
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDuplicateRequest):
		return CodeDuplicateRequest
	case errors.Is(err, ErrInvalidDate):
		return CodeInvalidDate
	case errors.Is(err, ErrSubmissionWindow):
		return CodeSubmissionWindow
	case errors.Is(err, ErrConcurrentModification):
		return CodeConcurrentModification
	default:
		return CodeDatabase
	}
}
