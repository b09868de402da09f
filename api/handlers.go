/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:

	Exposes the consistency engine over REST. Handlers parse the request,
	take the actor from the bearer token and delegate to the engine. No
	business rule lives here.

ENDPOINTS:

	Requests:
	  POST   /api/requests                 Create (validated) request
	  POST   /api/requests/validate        Dry run: every violated rule
	  GET    /api/requests                 List (?user_id=&status=&year=)
	  GET    /api/requests/{id}            Get one
	  POST   /api/requests/{id}/approve    Approve (deducts balance)
	  POST   /api/requests/{id}/reject     Reject
	  DELETE /api/requests/{id}            Delete (restores if approved)

	Balances:
	  GET    /api/balances/{userID}        All leave types (?year=)
	  PUT    /api/balances/{userID}        Admin adjustment of a total

	Overtime:
	  POST   /api/overtime                 Submit (month-end window)
	  GET    /api/overtime                 List (?user_id=&status=&year=&month=)
	  POST   /api/overtime/{id}/approve    Approve (credits hours/8 days)
	  POST   /api/overtime/{id}/reject     Reject

	Calendar:
	  GET    /api/calendar/working-days    ?start=&end=
	  GET    /api/calendar/holidays        ?year=

	Users / audit:
	  POST   /api/users                    Admin only
	  DELETE /api/users/{id}               Admin only, cascades
	  GET    /api/audit                    ?user_id=&entity_type=&entity_id=&limit=

ERROR HANDLING:

	Errors are returned as {"error": message, "code": CODE}:
	  - 400: Malformed input (INVALID_INPUT, INVALID_DATE, INVALID_RANGE)
	  - 403: NOT_AUTHORIZED
	  - 404: NOT_FOUND
	  - 409: DUPLICATE_REQUEST, CONCURRENT_MODIFICATION
	  - 422: Business-rule violations (balance, notice, overlap, window...)
	  - 500: DATABASE_ERROR (cause is logged, never returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *timeoff.Engine
	Logger logrus.FieldLogger
	Clock  func() time.Time
}

func NewHandler(engine *timeoff.Engine, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{Engine: engine, Logger: logger, Clock: time.Now}
}

func (h *Handler) currentYear() int {
	return h.Clock().UTC().Year()
}

// =============================================================================
// TIME-OFF REQUESTS
// =============================================================================

// CreateRequest submits a validated PENDING request.
// POST /api/requests
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, in, err := h.requestInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.Engine.Requests.Create(r.Context(), actor, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// ValidateRequest reports every rule the request would violate.
// POST /api/requests/validate
func (h *Handler) ValidateRequest(w http.ResponseWriter, r *http.Request) {
	actor, in, err := h.requestInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Engine.Requests.Validate(r.Context(), actor, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toValidationDTO(res))
}

func (h *Handler) requestInput(r *http.Request) (timeoff.Actor, timeoff.RequestInput, error) {
	actor, err := mustActor(r)
	if err != nil {
		return actor, timeoff.RequestInput{}, err
	}
	var body CreateTimeOffRequest
	if err := decode(r, &body); err != nil {
		return actor, timeoff.RequestInput{}, err
	}
	leaveType, err := timeoff.ParseLeaveType(body.Type)
	if err != nil {
		return actor, timeoff.RequestInput{}, err
	}
	start, err := generic.ParseDate(body.StartDate)
	if err != nil {
		return actor, timeoff.RequestInput{}, err
	}
	end, err := generic.ParseDate(body.EndDate)
	if err != nil {
		return actor, timeoff.RequestInput{}, err
	}
	userID := body.UserID
	if userID == "" {
		userID = actor.UserID
	}
	return actor, timeoff.RequestInput{
		UserID:    userID,
		Type:      leaveType,
		StartDate: start,
		EndDate:   end,
		Reason:    body.Reason,
	}, nil
}

// ListRequests lists requests. Employees only see their own.
// GET /api/requests
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	year, err := queryInt(r, "year", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter := timeoff.RequestFilter{
		UserID: q.Get("user_id"),
		Status: timeoff.RequestStatus(q.Get("status")),
		Year:   year,
	}
	requests, err := h.Engine.Requests.List(r.Context(), actor, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]RequestDTO, 0, len(requests))
	for _, req := range requests {
		dtos = append(dtos, toRequestDTO(req))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRequest returns one request.
// GET /api/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.Engine.Requests.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ApproveRequest approves a PENDING request.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	actor, body, err := h.decision(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.Engine.Requests.Approve(r.Context(), actor, chi.URLParam(r, "id"), body.Year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// RejectRequest rejects a PENDING request.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	actor, body, err := h.decision(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.Engine.Requests.Reject(r.Context(), actor, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// DeleteRequest removes a request, restoring approved days.
// DELETE /api/requests/{id}?year=
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Engine.Requests.Delete(r.Context(), actor, chi.URLParam(r, "id"), year); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decision reads the optional approve/reject body.
func (h *Handler) decision(r *http.Request) (timeoff.Actor, DecisionRequest, error) {
	actor, err := mustActor(r)
	if err != nil {
		return actor, DecisionRequest{}, err
	}
	var body DecisionRequest
	if r.ContentLength != 0 {
		if err := decode(r, &body); err != nil {
			return actor, body, err
		}
	}
	return actor, body, nil
}

// =============================================================================
// BALANCES
// =============================================================================

// GetBalances returns every leave type for a user and year.
// GET /api/balances/{userID}?year=
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	userID := chi.URLParam(r, "userID")
	if !actor.CanApprove() && actor.UserID != userID {
		h.writeError(w, r, generic.NewValidationError(generic.CodeNotAuthorized, "cannot view another user's balance"))
		return
	}
	year, err := queryInt(r, "year", h.currentYear())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	balances, err := h.Engine.Ledger.Summary(r.Context(), userID, year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dto := BalanceSummaryDTO{UserID: userID, Year: year, Balances: make([]BalanceDTO, 0, len(balances))}
	for _, b := range balances {
		dto.Balances = append(dto.Balances, toBalanceDTO(b))
	}
	writeJSON(w, http.StatusOK, dto)
}

// AdjustBalance sets the total of one leave type.
// PUT /api/balances/{userID}
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body AdjustBalanceRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	leaveType, err := timeoff.ParseLeaveType(body.Type)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.Year == 0 {
		body.Year = h.currentYear()
	}
	b, err := h.Engine.Ledger.SetTotal(r.Context(), actor, chi.URLParam(r, "userID"), body.Year, leaveType, generic.Days(body.Total))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// =============================================================================
// OVERTIME
// =============================================================================

// CreateOvertime submits overtime hours.
// POST /api/overtime
func (h *Handler) CreateOvertime(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body CreateOvertimeRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	in := timeoff.OvertimeInput{
		UserID: body.UserID,
		Hours:  generic.Hours(body.Hours),
		Notes:  body.Notes,
	}
	if in.UserID == "" {
		in.UserID = actor.UserID
	}
	if body.RequestDate != "" {
		if in.RequestDate, err = generic.ParseDate(body.RequestDate); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	o, err := h.Engine.Overtime.Create(r.Context(), actor, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOvertimeDTO(o))
}

// ListOvertime lists overtime entries. Employees only see their own.
// GET /api/overtime
func (h *Handler) ListOvertime(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	month, err := queryInt(r, "month", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter := timeoff.OvertimeFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: timeoff.RequestStatus(r.URL.Query().Get("status")),
		Year:   year,
		Month:  time.Month(month),
	}
	entries, err := h.Engine.Overtime.List(r.Context(), actor, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]OvertimeDTO, 0, len(entries))
	for _, o := range entries {
		dtos = append(dtos, toOvertimeDTO(o))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveOvertime credits the hours as vacation days.
// POST /api/overtime/{id}/approve
func (h *Handler) ApproveOvertime(w http.ResponseWriter, r *http.Request) {
	actor, body, err := h.decision(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.Engine.Overtime.Approve(r.Context(), actor, chi.URLParam(r, "id"), body.Year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOvertimeDTO(o))
}

// RejectOvertime rejects PENDING overtime.
// POST /api/overtime/{id}/reject
func (h *Handler) RejectOvertime(w http.ResponseWriter, r *http.Request) {
	actor, body, err := h.decision(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.Engine.Overtime.Reject(r.Context(), actor, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOvertimeDTO(o))
}

// =============================================================================
// CALENDAR
// =============================================================================

// WorkingDays counts working days in an inclusive range.
// GET /api/calendar/working-days?start=&end=
func (h *Handler) WorkingDays(w http.ResponseWriter, r *http.Request) {
	start, err := generic.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	end, err := generic.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.Engine.WorkingDays(start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WorkingDaysDTO{Start: start.String(), End: end.String(), WorkingDays: n})
}

// ListHolidays returns the holidays of a year.
// GET /api/calendar/holidays?year=
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", h.currentYear())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	lister, ok := h.Engine.Calendar.(interface{ HolidaysIn(int) []timeoff.Holiday })
	if !ok {
		writeJSON(w, http.StatusOK, []HolidayDTO{})
		return
	}
	holidays := lister.HolidaysIn(year)
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hd := range holidays {
		dtos = append(dtos, HolidayDTO{Date: hd.Date.String(), Name: hd.Name})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// USERS & AUDIT
// =============================================================================

// CreateUser registers a user.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body CreateUserRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.Engine.CreateUser(r.Context(), actor, timeoff.User{
		ID:    body.ID,
		Name:  body.Name,
		Email: body.Email,
		Role:  timeoff.Role(body.Role),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)})
}

// DeleteUser removes a user with their balances and requests.
// DELETE /api/users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Engine.DeleteUser(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAudit returns audit entries, newest first. Employees only see
// entries they authored.
// GET /api/audit
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter := generic.AuditFilter{
		UserID:     q.Get("user_id"),
		EntityType: generic.AuditEntityType(q.Get("entity_type")),
		EntityID:   q.Get("entity_id"),
		Limit:      limit,
	}
	if !actor.CanApprove() {
		filter.UserID = actor.UserID
	}
	entries, err := h.Engine.Audit.GetLogs(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toAuditDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps err to a status and writes {"error", "code"}.
// Storage failures are logged with their cause and answered generically.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := generic.ErrorCode(err)
	if status == http.StatusInternalServerError {
		detail := err.Error()
		var dbErr *generic.DatabaseError
		if errors.As(err, &dbErr) {
			detail = dbErr.Detail()
		}
		h.Logger.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"error":      detail,
		}).Error("request failed")
		writeJSON(w, status, ErrorResponse{Error: "internal error", Code: code})
		return
	}
	msg := err.Error()
	var vErr *generic.ValidationError
	if errors.As(err, &vErr) {
		msg = vErr.Message
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func statusFor(err error) int {
	switch generic.ErrorCode(err) {
	case generic.CodeInvalidInput, generic.CodeInvalidDate, generic.CodeInvalidRange:
		return http.StatusBadRequest
	case generic.CodeNotAuthorized:
		return http.StatusForbidden
	case generic.CodeNotFound:
		return http.StatusNotFound
	case generic.CodeDuplicateRequest, generic.CodeConcurrentModification:
		return http.StatusConflict
	case generic.CodeInsufficientBalance, generic.CodeInsufficientNotice, generic.CodeOverlappingRequest,
		generic.CodeRequestLimitExceeded, generic.CodeBlackoutDate, generic.CodeMaxConsecutiveDays,
		generic.CodeNotPending, generic.CodeSubmissionWindow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return generic.NewValidationError(generic.CodeInvalidInput, fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, generic.NewValidationError(generic.CodeInvalidInput, fmt.Sprintf("%s must be an integer", key))
	}
	return n, nil
}
