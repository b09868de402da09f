/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic data
	for demos. Every scenario goes through the engine, so the seeded data obeys
	the same validation, balance and audit rules as live traffic.

AVAILABLE SCENARIOS:

	team-basics:     Manager and two employees with pending vacation and approved personal leave
	low-balance:     Vacation total lowered to 3 days, 2 already approved
	overtime-credit: Overtime approved into vacation days (month-end window only)

HOW SCENARIOS WORK:
 1. Create users (IDs are prefixed with the scenario ID)
 2. Adjust balances where the scenario needs it
 3. Submit requests dated at least four weeks ahead
 4. Approve some of them as the scenario admin

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "team-basics"}

NOTE:

	Scenarios do not reset the store. Loading the same scenario twice fails
	on the duplicate user IDs. Admin only.

SEE ALSO:
  - handlers.go: Shared helpers
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "team-basics",
		Name:        "Team Basics",
		Description: "Manager and two employees with pending vacation and approved personal leave",
	},
	{
		ID:          "low-balance",
		Name:        "Low Balance",
		Description: "Vacation lowered to 3 days with 2 approved; the next request overdraws",
	},
	{
		ID:          "overtime-credit",
		Name:        "Overtime Credit",
		Description: "20 overtime hours approved as 2.5 vacation days (needs the month-end window)",
	},
}

// LoadedScenarioDTO is returned by POST /api/scenarios/load.
type LoadedScenarioDTO struct {
	Scenario ScenarioDTO   `json:"scenario"`
	Users    []UserDTO     `json:"users"`
	Requests []RequestDTO  `json:"requests"`
	Overtime []OvertimeDTO `json:"overtime"`
	Notes    []string      `json:"notes,omitempty"`
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	actor, err := mustActor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !actor.IsAdmin() {
		h.writeError(w, r, generic.NewValidationError(generic.CodeNotAuthorized, "only admins can load scenarios"))
		return
	}
	var body LoadScenarioRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	var loader func(context.Context, *seeder) error
	switch body.ScenarioID {
	case "team-basics":
		loader = h.loadTeamBasics
	case "low-balance":
		loader = h.loadLowBalance
	case "overtime-credit":
		loader = h.loadOvertimeCredit
	default:
		h.writeError(w, r, &generic.NotFoundError{Entity: "scenario", ID: body.ScenarioID})
		return
	}

	s := &seeder{h: h, actor: actor, prefix: body.ScenarioID}
	for _, sc := range scenarios {
		if sc.ID == body.ScenarioID {
			s.out.Scenario = sc
		}
	}
	if err := loader(r.Context(), s); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.WithFields(logrus.Fields{
		"scenario": body.ScenarioID,
		"users":    len(s.out.Users),
		"requests": len(s.out.Requests),
	}).Info("scenario loaded")
	writeJSON(w, http.StatusCreated, s.out)
}

// =============================================================================
// SEEDER
// =============================================================================

// seeder drives the engine on behalf of the admin loading a scenario.
type seeder struct {
	h      *Handler
	actor  timeoff.Actor
	prefix string
	out    LoadedScenarioDTO
}

func (s *seeder) user(ctx context.Context, name string, role timeoff.Role) (timeoff.User, error) {
	u, err := s.h.Engine.CreateUser(ctx, s.actor, timeoff.User{
		ID:    fmt.Sprintf("%s-%s", s.prefix, name),
		Name:  name,
		Email: fmt.Sprintf("%s+%s@example.com", name, s.prefix),
		Role:  role,
	})
	if err != nil {
		return timeoff.User{}, err
	}
	s.out.Users = append(s.out.Users, UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)})
	return u, nil
}

// request submits a request as the employee, starting weeksAhead Mondays out.
func (s *seeder) request(ctx context.Context, u timeoff.User, t timeoff.LeaveType, weeksAhead, days int) (timeoff.Request, error) {
	start := mondayAfter(generic.FromTime(s.h.Clock()), weeksAhead)
	req, err := s.h.Engine.Requests.Create(ctx, timeoff.Actor{UserID: u.ID, Role: u.Role}, timeoff.RequestInput{
		UserID:    u.ID,
		Type:      t,
		StartDate: start,
		EndDate:   start.AddDays(days - 1),
		Reason:    "seeded by scenario " + s.prefix,
	})
	if err != nil {
		return timeoff.Request{}, err
	}
	s.out.Requests = append(s.out.Requests, toRequestDTO(req))
	return req, nil
}

func (s *seeder) approve(ctx context.Context, req timeoff.Request) error {
	approved, err := s.h.Engine.Requests.Approve(ctx, s.actor, req.ID, 0)
	if err != nil {
		return err
	}
	for i := range s.out.Requests {
		if s.out.Requests[i].ID == approved.ID {
			s.out.Requests[i] = toRequestDTO(approved)
		}
	}
	return nil
}

// mondayAfter returns the Monday at least weeks*7 days after today.
func mondayAfter(today generic.TimePoint, weeks int) generic.TimePoint {
	d := today.AddDays(weeks * 7)
	for d.Weekday() != time.Monday {
		d = d.AddDays(1)
	}
	return d
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadTeamBasics(ctx context.Context, s *seeder) error {
	if _, err := s.user(ctx, "grace", timeoff.RoleManager); err != nil {
		return err
	}
	alice, err := s.user(ctx, "alice", timeoff.RoleEmployee)
	if err != nil {
		return err
	}
	bob, err := s.user(ctx, "bob", timeoff.RoleEmployee)
	if err != nil {
		return err
	}

	if _, err := s.request(ctx, alice, timeoff.LeaveVacation, 4, 5); err != nil {
		return err
	}
	personal, err := s.request(ctx, bob, timeoff.LeavePersonal, 6, 2)
	if err != nil {
		return err
	}
	return s.approve(ctx, personal)
}

func (h *Handler) loadLowBalance(ctx context.Context, s *seeder) error {
	carol, err := s.user(ctx, "carol", timeoff.RoleEmployee)
	if err != nil {
		return err
	}
	start := mondayAfter(generic.FromTime(h.Clock()), 4)
	if _, err := h.Engine.Ledger.SetTotal(ctx, s.actor, carol.ID, start.Year(), timeoff.LeaveVacation, generic.Days(3)); err != nil {
		return err
	}
	req, err := s.request(ctx, carol, timeoff.LeaveVacation, 4, 2)
	if err != nil {
		return err
	}
	return s.approve(ctx, req)
}

func (h *Handler) loadOvertimeCredit(ctx context.Context, s *seeder) error {
	dan, err := s.user(ctx, "dan", timeoff.RoleEmployee)
	if err != nil {
		return err
	}
	o, err := h.Engine.Overtime.Create(ctx, timeoff.Actor{UserID: dan.ID, Role: dan.Role}, timeoff.OvertimeInput{
		UserID: dan.ID,
		Hours:  generic.Hours(20),
		Notes:  "release weekend",
	})
	var windowErr *generic.SubmissionWindowError
	if errors.As(err, &windowErr) {
		s.out.Notes = append(s.out.Notes, fmt.Sprintf("overtime skipped: submission window opens %s", windowErr.WindowOpens))
		return nil
	}
	if err != nil {
		return err
	}
	approved, err := h.Engine.Overtime.Approve(ctx, s.actor, o.ID, 0)
	if err != nil {
		return err
	}
	s.out.Overtime = append(s.out.Overtime, toOvertimeDTO(approved))
	return nil
}
