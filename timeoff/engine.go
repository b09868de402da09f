package timeoff

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-ledger/generic"
)

// Options configures NewEngine. Zero values fall back to defaults.
type Options struct {
	Rules        Rules
	Calendar     generic.HolidayCalendar
	Notifier     Notifier
	Logger       logrus.FieldLogger
	Clock        func() time.Time
	StoreTimeout time.Duration
}

// Engine bundles the services that share one store.
type Engine struct {
	Store     Store
	Calendar  generic.HolidayCalendar
	Validator *Validator
	Ledger    *Ledger
	Requests  *RequestService
	Overtime  *OvertimeService
	Audit     *AuditTrail

	run *runner
}

func NewEngine(store Store, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Calendar == nil {
		opts.Calendar = NewFederalCalendar(HolidaysReference)
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Rules.Allotments == nil {
		opts.Rules.Allotments = DefaultAllotments()
	}

	trail := &AuditTrail{Log: store, Logger: opts.Logger, Clock: opts.Clock}
	run := &runner{
		store:   store,
		trail:   trail,
		logger:  opts.Logger,
		clock:   opts.Clock,
		timeout: opts.StoreTimeout,
	}
	validator := &Validator{Rules: opts.Rules, Calendar: opts.Calendar, Clock: opts.Clock}
	ledger := &Ledger{Allotments: opts.Rules.Allotments, run: run}

	return &Engine{
		Store:     store,
		Calendar:  opts.Calendar,
		Validator: validator,
		Ledger:    ledger,
		Requests: &RequestService{
			ledger:    ledger,
			validator: validator,
			notifier:  opts.Notifier,
			logger:    opts.Logger,
			run:       run,
		},
		Overtime: &OvertimeService{
			ledger:   ledger,
			notifier: opts.Notifier,
			logger:   opts.Logger,
			clock:    opts.Clock,
			run:      run,
		},
		Audit: trail,
		run:   run,
	}
}

// MaxWorkingDaysSpan bounds the inclusive range WorkingDays will walk.
const MaxWorkingDaysSpan = 366

// WorkingDays counts working days in [start, end] with the engine's calendar.
func (e *Engine) WorkingDays(start, end generic.TimePoint) (int, error) {
	if !start.IsZero() && !end.IsZero() && generic.DaysBetween(start, end)+1 > MaxWorkingDaysSpan {
		return 0, generic.NewValidationError(generic.CodeInvalidRange,
			fmt.Sprintf("range %s..%s exceeds %d days", start, end, MaxWorkingDaysSpan))
	}
	return generic.CountWorkingDays(e.Calendar, start, end)
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser registers a user. Admin only; an empty ID is generated.
func (e *Engine) CreateUser(ctx context.Context, actor Actor, u User) (User, error) {
	if !actor.IsAdmin() {
		return User{}, generic.NewValidationError(generic.CodeNotAuthorized, "only admins can create users")
	}
	if err := checkUser(&u); err != nil {
		return User{}, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = e.run.clock().UTC()

	if err := e.Store.CreateUser(ctx, u); err != nil {
		return User{}, generic.WrapStore("create user", err)
	}
	e.Audit.Record(ctx, actor.UserID, generic.AuditCreate, generic.AuditEntityUser, u.ID, map[string]any{
		"name":  u.Name,
		"email": u.Email,
		"role":  string(u.Role),
	})
	return u, nil
}

// DeleteUser removes a user with their balances, requests and overtime.
// Audit entries survive.
func (e *Engine) DeleteUser(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin() {
		return generic.NewValidationError(generic.CodeNotAuthorized, "only admins can delete users")
	}
	if err := e.Store.DeleteUser(ctx, id); err != nil {
		err = generic.WrapStore("delete user", err)
		if generic.IsNotFound(err) {
			return err
		}
		e.run.logger.WithFields(logrus.Fields{"user_id": id, "error": err}).Error("delete user failed")
		return err
	}
	e.Audit.Record(ctx, actor.UserID, generic.AuditDelete, generic.AuditEntityUser, id, nil)
	return nil
}

func checkUser(u *User) error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return generic.NewValidationError(generic.CodeInvalidInput, "name is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return generic.NewValidationError(generic.CodeInvalidInput, fmt.Sprintf("invalid email %q", u.Email))
	}
	if u.Role == "" {
		u.Role = RoleEmployee
	}
	role, err := ParseRole(string(u.Role))
	if err != nil {
		return err
	}
	u.Role = role
	return nil
}
