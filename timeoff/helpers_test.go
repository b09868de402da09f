package timeoff_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/store/memory"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testNow is a Friday well ahead of the dates used by most tests.
var testNow = time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)

var (
	admin    = timeoff.Actor{UserID: "admin-1", Role: timeoff.RoleAdmin}
	manager  = timeoff.Actor{UserID: "mgr-1", Role: timeoff.RoleManager}
	employee = timeoff.Actor{UserID: "emp-1", Role: timeoff.RoleEmployee}
	other    = timeoff.Actor{UserID: "emp-2", Role: timeoff.RoleEmployee}
)

type fixture struct {
	store    *memory.Store
	engine   *timeoff.Engine
	notifier *recordingNotifier
	logs     *test.Hook
}

func newFixture(t *testing.T, opts ...func(*timeoff.Options)) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, u := range []timeoff.User{
		{ID: admin.UserID, Name: "Ada Admin", Email: "ada@example.com", Role: timeoff.RoleAdmin},
		{ID: manager.UserID, Name: "Max Manager", Email: "max@example.com", Role: timeoff.RoleManager},
		{ID: employee.UserID, Name: "Eve Employee", Email: "eve@example.com", Role: timeoff.RoleEmployee},
		{ID: other.UserID, Name: "Otto Other", Email: "otto@example.com", Role: timeoff.RoleEmployee},
	} {
		require.NoError(t, store.CreateUser(ctx, u))
	}

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	notifier := &recordingNotifier{}
	o := timeoff.Options{
		Rules:    timeoff.DefaultRules(),
		Calendar: timeoff.NewFederalCalendar(timeoff.HolidaysReference),
		Notifier: notifier,
		Logger:   logger,
		Clock:    func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &fixture{
		store:    store,
		engine:   timeoff.NewEngine(store, o),
		notifier: notifier,
		logs:     hook,
	}
}

func days(n float64) generic.Amount {
	return generic.Days(n)
}

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

// vacation builds a request input for emp-1.
func vacation(start, end generic.TimePoint) timeoff.RequestInput {
	return timeoff.RequestInput{
		UserID:    employee.UserID,
		Type:      timeoff.LeaveVacation,
		StartDate: start,
		EndDate:   end,
		Reason:    "trip",
	}
}

// setVacation pins emp-1's 2025 vacation allotment.
func (f *fixture) setVacation(t *testing.T, total float64) {
	t.Helper()
	_, err := f.engine.Ledger.SetTotal(context.Background(), admin, employee.UserID, 2025, timeoff.LeaveVacation, days(total))
	require.NoError(t, err)
}

func (f *fixture) vacationBalance(t *testing.T) timeoff.Balance {
	t.Helper()
	b, err := f.engine.Ledger.GetBalance(context.Background(), employee.UserID, 2025, timeoff.LeaveVacation)
	require.NoError(t, err)
	return b
}

func (f *fixture) auditFor(t *testing.T, entityType generic.AuditEntityType) []generic.AuditEntry {
	t.Helper()
	entries, err := f.engine.Audit.GetLogs(context.Background(), generic.AuditFilter{EntityType: entityType})
	require.NoError(t, err)
	return entries
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, generic.ErrorCode(err), "error: %v", err)
}

// =============================================================================
// NOTIFIERS
// =============================================================================

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	fail   bool
}

func (n *recordingNotifier) add(event string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	if n.fail {
		return errors.New("smtp: connection refused")
	}
	return nil
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func (n *recordingNotifier) NotifyRequestSubmitted(_ context.Context, _ timeoff.User, _ timeoff.Request) error {
	return n.add("submitted")
}

func (n *recordingNotifier) NotifyAdminsOfNewRequest(_ context.Context, _ []timeoff.User, _ timeoff.User, _ timeoff.Request) error {
	return n.add("admins")
}

func (n *recordingNotifier) NotifyRequestApproved(_ context.Context, _ timeoff.User, _ timeoff.Request) error {
	return n.add("approved")
}

func (n *recordingNotifier) NotifyRequestRejected(_ context.Context, _ timeoff.User, _ timeoff.Request) error {
	return n.add("rejected")
}

func (n *recordingNotifier) NotifyOvertimeSubmitted(_ context.Context, _ []timeoff.User, _ timeoff.User, _ timeoff.OvertimeRequest) error {
	return n.add("overtime")
}
