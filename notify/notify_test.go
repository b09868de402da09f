package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

type sent struct {
	to, subject, body string
}

type fakeMailer struct {
	sent    []sent
	failFor string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sent{to, subject, body})
	if to == m.failFor {
		return errors.New("550 mailbox unavailable")
	}
	return nil
}

var (
	eve    = timeoff.User{ID: "emp-1", Name: "Eve", Email: "eve@example.com", Role: timeoff.RoleEmployee}
	admins = []timeoff.User{
		{ID: "a-1", Name: "Ada", Email: "ada@example.com", Role: timeoff.RoleAdmin},
		{ID: "a-2", Name: "Al", Email: "al@example.com", Role: timeoff.RoleAdmin},
	}
	req = timeoff.Request{
		ID:          "r-1",
		UserID:      eve.ID,
		Type:        timeoff.LeavePaidLeave,
		StartDate:   generic.MustParseDate("2025-03-03"),
		EndDate:     generic.MustParseDate("2025-03-07"),
		WorkingDays: generic.Days(5),
		Status:      timeoff.StatusPending,
	}
)

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("hr@example.com", "eve@example.com", "Hi", "body"))

	assert.True(t, strings.HasPrefix(msg, "From: hr@example.com\r\nTo: eve@example.com\r\nSubject: Hi\r\n"))
	assert.Contains(t, msg, "MIME-Version: 1.0\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nbody"))
}

func TestNewMailer_WithoutHostDropsMail(t *testing.T) {
	m := NewMailer(SMTPConfig{})
	assert.IsType(t, nopMailer{}, m)
	assert.NoError(t, m.Send(context.Background(), "eve@example.com", "s", "b"))
}

func TestEmail_RequestSubmitted(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewEmail(mailer)

	require.NoError(t, n.NotifyRequestSubmitted(context.Background(), eve, req))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "eve@example.com", mailer.sent[0].to)
	assert.Equal(t, "Time off request submitted: paid leave 2025-03-03 to 2025-03-07", mailer.sent[0].subject)
	assert.Contains(t, mailer.sent[0].body, "(5 working days)")
}

func TestEmail_AdminBroadcastJoinsFailures(t *testing.T) {
	// GIVEN: Two admins, the first mailbox rejects
	// WHEN: Broadcasting a new request
	// THEN: The second admin is still mailed and the error names the first
	mailer := &fakeMailer{failFor: "ada@example.com"}
	n := NewEmail(mailer)

	err := n.NotifyAdminsOfNewRequest(context.Background(), admins, eve, req)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ada@example.com")
	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "al@example.com", mailer.sent[1].to)
	assert.Contains(t, mailer.sent[1].body, "Reason: (none)")
}

func TestEmail_OvertimeMentionsCredit(t *testing.T) {
	mailer := &fakeMailer{}
	o := timeoff.OvertimeRequest{ID: "o-1", UserID: eve.ID, Hours: generic.Hours(20), Month: time.January, Year: 2025}

	require.NoError(t, NewEmail(mailer).NotifyOvertimeSubmitted(context.Background(), admins[:1], eve, o))

	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].body, "worth 2.5 vacation days")
}

func TestLog_WritesStructuredLine(t *testing.T) {
	logger, hook := test.NewNullLogger()

	require.NoError(t, NewLog(logger).NotifyRequestApproved(context.Background(), eve, req))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request_approved", entry.Data["event"])
	assert.Equal(t, "r-1", entry.Data["request_id"])
	assert.Equal(t, "5", entry.Data["working_days"])
}

func TestMulti_CallsEveryNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	mailer := &fakeMailer{failFor: "eve@example.com"}
	n := Multi{NewEmail(mailer), NewLog(logger)}

	err := n.NotifyRequestRejected(context.Background(), eve, req)

	require.Error(t, err)
	assert.Len(t, mailer.sent, 1)
	assert.Len(t, hook.AllEntries(), 1)
}
