/*
Package notify implements timeoff.Notifier.

PURPOSE:

	Turns lifecycle events (request submitted, approved, rejected, overtime
	submitted) into messages. The engine calls notifiers after commit and only
	logs their errors, so nothing here can fail a balance operation.

IMPLEMENTATIONS:

	Email: one plain-text mail per recipient through a Mailer (SMTP)
	Log:   one structured log line per event
	Multi: fans out to several notifiers and joins their errors

SEE ALSO:
  - timeoff/notifier.go: The Notifier contract
  - mailer.go: SMTP delivery
*/
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// EMAIL
// =============================================================================

// Email sends each event as a plain-text mail.
type Email struct {
	Mailer Mailer
}

var _ timeoff.Notifier = (*Email)(nil)

func NewEmail(m Mailer) *Email {
	return &Email{Mailer: m}
}

func (n *Email) NotifyRequestSubmitted(ctx context.Context, requester timeoff.User, r timeoff.Request) error {
	subject := fmt.Sprintf("Time off request submitted: %s", describe(r))
	body := fmt.Sprintf("Hello %s,\n\nYour %s request for %s to %s (%s working days) was submitted and is awaiting approval.\n",
		requester.Name, label(r.Type), r.StartDate, r.EndDate, r.WorkingDays.Value)
	return n.Mailer.Send(ctx, requester.Email, subject, body)
}

func (n *Email) NotifyAdminsOfNewRequest(ctx context.Context, admins []timeoff.User, requester timeoff.User, r timeoff.Request) error {
	subject := fmt.Sprintf("New time off request from %s", requester.Name)
	body := fmt.Sprintf("%s requested %s from %s to %s (%s working days).\nRequest: %s\nReason: %s\n",
		requester.Name, label(r.Type), r.StartDate, r.EndDate, r.WorkingDays.Value, r.ID, orNone(r.Reason))
	return n.broadcast(ctx, admins, subject, body)
}

func (n *Email) NotifyRequestApproved(ctx context.Context, requester timeoff.User, r timeoff.Request) error {
	subject := fmt.Sprintf("Time off request approved: %s", describe(r))
	body := fmt.Sprintf("Hello %s,\n\nYour %s request for %s to %s was approved. %s days were deducted from your balance.\n",
		requester.Name, label(r.Type), r.StartDate, r.EndDate, r.WorkingDays.Value)
	return n.Mailer.Send(ctx, requester.Email, subject, body)
}

func (n *Email) NotifyRequestRejected(ctx context.Context, requester timeoff.User, r timeoff.Request) error {
	subject := fmt.Sprintf("Time off request rejected: %s", describe(r))
	body := fmt.Sprintf("Hello %s,\n\nYour %s request for %s to %s was rejected.\nReason: %s\n",
		requester.Name, label(r.Type), r.StartDate, r.EndDate, orNone(r.Reason))
	return n.Mailer.Send(ctx, requester.Email, subject, body)
}

func (n *Email) NotifyOvertimeSubmitted(ctx context.Context, admins []timeoff.User, requester timeoff.User, o timeoff.OvertimeRequest) error {
	subject := fmt.Sprintf("Overtime submitted by %s", requester.Name)
	body := fmt.Sprintf("%s logged %s overtime hours for %s %d (worth %s vacation days once approved).\nOvertime: %s\n",
		requester.Name, o.Hours.Value, o.Month, o.Year, o.CreditDays().Value, o.ID)
	return n.broadcast(ctx, admins, subject, body)
}

// broadcast mails every recipient and joins the failures.
func (n *Email) broadcast(ctx context.Context, to []timeoff.User, subject, body string) error {
	var errs []error
	for _, u := range to {
		if err := n.Mailer.Send(ctx, u.Email, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.Email, err))
		}
	}
	return errors.Join(errs...)
}

func describe(r timeoff.Request) string {
	return fmt.Sprintf("%s %s to %s", label(r.Type), r.StartDate, r.EndDate)
}

// label renders PAID_LEAVE as "paid leave".
func label(t timeoff.LeaveType) string {
	return strings.ReplaceAll(strings.ToLower(string(t)), "_", " ")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

// =============================================================================
// LOG
// =============================================================================

// Log writes one structured line per event.
type Log struct {
	Logger logrus.FieldLogger
}

var _ timeoff.Notifier = (*Log)(nil)

func NewLog(logger logrus.FieldLogger) *Log {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Log{Logger: logger}
}

func (n *Log) request(event string, requester timeoff.User, r timeoff.Request) *logrus.Entry {
	return n.Logger.WithFields(logrus.Fields{
		"event":        event,
		"request_id":   r.ID,
		"user_id":      requester.ID,
		"leave_type":   string(r.Type),
		"start_date":   r.StartDate.String(),
		"end_date":     r.EndDate.String(),
		"working_days": r.WorkingDays.Value.String(),
	})
}

func (n *Log) NotifyRequestSubmitted(_ context.Context, requester timeoff.User, r timeoff.Request) error {
	n.request("request_submitted", requester, r).Info("time off request submitted")
	return nil
}

func (n *Log) NotifyAdminsOfNewRequest(_ context.Context, admins []timeoff.User, requester timeoff.User, r timeoff.Request) error {
	n.request("admins_notified", requester, r).WithField("admins", len(admins)).Info("admins notified of new request")
	return nil
}

func (n *Log) NotifyRequestApproved(_ context.Context, requester timeoff.User, r timeoff.Request) error {
	n.request("request_approved", requester, r).Info("time off request approved")
	return nil
}

func (n *Log) NotifyRequestRejected(_ context.Context, requester timeoff.User, r timeoff.Request) error {
	n.request("request_rejected", requester, r).Info("time off request rejected")
	return nil
}

func (n *Log) NotifyOvertimeSubmitted(_ context.Context, admins []timeoff.User, requester timeoff.User, o timeoff.OvertimeRequest) error {
	n.Logger.WithFields(logrus.Fields{
		"event":       "overtime_submitted",
		"overtime_id": o.ID,
		"user_id":     requester.ID,
		"hours":       o.Hours.Value.String(),
		"admins":      len(admins),
	}).Info("overtime submitted")
	return nil
}

// =============================================================================
// MULTI
// =============================================================================

// Multi calls every notifier in order; one failing does not stop the rest.
type Multi []timeoff.Notifier

var _ timeoff.Notifier = Multi(nil)

func (m Multi) each(fn func(timeoff.Notifier) error) error {
	var errs []error
	for _, n := range m {
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyRequestSubmitted(ctx context.Context, requester timeoff.User, r timeoff.Request) error {
	return m.each(func(n timeoff.Notifier) error { return n.NotifyRequestSubmitted(ctx, requester, r) })
}

func (m Multi) NotifyAdminsOfNewRequest(ctx context.Context, admins []timeoff.User, requester timeoff.User, r timeoff.Request) error {
	return m.each(func(n timeoff.Notifier) error { return n.NotifyAdminsOfNewRequest(ctx, admins, requester, r) })
}

func (m Multi) NotifyRequestApproved(ctx context.Context, requester timeoff.User, r timeoff.Request) error {
	return m.each(func(n timeoff.Notifier) error { return n.NotifyRequestApproved(ctx, requester, r) })
}

func (m Multi) NotifyRequestRejected(ctx context.Context, requester timeoff.User, r timeoff.Request) error {
	return m.each(func(n timeoff.Notifier) error { return n.NotifyRequestRejected(ctx, requester, r) })
}

func (m Multi) NotifyOvertimeSubmitted(ctx context.Context, admins []timeoff.User, requester timeoff.User, o timeoff.OvertimeRequest) error {
	return m.each(func(n timeoff.Notifier) error { return n.NotifyOvertimeSubmitted(ctx, admins, requester, o) })
}
