package timeoff

import "context"

// Notifier delivers lifecycle notifications. Every call may fail on its own;
// the engine logs failures and carries on.
type Notifier interface {
	NotifyRequestSubmitted(ctx context.Context, requester User, r Request) error
	NotifyAdminsOfNewRequest(ctx context.Context, admins []User, requester User, r Request) error
	NotifyRequestApproved(ctx context.Context, requester User, r Request) error
	NotifyRequestRejected(ctx context.Context, requester User, r Request) error
	NotifyOvertimeSubmitted(ctx context.Context, admins []User, requester User, o OvertimeRequest) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) NotifyRequestSubmitted(context.Context, User, Request) error { return nil }
func (NopNotifier) NotifyAdminsOfNewRequest(context.Context, []User, User, Request) error {
	return nil
}
func (NopNotifier) NotifyRequestApproved(context.Context, User, Request) error { return nil }
func (NopNotifier) NotifyRequestRejected(context.Context, User, Request) error { return nil }
func (NopNotifier) NotifyOvertimeSubmitted(context.Context, []User, User, OvertimeRequest) error {
	return nil
}
