package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// txStore is the timeoff.Tx handed to WithTx callbacks. Every read goes
// through the transaction so the unit of work sees its own writes.
type txStore struct {
	tx *sql.Tx
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, user_id, leave_type, start_date, end_date, working_days, status, reason, created_at, updated_at`

func (ts *txStore) CreateRequest(ctx context.Context, r timeoff.Request) error {
	_, err := ts.tx.ExecContext(ctx, `
		INSERT INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, string(r.Type), r.StartDate.String(), r.EndDate.String(),
		r.WorkingDays.Value.String(), string(r.Status), nullString(r.Reason),
		formatTimestamp(r.CreatedAt), formatTimestamp(r.UpdatedAt),
	)
	return err
}

func (ts *txStore) FindRequestByID(ctx context.Context, id string) (*timeoff.Request, error) {
	rs, err := ts.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

func (ts *txStore) UpdateRequestStatus(ctx context.Context, r timeoff.Request) error {
	res, err := ts.tx.ExecContext(ctx,
		`UPDATE requests SET status = ?, reason = ?, updated_at = ? WHERE id = ?`,
		string(r.Status), nullString(r.Reason), formatTimestamp(r.UpdatedAt), r.ID,
	)
	return expectOne(res, err, "request", r.ID)
}

func (ts *txStore) DeleteRequest(ctx context.Context, id string) error {
	res, err := ts.tx.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	return expectOne(res, err, "request", id)
}

func (ts *txStore) ListRequests(ctx context.Context, f timeoff.RequestFilter) ([]timeoff.Request, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Year != 0 {
		where = append(where, "start_date BETWEEN ? AND ?")
		args = append(args, generic.StartOfYear(f.Year).String(), generic.EndOfYear(f.Year).String())
	}
	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	return ts.queryRequests(ctx, query, args...)
}

func (ts *txStore) CountRequestsInYear(ctx context.Context, userID string, year int) (int, error) {
	var n int
	err := ts.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE user_id = ? AND start_date BETWEEN ? AND ?`,
		userID, generic.StartOfYear(year).String(), generic.EndOfYear(year).String(),
	).Scan(&n)
	return n, err
}

func (ts *txStore) FindOverlappingApprovedRequests(ctx context.Context, userID string, p generic.Period) ([]timeoff.Request, error) {
	return ts.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE user_id = ? AND status = ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date ASC`,
		userID, string(timeoff.StatusApproved), p.End.String(), p.Start.String(),
	)
}

func (ts *txStore) FindActiveDuplicate(ctx context.Context, userID string, lt timeoff.LeaveType, p generic.Period) (*timeoff.Request, error) {
	rs, err := ts.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE user_id = ? AND leave_type = ? AND start_date = ? AND end_date = ?
			AND status IN (?, ?)
		LIMIT 1`,
		userID, string(lt), p.Start.String(), p.End.String(),
		string(timeoff.StatusPending), string(timeoff.StatusApproved),
	)
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

func (ts *txStore) queryRequests(ctx context.Context, query string, args ...any) ([]timeoff.Request, error) {
	rows, err := ts.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []timeoff.Request
	for rows.Next() {
		var (
			r                                 timeoff.Request
			leaveType, status, start, end     string
			workingDays, createdAt, updatedAt string
			reason                            sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &leaveType, &start, &end, &workingDays,
			&status, &reason, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.Type = timeoff.LeaveType(leaveType)
		r.Status = timeoff.RequestStatus(status)
		r.StartDate = parseDate(start)
		r.EndDate = parseDate(end)
		if r.WorkingDays, err = parseAmount(workingDays, generic.UnitDays); err != nil {
			return nil, fmt.Errorf("request %s: %w", r.ID, err)
		}
		r.Reason = reason.String
		r.CreatedAt = parseTimestamp(createdAt)
		r.UpdatedAt = parseTimestamp(updatedAt)
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// =============================================================================
// BALANCES
// =============================================================================

func (ts *txStore) FindBalance(ctx context.Context, userID string, year int, lt timeoff.LeaveType) (*timeoff.Balance, error) {
	var total, used, remaining, updatedAt string
	b := timeoff.Balance{UserID: userID, Year: year, Type: lt}
	err := ts.tx.QueryRowContext(ctx, `
		SELECT total_days, used_days, remaining_days, version, updated_at
		FROM balances WHERE user_id = ? AND year = ? AND leave_type = ?`,
		userID, year, string(lt),
	).Scan(&total, &used, &remaining, &b.Version, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		dst *generic.Amount
		src string
	}{{&b.Total, total}, {&b.Used, used}, {&b.Remaining, remaining}} {
		if *f.dst, err = parseAmount(f.src, generic.UnitDays); err != nil {
			return nil, fmt.Errorf("balance %s: %w", b.Key(), err)
		}
	}
	b.UpdatedAt = parseTimestamp(updatedAt)
	return &b, nil
}

// UpsertBalance inserts a new row (Version 0) or updates the row whose
// version still matches. On success b.Version is the stored version.
func (ts *txStore) UpsertBalance(ctx context.Context, b *timeoff.Balance) error {
	if b.Version == 0 {
		_, err := ts.tx.ExecContext(ctx, `
			INSERT INTO balances (user_id, year, leave_type, total_days, used_days, remaining_days, version, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
			b.UserID, b.Year, string(b.Type), b.Total.Value.String(), b.Used.Value.String(),
			b.Remaining.Value.String(), formatTimestamp(b.UpdatedAt),
		)
		if isUniqueConstraintError(err) {
			return generic.ErrConcurrentModification
		}
		if err != nil {
			return err
		}
		b.Version = 1
		return nil
	}

	res, err := ts.tx.ExecContext(ctx, `
		UPDATE balances
		SET total_days = ?, used_days = ?, remaining_days = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND year = ? AND leave_type = ? AND version = ?`,
		b.Total.Value.String(), b.Used.Value.String(), b.Remaining.Value.String(),
		formatTimestamp(b.UpdatedAt), b.UserID, b.Year, string(b.Type), b.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrConcurrentModification
	}
	b.Version++
	return nil
}

// =============================================================================
// OVERTIME
// =============================================================================

const overtimeColumns = `id, user_id, hours, request_date, month, year, status, notes, created_at, updated_at`

func (ts *txStore) CreateOvertime(ctx context.Context, o timeoff.OvertimeRequest) error {
	_, err := ts.tx.ExecContext(ctx, `
		INSERT INTO overtime_requests (`+overtimeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.Hours.Value.String(), o.RequestDate.String(), int(o.Month), o.Year,
		string(o.Status), nullString(o.Notes), formatTimestamp(o.CreatedAt), formatTimestamp(o.UpdatedAt),
	)
	return err
}

func (ts *txStore) FindOvertimeByID(ctx context.Context, id string) (*timeoff.OvertimeRequest, error) {
	os, err := ts.queryOvertime(ctx, `SELECT `+overtimeColumns+` FROM overtime_requests WHERE id = ?`, id)
	if err != nil || len(os) == 0 {
		return nil, err
	}
	return &os[0], nil
}

func (ts *txStore) UpdateOvertimeStatus(ctx context.Context, o timeoff.OvertimeRequest) error {
	res, err := ts.tx.ExecContext(ctx,
		`UPDATE overtime_requests SET status = ?, notes = ?, updated_at = ? WHERE id = ?`,
		string(o.Status), nullString(o.Notes), formatTimestamp(o.UpdatedAt), o.ID,
	)
	return expectOne(res, err, "overtime request", o.ID)
}

func (ts *txStore) ListOvertime(ctx context.Context, f timeoff.OvertimeFilter) ([]timeoff.OvertimeRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}
	if f.Month != 0 {
		where = append(where, "month = ?")
		args = append(args, int(f.Month))
	}
	query := `SELECT ` + overtimeColumns + ` FROM overtime_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	return ts.queryOvertime(ctx, query, args...)
}

func (ts *txStore) queryOvertime(ctx context.Context, query string, args ...any) ([]timeoff.OvertimeRequest, error) {
	rows, err := ts.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []timeoff.OvertimeRequest
	for rows.Next() {
		var (
			o                          timeoff.OvertimeRequest
			hours, requestDate, status string
			createdAt, updatedAt       string
			month                      int
			notes                      sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.UserID, &hours, &requestDate, &month, &o.Year,
			&status, &notes, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if o.Hours, err = parseAmount(hours, generic.UnitHours); err != nil {
			return nil, fmt.Errorf("overtime %s: %w", o.ID, err)
		}
		o.RequestDate = parseDate(requestDate)
		o.Month = time.Month(month)
		o.Status = timeoff.RequestStatus(status)
		o.Notes = notes.String
		o.CreatedAt = parseTimestamp(createdAt)
		o.UpdatedAt = parseTimestamp(updatedAt)
		out = append(out, o)
	}
	return out, rows.Err()
}

// =============================================================================
// USERS
// =============================================================================

func (ts *txStore) FindUser(ctx context.Context, id string) (*timeoff.User, error) {
	us, err := ts.queryUsers(ctx, `SELECT id, name, email, role, created_at FROM users WHERE id = ?`, id)
	if err != nil || len(us) == 0 {
		return nil, err
	}
	return &us[0], nil
}

func (ts *txStore) ListUsersByRole(ctx context.Context, role timeoff.Role) ([]timeoff.User, error) {
	return ts.queryUsers(ctx, `SELECT id, name, email, role, created_at FROM users WHERE role = ? ORDER BY id`, string(role))
}

func (ts *txStore) queryUsers(ctx context.Context, query string, args ...any) ([]timeoff.User, error) {
	rows, err := ts.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []timeoff.User
	for rows.Next() {
		var (
			u               timeoff.User
			role, createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &role, &createdAt); err != nil {
			return nil, err
		}
		u.Role = timeoff.Role(role)
		u.CreatedAt = parseTimestamp(createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func expectOne(res sql.Result, err error, entity, id string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
