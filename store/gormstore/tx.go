package gormstore

import (
	"context"
	"errors"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// txStore is the timeoff.Tx handed to WithTx callbacks.
type txStore struct {
	db    *gorm.DB
	locks bool
}

// forUpdate adds a row lock when the dialect supports it.
func (t *txStore) forUpdate(ctx context.Context) *gorm.DB {
	db := t.db.WithContext(ctx)
	if t.locks {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// =============================================================================
// REQUESTS
// =============================================================================

func (t *txStore) CreateRequest(ctx context.Context, r timeoff.Request) error {
	m := newRequestModel(r)
	return t.db.WithContext(ctx).Create(&m).Error
}

func (t *txStore) FindRequestByID(ctx context.Context, id string) (*timeoff.Request, error) {
	var m requestModel
	err := t.forUpdate(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r := m.toDomain()
	return &r, nil
}

func (t *txStore) UpdateRequestStatus(ctx context.Context, r timeoff.Request) error {
	res := t.db.WithContext(ctx).Model(&requestModel{}).Where("id = ?", r.ID).Updates(map[string]any{
		"status":     string(r.Status),
		"reason":     r.Reason,
		"updated_at": r.UpdatedAt,
	})
	return expectOne(res, "request", r.ID)
}

func (t *txStore) DeleteRequest(ctx context.Context, id string) error {
	res := t.db.WithContext(ctx).Where("id = ?", id).Delete(&requestModel{})
	return expectOne(res, "request", id)
}

func (t *txStore) ListRequests(ctx context.Context, f timeoff.RequestFilter) ([]timeoff.Request, error) {
	q := t.db.WithContext(ctx).Model(&requestModel{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Year != 0 {
		q = q.Where("start_date BETWEEN ? AND ?", generic.StartOfYear(f.Year).String(), generic.EndOfYear(f.Year).String())
	}
	return t.findRequests(q.Order("created_at DESC").Order("id ASC"))
}

func (t *txStore) CountRequestsInYear(ctx context.Context, userID string, year int) (int, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&requestModel{}).
		Where("user_id = ? AND start_date BETWEEN ? AND ?",
			userID, generic.StartOfYear(year).String(), generic.EndOfYear(year).String()).
		Count(&n).Error
	return int(n), err
}

func (t *txStore) FindOverlappingApprovedRequests(ctx context.Context, userID string, p generic.Period) ([]timeoff.Request, error) {
	q := t.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND start_date <= ? AND end_date >= ?",
			userID, string(timeoff.StatusApproved), p.End.String(), p.Start.String()).
		Order("start_date ASC")
	return t.findRequests(q)
}

func (t *txStore) FindActiveDuplicate(ctx context.Context, userID string, lt timeoff.LeaveType, p generic.Period) (*timeoff.Request, error) {
	var m requestModel
	err := t.db.WithContext(ctx).
		Where("user_id = ? AND leave_type = ? AND start_date = ? AND end_date = ? AND status IN ?",
			userID, string(lt), p.Start.String(), p.End.String(),
			[]string{string(timeoff.StatusPending), string(timeoff.StatusApproved)}).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r := m.toDomain()
	return &r, nil
}

func (t *txStore) findRequests(q *gorm.DB) ([]timeoff.Request, error) {
	var rows []requestModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]timeoff.Request, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// =============================================================================
// BALANCES - aggregated row, normalized per leave type
// =============================================================================

func (t *txStore) findRow(ctx context.Context, userID string, year int) (*balanceRow, error) {
	var row balanceRow
	err := t.forUpdate(ctx).Where("user_id = ? AND year = ?", userID, year).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (t *txStore) FindBalance(ctx context.Context, userID string, year int, lt timeoff.LeaveType) (*timeoff.Balance, error) {
	row, err := t.findRow(ctx, userID, year)
	if err != nil || row == nil || !row.has(lt) {
		return nil, err
	}
	b := row.balance(lt)
	return &b, nil
}

// UpsertBalance writes one leave type of the aggregated row.
//
// Version 0 initializes the type: it creates the row when absent, or fills
// the type's NULL columns of an existing row. Any other version updates the
// row only if the stored version still matches. On success b.Version is the
// stored version.
func (t *txStore) UpsertBalance(ctx context.Context, b *timeoff.Balance) error {
	if b.Version == 0 {
		row, err := t.findRow(ctx, b.UserID, b.Year)
		if err != nil {
			return err
		}
		if row == nil {
			row = &balanceRow{UserID: b.UserID, Year: b.Year, Version: 1, UpdatedAt: b.UpdatedAt}
			row.set(*b)
			if err := t.db.WithContext(ctx).Create(row).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return generic.ErrConcurrentModification
				}
				return err
			}
			b.Version = 1
			return nil
		}
		if row.has(b.Type) {
			return generic.ErrConcurrentModification
		}
		b.Version = row.Version
	}

	totalCol, usedCol := columns(b.Type)
	res := t.db.WithContext(ctx).Model(&balanceRow{}).
		Where("user_id = ? AND year = ? AND version = ?", b.UserID, b.Year, b.Version).
		Updates(map[string]any{
			totalCol:     b.Total.Value,
			usedCol:      b.Used.Value,
			"version":    gorm.Expr("version + 1"),
			"updated_at": b.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return generic.ErrConcurrentModification
	}
	b.Version++
	return nil
}

// =============================================================================
// OVERTIME
// =============================================================================

func (t *txStore) CreateOvertime(ctx context.Context, o timeoff.OvertimeRequest) error {
	m := newOvertimeModel(o)
	return t.db.WithContext(ctx).Create(&m).Error
}

func (t *txStore) FindOvertimeByID(ctx context.Context, id string) (*timeoff.OvertimeRequest, error) {
	var m overtimeModel
	err := t.forUpdate(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o := m.toDomain()
	return &o, nil
}

func (t *txStore) UpdateOvertimeStatus(ctx context.Context, o timeoff.OvertimeRequest) error {
	res := t.db.WithContext(ctx).Model(&overtimeModel{}).Where("id = ?", o.ID).Updates(map[string]any{
		"status":     string(o.Status),
		"notes":      o.Notes,
		"updated_at": o.UpdatedAt,
	})
	return expectOne(res, "overtime request", o.ID)
}

func (t *txStore) ListOvertime(ctx context.Context, f timeoff.OvertimeFilter) ([]timeoff.OvertimeRequest, error) {
	q := t.db.WithContext(ctx).Model(&overtimeModel{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Year != 0 {
		q = q.Where("year = ?", f.Year)
	}
	if f.Month != 0 {
		q = q.Where("month = ?", int(f.Month))
	}

	var rows []overtimeModel
	if err := q.Order("created_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]timeoff.OvertimeRequest, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// =============================================================================
// USERS
// =============================================================================

func (t *txStore) FindUser(ctx context.Context, id string) (*timeoff.User, error) {
	var m userModel
	err := t.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := toUser(m)
	return &u, nil
}

func (t *txStore) ListUsersByRole(ctx context.Context, role timeoff.Role) ([]timeoff.User, error) {
	var rows []userModel
	if err := t.db.WithContext(ctx).Where("role = ?", string(role)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]timeoff.User, 0, len(rows))
	for _, m := range rows {
		users = append(users, toUser(m))
	}
	return users, nil
}

func toUser(m userModel) timeoff.User {
	return timeoff.User{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Role:      timeoff.Role(m.Role),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func expectOne(res *gorm.DB, entity, id string) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
