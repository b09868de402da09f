package gormstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/store/gormstore"
	"github.com/warp/leave-ledger/store/storetest"
	"github.com/warp/leave-ledger/timeoff"
)

func openMemory(t *testing.T) *gormstore.Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store, err := gormstore.Open(gormstore.DriverSQLite, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) timeoff.Store { return openMemory(t) })
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := gormstore.Open("oracle", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestAggregatedRow_SharesVersionAcrossTypes(t *testing.T) {
	// GIVEN: Vacation and sick initialized on the same (user, year) row
	// WHEN: Sick is written after vacation was read
	// THEN: The vacation copy is stale because the row version moved
	ctx := context.Background()
	store := openMemory(t)
	require.NoError(t, store.CreateUser(ctx, timeoff.User{
		ID: "u-1", Name: "Uma", Email: "uma@example.com", Role: timeoff.RoleEmployee, CreatedAt: time.Now(),
	}))

	newBalance := func(lt timeoff.LeaveType, total float64) *timeoff.Balance {
		return &timeoff.Balance{
			UserID: "u-1", Year: 2025, Type: lt,
			Total: generic.Days(total), Used: generic.Days(0), Remaining: generic.Days(total),
			UpdatedAt: time.Now().UTC(),
		}
	}

	require.NoError(t, store.WithTx(ctx, func(tx timeoff.Tx) error {
		vacation := newBalance(timeoff.LeaveVacation, 22)
		require.NoError(t, tx.UpsertBalance(ctx, vacation))
		assert.Equal(t, int64(1), vacation.Version)

		sick := newBalance(timeoff.LeaveSick, 8)
		require.NoError(t, tx.UpsertBalance(ctx, sick))
		assert.Equal(t, int64(2), sick.Version)

		vacation.Used = generic.Days(1)
		vacation.Remaining = generic.Days(21)
		assert.ErrorIs(t, tx.UpsertBalance(ctx, vacation), generic.ErrConcurrentModification)

		fresh, err := tx.FindBalance(ctx, "u-1", 2025, timeoff.LeaveVacation)
		require.NoError(t, err)
		assert.Equal(t, int64(2), fresh.Version)
		fresh.Used = generic.Days(1)
		fresh.Remaining = generic.Days(21)
		return tx.UpsertBalance(ctx, fresh)
	}))

	require.NoError(t, store.WithTx(ctx, func(tx timeoff.Tx) error {
		b, err := tx.FindBalance(ctx, "u-1", 2025, timeoff.LeaveVacation)
		require.NoError(t, err)
		assert.True(t, b.Remaining.Equal(generic.Days(21)))
		assert.True(t, b.Consistent())

		personal, err := tx.FindBalance(ctx, "u-1", 2025, timeoff.LeavePersonal)
		require.NoError(t, err)
		assert.Nil(t, personal)
		return nil
	}))
}

func TestEngine_OvertimeCreditOnAggregatedRow(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)
	admin := timeoff.Actor{UserID: "admin", Role: timeoff.RoleAdmin}
	employee := timeoff.Actor{UserID: "emp", Role: timeoff.RoleEmployee}
	for _, u := range []timeoff.User{
		{ID: admin.UserID, Name: "Ada", Email: "ada@example.com", Role: timeoff.RoleAdmin},
		{ID: employee.UserID, Name: "Eve", Email: "eve@example.com", Role: timeoff.RoleEmployee},
	} {
		require.NoError(t, store.CreateUser(ctx, u))
	}

	// January 27th is inside the month-end window.
	now := time.Date(2025, time.January, 27, 12, 0, 0, 0, time.UTC)
	engine := timeoff.NewEngine(store, timeoff.Options{Clock: func() time.Time { return now }})

	o, err := engine.Overtime.Create(ctx, employee, timeoff.OvertimeInput{UserID: employee.UserID, Hours: generic.Hours(20)})
	require.NoError(t, err)
	_, err = engine.Overtime.Approve(ctx, admin, o.ID, 0)
	require.NoError(t, err)

	b, err := engine.Ledger.GetBalance(ctx, employee.UserID, 2025, timeoff.LeaveVacation)
	require.NoError(t, err)
	assert.Equal(t, "24.5", b.Total.Value.String())
	assert.Equal(t, "24.5", b.Remaining.Value.String())
	assert.True(t, b.Used.IsZero())
}
