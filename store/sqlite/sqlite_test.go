package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/store/sqlite"
	"github.com/warp/leave-ledger/store/storetest"
	"github.com/warp/leave-ledger/timeoff"
)

func openMemory(t *testing.T) timeoff.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, openMemory)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	// GIVEN: A file-backed store with one adjusted balance
	// WHEN: The file is reopened
	// THEN: The balance and its version survive
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leave.db")

	store, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(ctx, timeoff.User{
		ID: "u-1", Name: "Uma", Email: "uma@example.com", Role: timeoff.RoleEmployee, CreatedAt: time.Now(),
	}))
	require.NoError(t, store.WithTx(ctx, func(tx timeoff.Tx) error {
		return tx.UpsertBalance(ctx, &timeoff.Balance{
			UserID: "u-1", Year: 2025, Type: timeoff.LeavePersonal,
			Total: generic.Days(3), Used: generic.Days(0.5), Remaining: generic.Days(2.5),
		})
	}))
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.WithTx(ctx, func(tx timeoff.Tx) error {
		b, err := tx.FindBalance(ctx, "u-1", 2025, timeoff.LeavePersonal)
		require.NoError(t, err)
		require.NotNil(t, b)
		assert.Equal(t, int64(1), b.Version)
		assert.Equal(t, "2.5", b.Remaining.Value.String())
		return nil
	}))
}

func TestStore_ForeignKeyRejectsUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	err := store.WithTx(ctx, func(tx timeoff.Tx) error {
		return tx.CreateRequest(ctx, timeoff.Request{
			ID: "r-1", UserID: "ghost", Type: timeoff.LeaveSick,
			StartDate: generic.MustParseDate("2025-03-03"), EndDate: generic.MustParseDate("2025-03-03"),
			WorkingDays: generic.Days(1), Status: timeoff.StatusPending,
		})
	})
	require.Error(t, err)
}
