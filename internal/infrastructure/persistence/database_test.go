package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	appinv "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSQLiteDatabase(t *testing.T) *Database {
	t.Helper()
	d, err := NewDatabase(&config.DatabaseConfig{
		Driver:        DriverSQLite,
		SQLitePath:    ":memory:",
		LogLevel:      "silent",
		SlowThreshold: time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestNewDatabase_SQLite(t *testing.T) {
	d := newSQLiteDatabase(t)

	assert.Equal(t, DriverSQLite, d.Driver())
	assert.NoError(t, d.Ping())
	assert.False(t, supportsRowLocks(d.DB))

	for _, table := range []string{"stock_units", "ledger_entries", "reservations", "canonical_products", "source_records", "sync_tasks"} {
		assert.True(t, d.DB.Migrator().HasTable(table), table)
	}

	stats, err := d.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	d, err := NewDatabase(&config.DatabaseConfig{Driver: "mysql"}, nil)
	assert.Nil(t, d)
	assert.ErrorContains(t, err, `unsupported database driver "mysql"`)
}

func TestSupportsRowLocks_Postgres(t *testing.T) {
	db, _ := newMockDB(t)
	assert.True(t, supportsRowLocks(db))
}

func TestGormTransactionScope(t *testing.T) {
	ctx := context.Background()
	d := newSQLiteDatabase(t)
	scope := NewGormTransactionScope(d.DB)

	unit := newTestStockUnit(t, uuid.New(), "SKU-1")
	require.NoError(t, NewGormStockUnitRepository(d.DB).Create(ctx, unit))

	t.Run("commits the append and the counter together", func(t *testing.T) {
		err := scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
			u, err := repos.StockUnitRepo().FindByIDForUpdate(ctx, unit.ID)
			if err != nil {
				return err
			}
			entry, err := u.Append(9, inventory.ReasonInitial, "op", nil)
			if err != nil {
				return err
			}
			if err := repos.LedgerRepo().Append(ctx, entry); err != nil {
				return err
			}
			return repos.StockUnitRepo().SaveWithLock(ctx, u)
		})
		require.NoError(t, err)

		stored, err := NewGormStockUnitRepository(d.DB).FindByID(ctx, unit.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(9), stored.OnHand)
	})

	t.Run("rolls back both on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
			u, err := repos.StockUnitRepo().FindByIDForUpdate(ctx, unit.ID)
			if err != nil {
				return err
			}
			entry, err := u.Append(-4, inventory.ReasonSale, "op", nil)
			if err != nil {
				return err
			}
			if err := repos.LedgerRepo().Append(ctx, entry); err != nil {
				return err
			}
			if err := repos.StockUnitRepo().SaveWithLock(ctx, u); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		stored, err := NewGormStockUnitRepository(d.DB).FindByID(ctx, unit.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(9), stored.OnHand)

		entries, err := NewGormLedgerRepository(d.DB).FindByStockUnit(ctx, unit.ID, inventory.HistoryFilter{})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}
