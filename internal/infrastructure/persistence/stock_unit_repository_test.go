package persistence

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	appinv "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStockUnit(t *testing.T, ownerID uuid.UUID, sku string) *inventory.StockUnit {
	t.Helper()
	unit, err := inventory.NewStockUnit(ownerID, sku, "", 2)
	require.NoError(t, err)
	return unit
}

func TestGormStockUnitRepository_FindByID(t *testing.T) {
	t.Run("maps the row to a domain unit", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewGormStockUnitRepository(db)

		unitID := uuid.New()
		ownerID := uuid.New()
		rows := sqlmock.NewRows([]string{
			"id", "owner_id", "sku", "variant_id", "on_hand", "min_level", "ledger_sequence", "retired", "version",
		}).AddRow(unitID, ownerID, "SKU-1", "red", 40, 5, 7, false, 8)

		mock.ExpectQuery(`SELECT \* FROM "stock_units" WHERE id = \$1`).
			WithArgs(unitID, 1).
			WillReturnRows(rows)

		unit, err := repo.FindByID(context.Background(), unitID)
		require.NoError(t, err)
		assert.Equal(t, unitID, unit.ID)
		assert.Equal(t, ownerID, unit.OwnerID)
		assert.Equal(t, int64(40), unit.OnHand)
		assert.Equal(t, int64(7), unit.LedgerSequence)
		assert.Equal(t, 8, unit.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for a missing unit", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewGormStockUnitRepository(db)

		unitID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "stock_units" WHERE id = \$1`).
			WithArgs(unitID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		unit, err := repo.FindByID(context.Background(), unitID)
		assert.Nil(t, unit)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockUnitRepository_FindByIDForUpdate_TakesRowLock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormStockUnitRepository(db)

	unitID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "stock_units" WHERE id = \$1 .*FOR UPDATE`).
		WithArgs(unitID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "sku", "version"}).AddRow(unitID, uuid.New(), "SKU-1", 1))

	unit, err := repo.FindByIDForUpdate(context.Background(), unitID)
	require.NoError(t, err)
	assert.Equal(t, unitID, unit.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStockUnitRepository_SaveWithLock(t *testing.T) {
	t.Run("updates when the stored version matches", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewGormStockUnitRepository(db)

		unit := newTestStockUnit(t, uuid.New(), "SKU-1")
		_, err := unit.Append(10, inventory.ReasonInitial, "op", nil)
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "stock_units" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.SaveWithLock(context.Background(), unit))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports a conflict when nobody matched", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewGormStockUnitRepository(db)

		unit := newTestStockUnit(t, uuid.New(), "SKU-1")
		_, err := unit.Append(10, inventory.ReasonInitial, "op", nil)
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "stock_units" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(context.Background(), unit)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockUnitRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewGormStockUnitRepository(db)
	ownerID := uuid.New()

	unit := newTestStockUnit(t, ownerID, "SKU-1")
	require.NoError(t, repo.Create(ctx, unit))

	t.Run("duplicate sku and variant is rejected", func(t *testing.T) {
		dup := newTestStockUnit(t, ownerID, "SKU-1")
		err := repo.Create(ctx, dup)
		assert.True(t, shared.IsDomainError(err, shared.CodeAlreadyExists))

		other := newTestStockUnit(t, uuid.New(), "SKU-1")
		assert.NoError(t, repo.Create(ctx, other))
	})

	t.Run("find by sku", func(t *testing.T) {
		found, err := repo.FindBySKU(ctx, ownerID, "SKU-1", "")
		require.NoError(t, err)
		assert.Equal(t, unit.ID, found.ID)

		_, err = repo.FindBySKU(ctx, ownerID, "SKU-1", "blue")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("save with lock rejects a stale copy", func(t *testing.T) {
		fresh, err := repo.FindByIDForUpdate(ctx, unit.ID)
		require.NoError(t, err)
		stale, err := repo.FindByID(ctx, unit.ID)
		require.NoError(t, err)

		_, err = fresh.Append(5, inventory.ReasonInitial, "op", nil)
		require.NoError(t, err)
		require.NoError(t, repo.SaveWithLock(ctx, fresh))

		_, err = stale.Append(3, inventory.ReasonInitial, "op", nil)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)

		stored, err := repo.FindByID(ctx, unit.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stored.OnHand)
		assert.Equal(t, int64(1), stored.LedgerSequence)
		assert.Equal(t, fresh.Version, stored.Version)
	})

	t.Run("retired units are left out of owner listings", func(t *testing.T) {
		second := newTestStockUnit(t, ownerID, "SKU-2")
		require.NoError(t, repo.Create(ctx, second))
		require.NoError(t, second.Retire(0))
		require.NoError(t, repo.SaveWithLock(ctx, second))

		units, err := repo.FindByOwner(ctx, ownerID, 10, 0)
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, unit.ID, units[0].ID)
	})
}

func TestGormStockUnitRepository_FindByIDForUpdate_LockTimeout(t *testing.T) {
	db, mock := newMockDB(t)
	scope := NewGormTransactionScope(db, WithRowLockTimeout(250*time.Millisecond))
	unitID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '250ms'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "stock_units" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	err := scope.Execute(context.Background(), func(repos appinv.TransactionalRepositories) error {
		_, err := repos.StockUnitRepo().FindByIDForUpdate(context.Background(), unitID)
		return err
	})
	assert.True(t, shared.IsDomainError(err, shared.CodeConcurrencyTimeout))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateLockTimeout(t *testing.T) {
	assert.NoError(t, translateLockTimeout(nil))
	assert.ErrorIs(t, translateLockTimeout(&pq.Error{Code: "55P03"}), shared.ErrConcurrencyTimeout)
	assert.ErrorIs(t, translateLockTimeout(fmt.Errorf("select: %w", &pgconn.PgError{Code: "55P03"})), shared.ErrConcurrencyTimeout)

	deadlock := &pgconn.PgError{Code: "40P01"}
	assert.Same(t, error(deadlock), translateLockTimeout(deadlock))
}
