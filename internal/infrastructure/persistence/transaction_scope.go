package persistence

import (
	"context"
	"time"

	appinv "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/inventory"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// A ledger append, its counter update and any sync tasks it enqueues commit together.
type GormTransactionScope struct {
	db             *gorm.DB
	rowLockTimeout time.Duration
}

// TransactionScopeOption configures a GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithRowLockTimeout bounds how long a transaction waits for a stock unit row locked by
// another session, usually another instance of the service.
func WithRowLockTimeout(d time.Duration) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.rowLockTimeout = d
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, rowLockTimeout: s.rowLockTimeout})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx             *gorm.DB
	rowLockTimeout time.Duration
}

// StockUnitRepo returns the stock unit repository scoped to the current transaction.
func (r *gormTransactionalRepositories) StockUnitRepo() inventory.StockUnitRepository {
	return &GormStockUnitRepository{db: r.tx, rowLockTimeout: r.rowLockTimeout}
}

// LedgerRepo returns the ledger repository scoped to the current transaction.
func (r *gormTransactionalRepositories) LedgerRepo() inventory.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

// ReservationRepo returns the reservation repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ReservationRepo() inventory.ReservationRepository {
	return NewGormReservationRepository(r.tx)
}

// ProductRepo returns the canonical product repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ProductRepo() integration.CanonicalProductRepository {
	return NewGormCanonicalProductRepository(r.tx)
}

// SyncTaskRepo returns the sync task repository scoped to the current transaction.
func (r *gormTransactionalRepositories) SyncTaskRepo() integration.SyncTaskRepository {
	return NewGormSyncTaskRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appinv.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
