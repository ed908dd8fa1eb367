package inventory

import (
	"context"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/inventory"
)

// TransactionScope provides transactional access to the stock repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// Aggregate boundary notes:
//   - StockUnitRepo: the StockUnit aggregate root. OnHand only changes together with a ledger append.
//   - LedgerRepo: append-only. Entries are never updated or deleted.
//   - ReservationRepo: reservations change status only through compare-and-transition.
//   - ProductRepo and SyncTaskRepo: used by the confirm path to enqueue outbound pushes in the
//     same unit of work as the ledger append.
type TransactionalRepositories interface {
	// StockUnitRepo returns the stock unit repository scoped to the current transaction
	StockUnitRepo() inventory.StockUnitRepository
	// LedgerRepo returns the ledger repository scoped to the current transaction
	LedgerRepo() inventory.LedgerRepository
	// ReservationRepo returns the reservation repository scoped to the current transaction
	ReservationRepo() inventory.ReservationRepository
	// ProductRepo returns the canonical product repository scoped to the current transaction
	ProductRepo() integration.CanonicalProductRepository
	// SyncTaskRepo returns the sync task repository scoped to the current transaction
	SyncTaskRepo() integration.SyncTaskRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	stockUnitRepo   inventory.StockUnitRepository
	ledgerRepo      inventory.LedgerRepository
	reservationRepo inventory.ReservationRepository
	productRepo     integration.CanonicalProductRepository
	syncTaskRepo    integration.SyncTaskRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	stockUnitRepo inventory.StockUnitRepository,
	ledgerRepo inventory.LedgerRepository,
	reservationRepo inventory.ReservationRepository,
	productRepo integration.CanonicalProductRepository,
	syncTaskRepo integration.SyncTaskRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		stockUnitRepo:   stockUnitRepo,
		ledgerRepo:      ledgerRepo,
		reservationRepo: reservationRepo,
		productRepo:     productRepo,
		syncTaskRepo:    syncTaskRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// StockUnitRepo returns the stock unit repository.
func (s *NoOpTransactionScope) StockUnitRepo() inventory.StockUnitRepository {
	return s.stockUnitRepo
}

// LedgerRepo returns the ledger repository.
func (s *NoOpTransactionScope) LedgerRepo() inventory.LedgerRepository {
	return s.ledgerRepo
}

// ReservationRepo returns the reservation repository.
func (s *NoOpTransactionScope) ReservationRepo() inventory.ReservationRepository {
	return s.reservationRepo
}

// ProductRepo returns the canonical product repository.
func (s *NoOpTransactionScope) ProductRepo() integration.CanonicalProductRepository {
	return s.productRepo
}

// SyncTaskRepo returns the sync task repository.
func (s *NoOpTransactionScope) SyncTaskRepo() integration.SyncTaskRepository {
	return s.syncTaskRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
