package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StockUnitRepository defines the interface for stock unit persistence
type StockUnitRepository interface {
	// FindByID finds a stock unit by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StockUnit, error)

	// FindByIDForUpdate finds a stock unit and takes a row lock for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*StockUnit, error)

	// FindBySKU finds a stock unit by owner, SKU and variant
	FindBySKU(ctx context.Context, ownerID uuid.UUID, sku, variantID string) (*StockUnit, error)

	// FindByOwner lists the non-retired stock units of a seller account
	FindByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]StockUnit, error)

	// Create inserts a new stock unit
	Create(ctx context.Context, unit *StockUnit) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, unit *StockUnit) error
}

// LedgerRepository is the append-only store of ledger entries
type LedgerRepository interface {
	// Append inserts a ledger entry; entries are never updated
	Append(ctx context.Context, entry *LedgerEntry) error

	// FindByStockUnit returns entries in sequence order matching the filter
	FindByStockUnit(ctx context.Context, stockUnitID uuid.UUID, filter HistoryFilter) ([]LedgerEntry, error)

	// SumDeltas sums every delta recorded at or before the given instant (zero means all)
	SumDeltas(ctx context.Context, stockUnitID uuid.UUID, upTo time.Time) (int64, error)
}

// ReservationRepository defines the interface for reservation persistence
type ReservationRepository interface {
	// FindByID finds a reservation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// FindByStockUnit lists reservations for a unit, optionally filtered by status
	FindByStockUnit(ctx context.Context, stockUnitID uuid.UUID, status ReservationStatus) ([]Reservation, error)

	// FindExpiredActive finds active reservations whose deadline is before now
	FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]Reservation, error)

	// SumActiveQuantity sums the quantity of active reservations on a unit
	SumActiveQuantity(ctx context.Context, stockUnitID uuid.UUID) (int64, error)

	// CountActive counts active reservations on a unit
	CountActive(ctx context.Context, stockUnitID uuid.UUID) (int64, error)

	// Create inserts a new reservation
	Create(ctx context.Context, reservation *Reservation) error

	// Transition moves a reservation from one status to another only if it is still in
	// the expected status. It returns false when another writer got there first.
	Transition(ctx context.Context, reservation *Reservation, from ReservationStatus) (bool, error)
}
