package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CanonicalProductRepository defines the interface for canonical product persistence.
// Source records are saved and loaded together with their product.
type CanonicalProductRepository interface {
	// FindByID finds a canonical product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*CanonicalProduct, error)

	// FindByStockUnit finds the canonical product bound to a stock unit
	FindByStockUnit(ctx context.Context, stockUnitID uuid.UUID) (*CanonicalProduct, error)

	// FindBySourceKey finds the product currently holding a marketplace record
	FindBySourceKey(ctx context.Context, key SourceKey) (*CanonicalProduct, error)

	// FindByLinkID finds a product by explicit cross-platform linking id
	FindByLinkID(ctx context.Context, ownerID uuid.UUID, linkID string) (*CanonicalProduct, error)

	// FindByBarcode finds a product by normalized barcode
	FindByBarcode(ctx context.Context, ownerID uuid.UUID, barcode string) (*CanonicalProduct, error)

	// FindBySKU finds a product by normalized SKU
	FindBySKU(ctx context.Context, ownerID uuid.UUID, sku string) (*CanonicalProduct, error)

	// FindByOwner lists products of a seller account
	FindByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]CanonicalProduct, error)

	// ListIDs lists product ids across all owners in creation order
	ListIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error)

	// Save creates or updates a product and replaces its source records
	Save(ctx context.Context, product *CanonicalProduct) error

	// SaveSourceRecord updates the outbound sync state of a single source record
	SaveSourceRecord(ctx context.Context, record *SourceRecord) error
}

// SyncTaskFilter narrows a sync task listing
type SyncTaskFilter struct {
	Status             SyncTaskStatus
	CanonicalProductID uuid.UUID
	Platform           PlatformCode
	Limit              int
	Offset             int
}

// SyncTaskRepository defines the interface for sync task persistence
type SyncTaskRepository interface {
	// FindByID finds a sync task by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*SyncTask, error)

	// FindPending finds the pending task for a product and platform, if any
	FindPending(ctx context.Context, productID uuid.UUID, platform PlatformCode) (*SyncTask, error)

	// FindDue returns pending tasks whose next attempt is due
	FindDue(ctx context.Context, now time.Time, limit int) ([]SyncTask, error)

	// FindAll lists tasks matching the filter, newest first
	FindAll(ctx context.Context, filter SyncTaskFilter) ([]SyncTask, error)

	// Save creates or updates a task
	Save(ctx context.Context, task *SyncTask) error

	// Claim moves a due pending task in flight only if it is still pending
	Claim(ctx context.Context, task *SyncTask) (bool, error)

	// SaveIfStatus writes task only while the stored row is still in status expected.
	// It reports false when another writer moved the row first.
	SaveIfStatus(ctx context.Context, task *SyncTask, expected SyncTaskStatus) (bool, error)

	// ResetStale puts tasks stuck in flight since before olderThan back to pending
	ResetStale(ctx context.Context, olderThan time.Time) (int64, error)
}
