package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockUnitRepository implements StockUnitRepository using GORM
type GormStockUnitRepository struct {
	db *gorm.DB
	// rowLockTimeout bounds FindByIDForUpdate on postgres; zero waits as long as the context
	rowLockTimeout time.Duration
}

// NewGormStockUnitRepository creates a new GormStockUnitRepository
func NewGormStockUnitRepository(db *gorm.DB) *GormStockUnitRepository {
	return &GormStockUnitRepository{db: db}
}

// FindByID finds a stock unit by its ID
func (r *GormStockUnitRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockUnit, error) {
	var model models.StockUnitModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a stock unit and locks its row until the surrounding transaction ends.
// Drivers without row locks (sqlite) fall back to a plain read; the keyed unit lock and the
// version check still serialize writers there. A row lock not granted within rowLockTimeout
// fails with CONCURRENCY_TIMEOUT.
func (r *GormStockUnitRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.StockUnit, error) {
	query := r.db.WithContext(ctx)
	if supportsRowLocks(r.db) {
		if r.rowLockTimeout > 0 {
			// SET takes no bind parameters; LOCAL ends with the surrounding transaction
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", max(r.rowLockTimeout.Milliseconds(), 1))
			if err := query.Exec(stmt).Error; err != nil {
				return nil, err
			}
		}
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model models.StockUnitModel
	if err := query.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateLockTimeout(translateNotFound(err))
	}
	return model.ToDomain(), nil
}

// FindBySKU finds a stock unit by owner, SKU and variant
func (r *GormStockUnitRepository) FindBySKU(ctx context.Context, ownerID uuid.UUID, sku, variantID string) (*inventory.StockUnit, error) {
	var model models.StockUnitModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND sku = ? AND variant_id = ?", ownerID, sku, variantID).
		First(&model).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByOwner lists the non-retired stock units of a seller account in creation order
func (r *GormStockUnitRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]inventory.StockUnit, error) {
	var rows []models.StockUnitModel
	query := r.db.WithContext(ctx).
		Where("owner_id = ? AND retired = ?", ownerID, false).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	units := make([]inventory.StockUnit, len(rows))
	for i := range rows {
		units[i] = *rows[i].ToDomain()
	}
	return units, nil
}

// Create inserts a new stock unit
func (r *GormStockUnitRepository) Create(ctx context.Context, unit *inventory.StockUnit) error {
	model := models.StockUnitModelFromDomain(unit)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeAlreadyExists, "A stock unit with this SKU and variant already exists")
		}
		return err
	}
	return nil
}

// SaveWithLock saves the unit only if nobody changed it since it was read.
// The domain increments Version on every change, so the stored row must hold Version-1.
func (r *GormStockUnitRepository) SaveWithLock(ctx context.Context, unit *inventory.StockUnit) error {
	model := models.StockUnitModelFromDomain(unit)
	result := r.db.WithContext(ctx).
		Model(&models.StockUnitModel{}).
		Where("id = ? AND version = ?", unit.ID, unit.Version-1).
		Updates(map[string]any{
			"on_hand":         model.OnHand,
			"min_level":       model.MinLevel,
			"ledger_sequence": model.LedgerSequence,
			"retired":         model.Retired,
			"retired_at":      model.RetiredAt,
			"version":         model.Version,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// translateNotFound maps gorm's missing-row error onto the domain sentinel
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// Ensure GormStockUnitRepository implements StockUnitRepository
var _ inventory.StockUnitRepository = (*GormStockUnitRepository)(nil)
