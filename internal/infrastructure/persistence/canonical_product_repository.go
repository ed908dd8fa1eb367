package persistence

import (
	"context"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCanonicalProductRepository implements CanonicalProductRepository using GORM.
// Products are always loaded with their source records.
type GormCanonicalProductRepository struct {
	db *gorm.DB
}

// NewGormCanonicalProductRepository creates a new GormCanonicalProductRepository
func NewGormCanonicalProductRepository(db *gorm.DB) *GormCanonicalProductRepository {
	return &GormCanonicalProductRepository{db: db}
}

func preloadSources(db *gorm.DB) *gorm.DB {
	return db.Preload("SourceRecords", func(db *gorm.DB) *gorm.DB {
		return db.Order("platform ASC, remote_id ASC")
	})
}

func (r *GormCanonicalProductRepository) findOne(ctx context.Context, query string, args ...any) (*integration.CanonicalProduct, error) {
	var model models.CanonicalProductModel
	if err := preloadSources(r.db.WithContext(ctx)).Where(query, args...).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByID finds a canonical product by its ID
func (r *GormCanonicalProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.CanonicalProduct, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByStockUnit finds the canonical product bound to a stock unit
func (r *GormCanonicalProductRepository) FindByStockUnit(ctx context.Context, stockUnitID uuid.UUID) (*integration.CanonicalProduct, error) {
	return r.findOne(ctx, "stock_unit_id = ?", stockUnitID)
}

// FindBySourceKey finds the product currently holding a marketplace record
func (r *GormCanonicalProductRepository) FindBySourceKey(ctx context.Context, key integration.SourceKey) (*integration.CanonicalProduct, error) {
	holder := r.db.Model(&models.SourceRecordModel{}).
		Select("canonical_product_id").
		Where("platform = ? AND remote_id = ?", string(key.Platform), key.RemoteID)
	return r.findOne(ctx, "id IN (?)", holder)
}

// FindByLinkID finds a product whose source records carry the given linking id
func (r *GormCanonicalProductRepository) FindByLinkID(ctx context.Context, ownerID uuid.UUID, linkID string) (*integration.CanonicalProduct, error) {
	if linkID == "" {
		return nil, shared.ErrNotFound
	}
	holder := r.db.Model(&models.SourceRecordModel{}).
		Select("canonical_product_id").
		Where("link_id = ?", linkID)
	return r.findOne(ctx, "owner_id = ? AND id IN (?)", ownerID, holder)
}

// FindByBarcode finds a product by normalized barcode
func (r *GormCanonicalProductRepository) FindByBarcode(ctx context.Context, ownerID uuid.UUID, barcode string) (*integration.CanonicalProduct, error) {
	if barcode == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(ctx, "owner_id = ? AND barcode = ?", ownerID, barcode)
}

// FindBySKU finds a product by normalized SKU
func (r *GormCanonicalProductRepository) FindBySKU(ctx context.Context, ownerID uuid.UUID, sku string) (*integration.CanonicalProduct, error) {
	if sku == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(ctx, "owner_id = ? AND sku = ?", ownerID, sku)
}

// FindByOwner lists products of a seller account in creation order
func (r *GormCanonicalProductRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]integration.CanonicalProduct, error) {
	query := preloadSources(r.db.WithContext(ctx)).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	var rows []models.CanonicalProductModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	products := make([]integration.CanonicalProduct, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
	}
	return products, nil
}

// ListIDs lists product ids across all owners in creation order
func (r *GormCanonicalProductRepository) ListIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Model(&models.CanonicalProductModel{}).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	var ids []uuid.UUID
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save upserts the product row and makes its stored source records match the aggregate:
// records no longer held are removed, the rest are upserted by id.
func (r *GormCanonicalProductRepository) Save(ctx context.Context, product *integration.CanonicalProduct) error {
	model := models.CanonicalProductModelFromDomain(product)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).
			Create(model).Error
		if err != nil {
			return err
		}

		keep := make([]uuid.UUID, len(model.SourceRecords))
		for i := range model.SourceRecords {
			keep[i] = model.SourceRecords[i].ID
		}
		del := tx.Where("canonical_product_id = ?", product.ID)
		if len(keep) > 0 {
			del = del.Where("id NOT IN ?", keep)
		}
		if err := del.Delete(&models.SourceRecordModel{}).Error; err != nil {
			return err
		}

		if len(model.SourceRecords) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&model.SourceRecords).Error
	})
}

// SaveSourceRecord updates the outbound sync state of a single source record
func (r *GormCanonicalProductRepository) SaveSourceRecord(ctx context.Context, record *integration.SourceRecord) error {
	model := models.SourceRecordModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Model(&models.SourceRecordModel{}).
		Where("id = ? AND canonical_product_id = ?", record.ID, record.CanonicalProductID).
		Updates(map[string]any{
			"reported_stock":  model.ReportedStock,
			"reported_price":  model.ReportedPrice,
			"last_synced_at":  model.LastSyncedAt,
			"sync_status":     model.SyncStatus,
			"last_sync_error": model.LastSyncError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormCanonicalProductRepository implements CanonicalProductRepository
var _ integration.CanonicalProductRepository = (*GormCanonicalProductRepository)(nil)
