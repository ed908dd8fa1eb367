package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLedgerRepository implements LedgerRepository using GORM.
// The table is append-only: this type never issues UPDATE or DELETE.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append inserts a ledger entry. A duplicate (stock_unit_id, sequence) means another writer
// appended first and is reported as a concurrency conflict.
func (r *GormLedgerRepository) Append(ctx context.Context, entry *inventory.LedgerEntry) error {
	model := models.LedgerEntryModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// FindByStockUnit returns entries in sequence order matching the filter
func (r *GormLedgerRepository) FindByStockUnit(ctx context.Context, stockUnitID uuid.UUID, filter inventory.HistoryFilter) ([]inventory.LedgerEntry, error) {
	query := r.db.WithContext(ctx).Where("stock_unit_id = ?", stockUnitID)
	if filter.AfterSequence > 0 {
		query = query.Where("sequence > ?", filter.AfterSequence)
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at < ?", filter.To)
	}
	if len(filter.ReasonCodes) > 0 {
		codes := make([]string, len(filter.ReasonCodes))
		for i, c := range filter.ReasonCodes {
			codes[i] = string(c)
		}
		query = query.Where("reason_code IN ?", codes)
	}
	query = query.Order("sequence ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []models.LedgerEntryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]inventory.LedgerEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, nil
}

// SumDeltas sums every delta recorded at or before the given instant (zero means all)
func (r *GormLedgerRepository) SumDeltas(ctx context.Context, stockUnitID uuid.UUID, upTo time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Where("stock_unit_id = ?", stockUnitID)
	if !upTo.IsZero() {
		query = query.Where("created_at <= ?", upTo)
	}
	var total int64
	if err := query.Select("COALESCE(SUM(delta), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Ensure GormLedgerRepository implements LedgerRepository
var _ inventory.LedgerRepository = (*GormLedgerRepository)(nil)
