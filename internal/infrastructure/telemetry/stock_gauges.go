package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockGaugeProvider implements StockGaugeProvider with aggregate queries over the
// reservations and sync_tasks tables.
type GormStockGaugeProvider struct {
	db *gorm.DB
}

// NewGormStockGaugeProvider creates a new GormStockGaugeProvider.
func NewGormStockGaugeProvider(db *gorm.DB) *GormStockGaugeProvider {
	return &GormStockGaugeProvider{db: db}
}

// ActiveReservationsByOwner returns count and quantity of active reservations per owner.
func (p *GormStockGaugeProvider) ActiveReservationsByOwner(ctx context.Context) (map[string]ActiveReservationTotals, error) {
	type row struct {
		OwnerID  uuid.UUID `gorm:"column:owner_id"`
		Count    int64     `gorm:"column:active_count"`
		Quantity int64     `gorm:"column:active_quantity"`
	}

	var rows []row
	err := p.db.WithContext(ctx).
		Table("reservations").
		Select("owner_id, COUNT(*) AS active_count, COALESCE(SUM(quantity), 0) AS active_quantity").
		Where("status = ?", "active").
		Group("owner_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]ActiveReservationTotals, len(rows))
	for _, r := range rows {
		out[r.OwnerID.String()] = ActiveReservationTotals{Count: r.Count, Quantity: r.Quantity}
	}
	return out, nil
}

// SyncTasksByStatus returns the number of sync tasks in each status.
func (p *GormStockGaugeProvider) SyncTasksByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string `gorm:"column:status"`
		Count  int64  `gorm:"column:task_count"`
	}

	var rows []row
	err := p.db.WithContext(ctx).
		Table("sync_tasks").
		Select("status, COUNT(*) AS task_count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
