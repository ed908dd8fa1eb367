package persistence

import (
	"context"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReservationRepository implements ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	var model models.ReservationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByStockUnit lists reservations for a unit, oldest first, optionally filtered by status
func (r *GormReservationRepository) FindByStockUnit(ctx context.Context, stockUnitID uuid.UUID, status inventory.ReservationStatus) ([]inventory.Reservation, error) {
	query := r.db.WithContext(ctx).Where("stock_unit_id = ?", stockUnitID)
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var rows []models.ReservationModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return reservationsToDomain(rows), nil
}

// FindExpiredActive finds active reservations whose deadline is before now, earliest deadline first
func (r *GormReservationRepository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]inventory.Reservation, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(inventory.ReservationActive), now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.ReservationModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return reservationsToDomain(rows), nil
}

// SumActiveQuantity sums the quantity of active reservations on a unit
func (r *GormReservationRepository) SumActiveQuantity(ctx context.Context, stockUnitID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("stock_unit_id = ? AND status = ?", stockUnitID, string(inventory.ReservationActive)).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CountActive counts active reservations on a unit
func (r *GormReservationRepository) CountActive(ctx context.Context, stockUnitID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("stock_unit_id = ? AND status = ?", stockUnitID, string(inventory.ReservationActive)).
		Count(&count).Error
	return count, err
}

// Create inserts a new reservation
func (r *GormReservationRepository) Create(ctx context.Context, reservation *inventory.Reservation) error {
	return r.db.WithContext(ctx).Create(models.ReservationModelFromDomain(reservation)).Error
}

// Transition writes the reservation's new status only while the stored row is still in
// status from. Exactly one of several racing confirm/release/expire calls wins.
func (r *GormReservationRepository) Transition(ctx context.Context, reservation *inventory.Reservation, from inventory.ReservationStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("id = ? AND status = ?", reservation.ID, string(from)).
		Updates(map[string]any{
			"status":      string(reservation.Status),
			"reason":      reservation.Reason,
			"resolved_at": reservation.ResolvedAt,
			"updated_at":  reservation.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func reservationsToDomain(rows []models.ReservationModel) []inventory.Reservation {
	out := make([]inventory.Reservation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormReservationRepository implements ReservationRepository
var _ inventory.ReservationRepository = (*GormReservationRepository)(nil)
