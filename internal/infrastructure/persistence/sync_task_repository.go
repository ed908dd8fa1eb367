package persistence

import (
	"context"
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSyncTaskRepository implements SyncTaskRepository using GORM
type GormSyncTaskRepository struct {
	db *gorm.DB
}

// NewGormSyncTaskRepository creates a new GormSyncTaskRepository
func NewGormSyncTaskRepository(db *gorm.DB) *GormSyncTaskRepository {
	return &GormSyncTaskRepository{db: db}
}

// FindByID finds a sync task by its ID
func (r *GormSyncTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncTask, error) {
	var model models.SyncTaskModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindPending finds the pending task for a product and platform, if any
func (r *GormSyncTaskRepository) FindPending(ctx context.Context, productID uuid.UUID, platform integration.PlatformCode) (*integration.SyncTask, error) {
	var model models.SyncTaskModel
	err := r.db.WithContext(ctx).
		Where("canonical_product_id = ? AND target_platform = ? AND status = ?",
			productID, string(platform), string(integration.SyncTaskPending)).
		Order("created_at ASC").
		First(&model).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindDue returns pending tasks whose next attempt is due, earliest first
func (r *GormSyncTaskRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]integration.SyncTask, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", string(integration.SyncTaskPending), now).
		Order("next_attempt_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.SyncTaskModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return syncTasksToDomain(rows), nil
}

// FindAll lists tasks matching the filter, newest first
func (r *GormSyncTaskRepository) FindAll(ctx context.Context, filter integration.SyncTaskFilter) ([]integration.SyncTask, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncTaskModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.CanonicalProductID != uuid.Nil {
		query = query.Where("canonical_product_id = ?", filter.CanonicalProductID)
	}
	if filter.Platform != "" {
		query = query.Where("target_platform = ?", string(filter.Platform))
	}
	query = query.Order("created_at DESC, id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}
	var rows []models.SyncTaskModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return syncTasksToDomain(rows), nil
}

// Save creates or updates a task
func (r *GormSyncTaskRepository) Save(ctx context.Context, task *integration.SyncTask) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(models.SyncTaskModelFromDomain(task)).Error
}

// Claim writes the in-flight state of a task only while the stored row is still pending,
// so two dispatchers never push the same task.
func (r *GormSyncTaskRepository) Claim(ctx context.Context, task *integration.SyncTask) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SyncTaskModel{}).
		Where("id = ? AND status = ?", task.ID, string(integration.SyncTaskPending)).
		Updates(map[string]any{
			"status":        string(task.Status),
			"attempt_count": task.AttemptCount,
			"updated_at":    task.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SaveIfStatus writes the mutable columns of a task only while the stored row is still in
// status expected. Coalescing and dispatch outcomes go through it so neither overwrites a
// transition made by the other.
func (r *GormSyncTaskRepository) SaveIfStatus(ctx context.Context, task *integration.SyncTask, expected integration.SyncTaskStatus) (bool, error) {
	m := models.SyncTaskModelFromDomain(task)
	result := r.db.WithContext(ctx).
		Model(&models.SyncTaskModel{}).
		Where("id = ? AND status = ?", task.ID, string(expected)).
		Updates(map[string]any{
			"fields":          m.FieldsJSON,
			"target_stock":    m.TargetStock,
			"status":          m.Status,
			"attempt_count":   m.AttemptCount,
			"next_attempt_at": m.NextAttemptAt,
			"last_error":      m.LastError,
			"origin":          m.Origin,
			"completed_at":    m.CompletedAt,
			"updated_at":      m.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ResetStale puts tasks stuck in flight since before olderThan back to pending
func (r *GormSyncTaskRepository) ResetStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SyncTaskModel{}).
		Where("status = ? AND updated_at < ?", string(integration.SyncTaskInFlight), olderThan).
		Updates(map[string]any{
			"status":     string(integration.SyncTaskPending),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func syncTasksToDomain(rows []models.SyncTaskModel) []integration.SyncTask {
	out := make([]integration.SyncTask, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormSyncTaskRepository implements SyncTaskRepository
var _ integration.SyncTaskRepository = (*GormSyncTaskRepository)(nil)
