package integration

import (
	"context"
	"errors"

	appinv "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"go.uber.org/zap"
)

// SyncEnqueuer records outbound pushes. A newer task for a product and platform folds into the
// pending one instead of queueing a second push. Tasks already in flight are left alone and the
// newer task is queued behind them.
type SyncEnqueuer struct {
	logger *zap.Logger
}

// NewSyncEnqueuer creates a new SyncEnqueuer
func NewSyncEnqueuer(logger *zap.Logger) *SyncEnqueuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncEnqueuer{logger: logger}
}

// Enqueue saves task, or merges it into the pending task for the same product and platform.
// It returns the task that will carry the push.
func (e *SyncEnqueuer) Enqueue(ctx context.Context, repo integration.SyncTaskRepository, task *integration.SyncTask) (*integration.SyncTask, error) {
	pending, err := repo.FindPending(ctx, task.CanonicalProductID, task.TargetPlatform)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if pending != nil {
		if err := pending.Supersede(task); err != nil {
			return nil, err
		}
		// a dispatcher may claim the pending task between the read and this write
		coalesced, err := repo.SaveIfStatus(ctx, pending, integration.SyncTaskPending)
		if err != nil {
			return nil, err
		}
		if coalesced {
			e.logger.Debug("Sync task coalesced",
				zap.String("task_id", pending.ID.String()),
				zap.String("canonical_product_id", pending.CanonicalProductID.String()),
				zap.String("platform", pending.TargetPlatform.String()),
				zap.Strings("fields", pending.Fields.Strings()),
			)
			return pending, nil
		}
		e.logger.Debug("Pending sync task claimed before coalescing, queueing a new task",
			zap.String("claimed_task_id", pending.ID.String()),
			zap.String("task_id", task.ID.String()),
		)
	}
	if err := repo.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// EnqueueForProduct enqueues pushes of the given fields per platform
func (e *SyncEnqueuer) EnqueueForProduct(
	ctx context.Context,
	repo integration.SyncTaskRepository,
	product *integration.CanonicalProduct,
	fields map[integration.PlatformCode]integration.FieldSet,
	origin string,
) (int, error) {
	count := 0
	for _, src := range product.LiveSources() {
		fs, ok := fields[src.Platform]
		if !ok || len(fs) == 0 {
			continue
		}
		task, err := integration.NewSyncTask(product.OwnerID, product.ID, src.Platform, fs, origin)
		if err != nil {
			return count, err
		}
		if _, err := e.Enqueue(ctx, repo, task); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// EnqueueStockSync queues a stock push to every live listing of the product bound to unit.
// A unit that no marketplace lists yet is not an error.
func (e *SyncEnqueuer) EnqueueStockSync(ctx context.Context, repos appinv.TransactionalRepositories, unit *inventory.StockUnit, origin string) (int, error) {
	product, err := repos.ProductRepo().FindByStockUnit(ctx, unit.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for _, src := range product.LiveSources() {
		task, err := integration.NewSyncTask(product.OwnerID, product.ID, src.Platform, integration.NewFieldSet(integration.FieldStock), origin)
		if err != nil {
			return count, err
		}
		task.WithTargetStock(unit.OnHand)
		if _, err := e.Enqueue(ctx, repos.SyncTaskRepo(), task); err != nil {
			return count, err
		}
		count++
	}
	if count > 0 {
		e.logger.Debug("Stock sync enqueued",
			zap.String("stock_unit_id", unit.ID.String()),
			zap.String("canonical_product_id", product.ID.String()),
			zap.Int64("on_hand", unit.OnHand),
			zap.String("origin", origin),
			zap.Int("platforms", count),
		)
	}
	return count, nil
}

var _ appinv.StockSyncEnqueuer = (*SyncEnqueuer)(nil)
