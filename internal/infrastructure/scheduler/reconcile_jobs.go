package scheduler

import (
	"context"

	appintegration "github.com/erp/stocksync/internal/application/integration"
	"go.uber.org/zap"
)

// Job and lease names of the marketplace jobs
const (
	PullJobName      = "platform-pull"
	ReconcileJobName = "stock-reconcile"
)

// Reconciler runs the marketplace batch operations
type Reconciler interface {
	PullAndMerge(ctx context.Context) (*appintegration.PullResult, error)
	ReconcileAll(ctx context.Context) (*appintegration.ReconcileAllResult, error)
}

// NewPullJob fetches every enabled marketplace and merges the result
func NewPullJob(r Reconciler, logger *zap.Logger) Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return JobFunc{
		JobName: PullJobName,
		Fn: func(ctx context.Context) error {
			res, err := r.PullAndMerge(ctx)
			if err != nil {
				return err
			}
			failed := 0
			for _, p := range res.Platforms {
				if p.Error != "" {
					failed++
				}
			}
			fields := []zap.Field{
				zap.Int("platforms", len(res.Platforms)),
				zap.Int("platforms_failed", failed),
				zap.Int("reconciled", res.Reconciled),
				zap.Int("drifted", res.Drifted),
			}
			if res.Merge != nil {
				fields = append(fields,
					zap.Int("created", res.Merge.Created),
					zap.Int("updated", res.Merge.Updated),
					zap.Int("attribute_conflicts", len(res.Merge.Conflicts)),
					zap.Int("link_conflicts", len(res.Merge.LinkConflicts)),
					zap.Int("rejected", len(res.Merge.Rejected)),
				)
			}
			logger.Info("Platform pull completed", fields...)
			return nil
		},
	}
}

// NewReconcileJob reconciles the stock of every canonical product
func NewReconcileJob(r Reconciler) Job {
	return JobFunc{
		JobName: ReconcileJobName,
		Fn: func(ctx context.Context) error {
			_, err := r.ReconcileAll(ctx)
			return err
		},
	}
}
