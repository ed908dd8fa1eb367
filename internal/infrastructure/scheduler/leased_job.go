package scheduler

import (
	"context"
	"time"

	"github.com/erp/stocksync/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// LeasedJob runs the wrapped job only while holding a named lease, so with a
// shared store one instance in the fleet runs it per tick
type LeasedJob struct {
	job    Job
	lease  cache.Lease
	key    string
	owner  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewLeasedJob wraps job with the lease key. ttl must outlast a run; a crashed
// holder blocks others for at most ttl.
func NewLeasedJob(job Job, lease cache.Lease, key, owner string, ttl time.Duration, logger *zap.Logger) *LeasedJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeasedJob{
		job:    job,
		lease:  lease,
		key:    key,
		owner:  owner,
		ttl:    ttl,
		logger: logger,
	}
}

// Name returns the wrapped job's name
func (j *LeasedJob) Name() string {
	return j.job.Name()
}

// Run acquires the lease, runs the job and releases the lease.
// It returns ErrLeaseHeld without running when another owner holds the lease.
func (j *LeasedJob) Run(ctx context.Context) error {
	ok, err := j.lease.Acquire(ctx, j.key, j.owner, j.ttl)
	if err != nil {
		return err
	}
	if !ok {
		j.logger.Debug("Lease held elsewhere, skipping run",
			zap.String("job", j.job.Name()),
			zap.String("lease", j.key),
		)
		return ErrLeaseHeld
	}

	defer func() {
		// release even when ctx is done, otherwise others wait for the ttl
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := j.lease.Release(releaseCtx, j.key, j.owner); err != nil {
			j.logger.Warn("Failed to release lease", zap.String("lease", j.key), zap.Error(err))
		}
	}()

	return j.job.Run(ctx)
}
