package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

const defaultLeasePoll = 100 * time.Millisecond

// LeaseLock is a blocking per-id lock built on a Lease. With a shared store it excludes
// holders across instances; every Lock call is its own lease owner, so goroutines of one
// instance exclude each other as well.
type LeaseLock struct {
	lease  Lease
	prefix string
	owner  string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewLeaseLock creates a lock whose keys are prefix:id. ttl must outlast the critical
// section; wait bounds how long Lock retries.
func NewLeaseLock(lease Lease, prefix, owner string, ttl, wait time.Duration) *LeaseLock {
	return &LeaseLock{
		lease:  lease,
		prefix: prefix,
		owner:  owner,
		ttl:    ttl,
		wait:   wait,
		poll:   defaultLeasePoll,
	}
}

// Lock blocks until the lease of id is taken, wait elapses or ctx is done.
// The returned function releases the lease and is safe to call more than once.
func (l *LeaseLock) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	key := l.prefix + ":" + id.String()
	holder := l.owner + "/" + uuid.NewString()

	deadline := time.NewTimer(l.wait)
	defer deadline.Stop()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.lease.Acquire(ctx, key, holder, l.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					defer cancel()
					_ = l.lease.Release(releaseCtx, key, holder)
				})
			}, nil
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			return nil, shared.NewDomainError(shared.CodeConcurrencyTimeout, "Timed out waiting for lease "+key)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
