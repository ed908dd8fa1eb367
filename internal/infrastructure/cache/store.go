package cache

import (
	"context"
	"time"
)

// SweepState records the outcome of the most recent expiry sweep
type SweepState struct {
	LastRunAt time.Time     `json:"last_run_at"`
	Expired   int           `json:"expired"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Instance  string        `json:"instance"`
}

// SweepStateStore persists the last sweep so every instance can report it
type SweepStateStore interface {
	SaveSweepState(ctx context.Context, state SweepState) error
	// LoadSweepState returns false when no sweep has been recorded yet
	LoadSweepState(ctx context.Context) (SweepState, bool, error)
}

// Lease is a named, expiring lock held by one owner at a time
type Lease interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release is a no-op when the lease is held by someone else
	Release(ctx context.Context, key, owner string) error
}

// Store bundles everything the background jobs keep outside the database
type Store interface {
	SweepStateStore
	Lease
	// MarkProcessed reports true the first time key is seen within ttl
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Close() error
}
