package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultLockTimeout is how long an operation waits for per-unit exclusion
const DefaultLockTimeout = 2 * time.Second

// UnitLocker serializes writers of a single stock unit inside this process.
// The database row lock taken by FindByIDForUpdate covers writers in other processes.
type UnitLocker interface {
	// Lock blocks until the unit is free or the timeout elapses.
	// The returned function must be called exactly once to release the unit.
	Lock(ctx context.Context, stockUnitID uuid.UUID) (func(), error)
}

// KeyedUnitLocker is a UnitLocker holding one single-slot channel per stock unit
type KeyedUnitLocker struct {
	mu      sync.Mutex
	slots   map[uuid.UUID]*unitSlot
	timeout time.Duration
}

type unitSlot struct {
	ch      chan struct{}
	waiters int
}

// NewKeyedUnitLocker creates a keyed locker. A non-positive timeout uses DefaultLockTimeout.
func NewKeyedUnitLocker(timeout time.Duration) *KeyedUnitLocker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &KeyedUnitLocker{
		slots:   make(map[uuid.UUID]*unitSlot),
		timeout: timeout,
	}
}

// Timeout returns how long Lock waits before failing with CONCURRENCY_TIMEOUT
func (l *KeyedUnitLocker) Timeout() time.Duration {
	return l.timeout
}

// Lock implements UnitLocker
func (l *KeyedUnitLocker) Lock(ctx context.Context, stockUnitID uuid.UUID) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[stockUnitID]
	if !ok {
		slot = &unitSlot{ch: make(chan struct{}, 1)}
		l.slots[stockUnitID] = slot
	}
	slot.waiters++
	l.mu.Unlock()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.leave(stockUnitID, slot)
			})
		}, nil
	case <-timer.C:
		l.leave(stockUnitID, slot)
		return nil, shared.NewDomainError(shared.CodeConcurrencyTimeout,
			"Timed out waiting for stock unit "+stockUnitID.String())
	case <-ctx.Done():
		l.leave(stockUnitID, slot)
		return nil, ctx.Err()
	}
}

// leave drops the slot once nobody holds or waits for it
func (l *KeyedUnitLocker) leave(stockUnitID uuid.UUID, slot *unitSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.waiters--
	if slot.waiters == 0 {
		delete(l.slots, stockUnitID)
	}
}

var _ UnitLocker = (*KeyedUnitLocker)(nil)
