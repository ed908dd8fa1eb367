package cache

import (
	"context"
	"sync"
	"time"
)

// entry is a value with an optional expiry; a zero expiresAt never expires
type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore implements Store inside the process.
// Leases taken here only exclude goroutines of the same instance.
type MemoryStore struct {
	mu         sync.Mutex
	sweepState *SweepState
	leases     map[string]entry
	dedup      map[string]entry
	now        func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryStore creates the store and starts its cleanup goroutine
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		leases:   make(map[string]entry),
		dedup:    make(map[string]entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop(time.Minute)

	return s
}

// SaveSweepState keeps a copy of state
func (s *MemoryStore) SaveSweepState(_ context.Context, state SweepState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepState = &state
	return nil
}

// LoadSweepState returns the last saved state
func (s *MemoryStore) LoadSweepState(_ context.Context) (SweepState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweepState == nil {
		return SweepState{}, false, nil
	}
	return *s.sweepState, true, nil
}

// Acquire takes the lease when it is free, expired, or already ours
func (s *MemoryStore) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.leases[key]; ok && !e.expired(now) && e.value != owner {
		return false, nil
	}
	s.leases[key] = entry{value: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

// Release drops the lease if owner holds it
func (s *MemoryStore) Release(_ context.Context, key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.leases[key]; ok && e.value == owner {
		delete(s.leases, key)
	}
	return nil
}

// MarkProcessed reports true the first time key is seen within ttl
func (s *MemoryStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.dedup[key]; ok && !e.expired(now) {
		return false, nil
	}
	s.dedup[key] = entry{value: "1", expiresAt: now.Add(ttl)}
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.leases {
		if e.expired(now) {
			delete(s.leases, k)
		}
	}
	for k, e := range s.dedup {
		if e.expired(now) {
			delete(s.dedup, k)
		}
	}
}

// size returns the number of live keys, for tests
func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leases) + len(s.dedup)
}

var _ Store = (*MemoryStore)(nil)
