package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// memoryStore is an in-memory implementation of the inventory repositories for service tests.
// It stores copies so callers never share state with the store.
type memoryStore struct {
	mu           sync.Mutex
	units        map[uuid.UUID]inventory.StockUnit
	entries      map[uuid.UUID][]inventory.LedgerEntry
	reservations map[uuid.UUID]inventory.Reservation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		units:        make(map[uuid.UUID]inventory.StockUnit),
		entries:      make(map[uuid.UUID][]inventory.LedgerEntry),
		reservations: make(map[uuid.UUID]inventory.Reservation),
	}
}

func (m *memoryStore) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(m.unitRepo(), m.ledgerRepo(), m.reservationRepo(), nil, nil)
}

func (m *memoryStore) unitRepo() *memoryUnitRepo               { return &memoryUnitRepo{m} }
func (m *memoryStore) ledgerRepo() *memoryLedgerRepo           { return &memoryLedgerRepo{m} }
func (m *memoryStore) reservationRepo() *memoryReservationRepo { return &memoryReservationRepo{m} }

// seedUnit stores a unit with an INITIAL entry so that ledger and counter agree
func (m *memoryStore) seedUnit(onHand int64) *inventory.StockUnit {
	unit, _ := inventory.NewStockUnit(uuid.New(), "SKU-"+uuid.NewString()[:8], "", 0)
	if onHand > 0 {
		entry, _ := unit.Append(onHand, inventory.ReasonInitial, "seed", nil)
		m.entries[unit.ID] = append(m.entries[unit.ID], *entry)
	}
	unit.ClearDomainEvents()
	m.units[unit.ID] = *unit
	return unit
}

func (m *memoryStore) onHand(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.units[id].OnHand
}

type memoryUnitRepo struct{ m *memoryStore }

func (r *memoryUnitRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.StockUnit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.units[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (r *memoryUnitRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.StockUnit, error) {
	return r.FindByID(ctx, id)
}

func (r *memoryUnitRepo) FindBySKU(_ context.Context, ownerID uuid.UUID, sku, variantID string) (*inventory.StockUnit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.units {
		if u.OwnerID == ownerID && u.SKU == sku && u.VariantID == variantID {
			return &u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryUnitRepo) FindByOwner(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]inventory.StockUnit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.StockUnit
	for _, u := range r.m.units {
		if u.OwnerID == ownerID && !u.Retired {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryUnitRepo) Create(_ context.Context, unit *inventory.StockUnit) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.units[unit.ID]; ok {
		return shared.ErrAlreadyExists
	}
	r.m.units[unit.ID] = *unit
	return nil
}

func (r *memoryUnitRepo) SaveWithLock(_ context.Context, unit *inventory.StockUnit) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.units[unit.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != unit.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.m.units[unit.ID] = *unit
	return nil
}

type memoryLedgerRepo struct{ m *memoryStore }

func (r *memoryLedgerRepo) Append(_ context.Context, entry *inventory.LedgerEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.entries[entry.StockUnitID] = append(r.m.entries[entry.StockUnitID], *entry)
	return nil
}

func (r *memoryLedgerRepo) FindByStockUnit(_ context.Context, id uuid.UUID, filter inventory.HistoryFilter) ([]inventory.LedgerEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.LedgerEntry
	for i := range r.m.entries[id] {
		e := r.m.entries[id][i]
		if !filter.Matches(&e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) SumDeltas(_ context.Context, id uuid.UUID, upTo time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var sum int64
	for _, e := range r.m.entries[id] {
		if upTo.IsZero() || !e.CreatedAt.After(upTo) {
			sum += e.Delta
		}
	}
	return sum, nil
}

type memoryReservationRepo struct{ m *memoryStore }

func (r *memoryReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	res, ok := r.m.reservations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &res, nil
}

func (r *memoryReservationRepo) FindByStockUnit(_ context.Context, id uuid.UUID, status inventory.ReservationStatus) ([]inventory.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.Reservation
	for _, res := range r.m.reservations {
		if res.StockUnitID == id && (status == "" || res.Status == status) {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *memoryReservationRepo) FindExpiredActive(_ context.Context, now time.Time, limit int) ([]inventory.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.Reservation
	for _, res := range r.m.reservations {
		if res.Status == inventory.ReservationActive && res.ExpiresAt.Before(now) {
			out = append(out, res)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memoryReservationRepo) SumActiveQuantity(_ context.Context, id uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var sum int64
	for _, res := range r.m.reservations {
		if res.StockUnitID == id && res.Status == inventory.ReservationActive {
			sum += res.Quantity
		}
	}
	return sum, nil
}

func (r *memoryReservationRepo) CountActive(_ context.Context, id uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, res := range r.m.reservations {
		if res.StockUnitID == id && res.Status == inventory.ReservationActive {
			n++
		}
	}
	return n, nil
}

func (r *memoryReservationRepo) Create(_ context.Context, res *inventory.Reservation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.reservations[res.ID] = *res
	return nil
}

func (r *memoryReservationRepo) Transition(_ context.Context, res *inventory.Reservation, from inventory.ReservationStatus) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.reservations[res.ID]
	if !ok {
		return false, shared.ErrNotFound
	}
	if stored.Status != from {
		return false, nil
	}
	r.m.reservations[res.ID] = *res
	return true, nil
}

var (
	_ inventory.StockUnitRepository   = (*memoryUnitRepo)(nil)
	_ inventory.LedgerRepository      = (*memoryLedgerRepo)(nil)
	_ inventory.ReservationRepository = (*memoryReservationRepo)(nil)
)
