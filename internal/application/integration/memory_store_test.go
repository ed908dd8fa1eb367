package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	appinv "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memoryStore backs the reconciler and dispatcher tests. It stores deep copies.
type memoryStore struct {
	mu       sync.Mutex
	units    map[uuid.UUID]inventory.StockUnit
	entries  map[uuid.UUID][]inventory.LedgerEntry
	products map[uuid.UUID]integration.CanonicalProduct
	tasks    map[uuid.UUID]integration.SyncTask
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		units:    make(map[uuid.UUID]inventory.StockUnit),
		entries:  make(map[uuid.UUID][]inventory.LedgerEntry),
		products: make(map[uuid.UUID]integration.CanonicalProduct),
		tasks:    make(map[uuid.UUID]integration.SyncTask),
	}
}

func (m *memoryStore) scope() *appinv.NoOpTransactionScope {
	return appinv.NewNoOpTransactionScope(m.unitRepo(), m.ledgerRepo(), nil, m.productRepo(), m.taskRepo())
}

func (m *memoryStore) unitRepo() *memoryUnitRepo       { return &memoryUnitRepo{m} }
func (m *memoryStore) ledgerRepo() *memoryLedgerRepo   { return &memoryLedgerRepo{m} }
func (m *memoryStore) productRepo() *memoryProductRepo { return &memoryProductRepo{m} }
func (m *memoryStore) taskRepo() *memoryTaskRepo       { return &memoryTaskRepo{m} }

// seedUnit stores a unit whose ledger holds one INITIAL entry of onHand
func (m *memoryStore) seedUnit(ownerID uuid.UUID, sku string, onHand int64) *inventory.StockUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	unit, _ := inventory.NewStockUnit(ownerID, sku, "", 0)
	if onHand > 0 {
		entry, _ := unit.Append(onHand, inventory.ReasonInitial, "seed", nil)
		m.entries[unit.ID] = append(m.entries[unit.ID], *entry)
	}
	unit.ClearDomainEvents()
	m.units[unit.ID] = *unit
	return unit
}

// seedProduct stores a product bound to unit with one live source per snapshot
func (m *memoryStore) seedProduct(unit *inventory.StockUnit, snaps ...integration.PlatformSnapshot) *integration.CanonicalProduct {
	p, _ := integration.NewCanonicalProduct(unit.OwnerID, unit.ID, "")
	for i := range snaps {
		p.Observe(&snaps[i])
	}
	p.ResolveAttributes()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = cloneProduct(p)
	return p
}

func (m *memoryStore) ledgerEntries(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries[id])
}

func (m *memoryStore) unitOnHand(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.units[id].OnHand
}

func (m *memoryStore) allTasks() []integration.SyncTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]integration.SyncTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memoryStore) task(id uuid.UUID) integration.SyncTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id]
}

func (m *memoryStore) product(id uuid.UUID) integration.CanonicalProduct {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneProduct(ptr(m.products[id]))
}

func ptr[T any](v T) *T { return &v }

func cloneProduct(p *integration.CanonicalProduct) integration.CanonicalProduct {
	out := *p
	out.Attributes = cloneMap(p.Attributes)
	out.SourceRecords = make([]integration.SourceRecord, len(p.SourceRecords))
	for i, s := range p.SourceRecords {
		s.Attributes = cloneMap(s.Attributes)
		out.SourceRecords[i] = s
	}
	return out
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
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

func (r *memoryUnitRepo) FindByOwner(_ context.Context, ownerID uuid.UUID, _, _ int) ([]inventory.StockUnit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []inventory.StockUnit
	for _, u := range r.m.units {
		if u.OwnerID == ownerID {
			out = append(out, u)
		}
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
		if filter.Matches(&e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) SumDeltas(_ context.Context, id uuid.UUID, _ time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var sum int64
	for _, e := range r.m.entries[id] {
		sum += e.Delta
	}
	return sum, nil
}

type memoryProductRepo struct{ m *memoryStore }

func (r *memoryProductRepo) find(match func(p *integration.CanonicalProduct) bool) (*integration.CanonicalProduct, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.products {
		if match(&p) {
			out := cloneProduct(&p)
			return &out, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryProductRepo) FindByID(_ context.Context, id uuid.UUID) (*integration.CanonicalProduct, error) {
	return r.find(func(p *integration.CanonicalProduct) bool { return p.ID == id })
}

func (r *memoryProductRepo) FindByStockUnit(_ context.Context, id uuid.UUID) (*integration.CanonicalProduct, error) {
	return r.find(func(p *integration.CanonicalProduct) bool { return p.StockUnitID == id })
}

func (r *memoryProductRepo) FindBySourceKey(_ context.Context, key integration.SourceKey) (*integration.CanonicalProduct, error) {
	return r.find(func(p *integration.CanonicalProduct) bool {
		_, ok := p.Source(key)
		return ok
	})
}

func (r *memoryProductRepo) FindByLinkID(_ context.Context, ownerID uuid.UUID, linkID string) (*integration.CanonicalProduct, error) {
	return r.find(func(p *integration.CanonicalProduct) bool {
		if p.OwnerID != ownerID {
			return false
		}
		for _, s := range p.SourceRecords {
			if s.LinkID == linkID {
				return true
			}
		}
		return false
	})
}

func (r *memoryProductRepo) FindByBarcode(_ context.Context, ownerID uuid.UUID, barcode string) (*integration.CanonicalProduct, error) {
	return r.find(func(p *integration.CanonicalProduct) bool { return p.OwnerID == ownerID && p.Barcode == barcode })
}

func (r *memoryProductRepo) FindBySKU(_ context.Context, ownerID uuid.UUID, sku string) (*integration.CanonicalProduct, error) {
	return r.find(func(p *integration.CanonicalProduct) bool { return p.OwnerID == ownerID && p.SKU == sku })
}

func (r *memoryProductRepo) sorted() []integration.CanonicalProduct {
	out := make([]integration.CanonicalProduct, 0, len(r.m.products))
	for _, p := range r.m.products {
		out = append(out, cloneProduct(&p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memoryProductRepo) FindByOwner(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]integration.CanonicalProduct, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []integration.CanonicalProduct
	for _, p := range r.sorted() {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return page(out, limit, offset), nil
}

func (r *memoryProductRepo) ListIDs(_ context.Context, limit, offset int) ([]uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []uuid.UUID
	for _, p := range r.sorted() {
		ids = append(ids, p.ID)
	}
	return page(ids, limit, offset), nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}

func (r *memoryProductRepo) Save(_ context.Context, p *integration.CanonicalProduct) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *memoryProductRepo) SaveSourceRecord(_ context.Context, rec *integration.SourceRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.products[rec.CanonicalProductID]
	if !ok {
		return shared.ErrNotFound
	}
	for i := range p.SourceRecords {
		if p.SourceRecords[i].ID == rec.ID {
			p.SourceRecords[i] = *rec
			return nil
		}
	}
	return shared.ErrNotFound
}

type memoryTaskRepo struct{ m *memoryStore }

func (r *memoryTaskRepo) FindByID(_ context.Context, id uuid.UUID) (*integration.SyncTask, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tasks[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &t, nil
}

func (r *memoryTaskRepo) FindPending(_ context.Context, productID uuid.UUID, platform integration.PlatformCode) (*integration.SyncTask, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.tasks {
		if t.Status == integration.SyncTaskPending && t.CanonicalProductID == productID && t.TargetPlatform == platform {
			return &t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryTaskRepo) FindDue(_ context.Context, now time.Time, limit int) ([]integration.SyncTask, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []integration.SyncTask
	for _, t := range r.m.tasks {
		if t.IsDue(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	return page(out, limit, 0), nil
}

func (r *memoryTaskRepo) FindAll(_ context.Context, f integration.SyncTaskFilter) ([]integration.SyncTask, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []integration.SyncTask
	for _, t := range r.m.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Platform != "" && t.TargetPlatform != f.Platform {
			continue
		}
		if f.CanonicalProductID != uuid.Nil && t.CanonicalProductID != f.CanonicalProductID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (r *memoryTaskRepo) Save(_ context.Context, t *integration.SyncTask) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.tasks[t.ID] = *t
	return nil
}

func (r *memoryTaskRepo) Claim(_ context.Context, t *integration.SyncTask) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.tasks[t.ID]
	if !ok {
		return false, shared.ErrNotFound
	}
	if stored.Status != integration.SyncTaskPending {
		return false, nil
	}
	r.m.tasks[t.ID] = *t
	return true, nil
}

func (r *memoryTaskRepo) SaveIfStatus(_ context.Context, t *integration.SyncTask, expected integration.SyncTaskStatus) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.tasks[t.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	r.m.tasks[t.ID] = *t
	return true, nil
}

func (r *memoryTaskRepo) ResetStale(_ context.Context, olderThan time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, t := range r.m.tasks {
		if t.Status == integration.SyncTaskInFlight && t.UpdatedAt.Before(olderThan) {
			t.Status = integration.SyncTaskPending
			r.m.tasks[id] = t
			n++
		}
	}
	return n, nil
}

var (
	_ inventory.StockUnitRepository          = (*memoryUnitRepo)(nil)
	_ inventory.LedgerRepository             = (*memoryLedgerRepo)(nil)
	_ integration.CanonicalProductRepository = (*memoryProductRepo)(nil)
	_ integration.SyncTaskRepository         = (*memoryTaskRepo)(nil)
)

// ---------------------------------------------------------------------------
// Adapter mocks
// ---------------------------------------------------------------------------

// MockPlatformAdapter is a mock implementation of integration.PlatformAdapter
type MockPlatformAdapter struct {
	mock.Mock
	code integration.PlatformCode
}

func newMockAdapter(code integration.PlatformCode) *MockPlatformAdapter {
	return &MockPlatformAdapter{code: code}
}

func (m *MockPlatformAdapter) Platform() integration.PlatformCode {
	return m.code
}

func (m *MockPlatformAdapter) FetchProducts(ctx context.Context) ([]integration.PlatformSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PlatformSnapshot), args.Error(1)
}

func (m *MockPlatformAdapter) Push(ctx context.Context, req integration.PushRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// staticRegistry resolves a fixed set of adapters
type staticRegistry []integration.PlatformAdapter

func (r staticRegistry) Get(code integration.PlatformCode) (integration.PlatformAdapter, error) {
	for _, a := range r {
		if a.Platform() == code {
			return a, nil
		}
	}
	return nil, integration.ErrPlatformNotConfigured
}

func (r staticRegistry) All() []integration.PlatformAdapter {
	return r
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}
