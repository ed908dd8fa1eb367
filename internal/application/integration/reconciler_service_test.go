package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReconciler(store *memoryStore, registry integration.AdapterRegistry) (*ReconcilerService, *recordingPublisher) {
	svc := NewReconcilerService(
		store.productRepo(),
		store.unitRepo(),
		store.scope(),
		registry,
		NewMatcher(DefaultFuzzyThreshold),
		NewSyncEnqueuer(zap.NewNop()),
		zap.NewNop(),
	)
	publisher := &recordingPublisher{}
	svc.SetEventPublisher(publisher)
	return svc, publisher
}

func snapshot(platform integration.PlatformCode, remoteID string, at time.Time) integration.PlatformSnapshot {
	return integration.PlatformSnapshot{
		Platform:  platform,
		RemoteID:  remoteID,
		Status:    integration.ListingOnSale,
		FetchedAt: at,
	}
}

// Two marketplaces list the same barcode under different titles: they merge into one product,
// the most recently seen title wins and the other title stays in its own source record.
func TestReconciler_MergeIncoming_ByBarcode(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	owner := uuid.New()
	t0 := time.Now().Add(-time.Hour)

	older := snapshot(integration.PlatformTrendyol, "TY-1", t0)
	older.Barcode = "8690000000011"
	older.Name = "Mavi Tişört"
	older.ReportedPrice = decimal.NewFromInt(100)

	newer := snapshot(integration.PlatformN11, "N11-9", t0.Add(30*time.Minute))
	newer.Barcode = "0869-0000-000011"
	newer.Name = "Mavi Tişört Pamuklu"
	newer.ReportedPrice = decimal.NewFromInt(100)

	result, err := svc.MergeIncoming(ctx, owner, []integration.PlatformSnapshot{newer, older})
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	group := result.Groups[0]
	assert.True(t, group.Created)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, []integration.MatchRule{integration.MatchNone, integration.MatchByBarcode}, group.MatchedBy)

	product := store.product(group.CanonicalProductID)
	assert.Equal(t, "Mavi Tişört Pamuklu", product.Name)
	assert.Equal(t, "8690000000011", product.Barcode)
	require.Len(t, product.SourceRecords, 2)

	ty, ok := product.Source(integration.SourceKey{Platform: integration.PlatformTrendyol, RemoteID: "TY-1"})
	require.True(t, ok)
	assert.Equal(t, "Mavi Tişört", ty.Name)

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, integration.AttrName, result.Conflicts[0].Key)
	assert.Equal(t, integration.PlatformN11, result.Conflicts[0].Winner)
	assert.Equal(t, integration.PlatformTrendyol, result.Conflicts[0].Loser)
	assert.Equal(t, "Mavi Tişört", result.Conflicts[0].LoserValue)

	// a new product gets its own empty stock unit; merging never writes stock
	assert.Equal(t, int64(0), store.unitOnHand(product.StockUnitID))
	assert.Equal(t, 0, store.ledgerEntries(product.StockUnitID))
}

func TestReconciler_MergeIncoming_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	owner := uuid.New()
	t0 := time.Now().Add(-time.Hour)

	a := snapshot(integration.PlatformTrendyol, "TY-1", t0)
	a.Barcode = "8690000000011"
	a.Name = "Kupa"
	b := snapshot(integration.PlatformHepsiburada, "HB-1", t0)
	b.Barcode = "8690000000011"
	b.Name = "Kupa"

	first, err := svc.MergeIncoming(ctx, owner, []integration.PlatformSnapshot{a, b})
	require.NoError(t, err)
	require.Len(t, first.Groups, 1)

	second, err := svc.MergeIncoming(ctx, owner, []integration.PlatformSnapshot{a, b})
	require.NoError(t, err)
	require.Len(t, second.Groups, 1)
	assert.Equal(t, first.Groups[0].CanonicalProductID, second.Groups[0].CanonicalProductID)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, []integration.MatchRule{integration.MatchBySource, integration.MatchBySource}, second.Groups[0].MatchedBy)
	assert.Empty(t, second.LinkConflicts)
	assert.Equal(t, 0, second.TasksEnqueued)
	assert.Len(t, store.units, 1)
}

func TestReconciler_MergeIncoming_ByLinkIDAndSKU(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	owner := uuid.New()
	t0 := time.Now().Add(-time.Hour)

	a := snapshot(integration.PlatformTrendyol, "TY-1", t0)
	a.SKU = "TSH-001-M"
	a.Name = "Tişört"
	b := snapshot(integration.PlatformN11, "N11-1", t0.Add(time.Minute))
	b.SKU = "tsh_001_m"
	b.Name = "Basic T-Shirt"
	c := snapshot(integration.PlatformWebstore, "WEB-1", t0.Add(2*time.Minute))
	c.Name = "Something else entirely"

	first, err := svc.MergeIncoming(ctx, owner, []integration.PlatformSnapshot{a, b})
	require.NoError(t, err)
	require.Len(t, first.Groups, 1)
	assert.Equal(t, integration.MatchBySKU, first.Groups[0].MatchedBy[1])

	// the webstore links explicitly to the canonical id
	c.LinkID = first.Groups[0].CanonicalProductID.String()
	second, err := svc.MergeIncoming(ctx, owner, []integration.PlatformSnapshot{c})
	require.NoError(t, err)
	require.Len(t, second.Groups, 1)
	assert.Equal(t, first.Groups[0].CanonicalProductID, second.Groups[0].CanonicalProductID)
	assert.Equal(t, integration.MatchByLinkID, second.Groups[0].MatchedBy[0])
	assert.Len(t, store.product(first.Groups[0].CanonicalProductID).SourceRecords, 3)
}

func TestReconciler_MergeIncoming_Fuzzy(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	owner := uuid.New()
	t0 := time.Now().Add(-time.Hour)

	a := snapshot(integration.PlatformTrendyol, "TY-1", t0)
	a.Name = "Apple iPhone 15 128GB Siyah"
	a.Brand = "Apple"
	b := snapshot(integration.PlatformHepsiburada, "HB-1", t0.Add(time.Minute))
	b.Name = "APPLE iPhone 15 128 GB Siyah"
	b.Brand = "apple"
	// same marketplace never lists one product twice
	c := snapshot(integration.PlatformTrendyol, "TY-2", t0.Add(2*time.Minute))
	c.Name = "Apple iPhone 15 128GB Siyah"
	c.Brand = "Apple"

	result, err := svc.MergeIncoming(ctx, owner, []integration.PlatformSnapshot{a, b, c})
	require.NoError(t, err)

	require.Len(t, result.Groups, 2)
	assert.Equal(t, []integration.MatchRule{integration.MatchNone, integration.MatchByFuzzy}, result.Groups[0].MatchedBy)
	assert.Equal(t, []integration.MatchRule{integration.MatchNone}, result.Groups[1].MatchedBy)
	assert.Equal(t, 2, result.Created)
}

// A record already linked to one product is not moved by a merge even when its barcode now
// points at another product; the disagreement is reported instead.
func TestReconciler_MergeIncoming_LinkConflict(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, publisher := newTestReconciler(store, nil)
	owner := uuid.New()
	t0 := time.Now().Add(-time.Hour)

	sa := snapshot(integration.PlatformTrendyol, "TY-1", t0)
	sa.Barcode = "111"
	productA := store.seedProduct(store.seedUnit(owner, "A", 1), sa)

	sb := snapshot(integration.PlatformHepsiburada, "HB-1", t0)
	sb.Barcode = "222"
	productB := store.seedProduct(store.seedUnit(owner, "B", 1), sb)

	moved := snapshot(integration.PlatformTrendyol, "TY-1", t0.Add(time.Minute))
	moved.Barcode = "222"

	result, err := svc.MergeIncoming(ctx, owner, []integration.PlatformSnapshot{moved})
	require.NoError(t, err)

	require.Len(t, result.LinkConflicts, 1)
	lc := result.LinkConflicts[0]
	assert.Equal(t, productA.ID, lc.LinkedProductID)
	assert.Equal(t, productB.ID, lc.MatchedProductID)
	assert.Equal(t, integration.MatchByBarcode, lc.MatchedBy)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, productA.ID, result.Groups[0].CanonicalProductID)
	assert.Len(t, store.product(productA.ID).SourceRecords, 1)
	assert.Len(t, store.product(productB.ID).SourceRecords, 1)
	assert.Len(t, publisher.ofType(integration.EventTypeLinkConflictDetected), 1)
}

func TestReconciler_MergeIncoming_RejectsInvalid(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)

	bad := snapshot("AMAZON", "X-1", time.Now())
	empty := snapshot(integration.PlatformN11, " ", time.Now())
	good := snapshot(integration.PlatformN11, "N-1", time.Now())
	good.Name = "Kalem"

	result, err := svc.MergeIncoming(context.Background(), uuid.New(), []integration.PlatformSnapshot{bad, empty, good})
	require.NoError(t, err)
	assert.Len(t, result.Rejected, 2)
	assert.Len(t, result.Groups, 1)

	_, err = svc.MergeIncoming(context.Background(), uuid.Nil, []integration.PlatformSnapshot{good})
	assert.True(t, shared.IsDomainError(err, shared.CodeInvalidInput))
}

func TestReconciler_MergeIncoming_ReusesStockUnitBySKU(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	owner := uuid.New()
	unit := store.seedUnit(owner, "SKU-77", 3)

	s := snapshot(integration.PlatformN11, "N-77", time.Now())
	s.SKU = "SKU-77"
	s.Name = "Defter"

	result, err := svc.MergeIncoming(context.Background(), owner, []integration.PlatformSnapshot{s})
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, unit.ID, result.Groups[0].StockUnitID)
	assert.Equal(t, int64(3), store.unitOnHand(unit.ID))
}

func TestReconciler_MergeIncoming_ImportInitialStock(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	svc.SetImportInitialStock(true)

	s := snapshot(integration.PlatformTrendyol, "TY-5", time.Now())
	s.Name = "Termos"
	s.ReportedStock = 12

	result, err := svc.MergeIncoming(context.Background(), uuid.New(), []integration.PlatformSnapshot{s})
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	unitID := result.Groups[0].StockUnitID
	assert.Equal(t, int64(12), store.unitOnHand(unitID))
	assert.Equal(t, 1, store.ledgerEntries(unitID))
}

func TestReconciler_MergeIncoming_PriceChangeQueuesPush(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	owner := uuid.New()
	t0 := time.Now().Add(-time.Hour)

	ty := snapshot(integration.PlatformTrendyol, "TY-1", t0)
	ty.Name = "Lamba"
	ty.ReportedPrice = decimal.NewFromInt(100)
	n11 := snapshot(integration.PlatformN11, "N-1", t0)
	n11.Name = "Lamba"
	n11.ReportedPrice = decimal.NewFromInt(100)
	product := store.seedProduct(store.seedUnit(owner, "LMB", 4), ty, n11)

	repriced := n11
	repriced.FetchedAt = t0.Add(time.Minute)
	repriced.ReportedPrice = decimal.NewFromInt(120)

	result, err := svc.MergeIncoming(ctx, owner, []integration.PlatformSnapshot{repriced})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TasksEnqueued)
	assert.True(t, store.product(product.ID).Price.Equal(decimal.NewFromInt(120)))

	tasks := store.allTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, integration.PlatformTrendyol, tasks[0].TargetPlatform)
	assert.Equal(t, integration.FieldSet{integration.FieldPrice}, tasks[0].Fields)
	assert.Equal(t, integration.OriginMerge, tasks[0].Origin)
}

// Marketplace reports 10, ledger says 7: a push of 7 is queued and drift is raised;
// the ledger is not touched.
func TestReconciler_ReconcileStock_Drift(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, publisher := newTestReconciler(store, nil)
	owner := uuid.New()
	unit := store.seedUnit(owner, "SKU-D", 7)

	ty := snapshot(integration.PlatformTrendyol, "TY-1", time.Now())
	ty.ReportedStock = 10
	n11 := snapshot(integration.PlatformN11, "N-1", time.Now())
	n11.ReportedStock = 7
	product := store.seedProduct(unit, ty, n11)

	result, err := svc.ReconcileStock(ctx, product.ID)
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, int64(7), result.LedgerOnHand)
	assert.Equal(t, 1, result.InSync)
	require.Len(t, result.Drifts, 1)
	assert.Equal(t, integration.PlatformTrendyol, result.Drifts[0].Platform)
	assert.Equal(t, int64(10), result.Drifts[0].ReportedStock)

	task := store.task(result.Drifts[0].SyncTaskID)
	assert.Equal(t, integration.SyncTaskPending, task.Status)
	assert.True(t, task.Fields.Has(integration.FieldStock))
	require.NotNil(t, task.TargetStock)
	assert.Equal(t, int64(7), *task.TargetStock)
	assert.Equal(t, integration.OriginReconcileStock, task.Origin)

	events := publisher.ofType(integration.EventTypeStockDriftDetected)
	require.Len(t, events, 1)
	drift := events[0].(*integration.StockDriftDetectedEvent)
	assert.Equal(t, int64(3), drift.Drift())

	assert.Equal(t, int64(7), store.unitOnHand(unit.ID))
	assert.Equal(t, 1, store.ledgerEntries(unit.ID))

	// reconciling again folds into the same pending task
	again, err := svc.ReconcileStock(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, again.Drifts, 1)
	assert.Equal(t, task.ID, again.Drifts[0].SyncTaskID)
	assert.Len(t, store.allTasks(), 1)
}

func TestReconciler_ReconcileStock_Tolerance(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	svc.SetDriftTolerance(3)
	unit := store.seedUnit(uuid.New(), "SKU-T", 7)
	ty := snapshot(integration.PlatformTrendyol, "TY-1", time.Now())
	ty.ReportedStock = 10
	product := store.seedProduct(unit, ty)

	result, err := svc.ReconcileStock(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Empty(t, result.Drifts)
	assert.Equal(t, 1, result.InSync)
	assert.Empty(t, store.allTasks())
}

func TestReconciler_ReconcileStock_SkipsUncountedUnit(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	unit := store.seedUnit(uuid.New(), "SKU-0", 0)
	ty := snapshot(integration.PlatformTrendyol, "TY-1", time.Now())
	ty.ReportedStock = 10
	product := store.seedProduct(unit, ty)

	result, err := svc.ReconcileStock(context.Background(), product.ID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, store.allTasks())
}

func TestReconciler_ReconcileStock_NotFound(t *testing.T) {
	svc, _ := newTestReconciler(newMemoryStore(), nil)
	_, err := svc.ReconcileStock(context.Background(), uuid.New())
	assert.True(t, shared.IsDomainError(err, shared.CodeNotFound))
}

func TestReconciler_ReconcileAll(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	owner := uuid.New()

	drifting := snapshot(integration.PlatformTrendyol, "TY-1", time.Now())
	drifting.ReportedStock = 10
	store.seedProduct(store.seedUnit(owner, "A", 7), drifting)

	inSync := snapshot(integration.PlatformN11, "N-1", time.Now())
	inSync.ReportedStock = 4
	store.seedProduct(store.seedUnit(owner, "B", 4), inSync)

	result, err := svc.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Products)
	assert.Equal(t, 1, result.Drifted)
	assert.Equal(t, 1, result.Tasks)
	assert.Equal(t, 0, result.Failed)
}

func TestReconciler_PullAndMerge(t *testing.T) {
	store := newMemoryStore()
	trendyol := newMockAdapter(integration.PlatformTrendyol)
	n11 := newMockAdapter(integration.PlatformN11)
	svc, _ := newTestReconciler(store, staticRegistry{trendyol, n11})

	s := snapshot(integration.PlatformTrendyol, "TY-1", time.Now())
	s.Name = "Masa Lambası"
	trendyol.On("FetchProducts", mock.Anything).Return([]integration.PlatformSnapshot{s}, nil)
	n11.On("FetchProducts", mock.Anything).Return(nil, errors.New("503 service unavailable"))

	_, err := svc.PullAndMerge(context.Background())
	assert.True(t, shared.IsDomainError(err, shared.CodeInvalidState))

	svc.SetDefaultOwner(uuid.New())
	result, err := svc.PullAndMerge(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Platforms, 2)
	assert.Equal(t, 1, result.Platforms[0].Fetched)
	assert.Contains(t, result.Platforms[1].Error, "503")
	require.NotNil(t, result.Merge)
	assert.Equal(t, 1, result.Merge.Created)
	// a fresh unit has no ledger history, so reconciliation skips it without failing
	assert.Equal(t, 1, result.Reconciled)
	assert.Equal(t, 0, result.Drifted)
}

func TestReconciler_RelinkSourceRecord(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	owner := uuid.New()
	t0 := time.Now().Add(-time.Hour)

	ty := snapshot(integration.PlatformTrendyol, "TY-1", t0)
	ty.Name = "Kırmızı Kupa"
	n11 := snapshot(integration.PlatformN11, "N-1", t0)
	n11.Name = "Mavi Kupa"
	from := store.seedProduct(store.seedUnit(owner, "RED", 2), ty, n11)

	hb := snapshot(integration.PlatformHepsiburada, "HB-1", t0)
	hb.Name = "Mavi Kupa"
	toUnit := store.seedUnit(owner, "BLUE", 9)
	to := store.seedProduct(toUnit, hb)

	result, err := svc.RelinkSourceRecord(ctx, RelinkRequest{
		Platform:        "n11",
		RemoteID:        "N-1",
		TargetProductID: to.ID,
		Actor:           "operator@example.com",
	})
	require.NoError(t, err)

	assert.Len(t, result.Source.SourceRecords, 1)
	assert.Len(t, result.Target.SourceRecords, 2)
	assert.Len(t, store.product(from.ID).SourceRecords, 1)
	assert.Len(t, store.product(to.ID).SourceRecords, 2)

	pending, err := store.taskRepo().FindPending(ctx, to.ID, integration.PlatformN11)
	require.NoError(t, err)
	assert.True(t, pending.Fields.Has(integration.FieldStock))

	_, err = svc.RelinkSourceRecord(ctx, RelinkRequest{Platform: "N11", RemoteID: "N-1", TargetProductID: to.ID})
	assert.True(t, shared.IsDomainError(err, shared.CodeInvalidState))

	_, err = svc.RelinkSourceRecord(ctx, RelinkRequest{Platform: "N11", RemoteID: "missing", TargetProductID: to.ID})
	assert.True(t, shared.IsDomainError(err, shared.CodeNotFound))
}

func TestReconciler_RequestPush(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	unit := store.seedUnit(uuid.New(), "P", 5)
	product := store.seedProduct(unit,
		snapshot(integration.PlatformTrendyol, "TY-1", time.Now()),
		snapshot(integration.PlatformN11, "N-1", time.Now()),
	)

	_, err := svc.RequestPush(ctx, product.ID, RequestPushRequest{Fields: []string{"colour"}})
	assert.True(t, shared.IsDomainError(err, shared.CodeInvalidInput))

	tasks, err := svc.RequestPush(ctx, product.ID, RequestPushRequest{Fields: []string{"stock", "status"}, Platforms: []string{"trendyol"}})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, integration.PlatformTrendyol, tasks[0].TargetPlatform)
	assert.Equal(t, []string{"stock", "status"}, tasks[0].Fields)
	require.NotNil(t, tasks[0].TargetStock)
	assert.Equal(t, int64(5), *tasks[0].TargetStock)

	_, err = svc.RequestPush(ctx, product.ID, RequestPushRequest{Fields: []string{"stock"}, Platforms: []string{"WEBSTORE"}})
	assert.True(t, shared.IsDomainError(err, shared.CodeInvalidState))
}

func TestReconciler_ListProducts(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	owner := uuid.New()
	store.seedProduct(store.seedUnit(owner, "A", 1), snapshot(integration.PlatformN11, "N-1", time.Now()))
	store.seedProduct(store.seedUnit(uuid.New(), "B", 1), snapshot(integration.PlatformN11, "N-2", time.Now()))

	products, err := svc.ListProducts(context.Background(), ProductListFilter{OwnerID: owner})
	require.NoError(t, err)
	assert.Len(t, products, 1)

	got, err := svc.GetProduct(context.Background(), products[0].ID)
	require.NoError(t, err)
	assert.Equal(t, products[0].ID, got.ID)
}

// An operator merge and the scheduled pull overlap for the same seller; the barcode still maps
// to a single canonical product.
func TestReconciler_MergeIncoming_SerializedPerOwner(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	owner := uuid.New()
	t0 := time.Now().Add(-time.Hour)

	batches := make([][]integration.PlatformSnapshot, 0, 3)
	for i, platform := range []integration.PlatformCode{
		integration.PlatformTrendyol, integration.PlatformN11, integration.PlatformHepsiburada,
	} {
		snap := snapshot(platform, fmt.Sprintf("R-%d", i), t0.Add(time.Duration(i)*time.Minute))
		snap.Barcode = "8690000000028"
		snap.Name = "Seramik Kupa"
		snap.ReportedPrice = decimal.NewFromInt(80)
		batches = append(batches, []integration.PlatformSnapshot{snap})
	}

	var wg sync.WaitGroup
	for _, batch := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.MergeIncoming(ctx, owner, batch)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.products, 1)
	for _, p := range store.products {
		assert.Len(t, p.SourceRecords, 3)
	}
}

type failingGuard struct{ err error }

func (g failingGuard) Lock(context.Context, uuid.UUID) (func(), error) { return nil, g.err }

func TestReconciler_MergeIncoming_GuardTimeout(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestReconciler(store, nil)
	svc.SetMergeGuard(failingGuard{err: shared.ErrConcurrencyTimeout})

	snap := snapshot(integration.PlatformTrendyol, "TY-1", time.Now())
	snap.Barcode = "8690000000035"
	snap.Name = "Kupa"
	_, err := svc.MergeIncoming(context.Background(), uuid.New(), []integration.PlatformSnapshot{snap})
	assert.ErrorIs(t, err, shared.ErrConcurrencyTimeout)
	assert.Empty(t, store.allTasks())
}
