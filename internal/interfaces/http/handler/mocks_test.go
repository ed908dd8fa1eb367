package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	inventoryapp "github.com/erp/stocksync/internal/application/inventory"
	integrationapp "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
	"github.com/erp/stocksync/tests/testutil"
)

var testOwnerID = testutil.TestOwnerID()

// newTestRouter installs the caller middleware the API engine runs
func newTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.CallerContext())
	return router
}

// MockStockLedger implements StockLedger for testing
type MockStockLedger struct {
	mock.Mock
}

func (m *MockStockLedger) CreateStockUnit(ctx context.Context, req inventoryapp.CreateStockUnitRequest) (*inventoryapp.StockUnitResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.StockUnitResponse), args.Error(1)
}

func (m *MockStockLedger) GetStockUnit(ctx context.Context, id uuid.UUID) (*inventoryapp.StockUnitResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.StockUnitResponse), args.Error(1)
}

func (m *MockStockLedger) ListStockUnits(ctx context.Context, filter inventoryapp.StockUnitListFilter) ([]inventoryapp.StockUnitResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventoryapp.StockUnitResponse), args.Error(1)
}

func (m *MockStockLedger) ListLowStock(ctx context.Context, ownerID uuid.UUID) ([]inventoryapp.StockUnitResponse, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventoryapp.StockUnitResponse), args.Error(1)
}

func (m *MockStockLedger) RetireStockUnit(ctx context.Context, id uuid.UUID, actor string) (*inventoryapp.StockUnitResponse, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.StockUnitResponse), args.Error(1)
}

func (m *MockStockLedger) Append(ctx context.Context, req inventoryapp.AppendRequest) (*inventoryapp.LedgerEntryResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.LedgerEntryResponse), args.Error(1)
}

func (m *MockStockLedger) HistoryPage(ctx context.Context, id uuid.UUID, query inventoryapp.HistoryQuery) (*inventoryapp.HistoryPageResponse, error) {
	args := m.Called(ctx, id, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.HistoryPageResponse), args.Error(1)
}

func (m *MockStockLedger) OnHandAt(ctx context.Context, id uuid.UUID, at time.Time) (*inventoryapp.OnHandAtResponse, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.OnHandAtResponse), args.Error(1)
}

func (m *MockStockLedger) VerifyStockUnit(ctx context.Context, id uuid.UUID) (*inventoryapp.VerifyResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.VerifyResult), args.Error(1)
}

// MockReservationManager implements ReservationManager and AvailabilityReader for testing
type MockReservationManager struct {
	mock.Mock
}

func (m *MockReservationManager) Reserve(ctx context.Context, req inventoryapp.ReserveRequest) (*inventoryapp.ReservationResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.ReservationResponse), args.Error(1)
}

func (m *MockReservationManager) Confirm(ctx context.Context, id uuid.UUID, reason string) (*inventoryapp.ReservationResponse, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.ReservationResponse), args.Error(1)
}

func (m *MockReservationManager) Release(ctx context.Context, id uuid.UUID, reason string) (*inventoryapp.ReservationResponse, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.ReservationResponse), args.Error(1)
}

func (m *MockReservationManager) AvailableStock(ctx context.Context, id uuid.UUID) (*inventory.Availability, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Availability), args.Error(1)
}

func (m *MockReservationManager) GetReservation(ctx context.Context, id uuid.UUID) (*inventoryapp.ReservationResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.ReservationResponse), args.Error(1)
}

func (m *MockReservationManager) ListReservations(ctx context.Context, filter inventoryapp.ReservationListFilter) ([]inventoryapp.ReservationResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventoryapp.ReservationResponse), args.Error(1)
}

// MockProductReconciler implements ProductReconciler for testing
type MockProductReconciler struct {
	mock.Mock
}

func (m *MockProductReconciler) MergeIncoming(ctx context.Context, ownerID uuid.UUID, snapshots []integration.PlatformSnapshot) (*integrationapp.MergeResult, error) {
	args := m.Called(ctx, ownerID, snapshots)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.MergeResult), args.Error(1)
}

func (m *MockProductReconciler) ReconcileStock(ctx context.Context, productID uuid.UUID) (*integrationapp.ReconcileResult, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.ReconcileResult), args.Error(1)
}

func (m *MockProductReconciler) ReconcileAll(ctx context.Context) (*integrationapp.ReconcileAllResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.ReconcileAllResult), args.Error(1)
}

func (m *MockProductReconciler) PullAndMerge(ctx context.Context) (*integrationapp.PullResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.PullResult), args.Error(1)
}

func (m *MockProductReconciler) RelinkSourceRecord(ctx context.Context, req integrationapp.RelinkRequest) (*integrationapp.RelinkResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.RelinkResult), args.Error(1)
}

func (m *MockProductReconciler) GetProduct(ctx context.Context, id uuid.UUID) (*integrationapp.CanonicalProductResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.CanonicalProductResponse), args.Error(1)
}

func (m *MockProductReconciler) ListProducts(ctx context.Context, filter integrationapp.ProductListFilter) ([]integrationapp.CanonicalProductResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integrationapp.CanonicalProductResponse), args.Error(1)
}

func (m *MockProductReconciler) RequestPush(ctx context.Context, productID uuid.UUID, req integrationapp.RequestPushRequest) ([]integrationapp.SyncTaskResponse, error) {
	args := m.Called(ctx, productID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integrationapp.SyncTaskResponse), args.Error(1)
}

// MockSyncTaskManager implements SyncTaskManager for testing
type MockSyncTaskManager struct {
	mock.Mock
}

func (m *MockSyncTaskManager) GetSyncTask(ctx context.Context, id uuid.UUID) (*integrationapp.SyncTaskResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.SyncTaskResponse), args.Error(1)
}

func (m *MockSyncTaskManager) ListSyncTasks(ctx context.Context, filter integrationapp.SyncTaskListFilter) ([]integrationapp.SyncTaskResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integrationapp.SyncTaskResponse), args.Error(1)
}

func (m *MockSyncTaskManager) RetrySyncTask(ctx context.Context, id uuid.UUID, actor string) (*integrationapp.SyncTaskResponse, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.SyncTaskResponse), args.Error(1)
}

// MockSweeper implements SweeperStatusProvider and SweepRunner for testing
type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) Status(ctx context.Context) (*scheduler.SweeperStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduler.SweeperStatus), args.Error(1)
}

func (m *MockSweeper) RunNow(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
