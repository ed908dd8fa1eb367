package inventory

import (
	"context"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockEventBus is a mock implementation of EventBus for testing
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	m.Called(handler, eventTypes)
}

func (m *MockEventBus) Unsubscribe(handler shared.EventHandler) {
	m.Called(handler)
}

func (m *MockEventBus) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventBus) Stop(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockStockSyncEnqueuer is a mock implementation of StockSyncEnqueuer
type MockStockSyncEnqueuer struct {
	mock.Mock
}

func (m *MockStockSyncEnqueuer) EnqueueStockSync(ctx context.Context, repos TransactionalRepositories, unit *inventory.StockUnit, origin string) (int, error) {
	args := m.Called(ctx, repos, unit, origin)
	return args.Int(0), args.Error(1)
}

// MockReservationRepository is a mock implementation of ReservationRepository
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Reservation), args.Error(1)
}

func (m *MockReservationRepository) FindByStockUnit(ctx context.Context, stockUnitID uuid.UUID, status inventory.ReservationStatus) ([]inventory.Reservation, error) {
	args := m.Called(ctx, stockUnitID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.Reservation), args.Error(1)
}

func (m *MockReservationRepository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]inventory.Reservation, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.Reservation), args.Error(1)
}

func (m *MockReservationRepository) SumActiveQuantity(ctx context.Context, stockUnitID uuid.UUID) (int64, error) {
	args := m.Called(ctx, stockUnitID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReservationRepository) CountActive(ctx context.Context, stockUnitID uuid.UUID) (int64, error) {
	args := m.Called(ctx, stockUnitID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReservationRepository) Create(ctx context.Context, reservation *inventory.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *MockReservationRepository) Transition(ctx context.Context, reservation *inventory.Reservation, from inventory.ReservationStatus) (bool, error) {
	args := m.Called(ctx, reservation, from)
	return args.Bool(0), args.Error(1)
}

// MockReservationExpirer is a mock implementation of ReservationExpirer
type MockReservationExpirer struct {
	mock.Mock
}

func (m *MockReservationExpirer) ExpireReservation(ctx context.Context, r *inventory.Reservation) (bool, error) {
	args := m.Called(ctx, r)
	return args.Bool(0), args.Error(1)
}
