package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultReservationTTL is used when a reserve request carries no TTL
const DefaultReservationTTL = 15 * time.Minute

// Reservation outcomes reported to metrics
const (
	OutcomeCreated   = "created"
	OutcomeRejected  = "rejected"
	OutcomeConfirmed = "confirmed"
	OutcomeReleased  = "released"
	OutcomeExpired   = "expired"
)

// ReservationService holds short-lived claims on stock and turns them into ledger deductions
type ReservationService struct {
	stockUnitRepo   inventory.StockUnitRepository
	reservationRepo inventory.ReservationRepository
	txScope         TransactionScope
	locker          UnitLocker
	syncEnqueuer    StockSyncEnqueuer
	eventPublisher  shared.EventPublisher
	metrics         *telemetry.StockMetrics
	logger          *zap.Logger
	defaultTTL      time.Duration
	now             func() time.Time
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	stockUnitRepo inventory.StockUnitRepository,
	reservationRepo inventory.ReservationRepository,
	txScope TransactionScope,
	locker UnitLocker,
	logger *zap.Logger,
) *ReservationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationService{
		stockUnitRepo:   stockUnitRepo,
		reservationRepo: reservationRepo,
		txScope:         txScope,
		locker:          locker,
		logger:          logger,
		defaultTTL:      DefaultReservationTTL,
		now:             time.Now,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *ReservationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetSyncEnqueuer sets the component that schedules marketplace pushes after a confirm
func (s *ReservationService) SetSyncEnqueuer(enqueuer StockSyncEnqueuer) {
	s.syncEnqueuer = enqueuer
}

// SetStockMetrics sets the stock metrics collector
func (s *ReservationService) SetStockMetrics(m *telemetry.StockMetrics) {
	s.metrics = m
}

// SetDefaultTTL overrides the default reservation TTL
func (s *ReservationService) SetDefaultTTL(ttl time.Duration) {
	if ttl > 0 {
		s.defaultTTL = ttl
	}
}

// Reserve holds quantity for an order. The availability check and the insert happen under the
// per-unit exclusion, so concurrent reserves can never admit more than on-hand stock.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*ReservationResponse, error) {
	ttl := s.defaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	var reservation *inventory.Reservation
	err := withUnitLock(ctx, s.locker, s.txScope, req.StockUnitID, func(repos TransactionalRepositories) error {
		unit, err := repos.StockUnitRepo().FindByIDForUpdate(ctx, req.StockUnitID)
		if err != nil {
			return err
		}
		if unit.Retired {
			return shared.NewDomainError(shared.CodeInvalidState, "Stock unit is retired")
		}
		reserved, err := repos.ReservationRepo().SumActiveQuantity(ctx, unit.ID)
		if err != nil {
			return err
		}
		available := unit.OnHand - reserved
		if req.Quantity > available {
			return shared.NewDomainError(shared.CodeInsufficientStock,
				fmt.Sprintf("Requested %d but only %d available", req.Quantity, available))
		}
		reservation, err = inventory.NewReservation(unit, req.Quantity, req.OrderReference, req.OriginPlatform, ttl, s.now())
		if err != nil {
			return err
		}
		return repos.ReservationRepo().Create(ctx, reservation)
	})
	if err != nil {
		if shared.IsDomainError(err, shared.CodeInsufficientStock) {
			s.recordOutcome(ctx, OutcomeRejected)
		}
		return nil, err
	}

	s.recordOutcome(ctx, OutcomeCreated)
	s.publishReservationEvent(ctx, reservation)
	s.logger.Debug("Reservation created",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("stock_unit_id", reservation.StockUnitID.String()),
		zap.Int64("quantity", reservation.Quantity),
		zap.String("order_reference", reservation.OrderReference),
		zap.Time("expires_at", reservation.ExpiresAt),
	)

	response := ToReservationResponse(reservation)
	return &response, nil
}

// Confirm finalizes an active reservation: the status moves to confirmed, a RESERVATION_CONFIRM
// entry deducts the quantity, and stock pushes are enqueued for every live listing of the unit.
func (s *ReservationService) Confirm(ctx context.Context, id uuid.UUID, reason string) (*ReservationResponse, error) {
	current, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive() {
		return nil, inventory.NewInvalidTransitionError(current.Status, inventory.ReservationConfirmed)
	}

	var (
		reservation *inventory.Reservation
		unit        *inventory.StockUnit
	)
	err = withUnitLock(ctx, s.locker, s.txScope, current.StockUnitID, func(repos TransactionalRepositories) error {
		var err error
		unit, err = repos.StockUnitRepo().FindByIDForUpdate(ctx, current.StockUnitID)
		if err != nil {
			return err
		}
		reservation, err = s.transition(ctx, repos, id, func(r *inventory.Reservation) error {
			return r.Confirm(reason, s.now())
		})
		if err != nil {
			return err
		}
		entry, err := unit.Append(-reservation.Quantity, inventory.ReasonReservationConfirm, "reservation", map[string]string{
			"reservation_id":  reservation.ID.String(),
			"order_reference": reservation.OrderReference,
			"origin_platform": reservation.OriginPlatform,
		})
		if err != nil {
			return err
		}
		if err := repos.LedgerRepo().Append(ctx, entry); err != nil {
			return err
		}
		if err := repos.StockUnitRepo().SaveWithLock(ctx, unit); err != nil {
			return err
		}
		if s.syncEnqueuer != nil {
			if _, err := s.syncEnqueuer.EnqueueStockSync(ctx, repos, unit, integration.OriginReservationConfirm); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordOutcome(ctx, OutcomeConfirmed)
	if s.metrics != nil {
		s.metrics.RecordLedgerAppend(ctx, inventory.ReasonReservationConfirm.String(), -reservation.Quantity)
	}
	publishUnitEvents(ctx, s.eventPublisher, unit)
	s.publishReservationEvent(ctx, reservation)
	s.logger.Info("Reservation confirmed",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("stock_unit_id", unit.ID.String()),
		zap.Int64("quantity", reservation.Quantity),
		zap.Int64("on_hand", unit.OnHand),
	)

	response := ToReservationResponse(reservation)
	return &response, nil
}

// Release cancels an active reservation. Releasing an already released reservation returns
// it unchanged; confirmed or expired reservations fail with InvalidState.
func (s *ReservationService) Release(ctx context.Context, id uuid.UUID, reason string) (*ReservationResponse, error) {
	current, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == inventory.ReservationReleased {
		response := ToReservationResponse(current)
		return &response, nil
	}
	if !current.IsActive() {
		return nil, inventory.NewInvalidTransitionError(current.Status, inventory.ReservationReleased)
	}

	var (
		reservation *inventory.Reservation
		already     bool
	)
	err = withUnitLock(ctx, s.locker, s.txScope, current.StockUnitID, func(repos TransactionalRepositories) error {
		var err error
		reservation, err = s.transition(ctx, repos, id, func(r *inventory.Reservation) error {
			if r.Status == inventory.ReservationReleased {
				already = true
				return nil
			}
			return r.Release(reason, s.now())
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if !already {
		s.recordOutcome(ctx, OutcomeReleased)
		s.publishReservationEvent(ctx, reservation)
		s.logger.Debug("Reservation released",
			zap.String("reservation_id", reservation.ID.String()),
			zap.String("reason", reason),
		)
	}
	response := ToReservationResponse(reservation)
	return &response, nil
}

// ExpireReservation releases an overdue active reservation with reason "expired".
// It returns false when the reservation was already resolved or is not yet due.
func (s *ReservationService) ExpireReservation(ctx context.Context, r *inventory.Reservation) (bool, error) {
	now := s.now()
	var (
		reservation *inventory.Reservation
		skipped     bool
	)
	err := withUnitLock(ctx, s.locker, s.txScope, r.StockUnitID, func(repos TransactionalRepositories) error {
		var err error
		reservation, err = s.transition(ctx, repos, r.ID, func(fresh *inventory.Reservation) error {
			if !fresh.IsActive() || !fresh.IsExpiredAt(now) {
				skipped = true
				return nil
			}
			return fresh.Expire(now)
		})
		if err != nil && shared.IsDomainError(err, shared.CodeInvalidState) {
			skipped = true
			return nil
		}
		return err
	})
	if err != nil {
		return false, err
	}
	if skipped {
		return false, nil
	}

	s.recordOutcome(ctx, OutcomeExpired)
	s.publishReservationEvent(ctx, reservation)
	return true, nil
}

// AvailableStock returns on-hand minus active reservations. It is a pure read; a negative
// result with stock reserved raises an integrity alarm and is returned as-is.
func (s *ReservationService) AvailableStock(ctx context.Context, stockUnitID uuid.UUID) (*inventory.Availability, error) {
	unit, err := s.stockUnitRepo.FindByID(ctx, stockUnitID)
	if err != nil {
		return nil, err
	}
	reserved, err := s.reservationRepo.SumActiveQuantity(ctx, unit.ID)
	if err != nil {
		return nil, err
	}
	a, err := unit.Availability(reserved)
	if err != nil {
		raiseIntegrityAlarm(ctx, s.logger, s.metrics, s.eventPublisher, unit, unit.OnHand, reserved, err.Error())
	}
	return &a, nil
}

// GetReservation retrieves a reservation by ID
func (s *ReservationService) GetReservation(ctx context.Context, id uuid.UUID) (*ReservationResponse, error) {
	r, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToReservationResponse(r)
	return &response, nil
}

// ListReservations lists reservations of a stock unit, optionally filtered by status
func (s *ReservationService) ListReservations(ctx context.Context, filter ReservationListFilter) ([]ReservationResponse, error) {
	status := inventory.ReservationStatus(filter.Status)
	if status != "" && !status.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown reservation status: "+filter.Status)
	}
	if _, err := s.stockUnitRepo.FindByID(ctx, filter.StockUnitID); err != nil {
		return nil, err
	}
	rs, err := s.reservationRepo.FindByStockUnit(ctx, filter.StockUnitID, status)
	if err != nil {
		return nil, err
	}
	return ToReservationResponses(rs), nil
}

// transition re-reads the reservation inside the unit of work, applies change and persists it
// with a compare-and-set on the previous status. Losing the race surfaces as InvalidState.
func (s *ReservationService) transition(
	ctx context.Context,
	repos TransactionalRepositories,
	id uuid.UUID,
	change func(r *inventory.Reservation) error,
) (*inventory.Reservation, error) {
	r, err := repos.ReservationRepo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := r.Status
	if err := change(r); err != nil {
		return nil, err
	}
	if r.Status == from {
		return r, nil
	}
	ok, err := repos.ReservationRepo().Transition(ctx, r, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		latest, err := repos.ReservationRepo().FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, inventory.NewInvalidTransitionError(latest.Status, r.Status)
	}
	return r, nil
}

func (s *ReservationService) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordReservation(ctx, outcome)
	}
}

func (s *ReservationService) publishReservationEvent(ctx context.Context, r *inventory.Reservation) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, inventory.NewReservationEvent(r)); err != nil {
		s.logger.Warn("Failed to publish reservation event",
			zap.String("reservation_id", r.ID.String()),
			zap.Error(err),
		)
	}
}
