package inventory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHistoryPageSize is the number of entries fetched per history round trip
const DefaultHistoryPageSize = 200

// StockSyncEnqueuer schedules stock pushes for the marketplace listings linked to a unit.
// It runs inside the caller's unit of work so the push is recorded atomically with the change.
type StockSyncEnqueuer interface {
	EnqueueStockSync(ctx context.Context, repos TransactionalRepositories, unit *inventory.StockUnit, origin string) (int, error)
}

// LedgerService owns the stock ledger: every quantity change goes through Append
type LedgerService struct {
	stockUnitRepo   inventory.StockUnitRepository
	ledgerRepo      inventory.LedgerRepository
	reservationRepo inventory.ReservationRepository
	txScope         TransactionScope
	locker          UnitLocker
	syncEnqueuer    StockSyncEnqueuer
	eventPublisher  shared.EventPublisher
	metrics         *telemetry.StockMetrics
	logger          *zap.Logger
	pageSize        int
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	stockUnitRepo inventory.StockUnitRepository,
	ledgerRepo inventory.LedgerRepository,
	reservationRepo inventory.ReservationRepository,
	txScope TransactionScope,
	locker UnitLocker,
	logger *zap.Logger,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		stockUnitRepo:   stockUnitRepo,
		ledgerRepo:      ledgerRepo,
		reservationRepo: reservationRepo,
		txScope:         txScope,
		locker:          locker,
		logger:          logger,
		pageSize:        DefaultHistoryPageSize,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetSyncEnqueuer sets the component that schedules marketplace pushes after a change
func (s *LedgerService) SetSyncEnqueuer(enqueuer StockSyncEnqueuer) {
	s.syncEnqueuer = enqueuer
}

// SetStockMetrics sets the stock metrics collector
func (s *LedgerService) SetStockMetrics(m *telemetry.StockMetrics) {
	s.metrics = m
}

// SetHistoryPageSize overrides the history page size
func (s *LedgerService) SetHistoryPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

// CreateStockUnit registers a sellable item and writes an INITIAL entry for a positive opening balance
func (s *LedgerService) CreateStockUnit(ctx context.Context, req CreateStockUnitRequest) (*StockUnitResponse, error) {
	unit, err := inventory.NewStockUnit(req.OwnerID, req.SKU, req.VariantID, req.MinLevel)
	if err != nil {
		return nil, err
	}
	if req.InitialQuantity < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidDelta, "Initial quantity cannot be negative")
	}

	existing, err := s.stockUnitRepo.FindBySKU(ctx, unit.OwnerID, unit.SKU, unit.VariantID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Stock unit with this SKU already exists")
	}

	var entry *inventory.LedgerEntry
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.StockUnitRepo().Create(ctx, unit); err != nil {
			return err
		}
		if req.InitialQuantity == 0 {
			return nil
		}
		entry, err = unit.Append(req.InitialQuantity, inventory.ReasonInitial, req.Actor, nil)
		if err != nil {
			return err
		}
		if err := repos.LedgerRepo().Append(ctx, entry); err != nil {
			return err
		}
		return repos.StockUnitRepo().SaveWithLock(ctx, unit)
	})
	if err != nil {
		return nil, err
	}

	if entry != nil {
		s.recordAppend(ctx, entry)
	}
	s.publishDomainEvents(ctx, unit)

	s.logger.Info("Stock unit created",
		zap.String("stock_unit_id", unit.ID.String()),
		zap.String("owner_id", unit.OwnerID.String()),
		zap.String("sku", unit.SKU),
		zap.Int64("on_hand", unit.OnHand),
	)

	a, _ := inventory.NewAvailability(unit.ID, unit.OnHand, 0)
	response := ToStockUnitResponse(unit, a)
	return &response, nil
}

// GetStockUnit retrieves a stock unit with its current availability
func (s *LedgerService) GetStockUnit(ctx context.Context, id uuid.UUID) (*StockUnitResponse, error) {
	unit, err := s.stockUnitRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := s.availability(ctx, unit)
	if err != nil {
		return nil, err
	}
	response := ToStockUnitResponse(unit, a)
	return &response, nil
}

// ListStockUnits lists the non-retired stock units of a seller account
func (s *LedgerService) ListStockUnits(ctx context.Context, filter StockUnitListFilter) ([]StockUnitResponse, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	units, err := s.stockUnitRepo.FindByOwner(ctx, filter.OwnerID, filter.PageSize, (filter.Page-1)*filter.PageSize)
	if err != nil {
		return nil, err
	}
	out := make([]StockUnitResponse, 0, len(units))
	for i := range units {
		a, err := s.availability(ctx, &units[i])
		if err != nil {
			return nil, err
		}
		out = append(out, ToStockUnitResponse(&units[i], a))
	}
	return out, nil
}

// ListLowStock returns the units of an owner whose available stock is at or below their minimum level
func (s *LedgerService) ListLowStock(ctx context.Context, ownerID uuid.UUID) ([]StockUnitResponse, error) {
	const batch = 100
	var out []StockUnitResponse
	for offset := 0; ; offset += batch {
		units, err := s.stockUnitRepo.FindByOwner(ctx, ownerID, batch, offset)
		if err != nil {
			return nil, err
		}
		for i := range units {
			a, err := s.availability(ctx, &units[i])
			if err != nil {
				return nil, err
			}
			if units[i].IsAtOrBelowMinimum(a.Available) {
				out = append(out, ToStockUnitResponse(&units[i], a))
			}
		}
		if len(units) < batch {
			return out, nil
		}
	}
}

// RetireStockUnit soft-retires a unit that has no active reservations
func (s *LedgerService) RetireStockUnit(ctx context.Context, id uuid.UUID, actor string) (*StockUnitResponse, error) {
	var unit *inventory.StockUnit
	err := withUnitLock(ctx, s.locker, s.txScope, id, func(repos TransactionalRepositories) error {
		var err error
		unit, err = repos.StockUnitRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if unit.Retired {
			return nil
		}
		active, err := repos.ReservationRepo().CountActive(ctx, id)
		if err != nil {
			return err
		}
		if err := unit.Retire(active); err != nil {
			return err
		}
		return repos.StockUnitRepo().SaveWithLock(ctx, unit)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock unit retired",
		zap.String("stock_unit_id", id.String()),
		zap.String("actor", actor),
	)
	a, _ := inventory.NewAvailability(unit.ID, unit.OnHand, 0)
	response := ToStockUnitResponse(unit, a)
	return &response, nil
}

// Append records a quantity change and moves the on-hand counter in the same unit of work.
// No decrease may take on-hand below what active reservations hold, operator adjustments
// included; those reservations have to be released first.
func (s *LedgerService) Append(ctx context.Context, req AppendRequest) (*LedgerEntryResponse, error) {
	reason := inventory.ReasonCode(req.ReasonCode)
	if !reason.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidDelta, "Unknown reason code: "+req.ReasonCode)
	}
	if req.Delta == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidDelta, "Delta cannot be zero")
	}

	var (
		unit  *inventory.StockUnit
		entry *inventory.LedgerEntry
	)
	err := withUnitLock(ctx, s.locker, s.txScope, req.StockUnitID, func(repos TransactionalRepositories) error {
		var err error
		unit, err = repos.StockUnitRepo().FindByIDForUpdate(ctx, req.StockUnitID)
		if err != nil {
			return err
		}
		if req.Delta < 0 {
			reserved, err := repos.ReservationRepo().SumActiveQuantity(ctx, unit.ID)
			if err != nil {
				return err
			}
			after := unit.OnHand + req.Delta
			// a negative balance for other reasons is an invalid delta, reported by the unit
			if reserved > 0 && after < reserved && (after >= 0 || reason.AllowsNegativeBalance()) {
				return shared.NewDomainError(shared.CodeInsufficientStock,
					fmt.Sprintf("Decrease would leave %d on hand against %d reserved; release reservations first", after, reserved))
			}
		}
		entry, err = unit.Append(req.Delta, reason, req.Actor, req.Metadata)
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
			if _, err := s.syncEnqueuer.EnqueueStockSync(ctx, repos, unit, integration.OriginLedger); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAppend(ctx, entry)
	s.publishDomainEvents(ctx, unit)

	response := ToLedgerEntryResponse(entry)
	return &response, nil
}

// History returns a lazy sequence over the ledger of a unit in sequence order.
// Entries are fetched in keyset pages; iteration stops at the sequence the unit had when
// iteration started, so the sequence is finite. Ranging again restarts from the beginning.
func (s *LedgerService) History(ctx context.Context, stockUnitID uuid.UUID, filter inventory.HistoryFilter) iter.Seq2[*inventory.LedgerEntry, error] {
	return func(yield func(*inventory.LedgerEntry, error) bool) {
		unit, err := s.stockUnitRepo.FindByID(ctx, stockUnitID)
		if err != nil {
			yield(nil, err)
			return
		}
		s.historyUpTo(ctx, unit.ID, unit.LedgerSequence, filter)(yield)
	}
}

func (s *LedgerService) historyUpTo(ctx context.Context, stockUnitID uuid.UUID, upTo int64, filter inventory.HistoryFilter) iter.Seq2[*inventory.LedgerEntry, error] {
	return func(yield func(*inventory.LedgerEntry, error) bool) {
		s.walkHistory(ctx, stockUnitID, upTo, filter, yield)
	}
}

func (s *LedgerService) walkHistory(ctx context.Context, stockUnitID uuid.UUID, upTo int64, filter inventory.HistoryFilter, yield func(*inventory.LedgerEntry, error) bool) {
	limit := filter.Limit
	page := filter
	page.Limit = s.pageSize
	emitted := 0
	for {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		entries, err := s.ledgerRepo.FindByStockUnit(ctx, stockUnitID, page)
		if err != nil {
			yield(nil, err)
			return
		}
		for i := range entries {
			e := entries[i]
			if e.Sequence > upTo {
				return
			}
			if !yield(&e, nil) {
				return
			}
			emitted++
			if limit > 0 && emitted >= limit {
				return
			}
			page.AfterSequence = e.Sequence
		}
		if len(entries) < page.Limit {
			return
		}
	}
}

// HistoryPage returns one page of history for API callers
func (s *LedgerService) HistoryPage(ctx context.Context, stockUnitID uuid.UUID, query HistoryQuery) (*HistoryPageResponse, error) {
	filter := query.ToFilter()
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	for _, rc := range filter.ReasonCodes {
		if !rc.IsValid() {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown reason code: "+rc.String())
		}
	}

	resp := &HistoryPageResponse{Entries: []LedgerEntryResponse{}}
	for e, err := range s.History(ctx, stockUnitID, filter) {
		if err != nil {
			return nil, err
		}
		resp.Entries = append(resp.Entries, ToLedgerEntryResponse(e))
	}
	if len(resp.Entries) == filter.Limit {
		resp.NextAfter = resp.Entries[len(resp.Entries)-1].Sequence
	}
	return resp, nil
}

// OnHandAt reconstructs the on-hand balance at a past instant from the ledger.
// An entry stamped exactly at the instant is included.
func (s *LedgerService) OnHandAt(ctx context.Context, stockUnitID uuid.UUID, at time.Time) (*OnHandAtResponse, error) {
	if _, err := s.stockUnitRepo.FindByID(ctx, stockUnitID); err != nil {
		return nil, err
	}
	sum, err := s.ledgerRepo.SumDeltas(ctx, stockUnitID, at)
	if err != nil {
		return nil, err
	}
	return &OnHandAtResponse{StockUnitID: stockUnitID, At: at, OnHand: sum}, nil
}

// VerifyStockUnit replays the full ledger of a unit and compares it with the stored counter.
// A mismatch raises an integrity alarm and fails with an INTEGRITY_VIOLATION error.
func (s *LedgerService) VerifyStockUnit(ctx context.Context, stockUnitID uuid.UUID) (*VerifyResult, error) {
	unit, err := s.stockUnitRepo.FindByID(ctx, stockUnitID)
	if err != nil {
		return nil, err
	}

	var entries []inventory.LedgerEntry
	for e, err := range s.historyUpTo(ctx, unit.ID, unit.LedgerSequence, inventory.HistoryFilter{}) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	result := &VerifyResult{
		StockUnitID:  unit.ID,
		StoredOnHand: unit.OnHand,
		EntryCount:   len(entries),
		VerifiedAt:   time.Now(),
	}
	replayed, replayErr := inventory.Replay(entries)
	result.LedgerOnHand = replayed

	var detail string
	switch {
	case replayErr != nil:
		detail = replayErr.Error()
	case int64(len(entries)) != unit.LedgerSequence:
		detail = fmt.Sprintf("ledger holds %d entries, counter expects %d", len(entries), unit.LedgerSequence)
	case replayed != unit.OnHand:
		detail = fmt.Sprintf("ledger sums to %d, counter holds %d", replayed, unit.OnHand)
	}
	if detail != "" {
		raiseIntegrityAlarm(ctx, s.logger, s.metrics, s.eventPublisher, unit, replayed, 0, detail)
		return result, shared.NewDomainError(shared.CodeIntegrity, "Ledger and counter disagree: "+detail)
	}
	result.Consistent = true
	return result, nil
}

// availability reads reserved stock for a unit; a broken admission invariant raises an alarm
// but the unclamped value is still returned
func (s *LedgerService) availability(ctx context.Context, unit *inventory.StockUnit) (inventory.Availability, error) {
	reserved, err := s.reservationRepo.SumActiveQuantity(ctx, unit.ID)
	if err != nil {
		return inventory.Availability{}, err
	}
	a, err := unit.Availability(reserved)
	if err != nil {
		raiseIntegrityAlarm(ctx, s.logger, s.metrics, s.eventPublisher, unit, unit.OnHand, reserved, err.Error())
	}
	return a, nil
}

func (s *LedgerService) recordAppend(ctx context.Context, entry *inventory.LedgerEntry) {
	if s.metrics != nil {
		s.metrics.RecordLedgerAppend(ctx, entry.ReasonCode.String(), entry.Delta)
	}
	fields := []zap.Field{
		zap.String("stock_unit_id", entry.StockUnitID.String()),
		zap.Int64("sequence", entry.Sequence),
		zap.Int64("delta", entry.Delta),
		zap.String("reason_code", entry.ReasonCode.String()),
		zap.String("actor", entry.Actor),
		zap.Int64("balance_after", entry.BalanceAfter),
	}
	if entry.IsOperatorAdjustment() {
		s.logger.Warn("operator_adjustment", fields...)
		return
	}
	s.logger.Debug("Ledger entry appended", fields...)
}

// publishDomainEvents publishes all domain events from the stock unit
func (s *LedgerService) publishDomainEvents(ctx context.Context, unit *inventory.StockUnit) {
	publishUnitEvents(ctx, s.eventPublisher, unit)
}

// publishUnitEvents publishes and clears the pending events of a unit
func publishUnitEvents(ctx context.Context, publisher shared.EventPublisher, unit *inventory.StockUnit) {
	if publisher == nil || unit == nil {
		return
	}
	events := unit.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Publish events (errors are logged by the event bus, not propagated)
	_ = publisher.Publish(ctx, events...)
	unit.ClearDomainEvents()
}

// withUnitLock runs fn in a transaction while holding the in-process lock of the unit.
// Repositories are expected to take the row lock through FindByIDForUpdate.
func withUnitLock(ctx context.Context, locker UnitLocker, scope TransactionScope, stockUnitID uuid.UUID, fn func(repos TransactionalRepositories) error) error {
	unlock, err := locker.Lock(ctx, stockUnitID)
	if err != nil {
		return err
	}
	defer unlock()
	return scope.Execute(ctx, fn)
}

// raiseIntegrityAlarm reports a ledger/counter or reservation/counter mismatch loudly
func raiseIntegrityAlarm(
	ctx context.Context,
	logger *zap.Logger,
	metrics *telemetry.StockMetrics,
	publisher shared.EventPublisher,
	unit *inventory.StockUnit,
	ledgerOnHand, reserved int64,
	detail string,
) {
	logger.Error("Stock integrity violation",
		zap.String("stock_unit_id", unit.ID.String()),
		zap.String("owner_id", unit.OwnerID.String()),
		zap.Int64("stored_on_hand", unit.OnHand),
		zap.Int64("ledger_on_hand", ledgerOnHand),
		zap.Int64("reserved", reserved),
		zap.String("detail", detail),
	)
	if metrics != nil {
		metrics.RecordIntegrityAlarm(ctx)
	}
	if publisher != nil {
		_ = publisher.Publish(ctx, inventory.NewLedgerIntegrityViolatedEvent(unit, ledgerOnHand, reserved, detail))
	}
}
