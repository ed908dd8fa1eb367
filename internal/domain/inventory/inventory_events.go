package inventory

import (
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type constants
const (
	EventTypeLedgerAppended          = "LedgerAppended"
	EventTypeStockBelowMinimum       = "StockBelowMinimum"
	EventTypeReservationCreated      = "ReservationCreated"
	EventTypeReservationConfirmed    = "ReservationConfirmed"
	EventTypeReservationReleased     = "ReservationReleased"
	EventTypeReservationExpired      = "ReservationExpired"
	EventTypeLedgerIntegrityViolated = "LedgerIntegrityViolated"
)

// LedgerAppendedEvent is raised for every ledger entry
type LedgerAppendedEvent struct {
	shared.BaseDomainEvent
	StockUnitID uuid.UUID  `json:"stock_unit_id"`
	SKU         string     `json:"sku"`
	Sequence    int64      `json:"sequence"`
	Delta       int64      `json:"delta"`
	ReasonCode  ReasonCode `json:"reason_code"`
	Actor       string     `json:"actor"`
	OnHand      int64      `json:"on_hand"`
}

// NewLedgerAppendedEvent creates a new LedgerAppendedEvent
func NewLedgerAppendedEvent(unit *StockUnit, entry *LedgerEntry) *LedgerAppendedEvent {
	return &LedgerAppendedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerAppended, AggregateTypeStockUnit, unit.ID, unit.OwnerID),
		StockUnitID:     unit.ID,
		SKU:             unit.SKU,
		Sequence:        entry.Sequence,
		Delta:           entry.Delta,
		ReasonCode:      entry.ReasonCode,
		Actor:           entry.Actor,
		OnHand:          entry.BalanceAfter,
	}
}

// StockBelowMinimumEvent is raised when on-hand stock crosses the reorder threshold
type StockBelowMinimumEvent struct {
	shared.BaseDomainEvent
	StockUnitID uuid.UUID `json:"stock_unit_id"`
	SKU         string    `json:"sku"`
	OnHand      int64     `json:"on_hand"`
	MinLevel    int64     `json:"min_level"`
}

// NewStockBelowMinimumEvent creates a new StockBelowMinimumEvent
func NewStockBelowMinimumEvent(unit *StockUnit) *StockBelowMinimumEvent {
	return &StockBelowMinimumEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockBelowMinimum, AggregateTypeStockUnit, unit.ID, unit.OwnerID),
		StockUnitID:     unit.ID,
		SKU:             unit.SKU,
		OnHand:          unit.OnHand,
		MinLevel:        unit.MinLevel,
	}
}

// ReservationEvent is raised on every reservation lifecycle change
type ReservationEvent struct {
	shared.BaseDomainEvent
	ReservationID  uuid.UUID         `json:"reservation_id"`
	StockUnitID    uuid.UUID         `json:"stock_unit_id"`
	Quantity       int64             `json:"quantity"`
	Status         ReservationStatus `json:"status"`
	OrderReference string            `json:"order_reference"`
	OriginPlatform string            `json:"origin_platform,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// NewReservationEvent creates the event matching the reservation's current status
func NewReservationEvent(r *Reservation) *ReservationEvent {
	eventType := EventTypeReservationCreated
	switch r.Status {
	case ReservationConfirmed:
		eventType = EventTypeReservationConfirmed
	case ReservationReleased:
		eventType = EventTypeReservationReleased
	case ReservationExpired:
		eventType = EventTypeReservationExpired
	}
	return &ReservationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeReservation, r.ID, r.OwnerID),
		ReservationID:   r.ID,
		StockUnitID:     r.StockUnitID,
		Quantity:        r.Quantity,
		Status:          r.Status,
		OrderReference:  r.OrderReference,
		OriginPlatform:  r.OriginPlatform,
		Reason:          r.Reason,
	}
}

// LedgerIntegrityViolatedEvent is raised when the stored counter disagrees with the ledger,
// or when active reservations exceed on-hand stock
type LedgerIntegrityViolatedEvent struct {
	shared.BaseDomainEvent
	StockUnitID  uuid.UUID `json:"stock_unit_id"`
	StoredOnHand int64     `json:"stored_on_hand"`
	LedgerOnHand int64     `json:"ledger_on_hand"`
	Reserved     int64     `json:"reserved"`
	Detail       string    `json:"detail"`
}

// NewLedgerIntegrityViolatedEvent creates a new LedgerIntegrityViolatedEvent
func NewLedgerIntegrityViolatedEvent(unit *StockUnit, ledgerOnHand, reserved int64, detail string) *LedgerIntegrityViolatedEvent {
	return &LedgerIntegrityViolatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerIntegrityViolated, AggregateTypeStockUnit, unit.ID, unit.OwnerID),
		StockUnitID:     unit.ID,
		StoredOnHand:    unit.OnHand,
		LedgerOnHand:    ledgerOnHand,
		Reserved:        reserved,
		Detail:          detail,
	}
}
