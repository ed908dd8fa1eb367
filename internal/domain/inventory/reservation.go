package inventory

import (
	"strings"
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeReservation is the aggregate type name used in events
const AggregateTypeReservation = "Reservation"

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

const (
	// ReservationActive holds stock for an order in checkout
	ReservationActive ReservationStatus = "active"
	// ReservationConfirmed means the order was finalized and stock left the ledger
	ReservationConfirmed ReservationStatus = "confirmed"
	// ReservationReleased means the order was cancelled
	ReservationReleased ReservationStatus = "released"
	// ReservationExpired means the sweeper released an abandoned checkout
	ReservationExpired ReservationStatus = "expired"
)

// String returns the string representation of ReservationStatus
func (s ReservationStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is known
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationActive, ReservationConfirmed, ReservationReleased, ReservationExpired:
		return true
	}
	return false
}

// IsTerminal returns true for every status except active
func (s ReservationStatus) IsTerminal() bool {
	return s != ReservationActive
}

// CanTransitionTo reports whether the state machine allows s -> next.
// Only active reservations move, and only to a terminal status.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	if s != ReservationActive {
		return false
	}
	switch next {
	case ReservationConfirmed, ReservationReleased, ReservationExpired:
		return true
	}
	return false
}

// Reservation is a short-lived claim on stock for an order in progress
type Reservation struct {
	shared.BaseEntity
	OwnerID        uuid.UUID
	StockUnitID    uuid.UUID
	Quantity       int64
	Status         ReservationStatus
	OrderReference string
	OriginPlatform string
	ExpiresAt      time.Time
	Reason         string
	ResolvedAt     *time.Time
}

// NewReservation creates an active reservation against a stock unit
func NewReservation(unit *StockUnit, quantity int64, orderReference, originPlatform string, ttl time.Duration, now time.Time) (*Reservation, error) {
	if unit == nil {
		return nil, shared.ErrNotFound
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Reservation quantity must be positive")
	}
	if ttl <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Reservation TTL must be positive")
	}
	orderReference = strings.TrimSpace(orderReference)
	if orderReference == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Order reference cannot be empty")
	}
	base := shared.NewBaseEntity()
	base.CreatedAt = now
	base.UpdatedAt = now
	return &Reservation{
		BaseEntity:     base,
		OwnerID:        unit.OwnerID,
		StockUnitID:    unit.ID,
		Quantity:       quantity,
		Status:         ReservationActive,
		OrderReference: orderReference,
		OriginPlatform: strings.TrimSpace(originPlatform),
		ExpiresAt:      now.Add(ttl),
	}, nil
}

// IsActive returns true if the reservation still holds stock
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive
}

// IsExpiredAt returns true if the reservation deadline has passed at the given instant
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Confirm moves an active reservation to confirmed
func (r *Reservation) Confirm(reason string, now time.Time) error {
	return r.transition(ReservationConfirmed, reason, now)
}

// Release moves an active reservation to released
func (r *Reservation) Release(reason string, now time.Time) error {
	return r.transition(ReservationReleased, reason, now)
}

// Expire moves an active reservation to expired
func (r *Reservation) Expire(now time.Time) error {
	return r.transition(ReservationExpired, "expired", now)
}

func (r *Reservation) transition(next ReservationStatus, reason string, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return NewInvalidTransitionError(r.Status, next)
	}
	r.Status = next
	r.Reason = reason
	r.ResolvedAt = &now
	r.UpdatedAt = now
	return nil
}

// NewInvalidTransitionError builds the InvalidState error for a rejected transition
func NewInvalidTransitionError(from, to ReservationStatus) *shared.DomainError {
	return shared.NewDomainError(shared.CodeInvalidState,
		"Reservation cannot move from "+from.String()+" to "+to.String())
}
