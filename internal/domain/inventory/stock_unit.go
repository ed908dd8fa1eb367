package inventory

import (
	"strings"
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeStockUnit is the aggregate type name used in events
const AggregateTypeStockUnit = "StockUnit"

// StockUnit identifies one sellable item (optionally a variant) owned by a seller account.
// OnHand is a denormalized counter derived from the ledger; it only changes through Append.
type StockUnit struct {
	shared.OwnedAggregateRoot
	SKU            string
	VariantID      string
	OnHand         int64
	MinLevel       int64
	LedgerSequence int64
	Retired        bool
	RetiredAt      *time.Time
}

// NewStockUnit creates a new stock unit with a zero balance
func NewStockUnit(ownerID uuid.UUID, sku, variantID string, minLevel int64) (*StockUnit, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if minLevel < 0 {
		return nil, shared.NewDomainError("INVALID_MIN_LEVEL", "Minimum level cannot be negative")
	}
	return &StockUnit{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(ownerID),
		SKU:                sku,
		VariantID:          strings.TrimSpace(variantID),
		MinLevel:           minLevel,
	}, nil
}

// Append validates a quantity change, moves the counter and returns the ledger entry that
// records it. The caller must persist the entry and the unit in the same unit of work.
func (u *StockUnit) Append(delta int64, reason ReasonCode, actor string, metadata map[string]string) (*LedgerEntry, error) {
	if u.Retired {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Stock unit is retired")
	}
	if !reason.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidDelta, "Unknown reason code: "+reason.String())
	}
	if delta == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidDelta, "Delta cannot be zero")
	}
	after := u.OnHand + delta
	if after < 0 && !reason.AllowsNegativeBalance() {
		return nil, shared.NewDomainError(shared.CodeInvalidDelta, "Delta would drive on-hand stock negative")
	}
	if strings.TrimSpace(actor) == "" {
		actor = "system"
	}

	now := time.Now()
	u.LedgerSequence++
	entry := &LedgerEntry{
		ID:            uuid.New(),
		OwnerID:       u.OwnerID,
		StockUnitID:   u.ID,
		Sequence:      u.LedgerSequence,
		Delta:         delta,
		ReasonCode:    reason,
		Actor:         actor,
		Metadata:      cloneMetadata(metadata),
		BalanceBefore: u.OnHand,
		BalanceAfter:  after,
		CreatedAt:     now,
	}
	u.OnHand = after
	u.UpdatedAt = now
	u.IncrementVersion()

	u.AddDomainEvent(NewLedgerAppendedEvent(u, entry))
	if after <= u.MinLevel && entry.BalanceBefore > u.MinLevel {
		u.AddDomainEvent(NewStockBelowMinimumEvent(u))
	}
	return entry, nil
}

// Retire soft-retires the unit. A unit with active reservations cannot be retired.
func (u *StockUnit) Retire(activeReservations int64) error {
	if u.Retired {
		return nil
	}
	if activeReservations > 0 {
		return shared.NewDomainError(shared.CodeInvalidState, "Stock unit has active reservations")
	}
	now := time.Now()
	u.Retired = true
	u.RetiredAt = &now
	u.UpdatedAt = now
	u.IncrementVersion()
	return nil
}

// Availability computes on-hand minus reserved for this unit.
func (u *StockUnit) Availability(reserved int64) (Availability, error) {
	return NewAvailability(u.ID, u.OnHand, reserved)
}

// IsAtOrBelowMinimum returns true when available stock has reached the reorder threshold
func (u *StockUnit) IsAtOrBelowMinimum(available int64) bool {
	return available <= u.MinLevel
}

func cloneMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Availability is a point-in-time read of sellable stock
type Availability struct {
	StockUnitID uuid.UUID `json:"stock_unit_id"`
	OnHand      int64     `json:"on_hand"`
	Reserved    int64     `json:"reserved"`
	Available   int64     `json:"available"`
}

// NewAvailability computes available stock. Active reservations exceeding on-hand stock mean
// the admission invariant was broken and are reported as an integrity violation, never clamped.
// A negative on-hand with nothing reserved is a recorded operator oversell correction.
func NewAvailability(stockUnitID uuid.UUID, onHand, reserved int64) (Availability, error) {
	a := Availability{
		StockUnitID: stockUnitID,
		OnHand:      onHand,
		Reserved:    reserved,
		Available:   onHand - reserved,
	}
	if reserved < 0 || (reserved > 0 && a.Available < 0) {
		return a, shared.NewDomainError(shared.CodeIntegrity, "Active reservations exceed on-hand stock")
	}
	return a, nil
}
