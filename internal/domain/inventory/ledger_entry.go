package inventory

import (
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// ReasonCode classifies why a ledger entry was written
type ReasonCode string

const (
	// ReasonInitial is the opening balance of a stock unit
	ReasonInitial ReasonCode = "INITIAL"
	// ReasonSale is a sale recorded outside the reservation flow
	ReasonSale ReasonCode = "SALE"
	// ReasonReturn is a customer return putting stock back
	ReasonReturn ReasonCode = "RETURN"
	// ReasonAdjustment is an explicit operator correction
	ReasonAdjustment ReasonCode = "ADJUSTMENT"
	// ReasonReservationConfirm is a confirmed reservation leaving stock
	ReasonReservationConfirm ReasonCode = "RESERVATION_CONFIRM"
	// ReasonReservationRelease compensates a confirmed reservation
	ReasonReservationRelease ReasonCode = "RESERVATION_RELEASE"
	// ReasonPlatformImport is stock imported from a marketplace during onboarding
	ReasonPlatformImport ReasonCode = "PLATFORM_IMPORT"
)

// String returns the string representation of ReasonCode
func (r ReasonCode) String() string {
	return string(r)
}

// IsValid returns true if the reason code is known
func (r ReasonCode) IsValid() bool {
	switch r {
	case ReasonInitial,
		ReasonSale,
		ReasonReturn,
		ReasonAdjustment,
		ReasonReservationConfirm,
		ReasonReservationRelease,
		ReasonPlatformImport:
		return true
	}
	return false
}

// AllowsNegativeBalance reports whether an entry with this reason may drive onHand below zero.
// Only operator adjustments may, to correct known overselling.
func (r ReasonCode) AllowsNegativeBalance() bool {
	return r == ReasonAdjustment
}

// LedgerEntry is an immutable fact about a quantity change of a stock unit.
// Entries are never edited or removed; corrections are new compensating entries.
type LedgerEntry struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	StockUnitID   uuid.UUID
	Sequence      int64 // per stock unit, strictly increasing
	Delta         int64
	ReasonCode    ReasonCode
	Actor         string
	Metadata      map[string]string
	BalanceBefore int64
	BalanceAfter  int64
	CreatedAt     time.Time
}

// IsOperatorAdjustment returns true for explicit operator corrections
func (e *LedgerEntry) IsOperatorAdjustment() bool {
	return e.ReasonCode == ReasonAdjustment
}

// HistoryFilter narrows a history read.
// From is inclusive and To is exclusive; zero values mean unbounded.
type HistoryFilter struct {
	From          time.Time
	To            time.Time
	ReasonCodes   []ReasonCode
	AfterSequence int64
	Limit         int
}

// Matches reports whether e falls inside the filter window.
func (f HistoryFilter) Matches(e *LedgerEntry) bool {
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	if e.Sequence <= f.AfterSequence {
		return false
	}
	if len(f.ReasonCodes) == 0 {
		return true
	}
	for _, rc := range f.ReasonCodes {
		if rc == e.ReasonCode {
			return true
		}
	}
	return false
}

// Replay sums the deltas of entries, which must be in sequence order, and checks that
// each entry's recorded balances chain onto the previous one.
func Replay(entries []LedgerEntry) (int64, error) {
	var balance int64
	var lastSeq int64
	for i := range entries {
		e := &entries[i]
		if e.Sequence <= lastSeq {
			return balance, shared.NewDomainError(shared.CodeIntegrity, "ledger entries out of sequence")
		}
		if e.BalanceBefore != balance || e.BalanceAfter != balance+e.Delta {
			return balance, shared.NewDomainError(shared.CodeIntegrity, "ledger balance chain broken")
		}
		balance += e.Delta
		lastSeq = e.Sequence
	}
	return balance, nil
}
