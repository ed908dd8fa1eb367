package inventory

import (
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/google/uuid"
)

// StockUnitResponse represents a stock unit in API responses
type StockUnitResponse struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	SKU            string     `json:"sku"`
	VariantID      string     `json:"variant_id,omitempty"`
	OnHand         int64      `json:"on_hand"`
	Reserved       int64      `json:"reserved"`
	Available      int64      `json:"available"`
	MinLevel       int64      `json:"min_level"`
	IsBelowMinimum bool       `json:"is_below_minimum"`
	LedgerSequence int64      `json:"ledger_sequence"`
	Retired        bool       `json:"retired"`
	RetiredAt      *time.Time `json:"retired_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Version        int        `json:"version"`
}

// ToStockUnitResponse converts a domain StockUnit and its availability to a response DTO
func ToStockUnitResponse(unit *inventory.StockUnit, a inventory.Availability) StockUnitResponse {
	return StockUnitResponse{
		ID:             unit.ID,
		OwnerID:        unit.OwnerID,
		SKU:            unit.SKU,
		VariantID:      unit.VariantID,
		OnHand:         unit.OnHand,
		Reserved:       a.Reserved,
		Available:      a.Available,
		MinLevel:       unit.MinLevel,
		IsBelowMinimum: unit.IsAtOrBelowMinimum(a.Available),
		LedgerSequence: unit.LedgerSequence,
		Retired:        unit.Retired,
		RetiredAt:      unit.RetiredAt,
		CreatedAt:      unit.CreatedAt,
		UpdatedAt:      unit.UpdatedAt,
		Version:        unit.Version,
	}
}

// CreateStockUnitRequest represents a request to register a sellable item
type CreateStockUnitRequest struct {
	OwnerID         uuid.UUID `json:"owner_id" binding:"required"`
	SKU             string    `json:"sku" binding:"required,max=100"`
	VariantID       string    `json:"variant_id" binding:"max=100"`
	MinLevel        int64     `json:"min_level" binding:"min=0"`
	InitialQuantity int64     `json:"initial_quantity" binding:"min=0"`
	Actor           string    `json:"actor" binding:"max=100"`
}

// StockUnitListFilter represents filter options for the stock unit list
type StockUnitListFilter struct {
	OwnerID  uuid.UUID `form:"owner_id" binding:"required"`
	Page     int       `form:"page" binding:"omitempty,min=1"`
	PageSize int       `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// AppendRequest represents a request to record a quantity change
type AppendRequest struct {
	StockUnitID uuid.UUID         `json:"-"`
	Delta       int64             `json:"delta" binding:"required"`
	ReasonCode  string            `json:"reason_code" binding:"required"`
	Actor       string            `json:"actor" binding:"max=100"`
	Metadata    map[string]string `json:"metadata"`
}

// LedgerEntryResponse represents a ledger entry in API responses
type LedgerEntryResponse struct {
	ID            uuid.UUID         `json:"id"`
	StockUnitID   uuid.UUID         `json:"stock_unit_id"`
	Sequence      int64             `json:"sequence"`
	Delta         int64             `json:"delta"`
	ReasonCode    string            `json:"reason_code"`
	Actor         string            `json:"actor"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	BalanceBefore int64             `json:"balance_before"`
	BalanceAfter  int64             `json:"balance_after"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ToLedgerEntryResponse converts a domain LedgerEntry to a response DTO
func ToLedgerEntryResponse(e *inventory.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            e.ID,
		StockUnitID:   e.StockUnitID,
		Sequence:      e.Sequence,
		Delta:         e.Delta,
		ReasonCode:    e.ReasonCode.String(),
		Actor:         e.Actor,
		Metadata:      e.Metadata,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		CreatedAt:     e.CreatedAt,
	}
}

// HistoryQuery represents the query parameters of a history page
type HistoryQuery struct {
	From        *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To          *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	ReasonCodes []string   `form:"reason_code"`
	After       int64      `form:"after" binding:"min=0"`
	Limit       int        `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ToFilter converts the query into a domain history filter
func (q HistoryQuery) ToFilter() inventory.HistoryFilter {
	f := inventory.HistoryFilter{
		AfterSequence: q.After,
		Limit:         q.Limit,
	}
	if q.From != nil {
		f.From = *q.From
	}
	if q.To != nil {
		f.To = *q.To
	}
	for _, rc := range q.ReasonCodes {
		f.ReasonCodes = append(f.ReasonCodes, inventory.ReasonCode(rc))
	}
	return f
}

// HistoryPageResponse is one keyset page of ledger history
type HistoryPageResponse struct {
	Entries []LedgerEntryResponse `json:"entries"`
	// NextAfter is the cursor for the next page; zero when the history is exhausted
	NextAfter int64 `json:"next_after"`
}

// VerifyResult reports a ledger replay against the stored counter
type VerifyResult struct {
	StockUnitID  uuid.UUID `json:"stock_unit_id"`
	StoredOnHand int64     `json:"stored_on_hand"`
	LedgerOnHand int64     `json:"ledger_on_hand"`
	EntryCount   int       `json:"entry_count"`
	Consistent   bool      `json:"consistent"`
	VerifiedAt   time.Time `json:"verified_at"`
}

// OnHandAtResponse reports the reconstructed balance at an instant
type OnHandAtResponse struct {
	StockUnitID uuid.UUID `json:"stock_unit_id"`
	At          time.Time `json:"at"`
	OnHand      int64     `json:"on_hand"`
}

// ReserveRequest represents a request to hold stock for an order in checkout
type ReserveRequest struct {
	StockUnitID    uuid.UUID `json:"stock_unit_id" binding:"required"`
	Quantity       int64     `json:"quantity" binding:"required,min=1"`
	OrderReference string    `json:"order_reference" binding:"required,max=100"`
	OriginPlatform string    `json:"origin_platform" binding:"max=50"`
	TTLSeconds     int       `json:"ttl_seconds" binding:"omitempty,min=1"`
}

// ResolveReservationRequest carries the reason for confirm or release
type ResolveReservationRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// ReservationListFilter represents filter options for reservation list
type ReservationListFilter struct {
	StockUnitID uuid.UUID `form:"stock_unit_id" binding:"required"`
	Status      string    `form:"status" binding:"omitempty,oneof=active confirmed released expired"`
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	StockUnitID    uuid.UUID  `json:"stock_unit_id"`
	Quantity       int64      `json:"quantity"`
	Status         string     `json:"status"`
	OrderReference string     `json:"order_reference"`
	OriginPlatform string     `json:"origin_platform,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
	Reason         string     `json:"reason,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ToReservationResponse converts a domain Reservation to a response DTO
func ToReservationResponse(r *inventory.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		StockUnitID:    r.StockUnitID,
		Quantity:       r.Quantity,
		Status:         r.Status.String(),
		OrderReference: r.OrderReference,
		OriginPlatform: r.OriginPlatform,
		ExpiresAt:      r.ExpiresAt,
		Reason:         r.Reason,
		ResolvedAt:     r.ResolvedAt,
		CreatedAt:      r.CreatedAt,
	}
}

// ToReservationResponses converts a slice of reservations
func ToReservationResponses(rs []inventory.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, len(rs))
	for i := range rs {
		out[i] = ToReservationResponse(&rs[i])
	}
	return out
}
