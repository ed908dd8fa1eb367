package models

import (
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// StockUnitModel is the persistence model for the StockUnit aggregate root.
type StockUnitModel struct {
	AggregateModel
	OwnerID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_stock_unit_owner_sku,priority:1"`
	SKU            string     `gorm:"column:sku;type:varchar(128);not null;uniqueIndex:idx_stock_unit_owner_sku,priority:2"`
	VariantID      string     `gorm:"column:variant_id;type:varchar(128);not null;default:'';uniqueIndex:idx_stock_unit_owner_sku,priority:3"`
	OnHand         int64      `gorm:"column:on_hand;not null;default:0"`
	MinLevel       int64      `gorm:"column:min_level;not null;default:0"`
	LedgerSequence int64      `gorm:"column:ledger_sequence;not null;default:0"`
	Retired        bool       `gorm:"not null;default:false"`
	RetiredAt      *time.Time `gorm:"column:retired_at"`
}

// TableName returns the table name for GORM
func (StockUnitModel) TableName() string {
	return "stock_units"
}

// ToDomain converts the persistence model to a domain StockUnit entity.
func (m *StockUnitModel) ToDomain() *inventory.StockUnit {
	return &inventory.StockUnit{
		OwnedAggregateRoot: shared.OwnedAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: m.BaseModel.ToDomain(),
				Version:    m.Version,
			},
			OwnerID: m.OwnerID,
		},
		SKU:                m.SKU,
		VariantID:          m.VariantID,
		OnHand:             m.OnHand,
		MinLevel:           m.MinLevel,
		LedgerSequence:     m.LedgerSequence,
		Retired:            m.Retired,
		RetiredAt:          m.RetiredAt,
	}
}

// FromDomain populates the persistence model from a domain StockUnit entity.
func (m *StockUnitModel) FromDomain(u *inventory.StockUnit) {
	m.FromDomainAggregateRoot(u.BaseAggregateRoot)
	m.OwnerID = u.OwnerID
	m.SKU = u.SKU
	m.VariantID = u.VariantID
	m.OnHand = u.OnHand
	m.MinLevel = u.MinLevel
	m.LedgerSequence = u.LedgerSequence
	m.Retired = u.Retired
	m.RetiredAt = u.RetiredAt
}

// StockUnitModelFromDomain creates a new persistence model from a domain StockUnit entity.
func StockUnitModelFromDomain(u *inventory.StockUnit) *StockUnitModel {
	m := &StockUnitModel{}
	m.FromDomain(u)
	return m
}

// LedgerEntryModel is the persistence model for an append-only ledger entry.
// (stock_unit_id, sequence) is unique so a lost race on the sequence fails the insert.
type LedgerEntryModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	OwnerID       uuid.UUID `gorm:"type:uuid;not null;index"`
	StockUnitID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_unit_sequence,priority:1"`
	Sequence      int64     `gorm:"not null;uniqueIndex:idx_ledger_unit_sequence,priority:2"`
	Delta         int64     `gorm:"not null"`
	ReasonCode    string    `gorm:"column:reason_code;type:varchar(32);not null;index"`
	Actor         string    `gorm:"type:varchar(128);not null;default:''"`
	MetadataJSON  string    `gorm:"column:metadata;type:jsonb;not null;default:'{}'"`
	BalanceBefore int64     `gorm:"column:balance_before;not null"`
	BalanceAfter  int64     `gorm:"column:balance_after;not null"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry.
func (m *LedgerEntryModel) ToDomain() *inventory.LedgerEntry {
	return &inventory.LedgerEntry{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		StockUnitID:   m.StockUnitID,
		Sequence:      m.Sequence,
		Delta:         m.Delta,
		ReasonCode:    inventory.ReasonCode(m.ReasonCode),
		Actor:         m.Actor,
		Metadata:      decodeStringMap(m.MetadataJSON),
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		CreatedAt:     m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain LedgerEntry.
func (m *LedgerEntryModel) FromDomain(e *inventory.LedgerEntry) {
	m.ID = e.ID
	m.OwnerID = e.OwnerID
	m.StockUnitID = e.StockUnitID
	m.Sequence = e.Sequence
	m.Delta = e.Delta
	m.ReasonCode = string(e.ReasonCode)
	m.Actor = e.Actor
	m.MetadataJSON = encodeStringMap(e.Metadata)
	m.BalanceBefore = e.BalanceBefore
	m.BalanceAfter = e.BalanceAfter
	m.CreatedAt = e.CreatedAt
}

// LedgerEntryModelFromDomain creates a new persistence model from a domain LedgerEntry.
func LedgerEntryModelFromDomain(e *inventory.LedgerEntry) *LedgerEntryModel {
	m := &LedgerEntryModel{}
	m.FromDomain(e)
	return m
}

// ReservationModel is the persistence model for the Reservation entity.
type ReservationModel struct {
	BaseModel
	OwnerID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	StockUnitID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_reservation_unit_status,priority:1"`
	Quantity       int64      `gorm:"not null"`
	Status         string     `gorm:"type:varchar(16);not null;index:idx_reservation_unit_status,priority:2;index:idx_reservation_status_expires,priority:1"`
	OrderReference string     `gorm:"column:order_reference;type:varchar(128);not null;default:''"`
	OriginPlatform string     `gorm:"column:origin_platform;type:varchar(32);not null;default:''"`
	ExpiresAt      time.Time  `gorm:"column:expires_at;not null;index:idx_reservation_status_expires,priority:2"`
	Reason         string     `gorm:"type:varchar(255);not null;default:''"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at"`
}

// TableName returns the table name for GORM
func (ReservationModel) TableName() string {
	return "reservations"
}

// ToDomain converts the persistence model to a domain Reservation.
func (m *ReservationModel) ToDomain() *inventory.Reservation {
	return &inventory.Reservation{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		OwnerID:        m.OwnerID,
		StockUnitID:    m.StockUnitID,
		Quantity:       m.Quantity,
		Status:         inventory.ReservationStatus(m.Status),
		OrderReference: m.OrderReference,
		OriginPlatform: m.OriginPlatform,
		ExpiresAt:      m.ExpiresAt,
		Reason:         m.Reason,
		ResolvedAt:     m.ResolvedAt,
	}
}

// FromDomain populates the persistence model from a domain Reservation.
func (m *ReservationModel) FromDomain(r *inventory.Reservation) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.OwnerID = r.OwnerID
	m.StockUnitID = r.StockUnitID
	m.Quantity = r.Quantity
	m.Status = string(r.Status)
	m.OrderReference = r.OrderReference
	m.OriginPlatform = r.OriginPlatform
	m.ExpiresAt = r.ExpiresAt
	m.Reason = r.Reason
	m.ResolvedAt = r.ResolvedAt
}

// ReservationModelFromDomain creates a new persistence model from a domain Reservation.
func ReservationModelFromDomain(r *inventory.Reservation) *ReservationModel {
	m := &ReservationModel{}
	m.FromDomain(r)
	return m
}
