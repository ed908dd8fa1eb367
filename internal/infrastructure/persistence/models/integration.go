package models

import (
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CanonicalProductModel is the persistence model for the CanonicalProduct aggregate.
type CanonicalProductModel struct {
	AggregateModel
	OwnerID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_canonical_owner_barcode,priority:1;index:idx_canonical_owner_sku,priority:1"`
	StockUnitID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Name           string          `gorm:"type:varchar(512);not null;default:''"`
	Brand          string          `gorm:"type:varchar(255);not null;default:''"`
	Barcode        string          `gorm:"type:varchar(64);not null;default:'';index:idx_canonical_owner_barcode,priority:2"`
	SKU            string          `gorm:"column:sku;type:varchar(128);not null;default:'';index:idx_canonical_owner_sku,priority:2"`
	AttributesJSON string          `gorm:"column:attributes;type:jsonb;not null;default:'{}'"`
	Price          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	// Associations
	SourceRecords []SourceRecordModel `gorm:"foreignKey:CanonicalProductID;references:ID"`
}

// TableName returns the table name for GORM
func (CanonicalProductModel) TableName() string {
	return "canonical_products"
}

// ToDomain converts the persistence model to a domain CanonicalProduct.
// Source records are returned in platform then remote id order.
func (m *CanonicalProductModel) ToDomain() *integration.CanonicalProduct {
	p := &integration.CanonicalProduct{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		StockUnitID:   m.StockUnitID,
		Name:          m.Name,
		Brand:         m.Brand,
		Barcode:       m.Barcode,
		SKU:           m.SKU,
		Attributes:    decodeStringMap(m.AttributesJSON),
		Price:         m.Price,
		SourceRecords: make([]integration.SourceRecord, len(m.SourceRecords)),
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	for i := range m.SourceRecords {
		p.SourceRecords[i] = *m.SourceRecords[i].ToDomain()
	}
	return p
}

// FromDomain populates the persistence model from a domain CanonicalProduct.
func (m *CanonicalProductModel) FromDomain(p *integration.CanonicalProduct) {
	m.ID = p.ID
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
	m.Version = p.Version
	m.OwnerID = p.OwnerID
	m.StockUnitID = p.StockUnitID
	m.Name = p.Name
	m.Brand = p.Brand
	m.Barcode = p.Barcode
	m.SKU = p.SKU
	m.AttributesJSON = encodeStringMap(p.Attributes)
	m.Price = p.Price
	m.SourceRecords = make([]SourceRecordModel, len(p.SourceRecords))
	for i := range p.SourceRecords {
		m.SourceRecords[i].FromDomain(&p.SourceRecords[i])
		m.SourceRecords[i].CanonicalProductID = p.ID
	}
}

// CanonicalProductModelFromDomain creates a new persistence model from a domain CanonicalProduct.
func CanonicalProductModelFromDomain(p *integration.CanonicalProduct) *CanonicalProductModel {
	m := &CanonicalProductModel{}
	m.FromDomain(p)
	return m
}

// SourceRecordModel is the persistence model for one marketplace's view of a product.
// A (platform, remote_id) pair belongs to exactly one canonical product.
type SourceRecordModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	CanonicalProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Platform           string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_source_platform_remote,priority:1"`
	RemoteID           string          `gorm:"column:remote_id;type:varchar(128);not null;uniqueIndex:idx_source_platform_remote,priority:2"`
	LinkID             string          `gorm:"column:link_id;type:varchar(128);not null;default:'';index"`
	Barcode            string          `gorm:"type:varchar(64);not null;default:''"`
	SKU                string          `gorm:"column:sku;type:varchar(128);not null;default:''"`
	Name               string          `gorm:"type:varchar(512);not null;default:''"`
	Brand              string          `gorm:"type:varchar(255);not null;default:''"`
	AttributesJSON     string          `gorm:"column:attributes;type:jsonb;not null;default:'{}'"`
	ReportedStock      int64           `gorm:"column:reported_stock;not null;default:0"`
	ReportedPrice      decimal.Decimal `gorm:"column:reported_price;type:decimal(18,4);not null;default:0"`
	Status             string          `gorm:"type:varchar(32);not null;default:''"`
	LastSeenAt         time.Time       `gorm:"column:last_seen_at;not null"`
	LastSyncedAt       *time.Time      `gorm:"column:last_synced_at"`
	SyncStatus         string          `gorm:"column:sync_status;type:varchar(16);not null;default:'PENDING'"`
	LastSyncError      string          `gorm:"column:last_sync_error;type:text;not null;default:''"`
	Live               bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (SourceRecordModel) TableName() string {
	return "source_records"
}

// ToDomain converts the persistence model to a domain SourceRecord.
func (m *SourceRecordModel) ToDomain() *integration.SourceRecord {
	return &integration.SourceRecord{
		ID:                 m.ID,
		CanonicalProductID: m.CanonicalProductID,
		Platform:           integration.PlatformCode(m.Platform),
		RemoteID:           m.RemoteID,
		LinkID:             m.LinkID,
		Barcode:            m.Barcode,
		SKU:                m.SKU,
		Name:               m.Name,
		Brand:              m.Brand,
		Attributes:         decodeStringMap(m.AttributesJSON),
		ReportedStock:      m.ReportedStock,
		ReportedPrice:      m.ReportedPrice,
		Status:             integration.ListingStatus(m.Status),
		LastSeenAt:         m.LastSeenAt,
		LastSyncedAt:       m.LastSyncedAt,
		SyncStatus:         integration.SyncStatus(m.SyncStatus),
		LastSyncError:      m.LastSyncError,
		Live:               m.Live,
	}
}

// FromDomain populates the persistence model from a domain SourceRecord.
func (m *SourceRecordModel) FromDomain(r *integration.SourceRecord) {
	m.ID = r.ID
	m.CanonicalProductID = r.CanonicalProductID
	m.Platform = string(r.Platform)
	m.RemoteID = r.RemoteID
	m.LinkID = r.LinkID
	m.Barcode = r.Barcode
	m.SKU = r.SKU
	m.Name = r.Name
	m.Brand = r.Brand
	m.AttributesJSON = encodeStringMap(r.Attributes)
	m.ReportedStock = r.ReportedStock
	m.ReportedPrice = r.ReportedPrice
	m.Status = string(r.Status)
	m.LastSeenAt = r.LastSeenAt
	m.LastSyncedAt = r.LastSyncedAt
	m.SyncStatus = string(r.SyncStatus)
	m.LastSyncError = r.LastSyncError
	m.Live = r.Live
}

// SourceRecordModelFromDomain creates a new persistence model from a domain SourceRecord.
func SourceRecordModelFromDomain(r *integration.SourceRecord) *SourceRecordModel {
	m := &SourceRecordModel{}
	m.FromDomain(r)
	return m
}

// SyncTaskModel is the persistence model for an outbound sync task.
type SyncTaskModel struct {
	BaseModel
	OwnerID            uuid.UUID  `gorm:"type:uuid;not null;index"`
	CanonicalProductID uuid.UUID  `gorm:"type:uuid;not null;index:idx_sync_task_product_platform,priority:1"`
	TargetPlatform     string     `gorm:"column:target_platform;type:varchar(32);not null;index:idx_sync_task_product_platform,priority:2"`
	FieldsJSON         string     `gorm:"column:fields;type:jsonb;not null;default:'[]'"`
	TargetStock        *int64     `gorm:"column:target_stock"`
	Status             string     `gorm:"type:varchar(16);not null;index:idx_sync_task_status_next,priority:1"`
	AttemptCount       int        `gorm:"column:attempt_count;not null;default:0"`
	NextAttemptAt      time.Time  `gorm:"column:next_attempt_at;not null;index:idx_sync_task_status_next,priority:2"`
	LastError          string     `gorm:"column:last_error;type:text;not null;default:''"`
	Origin             string     `gorm:"type:varchar(32);not null;default:''"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
}

// TableName returns the table name for GORM
func (SyncTaskModel) TableName() string {
	return "sync_tasks"
}

// ToDomain converts the persistence model to a domain SyncTask.
func (m *SyncTaskModel) ToDomain() *integration.SyncTask {
	raw := decodeStrings(m.FieldsJSON)
	fields := make([]integration.SyncField, len(raw))
	for i, f := range raw {
		fields[i] = integration.SyncField(f)
	}
	return &integration.SyncTask{
		ID:                 m.ID,
		OwnerID:            m.OwnerID,
		CanonicalProductID: m.CanonicalProductID,
		TargetPlatform:     integration.PlatformCode(m.TargetPlatform),
		Fields:             integration.NewFieldSet(fields...),
		TargetStock:        m.TargetStock,
		Status:             integration.SyncTaskStatus(m.Status),
		AttemptCount:       m.AttemptCount,
		NextAttemptAt:      m.NextAttemptAt,
		LastError:          m.LastError,
		Origin:             m.Origin,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
		CompletedAt:        m.CompletedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncTask.
func (m *SyncTaskModel) FromDomain(t *integration.SyncTask) {
	m.ID = t.ID
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
	m.OwnerID = t.OwnerID
	m.CanonicalProductID = t.CanonicalProductID
	m.TargetPlatform = string(t.TargetPlatform)
	m.FieldsJSON = encodeStrings(t.Fields.Strings())
	m.TargetStock = t.TargetStock
	m.Status = string(t.Status)
	m.AttemptCount = t.AttemptCount
	m.NextAttemptAt = t.NextAttemptAt
	m.LastError = t.LastError
	m.Origin = t.Origin
	m.CompletedAt = t.CompletedAt
}

// SyncTaskModelFromDomain creates a new persistence model from a domain SyncTask.
func SyncTaskModelFromDomain(t *integration.SyncTask) *SyncTaskModel {
	m := &SyncTaskModel{}
	m.FromDomain(t)
	return m
}

// AllModels lists every model in migration order.
func AllModels() []any {
	return []any{
		&StockUnitModel{},
		&LedgerEntryModel{},
		&ReservationModel{},
		&CanonicalProductModel{},
		&SourceRecordModel{},
		&SyncTaskModel{},
	}
}
