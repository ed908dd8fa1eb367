package integration

import (
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type constants
const (
	EventTypeStockDriftDetected   = "StockDriftDetected"
	EventTypeSyncTaskFailed       = "SyncTaskFailed"
	EventTypeLinkConflictDetected = "LinkConflictDetected"
	AggregateTypeCanonicalProduct = "CanonicalProduct"
	AggregateTypeSyncTask         = "SyncTask"
)

// StockDriftDetectedEvent is raised when a marketplace reports stock that disagrees with the ledger
type StockDriftDetectedEvent struct {
	shared.BaseDomainEvent
	CanonicalProductID uuid.UUID    `json:"canonical_product_id"`
	StockUnitID        uuid.UUID    `json:"stock_unit_id"`
	Platform           PlatformCode `json:"platform"`
	RemoteID           string       `json:"remote_id"`
	ReportedStock      int64        `json:"reported_stock"`
	LedgerStock        int64        `json:"ledger_stock"`
}

// NewStockDriftDetectedEvent creates a new StockDriftDetectedEvent
func NewStockDriftDetectedEvent(p *CanonicalProduct, src *SourceRecord, ledgerStock int64) *StockDriftDetectedEvent {
	return &StockDriftDetectedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeStockDriftDetected, AggregateTypeCanonicalProduct, p.ID, p.OwnerID),
		CanonicalProductID: p.ID,
		StockUnitID:        p.StockUnitID,
		Platform:           src.Platform,
		RemoteID:           src.RemoteID,
		ReportedStock:      src.ReportedStock,
		LedgerStock:        ledgerStock,
	}
}

// Drift returns reported minus ledger stock
func (e *StockDriftDetectedEvent) Drift() int64 {
	return e.ReportedStock - e.LedgerStock
}

// SyncTaskFailedEvent is raised when a sync task exhausts its attempts
type SyncTaskFailedEvent struct {
	shared.BaseDomainEvent
	TaskID             uuid.UUID    `json:"task_id"`
	CanonicalProductID uuid.UUID    `json:"canonical_product_id"`
	Platform           PlatformCode `json:"platform"`
	Fields             []string     `json:"fields"`
	Attempts           int          `json:"attempts"`
	LastError          string       `json:"last_error"`
}

// NewSyncTaskFailedEvent creates a new SyncTaskFailedEvent
func NewSyncTaskFailedEvent(t *SyncTask) *SyncTaskFailedEvent {
	return &SyncTaskFailedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeSyncTaskFailed, AggregateTypeSyncTask, t.ID, t.OwnerID),
		TaskID:             t.ID,
		CanonicalProductID: t.CanonicalProductID,
		Platform:           t.TargetPlatform,
		Fields:             t.Fields.Strings(),
		Attempts:           t.AttemptCount,
		LastError:          t.LastError,
	}
}

// LinkConflictDetectedEvent is raised when a snapshot matches one product while its source
// record is linked to another; the record is left where it is until an operator re-links it
type LinkConflictDetectedEvent struct {
	shared.BaseDomainEvent
	Platform         PlatformCode `json:"platform"`
	RemoteID         string       `json:"remote_id"`
	LinkedProductID  uuid.UUID    `json:"linked_product_id"`
	MatchedProductID uuid.UUID    `json:"matched_product_id"`
	MatchedBy        string       `json:"matched_by"`
}

// NewLinkConflictDetectedEvent creates a new LinkConflictDetectedEvent
func NewLinkConflictDetectedEvent(ownerID uuid.UUID, c LinkConflict) *LinkConflictDetectedEvent {
	return &LinkConflictDetectedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeLinkConflictDetected, AggregateTypeCanonicalProduct, c.LinkedProductID, ownerID),
		Platform:         c.Key.Platform,
		RemoteID:         c.Key.RemoteID,
		LinkedProductID:  c.LinkedProductID,
		MatchedProductID: c.MatchedProductID,
		MatchedBy:        string(c.MatchedBy),
	}
}

// MatchRule names the rule that grouped a snapshot
type MatchRule string

const (
	MatchByLinkID  MatchRule = "link_id"
	MatchByBarcode MatchRule = "barcode"
	MatchBySKU     MatchRule = "sku"
	MatchByFuzzy   MatchRule = "fuzzy_name_brand"
	MatchBySource  MatchRule = "existing_source"
	MatchNone      MatchRule = "new"
)

// LinkConflict reports a snapshot whose matching key points at a different product than
// the one its source record is linked to
type LinkConflict struct {
	Key              SourceKey `json:"key"`
	LinkedProductID  uuid.UUID `json:"linked_product_id"`
	MatchedProductID uuid.UUID `json:"matched_product_id"`
	MatchedBy        MatchRule `json:"matched_by"`
}
