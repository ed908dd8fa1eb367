package integration

import (
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Canonical Product DTOs
// ---------------------------------------------------------------------------

// SourceRecordResponse is one marketplace's last-seen view of a product
type SourceRecordResponse struct {
	ID                  uuid.UUID                 `json:"id"`
	Platform            integration.PlatformCode  `json:"platform"`
	PlatformDisplayName string                    `json:"platform_display_name"`
	RemoteID            string                    `json:"remote_id"`
	LinkID              string                    `json:"link_id,omitempty"`
	Barcode             string                    `json:"barcode,omitempty"`
	SKU                 string                    `json:"sku,omitempty"`
	Name                string                    `json:"name"`
	Brand               string                    `json:"brand,omitempty"`
	Attributes          map[string]string         `json:"attributes,omitempty"`
	ReportedStock       int64                     `json:"reported_stock"`
	ReportedPrice       decimal.Decimal           `json:"reported_price"`
	Status              integration.ListingStatus `json:"status,omitempty"`
	Live                bool                      `json:"live"`
	LastSeenAt          time.Time                 `json:"last_seen_at"`
	LastSyncedAt        *time.Time                `json:"last_synced_at,omitempty"`
	SyncStatus          integration.SyncStatus    `json:"sync_status"`
	LastSyncError       string                    `json:"last_sync_error,omitempty"`
}

// CanonicalProductResponse is the merged view of a product
type CanonicalProductResponse struct {
	ID            uuid.UUID              `json:"id"`
	OwnerID       uuid.UUID              `json:"owner_id"`
	StockUnitID   uuid.UUID              `json:"stock_unit_id"`
	Name          string                 `json:"name"`
	Brand         string                 `json:"brand,omitempty"`
	Barcode       string                 `json:"barcode,omitempty"`
	SKU           string                 `json:"sku,omitempty"`
	Attributes    map[string]string      `json:"attributes,omitempty"`
	Price         decimal.Decimal        `json:"price"`
	SourceRecords []SourceRecordResponse `json:"source_records"`
	Version       int                    `json:"version"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// ToCanonicalProductResponse converts a domain product to a response
func ToCanonicalProductResponse(p *integration.CanonicalProduct) CanonicalProductResponse {
	sources := make([]SourceRecordResponse, len(p.SourceRecords))
	for i := range p.SourceRecords {
		s := &p.SourceRecords[i]
		sources[i] = SourceRecordResponse{
			ID:                  s.ID,
			Platform:            s.Platform,
			PlatformDisplayName: s.Platform.DisplayName(),
			RemoteID:            s.RemoteID,
			LinkID:              s.LinkID,
			Barcode:             s.Barcode,
			SKU:                 s.SKU,
			Name:                s.Name,
			Brand:               s.Brand,
			Attributes:          s.Attributes,
			ReportedStock:       s.ReportedStock,
			ReportedPrice:       s.ReportedPrice,
			Status:              s.Status,
			Live:                s.Live,
			LastSeenAt:          s.LastSeenAt,
			LastSyncedAt:        s.LastSyncedAt,
			SyncStatus:          s.SyncStatus,
			LastSyncError:       s.LastSyncError,
		}
	}
	return CanonicalProductResponse{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		StockUnitID:   p.StockUnitID,
		Name:          p.Name,
		Brand:         p.Brand,
		Barcode:       p.Barcode,
		SKU:           p.SKU,
		Attributes:    p.Attributes,
		Price:         p.Price,
		SourceRecords: sources,
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ProductListFilter pages the canonical products of a seller account
type ProductListFilter struct {
	OwnerID  uuid.UUID `form:"owner_id" binding:"required"`
	Page     int       `form:"page"`
	PageSize int       `form:"page_size"`
}

// ---------------------------------------------------------------------------
// Merge DTOs
// ---------------------------------------------------------------------------

// SnapshotRequest is a marketplace record submitted for merging
type SnapshotRequest struct {
	Platform      string            `json:"platform" binding:"required"`
	RemoteID      string            `json:"remote_id" binding:"required"`
	LinkID        string            `json:"link_id"`
	Barcode       string            `json:"barcode"`
	SKU           string            `json:"sku"`
	Name          string            `json:"name"`
	Brand         string            `json:"brand"`
	Attributes    map[string]string `json:"attributes"`
	ReportedStock int64             `json:"reported_stock"`
	ReportedPrice decimal.Decimal   `json:"reported_price"`
	Status        string            `json:"status"`
	FetchedAt     *time.Time        `json:"fetched_at"`
}

// ToSnapshot converts the request to a domain snapshot. A missing fetch time means now.
func (r SnapshotRequest) ToSnapshot() (integration.PlatformSnapshot, error) {
	code, err := integration.ParsePlatformCode(r.Platform)
	if err != nil {
		return integration.PlatformSnapshot{}, err
	}
	fetchedAt := time.Now()
	if r.FetchedAt != nil {
		fetchedAt = *r.FetchedAt
	}
	return integration.PlatformSnapshot{
		Platform:      code,
		RemoteID:      r.RemoteID,
		LinkID:        r.LinkID,
		Barcode:       r.Barcode,
		SKU:           r.SKU,
		Name:          r.Name,
		Brand:         r.Brand,
		Attributes:    r.Attributes,
		ReportedStock: r.ReportedStock,
		ReportedPrice: r.ReportedPrice,
		Status:        integration.ListingStatus(r.Status),
		FetchedAt:     fetchedAt,
	}, nil
}

// MergeRequest is a batch of marketplace records for one seller account
type MergeRequest struct {
	OwnerID   uuid.UUID         `json:"owner_id" binding:"required"`
	Snapshots []SnapshotRequest `json:"snapshots" binding:"required,min=1,dive"`
}

// MergeGroup is one canonical product touched by a merge
type MergeGroup struct {
	CanonicalProductID uuid.UUID               `json:"canonical_product_id"`
	StockUnitID        uuid.UUID               `json:"stock_unit_id"`
	Created            bool                    `json:"created"`
	Sources            []integration.SourceKey `json:"sources"`
	MatchedBy          []integration.MatchRule `json:"matched_by"`
	ChangedFields      []string                `json:"changed_fields,omitempty"`
}

// RejectedSnapshot is an input record that could not be merged
type RejectedSnapshot struct {
	Platform string `json:"platform"`
	RemoteID string `json:"remote_id"`
	Reason   string `json:"reason"`
}

// MergeResult summarizes a merge
type MergeResult struct {
	Groups        []MergeGroup                    `json:"groups"`
	Created       int                             `json:"created"`
	Updated       int                             `json:"updated"`
	Conflicts     []integration.AttributeConflict `json:"conflicts"`
	LinkConflicts []integration.LinkConflict      `json:"link_conflicts"`
	Rejected      []RejectedSnapshot              `json:"rejected"`
	TasksEnqueued int                             `json:"tasks_enqueued"`
}

// ProductIDs returns the ids of every product touched by the merge
func (r *MergeResult) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.Groups))
	for i, g := range r.Groups {
		ids[i] = g.CanonicalProductID
	}
	return ids
}

// RelinkRequest moves a source record to another canonical product
type RelinkRequest struct {
	Platform        string    `json:"platform" binding:"required"`
	RemoteID        string    `json:"remote_id" binding:"required"`
	TargetProductID uuid.UUID `json:"target_product_id" binding:"required"`
	Actor           string    `json:"actor"`
}

// RelinkResult reports both sides of a relink
type RelinkResult struct {
	Source        CanonicalProductResponse `json:"source"`
	Target        CanonicalProductResponse `json:"target"`
	TasksEnqueued int                      `json:"tasks_enqueued"`
}

// ---------------------------------------------------------------------------
// Reconcile DTOs
// ---------------------------------------------------------------------------

// StockDrift is one marketplace whose reported stock disagrees with the ledger
type StockDrift struct {
	Platform      integration.PlatformCode `json:"platform"`
	RemoteID      string                   `json:"remote_id"`
	ReportedStock int64                    `json:"reported_stock"`
	LedgerStock   int64                    `json:"ledger_stock"`
	SyncTaskID    uuid.UUID                `json:"sync_task_id"`
}

// ReconcileResult summarizes a stock reconciliation of one product
type ReconcileResult struct {
	CanonicalProductID uuid.UUID    `json:"canonical_product_id"`
	StockUnitID        uuid.UUID    `json:"stock_unit_id"`
	LedgerOnHand       int64        `json:"ledger_on_hand"`
	Skipped            bool         `json:"skipped"`
	SkipReason         string       `json:"skip_reason,omitempty"`
	Drifts             []StockDrift `json:"drifts"`
	InSync             int          `json:"in_sync"`
}

// ReconcileAllResult summarizes a reconciliation pass over every product
type ReconcileAllResult struct {
	Products int           `json:"products"`
	Drifted  int           `json:"drifted"`
	Tasks    int           `json:"tasks"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// PlatformPullResult is the fetch outcome of one adapter
type PlatformPullResult struct {
	Platform integration.PlatformCode `json:"platform"`
	Fetched  int                      `json:"fetched"`
	Error    string                   `json:"error,omitempty"`
}

// PullResult summarizes a pull, merge and reconcile cycle
type PullResult struct {
	Platforms  []PlatformPullResult `json:"platforms"`
	Merge      *MergeResult         `json:"merge,omitempty"`
	Reconciled int                  `json:"reconciled"`
	Drifted    int                  `json:"drifted"`
}

// ---------------------------------------------------------------------------
// Sync Task DTOs
// ---------------------------------------------------------------------------

// RequestPushRequest asks for fields of a product to be pushed to some or all platforms
type RequestPushRequest struct {
	Platforms []string `json:"platforms"`
	Fields    []string `json:"fields" binding:"required,min=1"`
	Actor     string   `json:"actor"`
}

// SyncTaskResponse represents a sync task in API responses
type SyncTaskResponse struct {
	ID                 uuid.UUID                  `json:"id"`
	OwnerID            uuid.UUID                  `json:"owner_id"`
	CanonicalProductID uuid.UUID                  `json:"canonical_product_id"`
	TargetPlatform     integration.PlatformCode   `json:"target_platform"`
	Fields             []string                   `json:"fields"`
	TargetStock        *int64                     `json:"target_stock,omitempty"`
	Status             integration.SyncTaskStatus `json:"status"`
	AttemptCount       int                        `json:"attempt_count"`
	NextAttemptAt      time.Time                  `json:"next_attempt_at"`
	LastError          string                     `json:"last_error,omitempty"`
	Origin             string                     `json:"origin"`
	CreatedAt          time.Time                  `json:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at"`
	CompletedAt        *time.Time                 `json:"completed_at,omitempty"`
}

// ToSyncTaskResponse converts a domain task to a response
func ToSyncTaskResponse(t *integration.SyncTask) SyncTaskResponse {
	return SyncTaskResponse{
		ID:                 t.ID,
		OwnerID:            t.OwnerID,
		CanonicalProductID: t.CanonicalProductID,
		TargetPlatform:     t.TargetPlatform,
		Fields:             t.Fields.Strings(),
		TargetStock:        t.TargetStock,
		Status:             t.Status,
		AttemptCount:       t.AttemptCount,
		NextAttemptAt:      t.NextAttemptAt,
		LastError:          t.LastError,
		Origin:             t.Origin,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		CompletedAt:        t.CompletedAt,
	}
}

// ToSyncTaskResponses converts a slice of domain tasks
func ToSyncTaskResponses(tasks []integration.SyncTask) []SyncTaskResponse {
	out := make([]SyncTaskResponse, len(tasks))
	for i := range tasks {
		out[i] = ToSyncTaskResponse(&tasks[i])
	}
	return out
}

// SyncTaskListFilter narrows a sync task listing
type SyncTaskListFilter struct {
	Status             string    `form:"status"`
	CanonicalProductID uuid.UUID `form:"canonical_product_id"`
	Platform           string    `form:"platform"`
	Page               int       `form:"page"`
	PageSize           int       `form:"page_size"`
}

// DispatchStats summarizes one dispatch pass
type DispatchStats struct {
	Due      int           `json:"due"`
	Done     int           `json:"done"`
	Retried  int           `json:"retried"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// DispatchOutcome is the result of a single dispatch
type DispatchOutcome string

const (
	OutcomeDone    DispatchOutcome = "done"
	OutcomeRetried DispatchOutcome = "retried"
	OutcomeFailed  DispatchOutcome = "failed"
	OutcomeSkipped DispatchOutcome = "skipped"
	// OutcomeLost means another dispatcher claimed the task first
	OutcomeLost DispatchOutcome = "lost"
)

func pageOffset(page, pageSize, defaultSize, maxSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
