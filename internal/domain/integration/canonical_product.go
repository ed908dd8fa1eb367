package integration

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// SyncStatus is the outbound state of one source record
// ---------------------------------------------------------------------------

// SyncStatus represents the synchronization status of a source record
type SyncStatus string

const (
	// SyncStatusPending indicates a push is queued or nothing was pushed yet
	SyncStatusPending SyncStatus = "PENDING"
	// SyncStatusSuccess indicates the last push succeeded
	SyncStatusSuccess SyncStatus = "SUCCESS"
	// SyncStatusFailed indicates the last push exhausted its retries
	SyncStatusFailed SyncStatus = "FAILED"
)

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// SourceRecord Entity
// ---------------------------------------------------------------------------

// SourceRecord is one marketplace's view of a canonical product. It keeps the last-seen
// snapshot verbatim, so values that lost a precedence decision stay visible here.
type SourceRecord struct {
	ID                 uuid.UUID
	CanonicalProductID uuid.UUID
	Platform           PlatformCode
	RemoteID           string
	LinkID             string
	Barcode            string
	SKU                string
	Name               string
	Brand              string
	Attributes         map[string]string
	ReportedStock      int64
	ReportedPrice      decimal.Decimal
	Status             ListingStatus
	LastSeenAt         time.Time
	LastSyncedAt       *time.Time
	SyncStatus         SyncStatus
	LastSyncError      string
	Live               bool
}

// Key returns the source key of this record
func (r *SourceRecord) Key() SourceKey {
	return SourceKey{Platform: r.Platform, RemoteID: r.RemoteID}
}

// AcceptsPushes returns true if the record is live and the marketplace allows edits
func (r *SourceRecord) AcceptsPushes() bool {
	return r.Live && (r.Status == "" || r.Status.AcceptsPushes())
}

// applySnapshot overwrites the last-seen snapshot. Older snapshots are ignored.
func (r *SourceRecord) applySnapshot(s *PlatformSnapshot) bool {
	if !r.LastSeenAt.IsZero() && s.FetchedAt.Before(r.LastSeenAt) {
		return false
	}
	r.LinkID = s.LinkID
	r.Barcode = s.Barcode
	r.SKU = s.SKU
	r.Name = s.Name
	r.Brand = s.Brand
	r.Attributes = copyAttributes(s.Attributes)
	r.ReportedStock = s.ReportedStock
	r.ReportedPrice = s.ReportedPrice
	r.Status = s.Status
	r.LastSeenAt = s.FetchedAt
	r.Live = true
	return true
}

// RecordPushSuccess records a successful push and the values the marketplace now holds
func (r *SourceRecord) RecordPushSuccess(fields FieldSet, product *CanonicalProduct, stock int64, now time.Time) {
	if fields.Has(FieldStock) {
		r.ReportedStock = stock
	}
	if fields.Has(FieldPrice) {
		r.ReportedPrice = product.Price
	}
	r.LastSyncedAt = &now
	r.SyncStatus = SyncStatusSuccess
	r.LastSyncError = ""
}

// RecordPushFailure records a push that exhausted its retries
func (r *SourceRecord) RecordPushFailure(errMsg string, now time.Time) {
	r.LastSyncedAt = &now
	r.SyncStatus = SyncStatusFailed
	r.LastSyncError = errMsg
}

// ---------------------------------------------------------------------------
// CanonicalProduct Aggregate
// ---------------------------------------------------------------------------

// Canonical attribute keys resolved alongside free-form attributes
const (
	AttrName  = "name"
	AttrBrand = "brand"
	AttrPrice = "price"
)

// AttributeConflict documents one precedence decision between two marketplaces
type AttributeConflict struct {
	Key         string       `json:"key"`
	Winner      PlatformCode `json:"winner"`
	WinnerValue string       `json:"winner_value"`
	Loser       PlatformCode `json:"loser"`
	LoserValue  string       `json:"loser_value"`
}

// CanonicalProduct is the merged view of a product across marketplaces.
// It owns exactly one stock unit; each source record belongs to exactly one product.
type CanonicalProduct struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	StockUnitID   uuid.UUID
	Name          string
	Brand         string
	Barcode       string
	SKU           string
	Attributes    map[string]string
	Price         decimal.Decimal
	SourceRecords []SourceRecord
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewCanonicalProduct creates a canonical product bound to a stock unit
func NewCanonicalProduct(ownerID, stockUnitID uuid.UUID, name string) (*CanonicalProduct, error) {
	if ownerID == uuid.Nil {
		return nil, errors.New("integration: invalid owner ID")
	}
	if stockUnitID == uuid.Nil {
		return nil, errors.New("integration: invalid stock unit ID")
	}
	now := time.Now()
	return &CanonicalProduct{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		StockUnitID: stockUnitID,
		Name:        strings.TrimSpace(name),
		Attributes:  make(map[string]string),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Source returns the source record for a key
func (p *CanonicalProduct) Source(key SourceKey) (*SourceRecord, bool) {
	for i := range p.SourceRecords {
		if p.SourceRecords[i].Key() == key {
			return &p.SourceRecords[i], true
		}
	}
	return nil, false
}

// SourceForPlatform returns the live source record on a platform, if any
func (p *CanonicalProduct) SourceForPlatform(code PlatformCode) (*SourceRecord, bool) {
	for i := range p.SourceRecords {
		if p.SourceRecords[i].Platform == code && p.SourceRecords[i].Live {
			return &p.SourceRecords[i], true
		}
	}
	return nil, false
}

// LiveSources returns the source records that can currently receive pushes
func (p *CanonicalProduct) LiveSources() []*SourceRecord {
	out := make([]*SourceRecord, 0, len(p.SourceRecords))
	for i := range p.SourceRecords {
		if p.SourceRecords[i].AcceptsPushes() {
			out = append(out, &p.SourceRecords[i])
		}
	}
	return out
}

// Observe records a snapshot on this product, creating the source record if needed.
// It returns false if the snapshot was older than what the record already holds.
func (p *CanonicalProduct) Observe(s *PlatformSnapshot) bool {
	if rec, ok := p.Source(s.Key()); ok {
		return rec.applySnapshot(s)
	}
	rec := SourceRecord{
		ID:                 uuid.New(),
		CanonicalProductID: p.ID,
		Platform:           s.Platform,
		RemoteID:           s.RemoteID,
		SyncStatus:         SyncStatusPending,
	}
	rec.applySnapshot(s)
	p.SourceRecords = append(p.SourceRecords, rec)
	return true
}

// Detach removes a source record from this product so it can be linked elsewhere.
// This is the only way a record leaves a product.
func (p *CanonicalProduct) Detach(key SourceKey) (*SourceRecord, error) {
	for i := range p.SourceRecords {
		if p.SourceRecords[i].Key() == key {
			rec := p.SourceRecords[i]
			p.SourceRecords = append(p.SourceRecords[:i], p.SourceRecords[i+1:]...)
			p.UpdatedAt = time.Now()
			return &rec, nil
		}
	}
	return nil, ErrSourceRecordNotFound
}

// Attach adopts a detached source record
func (p *CanonicalProduct) Attach(rec SourceRecord) {
	rec.CanonicalProductID = p.ID
	p.SourceRecords = append(p.SourceRecords, rec)
	p.UpdatedAt = time.Now()
}

// ResolveAttributes recomputes canonical name, brand, price, identifiers and attributes.
// For each key the most recently seen source with a non-empty value wins; ties go to the
// lower platform code so the outcome never depends on input order. Every source that
// disagreed with the winner is reported as a conflict; its value stays in its own record.
func (p *CanonicalProduct) ResolveAttributes() (changed FieldSet, conflicts []AttributeConflict) {
	sources := make([]*SourceRecord, 0, len(p.SourceRecords))
	for i := range p.SourceRecords {
		if p.SourceRecords[i].Live {
			sources = append(sources, &p.SourceRecords[i])
		}
	}
	if len(sources) == 0 {
		return nil, nil
	}
	sort.SliceStable(sources, func(i, j int) bool {
		if !sources[i].LastSeenAt.Equal(sources[j].LastSeenAt) {
			return sources[i].LastSeenAt.After(sources[j].LastSeenAt)
		}
		return sources[i].Platform < sources[j].Platform
	})

	keys := map[string]bool{AttrName: true, AttrBrand: true, AttrPrice: true}
	for _, s := range sources {
		for k := range s.Attributes {
			keys[k] = true
		}
	}
	sortedKeys := make([]string, 0, len(keys))
	for k := range keys {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Strings(sortedKeys)

	resolved := make(map[string]string, len(sortedKeys))
	for _, key := range sortedKeys {
		var winner *SourceRecord
		var winnerValue string
		for _, s := range sources {
			v := sourceValue(s, key)
			if v == "" {
				continue
			}
			if winner == nil {
				winner, winnerValue = s, v
				continue
			}
			if !sameValue(key, v, winnerValue) {
				conflicts = append(conflicts, AttributeConflict{
					Key:         key,
					Winner:      winner.Platform,
					WinnerValue: winnerValue,
					Loser:       s.Platform,
					LoserValue:  v,
				})
			}
		}
		if winner != nil {
			resolved[key] = winnerValue
		}
	}

	attrsChanged := false
	if name := resolved[AttrName]; name != "" && name != p.Name {
		p.Name = name
		attrsChanged = true
	}
	if brand := resolved[AttrBrand]; brand != p.Brand {
		p.Brand = brand
		attrsChanged = true
	}
	attrs := make(map[string]string, len(resolved))
	for k, v := range resolved {
		if k == AttrName || k == AttrBrand || k == AttrPrice {
			continue
		}
		attrs[k] = v
	}
	if !equalAttributes(attrs, p.Attributes) {
		p.Attributes = attrs
		attrsChanged = true
	}
	if attrsChanged {
		changed = changed.Union(FieldAttributes)
	}
	if raw, ok := resolved[AttrPrice]; ok {
		if price, err := decimal.NewFromString(raw); err == nil && !price.Equal(p.Price) {
			p.Price = price
			changed = changed.Union(FieldPrice)
		}
	}

	// identifiers follow the newest source that carries them
	for _, s := range sources {
		if p.Barcode == "" && s.Barcode != "" {
			p.Barcode = s.Barcode
		}
		if p.SKU == "" && s.SKU != "" {
			p.SKU = s.SKU
		}
	}
	if len(changed) > 0 {
		p.UpdatedAt = time.Now()
	}
	return changed, conflicts
}

// SourcesNeedingPush lists live sources whose snapshot differs from the canonical value of
// any of the given fields. Stock is handled by stock reconciliation, not here.
func (p *CanonicalProduct) SourcesNeedingPush(fields FieldSet) map[PlatformCode]FieldSet {
	out := make(map[PlatformCode]FieldSet)
	for _, s := range p.LiveSources() {
		var need FieldSet
		if fields.Has(FieldPrice) && !s.ReportedPrice.Equal(p.Price) {
			need = need.Union(FieldPrice)
		}
		if fields.Has(FieldAttributes) && (s.Name != p.Name || s.Brand != p.Brand || !containsAttributes(s.Attributes, p.Attributes)) {
			need = need.Union(FieldAttributes)
		}
		if len(need) > 0 {
			out[s.Platform] = need
		}
	}
	return out
}

func sourceValue(s *SourceRecord, key string) string {
	switch key {
	case AttrName:
		return strings.TrimSpace(s.Name)
	case AttrBrand:
		return strings.TrimSpace(s.Brand)
	case AttrPrice:
		if s.ReportedPrice.IsZero() {
			return ""
		}
		return s.ReportedPrice.String()
	default:
		return strings.TrimSpace(s.Attributes[key])
	}
}

func sameValue(key, a, b string) bool {
	if key == AttrPrice {
		da, errA := decimal.NewFromString(a)
		db, errB := decimal.NewFromString(b)
		if errA == nil && errB == nil {
			return da.Equal(db)
		}
	}
	return a == b
}

func copyAttributes(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func equalAttributes(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func containsAttributes(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}
