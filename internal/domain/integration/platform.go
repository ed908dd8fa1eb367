package integration

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Integration Errors
// ---------------------------------------------------------------------------

var (
	// Platform errors
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformNotEnabled      = errors.New("integration: platform not enabled")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")

	// Canonical product errors
	ErrInvalidPlatformCode   = errors.New("integration: invalid platform code")
	ErrInvalidRemoteID       = errors.New("integration: invalid remote product ID")
	ErrSourceAlreadyLinked   = errors.New("integration: source record already linked to another product")
	ErrSourceRecordNotFound  = errors.New("integration: source record not found")
	ErrProductNotFound       = errors.New("integration: canonical product not found")
	ErrInvalidSyncFields     = errors.New("integration: sync task has no fields")
	ErrSyncTaskNotRetryable  = errors.New("integration: only failed sync tasks can be retried")
	ErrSyncTaskInvalidStatus = errors.New("integration: invalid sync task status transition")
)

// ---------------------------------------------------------------------------
// PlatformCode identifies a marketplace
// ---------------------------------------------------------------------------

// PlatformCode identifies a marketplace
type PlatformCode string

const (
	// PlatformTrendyol is the Trendyol marketplace
	PlatformTrendyol PlatformCode = "TRENDYOL"
	// PlatformHepsiburada is the Hepsiburada marketplace
	PlatformHepsiburada PlatformCode = "HEPSIBURADA"
	// PlatformN11 is the N11 marketplace
	PlatformN11 PlatformCode = "N11"
	// PlatformWebstore is the seller's own storefront
	PlatformWebstore PlatformCode = "WEBSTORE"
)

// ParsePlatformCode normalizes and validates a platform code
func ParsePlatformCode(s string) (PlatformCode, error) {
	c := PlatformCode(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrInvalidPlatformCode
	}
	return c, nil
}

// IsValid returns true if the platform code is known
func (c PlatformCode) IsValid() bool {
	switch c {
	case PlatformTrendyol, PlatformHepsiburada, PlatformN11, PlatformWebstore:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformCode
func (c PlatformCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the platform
func (c PlatformCode) DisplayName() string {
	switch c {
	case PlatformTrendyol:
		return "Trendyol"
	case PlatformHepsiburada:
		return "Hepsiburada"
	case PlatformN11:
		return "n11"
	case PlatformWebstore:
		return "Webstore"
	default:
		return string(c)
	}
}

// ---------------------------------------------------------------------------
// ListingStatus is how a marketplace classifies a listing
// ---------------------------------------------------------------------------

// ListingStatus is how a marketplace classifies a listing
type ListingStatus string

const (
	ListingOnSale          ListingStatus = "ON_SALE"
	ListingOutOfStock      ListingStatus = "OUT_OF_STOCK"
	ListingOffSale         ListingStatus = "OFF_SALE"
	ListingLocked          ListingStatus = "LOCKED"
	ListingPendingApproval ListingStatus = "PENDING_APPROVAL"
	ListingRejected        ListingStatus = "REJECTED"
)

// IsValid returns true if the status is known
func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingOnSale, ListingOutOfStock, ListingOffSale, ListingLocked,
		ListingPendingApproval, ListingRejected:
		return true
	default:
		return false
	}
}

// AcceptsPushes returns false for listings the marketplace will not let the seller edit
func (s ListingStatus) AcceptsPushes() bool {
	return s != ListingLocked && s != ListingRejected
}

// ---------------------------------------------------------------------------
// SyncField is one aspect of a product that can be pushed
// ---------------------------------------------------------------------------

// SyncField is one aspect of a product that can be pushed
type SyncField string

const (
	FieldStock      SyncField = "stock"
	FieldPrice      SyncField = "price"
	FieldAttributes SyncField = "attributes"
	FieldStatus     SyncField = "status"
)

// IsValid returns true if the field is known
func (f SyncField) IsValid() bool {
	switch f {
	case FieldStock, FieldPrice, FieldAttributes, FieldStatus:
		return true
	default:
		return false
	}
}

// FieldSet is an ordered, duplicate-free set of sync fields
type FieldSet []SyncField

// NewFieldSet builds a normalized field set, dropping unknown and duplicate fields
func NewFieldSet(fields ...SyncField) FieldSet {
	var fs FieldSet
	return fs.Union(fields...)
}

// Has reports whether f is in the set
func (fs FieldSet) Has(f SyncField) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

// Union returns a new set containing fs and fields, in canonical order
func (fs FieldSet) Union(fields ...SyncField) FieldSet {
	seen := make(map[SyncField]bool, len(fs)+len(fields))
	for _, f := range fs {
		seen[f] = true
	}
	for _, f := range fields {
		if f.IsValid() {
			seen[f] = true
		}
	}
	out := make(FieldSet, 0, len(seen))
	for _, f := range []SyncField{FieldStock, FieldPrice, FieldAttributes, FieldStatus} {
		if seen[f] {
			out = append(out, f)
		}
	}
	return out
}

// Strings returns the fields as plain strings
func (fs FieldSet) Strings() []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// PlatformSnapshot is one product as a marketplace reports it at FetchedAt
type PlatformSnapshot struct {
	// Platform is the marketplace that produced this snapshot
	Platform PlatformCode
	// RemoteID is the marketplace's own product identifier
	RemoteID string
	// LinkID is an explicit cross-platform linking id (e.g. the canonical id we pushed earlier)
	LinkID string
	// Barcode is a GTIN/EAN barcode
	Barcode string
	// SKU is the seller's stock code as entered on the marketplace
	SKU string
	// Name is the listing title
	Name string
	// Brand is the listing brand
	Brand string
	// Attributes are the remaining listing attributes
	Attributes map[string]string
	// ReportedStock is the stock the marketplace believes it can sell
	ReportedStock int64
	// ReportedPrice is the listing price
	ReportedPrice decimal.Decimal
	// Status is the marketplace listing status
	Status ListingStatus
	// FetchedAt is when the snapshot was pulled
	FetchedAt time.Time
}

// Validate validates the snapshot
func (s *PlatformSnapshot) Validate() error {
	if !s.Platform.IsValid() {
		return ErrInvalidPlatformCode
	}
	if strings.TrimSpace(s.RemoteID) == "" {
		return ErrInvalidRemoteID
	}
	return nil
}

// SourceKey identifies a source record across canonical products
type SourceKey struct {
	Platform PlatformCode
	RemoteID string
}

// Key returns the source key of the snapshot
func (s *PlatformSnapshot) Key() SourceKey {
	return SourceKey{Platform: s.Platform, RemoteID: s.RemoteID}
}

// PushRequest is what a dispatcher hands to an adapter
type PushRequest struct {
	// Product is the canonical state to push
	Product *CanonicalProduct
	// Source is the target source record on this adapter's platform
	Source *SourceRecord
	// Fields are the fields that changed
	Fields FieldSet
	// Stock is the authoritative stock to publish when Fields has stock
	Stock int64
}

// ---------------------------------------------------------------------------
// PlatformAdapter Port Interface
// ---------------------------------------------------------------------------

// PlatformAdapter is the port every marketplace integration implements. The reconciler and
// dispatcher depend only on this shape, never on a marketplace's concrete protocol.
type PlatformAdapter interface {
	// Platform returns the platform code this adapter handles
	Platform() PlatformCode

	// FetchProducts pulls the current product snapshots from the marketplace
	FetchProducts(ctx context.Context) ([]PlatformSnapshot, error)

	// Push publishes the requested fields of a canonical product to the marketplace
	Push(ctx context.Context, req PushRequest) error
}

// AdapterRegistry resolves adapters by platform
type AdapterRegistry interface {
	// Get returns the adapter for a platform
	Get(code PlatformCode) (PlatformAdapter, error)
	// All returns every enabled adapter
	All() []PlatformAdapter
}
