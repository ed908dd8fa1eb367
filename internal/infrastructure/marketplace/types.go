package marketplace

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erp/stocksync/internal/domain/integration"
)

// productPage is one page of the product listing endpoint
type productPage struct {
	Content       []remoteProduct `json:"content"`
	Page          int             `json:"page"`
	Size          int             `json:"size"`
	TotalPages    int             `json:"totalPages"`
	TotalElements int             `json:"totalElements"`
}

// remoteProduct is a listing as the marketplace returns it
type remoteProduct struct {
	ID          string            `json:"id"`
	ProductCode string            `json:"productCode,omitempty"`
	LinkID      string            `json:"productMainId,omitempty"`
	Barcode     string            `json:"barcode,omitempty"`
	StockCode   string            `json:"stockCode,omitempty"`
	Title       string            `json:"title"`
	Brand       string            `json:"brand,omitempty"`
	Quantity    int64             `json:"quantity"`
	SalePrice   decimal.Decimal   `json:"salePrice"`
	Status      string            `json:"status,omitempty"`
	OnSale      *bool             `json:"onSale,omitempty"`
	Locked      bool              `json:"locked,omitempty"`
	Approved    *bool             `json:"approved,omitempty"`
	Rejected    bool              `json:"rejected,omitempty"`
	Attributes  []remoteAttribute `json:"attributes,omitempty"`
}

// remoteAttribute is one listing attribute
type remoteAttribute struct {
	Name  string `json:"attributeName"`
	Value string `json:"attributeValue"`
}

// updateRequest is the body of a product update. Only changed fields are set.
type updateRequest struct {
	Quantity   *int64            `json:"quantity,omitempty"`
	SalePrice  *decimal.Decimal  `json:"salePrice,omitempty"`
	Title      string            `json:"title,omitempty"`
	Brand      string            `json:"brand,omitempty"`
	Barcode    string            `json:"barcode,omitempty"`
	Attributes []remoteAttribute `json:"attributes,omitempty"`
	Status     string            `json:"status,omitempty"`
	LinkID     string            `json:"productMainId,omitempty"`
}

// errorResponse is the error envelope marketplaces return
type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

func (e errorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, m := range e.Errors {
		msgs = append(msgs, m.Message)
	}
	return strings.Join(msgs, "; ")
}

// remoteID returns the identifier the marketplace expects on update calls
func (p *remoteProduct) remoteID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.ProductCode
}

// listingStatus classifies a remote product. An explicit status string wins over flags.
func (p *remoteProduct) listingStatus() integration.ListingStatus {
	if s := mapRemoteStatus(p.Status); s != "" {
		return s
	}
	switch {
	case p.Rejected:
		return integration.ListingRejected
	case p.Locked:
		return integration.ListingLocked
	case p.Approved != nil && !*p.Approved:
		return integration.ListingPendingApproval
	case p.OnSale != nil && !*p.OnSale:
		return integration.ListingOffSale
	case p.Quantity <= 0:
		return integration.ListingOutOfStock
	default:
		return integration.ListingOnSale
	}
}

// mapRemoteStatus maps marketplace status words to listing statuses
func mapRemoteStatus(status string) integration.ListingStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "ON_SALE", "ONSALE", "ACTIVE", "SELLING":
		return integration.ListingOnSale
	case "OUT_OF_STOCK", "OUTOFSTOCK", "SOLD_OUT":
		return integration.ListingOutOfStock
	case "OFF_SALE", "PASSIVE", "INACTIVE", "SUSPENDED", "ARCHIVED":
		return integration.ListingOffSale
	case "LOCKED", "BLOCKED":
		return integration.ListingLocked
	case "PENDING_APPROVAL", "PENDING", "WAITING_APPROVAL":
		return integration.ListingPendingApproval
	case "REJECTED", "DENIED":
		return integration.ListingRejected
	default:
		return ""
	}
}

// remoteStatusFor maps a listing status to the word sent on updates
func remoteStatusFor(s integration.ListingStatus) string {
	switch s {
	case integration.ListingOnSale, integration.ListingOutOfStock:
		return "ACTIVE"
	case integration.ListingOffSale:
		return "PASSIVE"
	default:
		return ""
	}
}
