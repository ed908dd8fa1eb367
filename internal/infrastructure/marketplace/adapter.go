package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/erp/stocksync/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from a marketplace API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// userAgentSuffix is appended to the seller id in the User-Agent header
const userAgentSuffix = " - SelfIntegration"

// HTTPAdapter implements integration.PlatformAdapter over a marketplace's REST JSON API
type HTTPAdapter struct {
	config     *AdapterConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPAdapter creates a new adapter with the given configuration
func NewHTTPAdapter(config *AdapterConfig) (*HTTPAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &HTTPAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}, nil
}

// Platform returns the platform code this adapter handles
func (a *HTTPAdapter) Platform() integration.PlatformCode {
	return a.config.Platform
}

// ---------------------------------------------------------------------------
// Pull
// ---------------------------------------------------------------------------

// FetchProducts pages through the seller's product list
func (a *HTTPAdapter) FetchProducts(ctx context.Context) ([]integration.PlatformSnapshot, error) {
	fetchedAt := a.now()
	snapshots := make([]integration.PlatformSnapshot, 0)

	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("size", strconv.Itoa(a.config.PageSize))

		body, err := a.doRequest(ctx, http.MethodGet, a.config.productsURL()+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var resp productPage
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
		}

		for i := range resp.Content {
			snap, ok := a.toSnapshot(&resp.Content[i], fetchedAt)
			if ok {
				snapshots = append(snapshots, snap)
			}
		}

		if len(resp.Content) == 0 || page+1 >= resp.TotalPages {
			break
		}
	}

	return snapshots, nil
}

// toSnapshot converts a remote product; products without an id are dropped
func (a *HTTPAdapter) toSnapshot(p *remoteProduct, fetchedAt time.Time) (integration.PlatformSnapshot, bool) {
	remoteID := strings.TrimSpace(p.remoteID())
	if remoteID == "" {
		return integration.PlatformSnapshot{}, false
	}
	attrs := make(map[string]string, len(p.Attributes))
	for _, attr := range p.Attributes {
		if attr.Name == "" {
			continue
		}
		attrs[attr.Name] = attr.Value
	}
	return integration.PlatformSnapshot{
		Platform:      a.config.Platform,
		RemoteID:      remoteID,
		LinkID:        p.LinkID,
		Barcode:       p.Barcode,
		SKU:           p.StockCode,
		Name:          p.Title,
		Brand:         p.Brand,
		Attributes:    attrs,
		ReportedStock: p.Quantity,
		ReportedPrice: p.SalePrice,
		Status:        p.listingStatus(),
		FetchedAt:     fetchedAt,
	}, true
}

// ---------------------------------------------------------------------------
// Push
// ---------------------------------------------------------------------------

// Push publishes the requested fields of a canonical product to its listing
func (a *HTTPAdapter) Push(ctx context.Context, req integration.PushRequest) error {
	if req.Source == nil || req.Source.RemoteID == "" {
		return integration.ErrInvalidRemoteID
	}
	if req.Source.Platform != a.config.Platform {
		return fmt.Errorf("%w: %s adapter cannot push to %s", integration.ErrPlatformNotConfigured, a.config.Platform, req.Source.Platform)
	}
	if len(req.Fields) == 0 {
		return integration.ErrInvalidSyncFields
	}

	body := buildUpdateRequest(req)
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marketplace: failed to encode update: %w", err)
	}

	_, err = a.doRequest(ctx, http.MethodPut, a.config.productURL(req.Source.RemoteID), payload)
	return err
}

// buildUpdateRequest copies only the requested fields into the update body
func buildUpdateRequest(req integration.PushRequest) updateRequest {
	var body updateRequest
	if req.Fields.Has(integration.FieldStock) {
		stock := req.Stock
		if stock < 0 {
			stock = 0
		}
		body.Quantity = &stock
	}
	if req.Product == nil {
		if req.Fields.Has(integration.FieldStatus) {
			body.Status = remoteStatusFor(req.Source.Status)
		}
		return body
	}
	if req.Fields.Has(integration.FieldPrice) && req.Product.Price.IsPositive() {
		price := req.Product.Price
		body.SalePrice = &price
	}
	if req.Fields.Has(integration.FieldAttributes) {
		body.Title = req.Product.Name
		body.Brand = req.Product.Brand
		body.Barcode = req.Product.Barcode
		body.LinkID = req.Product.ID.String()
		keys := make([]string, 0, len(req.Product.Attributes))
		for k := range req.Product.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			body.Attributes = append(body.Attributes, remoteAttribute{Name: k, Value: req.Product.Attributes[k]})
		}
	}
	if req.Fields.Has(integration.FieldStatus) {
		body.Status = remoteStatusFor(req.Source.Status)
	}
	return body
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// doRequest executes an authenticated request and maps HTTP failures to integration errors
func (a *HTTPAdapter) doRequest(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("marketplace: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	req.Header.Set("User-Agent", a.config.SellerID+userAgentSuffix)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

// statusError maps an HTTP error status to an integration error
func statusError(status int, body []byte) error {
	var sentinel error
	switch {
	case status == http.StatusTooManyRequests:
		sentinel = integration.ErrPlatformRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		sentinel = integration.ErrPlatformNotConfigured
	case status >= 500:
		sentinel = integration.ErrPlatformUnavailable
	default:
		sentinel = integration.ErrPlatformRequestFailed
	}

	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil {
		if msg := envelope.text(); msg != "" {
			return fmt.Errorf("%w: HTTP %d: %s", sentinel, status, msg)
		}
	}
	return fmt.Errorf("%w: HTTP %d", sentinel, status)
}

