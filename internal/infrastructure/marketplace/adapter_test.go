package marketplace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestAdapterConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *AdapterConfig
		wantErr error
	}{
		{
			name: "valid config",
			config: &AdapterConfig{
				Platform: integration.PlatformTrendyol,
				BaseURL:  "https://api.example.com/sapigw/",
				APIKey:   "key",
				SellerID: "12345",
			},
		},
		{
			name:    "invalid platform",
			config:  &AdapterConfig{Platform: "AMAZON", BaseURL: "https://x", APIKey: "k", SellerID: "1"},
			wantErr: integration.ErrInvalidPlatformCode,
		},
		{
			name:    "missing base url",
			config:  &AdapterConfig{Platform: integration.PlatformN11, APIKey: "k", SellerID: "1"},
			wantErr: ErrConfigMissingBaseURL,
		},
		{
			name:    "relative base url",
			config:  &AdapterConfig{Platform: integration.PlatformN11, BaseURL: "/api", APIKey: "k", SellerID: "1"},
			wantErr: ErrConfigInvalidBaseURL,
		},
		{
			name:    "missing api key",
			config:  &AdapterConfig{Platform: integration.PlatformN11, BaseURL: "https://x", SellerID: "1"},
			wantErr: ErrConfigMissingAPIKey,
		},
		{
			name:    "missing seller id",
			config:  &AdapterConfig{Platform: integration.PlatformN11, BaseURL: "https://x", APIKey: "k"},
			wantErr: ErrConfigMissingSellerID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://api.example.com/sapigw", tt.config.BaseURL)
			assert.Equal(t, DefaultTimeout, tt.config.Timeout)
			assert.Equal(t, DefaultPageSize, tt.config.PageSize)
		})
	}
}

func TestFromPlatformConfig(t *testing.T) {
	cfg, err := FromPlatformConfig(config.PlatformConfig{
		Code:     "hepsiburada",
		BaseURL:  "https://listing.example.com",
		APIKey:   "k",
		SellerID: "m-1",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, integration.PlatformHepsiburada, cfg.Platform)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	_, err = FromPlatformConfig(config.PlatformConfig{Code: "ebay", BaseURL: "https://x", APIKey: "k", SellerID: "1"})
	assert.ErrorIs(t, err, integration.ErrInvalidPlatformCode)
}

// ---------------------------------------------------------------------------
// Fake marketplace
// ---------------------------------------------------------------------------

type fakeMarketplace struct {
	mu       sync.Mutex
	products []remoteProduct
	pageSize int
	updates  map[string]map[string]any
	headers  http.Header
	status   int
	body     string
	calls    int
}

func newFakeMarketplace(products ...remoteProduct) *fakeMarketplace {
	return &fakeMarketplace{products: products, updates: make(map[string]map[string]any)}
}

func (f *fakeMarketplace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.headers = r.Header.Clone()

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
		return
	}

	switch r.Method {
	case http.MethodGet:
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		if f.pageSize > 0 {
			size = f.pageSize
		}
		start := page * size
		end := start + size
		if start > len(f.products) {
			start = len(f.products)
		}
		if end > len(f.products) {
			end = len(f.products)
		}
		totalPages := (len(f.products) + size - 1) / size
		_ = json.NewEncoder(w).Encode(productPage{
			Content:       f.products[start:end],
			Page:          page,
			Size:          size,
			TotalPages:    totalPages,
			TotalElements: len(f.products),
		})
	case http.MethodPut:
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		f.updates[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestAdapter(t *testing.T, fake *fakeMarketplace) *HTTPAdapter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	adapter, err := NewHTTPAdapter(&AdapterConfig{
		Platform: integration.PlatformTrendyol,
		BaseURL:  srv.URL,
		APIKey:   "secret",
		SellerID: "seller-9",
		Timeout:  2 * time.Second,
	})
	require.NoError(t, err)
	return adapter
}

func boolPtr(b bool) *bool { return &b }

// ---------------------------------------------------------------------------
// FetchProducts
// ---------------------------------------------------------------------------

func TestHTTPAdapter_FetchProducts(t *testing.T) {
	fake := newFakeMarketplace(
		remoteProduct{
			ID:        "tr-1",
			LinkID:    "canon-1",
			Barcode:   "8690000000011",
			StockCode: "TSHIRT-RED-M",
			Title:     "Kırmızı Tişört",
			Brand:     "Acme",
			Quantity:  7,
			SalePrice: decimal.RequireFromString("149.90"),
			Attributes: []remoteAttribute{
				{Name: "color", Value: "red"},
				{Name: "", Value: "dropped"},
			},
		},
		remoteProduct{ProductCode: "tr-2", Title: "Mavi Tişört", Quantity: 0},
		remoteProduct{ID: "tr-3", Title: "Locked", Quantity: 3, Locked: true},
		remoteProduct{ID: "", Title: "no id"},
		remoteProduct{ID: "tr-5", Title: "Passive", Quantity: 3, Status: "passive"},
	)
	fake.pageSize = 2
	adapter := newTestAdapter(t, fake)
	fetchedAt := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return fetchedAt }

	snaps, err := adapter.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 4)
	assert.Equal(t, 3, fake.calls, "five products at two per page")

	first := snaps[0]
	assert.Equal(t, integration.PlatformTrendyol, first.Platform)
	assert.Equal(t, "tr-1", first.RemoteID)
	assert.Equal(t, "canon-1", first.LinkID)
	assert.Equal(t, "TSHIRT-RED-M", first.SKU)
	assert.Equal(t, int64(7), first.ReportedStock)
	assert.True(t, decimal.RequireFromString("149.90").Equal(first.ReportedPrice))
	assert.Equal(t, map[string]string{"color": "red"}, first.Attributes)
	assert.Equal(t, integration.ListingOnSale, first.Status)
	assert.Equal(t, fetchedAt, first.FetchedAt)
	assert.NoError(t, first.Validate())

	assert.Equal(t, "tr-2", snaps[1].RemoteID)
	assert.Equal(t, integration.ListingOutOfStock, snaps[1].Status)
	assert.Equal(t, integration.ListingLocked, snaps[2].Status)
	assert.Equal(t, integration.ListingOffSale, snaps[3].Status)

	assert.Equal(t, "Bearer secret", fake.headers.Get("Authorization"))
	assert.Equal(t, "seller-9 - SelfIntegration", fake.headers.Get("User-Agent"))
}

func TestHTTPAdapter_FetchProducts_Empty(t *testing.T) {
	adapter := newTestAdapter(t, newFakeMarketplace())

	snaps, err := adapter.FetchProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestHTTPAdapter_FetchProducts_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [`))
	}))
	defer srv.Close()

	adapter, err := NewHTTPAdapter(&AdapterConfig{Platform: integration.PlatformN11, BaseURL: srv.URL, APIKey: "k", SellerID: "1"})
	require.NoError(t, err)

	_, err = adapter.FetchProducts(context.Background())
	assert.ErrorIs(t, err, integration.ErrPlatformInvalidResponse)
}

func TestHTTPAdapter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"rate limited", http.StatusTooManyRequests, ``, integration.ErrPlatformRateLimited, "HTTP 429"},
		{"server error", http.StatusBadGateway, ``, integration.ErrPlatformUnavailable, "HTTP 502"},
		{"unauthorized", http.StatusUnauthorized, `{"message":"invalid api key"}`, integration.ErrPlatformNotConfigured, "invalid api key"},
		{"bad request", http.StatusBadRequest, `{"errors":[{"message":"quantity too large"},{"message":"price missing"}]}`, integration.ErrPlatformRequestFailed, "quantity too large; price missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeMarketplace()
			fake.status = tt.status
			fake.body = tt.body
			adapter := newTestAdapter(t, fake)

			_, err := adapter.FetchProducts(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestHTTPAdapter_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	adapter, err := NewHTTPAdapter(&AdapterConfig{Platform: integration.PlatformN11, BaseURL: base, APIKey: "k", SellerID: "1"})
	require.NoError(t, err)

	_, err = adapter.FetchProducts(context.Background())
	assert.ErrorIs(t, err, integration.ErrPlatformUnavailable)
}

func TestHTTPAdapter_CanceledContext(t *testing.T) {
	adapter := newTestAdapter(t, newFakeMarketplace())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.FetchProducts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// Push
// ---------------------------------------------------------------------------

func testPushRequest(fields ...integration.SyncField) integration.PushRequest {
	product := &integration.CanonicalProduct{
		ID:         uuid.MustParse("6f1c1c52-8c4c-4a53-9d87-0b9b4a3f0a11"),
		Name:       "Kırmızı Tişört",
		Brand:      "Acme",
		Barcode:    "8690000000011",
		Attributes: map[string]string{"size": "M", "color": "red"},
		Price:      decimal.RequireFromString("159.90"),
	}
	return integration.PushRequest{
		Product: product,
		Source: &integration.SourceRecord{
			Platform: integration.PlatformTrendyol,
			RemoteID: "tr 1",
			Status:   integration.ListingOffSale,
		},
		Fields: integration.NewFieldSet(fields...),
		Stock:  12,
	}
}

func TestHTTPAdapter_Push(t *testing.T) {
	t.Run("stock only", func(t *testing.T) {
		fake := newFakeMarketplace()
		adapter := newTestAdapter(t, fake)

		require.NoError(t, adapter.Push(context.Background(), testPushRequest(integration.FieldStock)))

		body := fake.updates["/sellers/seller-9/products/tr 1"]
		require.NotNil(t, body)
		assert.Equal(t, map[string]any{"quantity": float64(12)}, body)
		assert.Equal(t, "application/json", fake.headers.Get("Content-Type"))
	})

	t.Run("negative stock is published as zero", func(t *testing.T) {
		fake := newFakeMarketplace()
		adapter := newTestAdapter(t, fake)
		req := testPushRequest(integration.FieldStock)
		req.Stock = -3

		require.NoError(t, adapter.Push(context.Background(), req))
		for _, body := range fake.updates {
			assert.Equal(t, float64(0), body["quantity"])
		}
	})

	t.Run("all fields", func(t *testing.T) {
		fake := newFakeMarketplace()
		adapter := newTestAdapter(t, fake)
		req := testPushRequest(integration.FieldStock, integration.FieldPrice, integration.FieldAttributes, integration.FieldStatus)

		require.NoError(t, adapter.Push(context.Background(), req))

		require.Len(t, fake.updates, 1)
		for _, body := range fake.updates {
			assert.Equal(t, float64(12), body["quantity"])
			assert.Equal(t, "159.9", body["salePrice"])
			assert.Equal(t, "Kırmızı Tişört", body["title"])
			assert.Equal(t, "Acme", body["brand"])
			assert.Equal(t, "6f1c1c52-8c4c-4a53-9d87-0b9b4a3f0a11", body["productMainId"])
			assert.Equal(t, "PASSIVE", body["status"])
			assert.Equal(t, []any{
				map[string]any{"attributeName": "color", "attributeValue": "red"},
				map[string]any{"attributeName": "size", "attributeValue": "M"},
			}, body["attributes"])
		}
	})

	t.Run("rejects foreign platform", func(t *testing.T) {
		adapter := newTestAdapter(t, newFakeMarketplace())
		req := testPushRequest(integration.FieldStock)
		req.Source.Platform = integration.PlatformN11

		assert.ErrorIs(t, adapter.Push(context.Background(), req), integration.ErrPlatformNotConfigured)
	})

	t.Run("rejects missing source and fields", func(t *testing.T) {
		adapter := newTestAdapter(t, newFakeMarketplace())

		req := testPushRequest(integration.FieldStock)
		req.Source = nil
		assert.ErrorIs(t, adapter.Push(context.Background(), req), integration.ErrInvalidRemoteID)

		req = testPushRequest()
		assert.ErrorIs(t, adapter.Push(context.Background(), req), integration.ErrInvalidSyncFields)
	})

	t.Run("rate limited push", func(t *testing.T) {
		fake := newFakeMarketplace()
		fake.status = http.StatusTooManyRequests
		adapter := newTestAdapter(t, fake)

		err := adapter.Push(context.Background(), testPushRequest(integration.FieldStock))
		assert.ErrorIs(t, err, integration.ErrPlatformRateLimited)
	})
}

func TestListingStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		product remoteProduct
		want    integration.ListingStatus
	}{
		{"explicit active", remoteProduct{Status: "active", Quantity: 0}, integration.ListingOnSale},
		{"explicit sold out", remoteProduct{Status: "SOLD_OUT"}, integration.ListingOutOfStock},
		{"rejected flag", remoteProduct{Rejected: true, Quantity: 4}, integration.ListingRejected},
		{"awaiting approval", remoteProduct{Approved: boolPtr(false), Quantity: 4}, integration.ListingPendingApproval},
		{"not on sale", remoteProduct{OnSale: boolPtr(false), Quantity: 4}, integration.ListingOffSale},
		{"unknown word falls back to flags", remoteProduct{Status: "whatever", Quantity: 4}, integration.ListingOnSale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.product.listingStatus())
		})
	}

	assert.Equal(t, "ACTIVE", remoteStatusFor(integration.ListingOutOfStock))
	assert.Empty(t, remoteStatusFor(integration.ListingLocked))
}
