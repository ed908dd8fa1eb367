package marketplace

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/config"
)

const (
	// DefaultPageSize is how many products a pull asks for per page
	DefaultPageSize = 200
	// DefaultTimeout is the per-request HTTP timeout
	DefaultTimeout = 30 * time.Second
	// maxPages bounds a single pull
	maxPages = 1000
)

// Errors for marketplace configuration
var (
	ErrConfigMissingBaseURL  = errors.New("marketplace: base URL is required")
	ErrConfigInvalidBaseURL  = errors.New("marketplace: base URL must be an absolute http(s) URL")
	ErrConfigMissingAPIKey   = errors.New("marketplace: api key is required")
	ErrConfigMissingSellerID = errors.New("marketplace: seller id is required")
)

// AdapterConfig holds the connection settings of one marketplace
type AdapterConfig struct {
	// Platform is the marketplace code
	Platform integration.PlatformCode
	// BaseURL is the marketplace API root, e.g. https://api.trendyol.com/sapigw
	BaseURL string
	// APIKey authenticates the seller
	APIKey string
	// SellerID is the seller (supplier) id on the marketplace
	SellerID string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// PageSize is the pull page size
	PageSize int
}

// FromPlatformConfig converts a config entry into adapter settings
func FromPlatformConfig(pc config.PlatformConfig) (*AdapterConfig, error) {
	code, err := integration.ParsePlatformCode(pc.Code)
	if err != nil {
		return nil, fmt.Errorf("platform %q: %w", pc.Code, err)
	}
	cfg := &AdapterConfig{
		Platform: code,
		BaseURL:  pc.BaseURL,
		APIKey:   pc.APIKey,
		SellerID: pc.SellerID,
		Timeout:  pc.Timeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("platform %s: %w", code, err)
	}
	return cfg, nil
}

// Validate validates the configuration and fills defaults
func (c *AdapterConfig) Validate() error {
	if !c.Platform.IsValid() {
		return integration.ErrInvalidPlatformCode
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrConfigMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalidBaseURL
	}
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.SellerID == "" {
		return ErrConfigMissingSellerID
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	return nil
}

// productsURL returns the seller's product collection endpoint
func (c *AdapterConfig) productsURL() string {
	return fmt.Sprintf("%s/sellers/%s/products", c.BaseURL, url.PathEscape(c.SellerID))
}

// productURL returns the endpoint of a single remote product
func (c *AdapterConfig) productURL(remoteID string) string {
	return c.productsURL() + "/" + url.PathEscape(remoteID)
}
