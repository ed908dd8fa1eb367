package marketplace

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/config"
)

// Registry implements integration.AdapterRegistry over a fixed set of adapters
type Registry struct {
	mu       sync.RWMutex
	adapters map[integration.PlatformCode]integration.PlatformAdapter
	order    []integration.PlatformCode
}

// NewRegistry creates a registry; a later adapter for the same platform replaces the earlier one
func NewRegistry(adapters ...integration.PlatformAdapter) *Registry {
	r := &Registry{adapters: make(map[integration.PlatformCode]integration.PlatformAdapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// NewRegistryFromConfig builds an HTTP adapter for every enabled platform
func NewRegistryFromConfig(platforms []config.PlatformConfig, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := NewRegistry()
	for _, pc := range platforms {
		if !pc.Enabled {
			continue
		}
		cfg, err := FromPlatformConfig(pc)
		if err != nil {
			return nil, err
		}
		adapter, err := NewHTTPAdapter(cfg)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", cfg.Platform, err)
		}
		r.Register(adapter)
		logger.Info("Marketplace adapter registered",
			zap.String("platform", cfg.Platform.String()),
			zap.String("base_url", cfg.BaseURL),
			zap.Duration("timeout", cfg.Timeout),
		)
	}
	return r, nil
}

// Register adds or replaces the adapter for its platform
func (r *Registry) Register(a integration.PlatformAdapter) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	code := a.Platform()
	if _, exists := r.adapters[code]; !exists {
		r.order = append(r.order, code)
	}
	r.adapters[code] = a
}

// Get returns the adapter for a platform
func (r *Registry) Get(code integration.PlatformCode) (integration.PlatformAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrPlatformNotConfigured, code)
	}
	return a, nil
}

// All returns every adapter in registration order
func (r *Registry) All() []integration.PlatformAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]integration.PlatformAdapter, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.adapters[code])
	}
	return out
}

// Platforms returns the registered platform codes in registration order
func (r *Registry) Platforms() []integration.PlatformCode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]integration.PlatformCode(nil), r.order...)
}

var _ integration.AdapterRegistry = (*Registry)(nil)
var _ integration.PlatformAdapter = (*HTTPAdapter)(nil)
