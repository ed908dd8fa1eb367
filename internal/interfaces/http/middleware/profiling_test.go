package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/metrics")
	assert.Contains(t, cfg.SkipPathPrefixes, "/swagger")
}

func TestProfilingMiddleware_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(ProfilingWithConfig(ProfilingConfig{Enabled: false}))
	r.GET("/api/v1/stock-units", func(c *gin.Context) {
		_, ok := pprof.Label(c.Request.Context(), "route")
		assert.False(t, ok)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stock-units", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfilingMiddleware_Labels(t *testing.T) {
	r := gin.New()
	r.Use(Profiling())

	var labels map[string]string
	r.POST("/api/v1/stock-units/:id/ledger", func(c *gin.Context) {
		labels = map[string]string{}
		pprof.ForLabels(c.Request.Context(), func(k, v string) bool {
			labels[k] = v
			return true
		})
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/stock-units/abc/ledger", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "POST", labels["method"])
	assert.Equal(t, "/api/v1/stock-units/:id/ledger", labels["route"])
	assert.Equal(t, "stock-units", labels["resource"])
}

func TestProfilingMiddleware_SkipPaths(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		shouldSkip bool
	}{
		{"health_exact", "/health", true},
		{"metrics_exact", "/metrics", true},
		{"swagger_prefix", "/swagger/index.html", true},
		{"api_path", "/api/v1/reservations", false},
		{"health_subpath", "/health/check", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Profiling())

			var labeled bool
			r.GET(tt.path, func(c *gin.Context) {
				_, labeled = pprof.Label(c.Request.Context(), "route")
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, !tt.shouldSkip, labeled)
		})
	}
}

func TestResourceFromRoute(t *testing.T) {
	tests := []struct {
		route    string
		expected string
	}{
		{"/api/v1/stock-units", "stock-units"},
		{"/api/v1/stock-units/:id/ledger", "stock-units"},
		{"/api/v2/reservations/:id/confirm", "reservations"},
		{"/api/sync-tasks", "sync-tasks"},
		{"/v10/products", "products"},
		{"/health", "health"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.expected, resourceFromRoute(tt.route))
		})
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("V22"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("vx"))
	assert.False(t, isVersionSegment("stock-units"))
}
