package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type probeRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&probeRow{}))
	return db
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestDBTracingPlugin_DisabledIsNoop(t *testing.T) {
	db := setupTestDB(t)
	p, err := NewDBTracingPlugin(DBTracingConfig{}, nil, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.Register(db))
	assert.Nil(t, db.Callback().Query().Get("stocksync_timing:after_query"))
}

func TestDBTracingPlugin_RecordsStatementDurations(t *testing.T) {
	setupTestTracer(t)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	db := setupTestDB(t)
	p, err := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, mp.Meter("test"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, p.Register(db))

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&probeRow{Name: "a"}).Error)
	var rows []probeRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	require.NoError(t, db.WithContext(ctx).Exec("UPDATE probe_rows SET name = ?", "b").Error)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var hist metricdata.Histogram[float64]
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name == "stocksync_db_statement_duration_seconds" {
			hist = m.Data.(metricdata.Histogram[float64])
		}
	}
	ops := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		op, _ := dp.Attributes.Value(AttrDBOperation)
		ops[op.AsString()] += dp.Count
	}
	assert.Equal(t, uint64(1), ops["create"])
	assert.Equal(t, uint64(1), ops["query"])
	assert.Equal(t, uint64(1), ops["update"])
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "select", statementVerb("  SELECT * FROM stock_units"))
	assert.Equal(t, "update", statementVerb("update sync_tasks set status = 'pending'"))
	assert.Equal(t, "raw", statementVerb("VACUUM"))
	assert.Equal(t, "raw", statementVerb(""))
}
