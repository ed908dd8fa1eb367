package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when StockMetrics is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// StockMetrics is the instrument set for stock movement and marketplace sync activity.
// Services hold it through an optional setter and skip recording when it is nil.
type StockMetrics struct {
	logger *zap.Logger

	ledgerAppends   *Counter
	ledgerUnits     *Counter
	reservations    *Counter
	sweepExpired    *Counter
	sweepFailed     *Counter
	sweepDuration   *Histogram
	integrityAlarms *Counter
	driftAlerts     *Counter
	syncOutcomes    *Counter
	activeReserved  *Gauge
	activeCount     *Gauge
	syncBacklog     *Gauge
	gaugeProvider   StockGaugeProvider
	collectInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
	collectOnce     sync.Once
}

// ActiveReservationTotals is the per-owner active reservation load.
type ActiveReservationTotals struct {
	Count    int64
	Quantity int64
}

// StockGaugeProvider supplies point-in-time values for the periodic gauges without the
// telemetry layer depending on the domain packages.
type StockGaugeProvider interface {
	ActiveReservationsByOwner(ctx context.Context) (map[string]ActiveReservationTotals, error)
	SyncTasksByStatus(ctx context.Context) (map[string]int64, error)
}

// StockMetricsConfig holds configuration for StockMetrics.
type StockMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	GaugeProvider   StockGaugeProvider
	CollectInterval time.Duration // Default: 1 minute
}

// NewStockMetrics creates the instrument set.
func NewStockMetrics(cfg StockMetricsConfig) (*StockMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = time.Minute
	}

	m := &StockMetrics{
		logger:          logger,
		gaugeProvider:   cfg.GaugeProvider,
		collectInterval: interval,
		stopChan:        make(chan struct{}),
	}

	counters := []struct {
		dst                     **Counter
		name, description, unit string
	}{
		{&m.ledgerAppends, "stocksync_ledger_appends_total", "Ledger entries appended", "{entries}"},
		{&m.ledgerUnits, "stocksync_ledger_units_total", "Absolute stock units moved through the ledger", "{units}"},
		{&m.reservations, "stocksync_reservations_total", "Reservation operations by outcome", "{reservations}"},
		{&m.sweepExpired, "stocksync_sweep_expired_total", "Reservations expired by the sweeper", "{reservations}"},
		{&m.sweepFailed, "stocksync_sweep_failed_total", "Reservations the sweeper failed to expire", "{reservations}"},
		{&m.integrityAlarms, "stocksync_integrity_alarms_total", "Ledger or reservation integrity violations", "{alarms}"},
		{&m.driftAlerts, "stocksync_drift_alerts_total", "Marketplace stock drift detections", "{alerts}"},
		{&m.syncOutcomes, "stocksync_sync_task_outcomes_total", "Sync task dispatch outcomes", "{tasks}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	m.sweepDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "stocksync_sweep_duration_seconds",
		Description: "Expiry sweep duration",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	gauges := []struct {
		dst                     **Gauge
		name, description, unit string
	}{
		{&m.activeReserved, "stocksync_active_reserved_quantity", "Quantity held by active reservations", "{units}"},
		{&m.activeCount, "stocksync_active_reservations", "Number of active reservations", "{reservations}"},
		{&m.syncBacklog, "stocksync_sync_tasks", "Sync tasks by status", "{tasks}"},
	}
	for _, g := range gauges {
		gauge, err := NewGauge(cfg.Meter, g.name, g.description, g.unit)
		if err != nil {
			return nil, err
		}
		*g.dst = gauge
	}

	return m, nil
}

// RecordLedgerAppend counts one ledger entry and its absolute movement.
func (m *StockMetrics) RecordLedgerAppend(ctx context.Context, reason string, delta int64) {
	direction := "in"
	moved := delta
	if delta < 0 {
		direction = "out"
		moved = -delta
	}
	m.ledgerAppends.Inc(ctx, AttrReason.String(reason), AttrDirection.String(direction))
	m.ledgerUnits.Add(ctx, moved, AttrReason.String(reason), AttrDirection.String(direction))
}

// RecordReservation counts a reservation operation, e.g. "admitted" or "insufficient_stock".
func (m *StockMetrics) RecordReservation(ctx context.Context, outcome string) {
	m.reservations.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordSweep records one expiry sweep run.
func (m *StockMetrics) RecordSweep(ctx context.Context, expired, failed int, d time.Duration) {
	if expired > 0 {
		m.sweepExpired.Add(ctx, int64(expired))
	}
	if failed > 0 {
		m.sweepFailed.Add(ctx, int64(failed))
	}
	m.sweepDuration.RecordDuration(ctx, d)
}

// RecordIntegrityAlarm counts a ledger/counter mismatch.
func (m *StockMetrics) RecordIntegrityAlarm(ctx context.Context) {
	m.integrityAlarms.Inc(ctx)
}

// RecordDrift counts a drift detection against one marketplace.
func (m *StockMetrics) RecordDrift(ctx context.Context, platform string) {
	m.driftAlerts.Inc(ctx, AttrPlatform.String(platform))
}

// RecordSyncOutcome counts one dispatch attempt result.
func (m *StockMetrics) RecordSyncOutcome(ctx context.Context, platform, outcome string) {
	m.syncOutcomes.Inc(ctx, AttrPlatform.String(platform), AttrOutcome.String(outcome))
}

// StartPeriodicCollection starts refreshing the gauges every collect interval.
// It is non-blocking; Stop or ctx cancellation ends the loop.
func (m *StockMetrics) StartPeriodicCollection(ctx context.Context) {
	m.collectOnce.Do(func() {
		go m.runPeriodicCollection(ctx)
	})
}

func (m *StockMetrics) runPeriodicCollection(ctx context.Context) {
	ticker := time.NewTicker(m.collectInterval)
	defer ticker.Stop()

	m.CollectGauges(ctx)
	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CollectGauges(ctx)
		}
	}
}

// CollectGauges refreshes every gauge once from the provider.
func (m *StockMetrics) CollectGauges(ctx context.Context) {
	if m.gaugeProvider == nil {
		return
	}

	totals, err := m.gaugeProvider.ActiveReservationsByOwner(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect active reservation gauges", zap.Error(err))
	} else {
		for owner, t := range totals {
			m.activeReserved.Record(ctx, t.Quantity, AttrOwnerID.String(owner))
			m.activeCount.Record(ctx, t.Count, AttrOwnerID.String(owner))
		}
	}

	backlog, err := m.gaugeProvider.SyncTasksByStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect sync task gauges", zap.Error(err))
		return
	}
	for status, n := range backlog {
		m.syncBacklog.Record(ctx, n, AttrTaskStatus.String(status))
	}
}

// Stop stops periodic collection.
func (m *StockMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}
