package scheduler

import (
	"context"
	"time"

	appinventory "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// ExpirySweepJobName is the job and lease name of the reservation sweeper
const ExpirySweepJobName = "reservation-expiry-sweep"

// Sweeper expires overdue reservations
type Sweeper interface {
	SweepExpired(ctx context.Context) (*appinventory.SweepStats, error)
}

// ExpirySweepJob runs one sweep and records its outcome in the state store
type ExpirySweepJob struct {
	sweeper  Sweeper
	state    cache.SweepStateStore
	instance string
	logger   *zap.Logger
}

// NewExpirySweepJob creates the sweep job
func NewExpirySweepJob(sweeper Sweeper, state cache.SweepStateStore, instance string, logger *zap.Logger) *ExpirySweepJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweepJob{
		sweeper:  sweeper,
		state:    state,
		instance: instance,
		logger:   logger,
	}
}

// Name returns the job name
func (j *ExpirySweepJob) Name() string {
	return ExpirySweepJobName
}

// Run sweeps once. The state is saved only after a completed sweep, so the
// stored timestamp never claims more than was done.
func (j *ExpirySweepJob) Run(ctx context.Context) error {
	stats, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		return err
	}

	state := cache.SweepState{
		LastRunAt: stats.ProcessedAt,
		Expired:   stats.Expired,
		Failed:    stats.Failed,
		Duration:  stats.Duration,
		Instance:  j.instance,
	}
	if err := j.state.SaveSweepState(ctx, state); err != nil {
		// the sweep itself succeeded; only the status endpoint goes stale
		j.logger.Warn("Failed to save sweep state", zap.Error(err))
	}
	return nil
}

// SweeperStatus is what the status endpoint reports
type SweeperStatus struct {
	Enabled    bool              `json:"enabled"`
	Interval   time.Duration     `json:"interval"`
	LastSweep  *cache.SweepState `json:"last_sweep,omitempty"`
	NextSweep  *time.Time        `json:"next_sweep,omitempty"`
	Overdue    bool              `json:"overdue"`
	LastError  string            `json:"last_error,omitempty"`
	InstanceID string            `json:"instance_id"`
}

// SweeperMonitor answers status queries about the sweeper
type SweeperMonitor struct {
	state    cache.SweepStateStore
	trigger  *IntervalTrigger
	enabled  bool
	interval time.Duration
	instance string
	now      func() time.Time
}

// NewSweeperMonitor creates a monitor. trigger may be nil when the sweeper is
// disabled on this instance; the shared state still reflects other instances.
func NewSweeperMonitor(state cache.SweepStateStore, trigger *IntervalTrigger, enabled bool, interval time.Duration, instance string) *SweeperMonitor {
	return &SweeperMonitor{
		state:    state,
		trigger:  trigger,
		enabled:  enabled,
		interval: interval,
		instance: instance,
		now:      time.Now,
	}
}

// Status loads the last sweep. A sweep is overdue when none has been recorded
// for two intervals while the sweeper is enabled.
func (m *SweeperMonitor) Status(ctx context.Context) (*SweeperStatus, error) {
	st := &SweeperStatus{
		Enabled:    m.enabled,
		Interval:   m.interval,
		InstanceID: m.instance,
	}

	last, found, err := m.state.LoadSweepState(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		st.LastSweep = &last
		next := last.LastRunAt.Add(m.interval)
		st.NextSweep = &next
		st.Overdue = m.enabled && m.now().Sub(last.LastRunAt) > 2*m.interval
	}

	if m.trigger != nil {
		if run := m.trigger.LastRun(); run != nil {
			st.LastError = run.Error
		}
	}
	return st, nil
}
