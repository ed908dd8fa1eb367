package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job is a unit of background work run on an interval
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

// Name returns the job name
func (j JobFunc) Name() string { return j.JobName }

// Run calls the function
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// TriggerConfig holds configuration for an IntervalTrigger
type TriggerConfig struct {
	// Interval between runs, measured from the start of one run to the next tick
	Interval time.Duration
	// Timeout bounds a single run; zero means Interval
	Timeout time.Duration
	// RunOnStart runs the job once immediately after Start
	RunOnStart bool
}

// Validate validates the configuration
func (c TriggerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// RunInfo describes the most recent run of a trigger's job
type RunInfo struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Skipped   bool          `json:"skipped,omitempty"`
}

// IntervalTrigger runs a job on a fixed interval. A tick that arrives while the
// previous run is still going is dropped, so runs never overlap.
type IntervalTrigger struct {
	config TriggerConfig
	job    Job
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	busy      atomic.Bool

	runs    atomic.Int64
	lastRun atomic.Pointer[RunInfo]
}

// NewIntervalTrigger creates a new trigger
func NewIntervalTrigger(config TriggerConfig, job Job, logger *zap.Logger) (*IntervalTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Timeout == 0 {
		config.Timeout = config.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		config: config,
		job:    job,
		logger: logger.With(zap.String("job", job.Name())),
	}, nil
}

// Name returns the job's name
func (t *IntervalTrigger) Name() string {
	return t.job.Name()
}

// Interval returns the configured interval
func (t *IntervalTrigger) Interval() time.Duration {
	return t.config.Interval
}

// Start starts the trigger loop
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Interval trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Duration("timeout", t.config.Timeout),
	)
	return nil
}

// Stop cancels the loop and waits for a running job, or for ctx
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Interval trigger stopped", zap.Int64("runs", t.runs.Load()))
		return nil
	case <-ctx.Done():
		t.logger.Warn("Interval trigger stop timed out")
		return ctx.Err()
	}
}

// RunNow runs the job synchronously unless a run is already in progress
func (t *IntervalTrigger) RunNow(ctx context.Context) error {
	if !t.busy.CompareAndSwap(false, true) {
		return ErrJobInProgress
	}
	defer t.busy.Store(false)
	return t.execute(ctx)
}

// LastRun returns the most recent run, or nil before the first one
func (t *IntervalTrigger) LastRun() *RunInfo {
	return t.lastRun.Load()
}

// Runs returns the number of completed runs
func (t *IntervalTrigger) Runs() int64 {
	return t.runs.Load()
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.tick(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *IntervalTrigger) tick(ctx context.Context) {
	if err := t.RunNow(ctx); errors.Is(err, ErrJobInProgress) {
		t.logger.Debug("Previous run still in progress, tick dropped")
	}
}

func (t *IntervalTrigger) execute(ctx context.Context) (err error) {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			t.logger.Error("Job panicked", zap.Any("panic", r), zap.Stack("stacktrace"))
		}

		info := &RunInfo{StartedAt: start, Duration: time.Since(start)}
		switch {
		case errors.Is(err, ErrLeaseHeld):
			info.Skipped = true
			err = nil
		case err != nil:
			info.Error = err.Error()
		}
		t.lastRun.Store(info)
		t.runs.Add(1)
	}()

	if err = t.job.Run(runCtx); err != nil && !errors.Is(err, ErrLeaseHeld) {
		t.logger.Error("Job failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
	}
	return err
}

// InstanceID identifies this process to lease holders and sweep state readers
func InstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}
