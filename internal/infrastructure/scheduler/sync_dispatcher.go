package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appintegration "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskDispatcher claims and pushes sync tasks
type TaskDispatcher interface {
	FetchDue(ctx context.Context) ([]integration.SyncTask, error)
	Dispatch(ctx context.Context, task *integration.SyncTask) (appintegration.DispatchOutcome, error)
	ResetStale(ctx context.Context) (int64, error)
}

// SyncDispatcherConfig holds configuration for the dispatch worker pool
type SyncDispatcherConfig struct {
	// Workers is the number of concurrent pushes
	Workers int
	// PollInterval is how often due tasks are fetched
	PollInterval time.Duration
	// PushTimeout bounds a single push, including the adapter call
	PushTimeout time.Duration
	// QueueSize is the number of fetched tasks waiting for a worker
	QueueSize int
}

// DefaultSyncDispatcherConfig returns default configuration
func DefaultSyncDispatcherConfig() SyncDispatcherConfig {
	return SyncDispatcherConfig{
		Workers:      4,
		PollInterval: 5 * time.Second,
		PushTimeout:  time.Minute,
		QueueSize:    100,
	}
}

// Validate validates the configuration
func (c SyncDispatcherConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 || c.PushTimeout <= 0 {
		return fmt.Errorf("%w: poll interval and push timeout must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	}
	return nil
}

// DispatcherStats counts push outcomes since start
type DispatcherStats struct {
	Done    int64 `json:"done"`
	Retried int64 `json:"retried"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
	Errors  int64 `json:"errors"`
	Queued  int   `json:"queued"`
}

// SyncDispatcher polls for due sync tasks and pushes them with a worker pool.
// Stopping lets pushes already started run to completion; queued tasks stay
// pending in the database for the next start.
type SyncDispatcher struct {
	config     SyncDispatcherConfig
	dispatcher TaskDispatcher
	logger     *zap.Logger

	tasks chan *integration.SyncTask
	wake  chan struct{}

	queuedMu sync.Mutex
	queued   map[uuid.UUID]struct{}

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	done, retried, failed, skipped, errs atomic.Int64
}

// NewSyncDispatcher creates a new dispatcher
func NewSyncDispatcher(config SyncDispatcherConfig, dispatcher TaskDispatcher, logger *zap.Logger) (*SyncDispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncDispatcher{
		config:     config,
		dispatcher: dispatcher,
		logger:     logger.Named("sync_dispatcher"),
		tasks:      make(chan *integration.SyncTask, config.QueueSize),
		wake:       make(chan struct{}, 1),
		queued:     make(map[uuid.UUID]struct{}),
	}, nil
}

// Start starts the poll loop and the workers
func (s *SyncDispatcher) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	s.wg.Add(1)
	go s.pollLoop(ctx)

	s.logger.Info("Sync dispatcher started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("poll_interval", s.config.PollInterval),
	)
	return nil
}

// Stop stops polling and waits for in-flight pushes, or for ctx
func (s *SyncDispatcher) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync dispatcher stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync dispatcher stop timed out")
		return ctx.Err()
	}
}

// Wake asks the poll loop to fetch due tasks now instead of at the next tick
func (s *SyncDispatcher) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stats returns outcome counters
func (s *SyncDispatcher) Stats() DispatcherStats {
	s.queuedMu.Lock()
	queued := len(s.queued)
	s.queuedMu.Unlock()
	return DispatcherStats{
		Done:    s.done.Load(),
		Retried: s.retried.Load(),
		Failed:  s.failed.Load(),
		Skipped: s.skipped.Load(),
		Errors:  s.errs.Load(),
		Queued:  queued,
	}
}

func (s *SyncDispatcher) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		case <-s.wake:
			s.poll(ctx)
		}
	}
}

// poll resets stale claims and queues due tasks not already waiting for a worker
func (s *SyncDispatcher) poll(ctx context.Context) {
	if _, err := s.dispatcher.ResetStale(ctx); err != nil {
		s.logger.Error("Failed to reset stale sync tasks", zap.Error(err))
	}

	due, err := s.dispatcher.FetchDue(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch due sync tasks", zap.Error(err))
		return
	}

	added := 0
	for i := range due {
		task := &due[i]
		if !s.markQueued(task.ID) {
			continue
		}
		select {
		case s.tasks <- task:
			added++
		default:
			s.unmarkQueued(task.ID)
			s.logger.Debug("Dispatch queue full, remaining tasks wait for the next poll",
				zap.Int("due", len(due)),
				zap.Int("queued", added),
			)
			return
		case <-ctx.Done():
			s.unmarkQueued(task.ID)
			return
		}
	}
	if added > 0 {
		s.logger.Debug("Queued due sync tasks", zap.Int("count", added))
	}
}

func (s *SyncDispatcher) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.tasks:
			if ctx.Err() != nil {
				s.unmarkQueued(task.ID)
				return
			}
			s.push(ctx, task, workerID)
		}
	}
}

// push runs one dispatch detached from the stop signal so it is never cut short
func (s *SyncDispatcher) push(ctx context.Context, task *integration.SyncTask, workerID int) {
	defer s.unmarkQueued(task.ID)

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.PushTimeout)
	defer cancel()

	outcome, err := s.dispatcher.Dispatch(pushCtx, task)
	if err != nil {
		s.errs.Add(1)
		s.logger.Error("Sync task dispatch error",
			zap.Int("worker_id", workerID),
			zap.String("task_id", task.ID.String()),
			zap.String("platform", string(task.TargetPlatform)),
			zap.Error(err),
		)
		return
	}

	switch outcome {
	case appintegration.OutcomeDone:
		s.done.Add(1)
	case appintegration.OutcomeRetried:
		s.retried.Add(1)
	case appintegration.OutcomeFailed:
		s.failed.Add(1)
	default:
		s.skipped.Add(1)
	}
}

func (s *SyncDispatcher) markQueued(id uuid.UUID) bool {
	s.queuedMu.Lock()
	defer s.queuedMu.Unlock()
	if _, ok := s.queued[id]; ok {
		return false
	}
	s.queued[id] = struct{}{}
	return true
}

func (s *SyncDispatcher) unmarkQueued(id uuid.UUID) {
	s.queuedMu.Lock()
	defer s.queuedMu.Unlock()
	delete(s.queued, id)
}
