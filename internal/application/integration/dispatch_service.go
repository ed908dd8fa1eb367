package integration

import (
	"context"
	"errors"
	"sync"
	"time"

	appinv "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DispatchConfig controls retries and pacing of outbound pushes
type DispatchConfig struct {
	// MaxAttempts is the number of pushes tried before a task is marked failed
	MaxAttempts int
	// BaseBackoff is the delay after the first failed attempt; it doubles per attempt
	BaseBackoff time.Duration
	// MaxBackoff caps the retry delay
	MaxBackoff time.Duration
	// BatchSize is the number of due tasks fetched per poll
	BatchSize int
	// RatePerSecond limits pushes per platform; zero disables limiting
	RatePerSecond float64
	// Burst is the per-platform limiter burst
	Burst int
	// StaleAfter is how long a task may stay in flight before it is put back to pending
	StaleAfter time.Duration
}

// DefaultDispatchConfig returns the default dispatch configuration
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		MaxAttempts:   5,
		BaseBackoff:   30 * time.Second,
		MaxBackoff:    30 * time.Minute,
		BatchSize:     100,
		RatePerSecond: 5,
		Burst:         5,
		StaleAfter:    10 * time.Minute,
	}
}

// DispatchService pushes canonical state to marketplaces, one sync task at a time
type DispatchService struct {
	taskRepo       integration.SyncTaskRepository
	productRepo    integration.CanonicalProductRepository
	stockUnitRepo  inventory.StockUnitRepository
	txScope        appinv.TransactionScope
	registry       integration.AdapterRegistry
	eventPublisher shared.EventPublisher
	metrics        *telemetry.StockMetrics
	logger         *zap.Logger
	config         DispatchConfig
	now            func() time.Time

	mu       sync.Mutex
	limiters map[integration.PlatformCode]*rate.Limiter
}

// NewDispatchService creates a new DispatchService
func NewDispatchService(
	taskRepo integration.SyncTaskRepository,
	productRepo integration.CanonicalProductRepository,
	stockUnitRepo inventory.StockUnitRepository,
	txScope appinv.TransactionScope,
	registry integration.AdapterRegistry,
	config DispatchConfig,
	logger *zap.Logger,
) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultDispatchConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = defaults.BaseBackoff
	}
	if config.MaxBackoff < config.BaseBackoff {
		config.MaxBackoff = config.BaseBackoff
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaults.StaleAfter
	}
	return &DispatchService{
		taskRepo:      taskRepo,
		productRepo:   productRepo,
		stockUnitRepo: stockUnitRepo,
		txScope:       txScope,
		registry:      registry,
		logger:        logger,
		config:        config,
		now:           time.Now,
		limiters:      make(map[integration.PlatformCode]*rate.Limiter),
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *DispatchService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetStockMetrics sets the stock metrics collector
func (s *DispatchService) SetStockMetrics(m *telemetry.StockMetrics) {
	s.metrics = m
}

// Config returns the effective dispatch configuration
func (s *DispatchService) Config() DispatchConfig {
	return s.config
}

// Backoff returns the delay before the next attempt after attempt failed pushes:
// BaseBackoff * 2^(attempt-1), capped at MaxBackoff
func (s *DispatchService) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.config.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.config.MaxBackoff {
			return s.config.MaxBackoff
		}
	}
	if delay > s.config.MaxBackoff {
		delay = s.config.MaxBackoff
	}
	return delay
}

// FetchDue returns pending tasks whose next attempt is due
func (s *DispatchService) FetchDue(ctx context.Context) ([]integration.SyncTask, error) {
	return s.taskRepo.FindDue(ctx, s.now(), s.config.BatchSize)
}

// DispatchDue pushes every due task once, in order
func (s *DispatchService) DispatchDue(ctx context.Context) (*DispatchStats, error) {
	start := time.Now()
	tasks, err := s.FetchDue(ctx)
	if err != nil {
		return nil, err
	}
	stats := &DispatchStats{Due: len(tasks)}
	for i := range tasks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		outcome, err := s.Dispatch(ctx, &tasks[i])
		if err != nil {
			s.logger.Error("Failed to dispatch sync task",
				zap.String("task_id", tasks[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		stats.add(outcome)
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

func (st *DispatchStats) add(outcome DispatchOutcome) {
	switch outcome {
	case OutcomeDone:
		st.Done++
	case OutcomeRetried:
		st.Retried++
	case OutcomeFailed:
		st.Failed++
	case OutcomeSkipped, OutcomeLost:
		st.Skipped++
	}
}

// Dispatch claims a due task and pushes it. The task is claimed with a compare-and-set on its
// status, so two dispatchers never push the same task. Stock is re-read from the ledger at push
// time so the marketplace always receives the latest on-hand quantity.
// The returned error is set only for infrastructure failures around the push.
func (s *DispatchService) Dispatch(ctx context.Context, task *integration.SyncTask) (DispatchOutcome, error) {
	now := s.now()
	if !task.IsDue(now) {
		return OutcomeLost, nil
	}
	if err := task.StartAttempt(now); err != nil {
		return OutcomeLost, nil
	}
	claimed, err := s.taskRepo.Claim(ctx, task)
	if err != nil {
		return "", err
	}
	if !claimed {
		return OutcomeLost, nil
	}

	product, err := s.productRepo.FindByID(ctx, task.CanonicalProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return s.fail(ctx, task, nil, "canonical product no longer exists")
		}
		return s.retry(ctx, task, err)
	}
	src, ok := product.SourceForPlatform(task.TargetPlatform)
	if !ok || !src.AcceptsPushes() {
		return s.skip(ctx, task, "no live listing accepts pushes on this platform")
	}

	var stock int64
	if task.Fields.Has(integration.FieldStock) {
		unit, err := s.stockUnitRepo.FindByID(ctx, product.StockUnitID)
		if err != nil {
			return s.retry(ctx, task, err)
		}
		stock = unit.OnHand
		task.WithTargetStock(stock)
	}

	adapter, err := s.registry.Get(task.TargetPlatform)
	if err != nil {
		return s.retry(ctx, task, err)
	}
	if err := s.limiter(task.TargetPlatform).Wait(ctx); err != nil {
		// ctx is done; ResetStale returns the task to pending
		return "", err
	}

	pushStart := time.Now()
	pushErr := adapter.Push(ctx, integration.PushRequest{
		Product: product,
		Source:  src,
		Fields:  task.Fields,
		Stock:   stock,
	})
	if pushErr != nil {
		s.logger.Warn("Platform push failed",
			zap.String("task_id", task.ID.String()),
			zap.String("platform", task.TargetPlatform.String()),
			zap.Int("attempt", task.AttemptCount),
			zap.Error(pushErr),
		)
		if task.AttemptCount >= s.config.MaxAttempts {
			return s.fail(ctx, task, src, pushErr.Error())
		}
		return s.retry(ctx, task, pushErr)
	}

	done := s.now()
	if err := task.MarkDone(done); err != nil {
		return "", err
	}
	src.RecordPushSuccess(task.Fields, product, stock, done)
	var stored bool
	err = s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		if err := repos.ProductRepo().SaveSourceRecord(ctx, src); err != nil {
			return err
		}
		var err error
		stored, err = repos.SyncTaskRepo().SaveIfStatus(ctx, task, integration.SyncTaskInFlight)
		return err
	})
	if err != nil {
		return "", err
	}
	if !stored {
		// ResetStale took the task back while the push was running; it will be pushed again
		s.logger.Warn("Sync task left flight during push",
			zap.String("task_id", task.ID.String()),
			zap.String("platform", task.TargetPlatform.String()),
		)
	}
	s.recordOutcome(ctx, task.TargetPlatform, OutcomeDone)
	s.logger.Info("Platform push succeeded",
		zap.String("task_id", task.ID.String()),
		zap.String("canonical_product_id", product.ID.String()),
		zap.String("platform", task.TargetPlatform.String()),
		zap.Strings("fields", task.Fields.Strings()),
		zap.Int64("stock", stock),
		zap.Int("attempt", task.AttemptCount),
		zap.Duration("duration", time.Since(pushStart)),
	)
	return OutcomeDone, nil
}

func (s *DispatchService) retry(ctx context.Context, task *integration.SyncTask, cause error) (DispatchOutcome, error) {
	if task.AttemptCount >= s.config.MaxAttempts {
		return s.fail(ctx, task, nil, cause.Error())
	}
	now := s.now()
	delay := s.Backoff(task.AttemptCount)
	if err := task.ScheduleRetry(cause.Error(), now.Add(delay), now); err != nil {
		return "", err
	}
	stored, err := s.taskRepo.SaveIfStatus(ctx, task, integration.SyncTaskInFlight)
	if err != nil {
		return "", err
	}
	if !stored {
		return OutcomeLost, nil
	}
	s.recordOutcome(ctx, task.TargetPlatform, OutcomeRetried)
	s.logger.Info("Sync task scheduled for retry",
		zap.String("task_id", task.ID.String()),
		zap.String("platform", task.TargetPlatform.String()),
		zap.Int("attempt", task.AttemptCount),
		zap.Duration("delay", delay),
		zap.Time("next_attempt_at", task.NextAttemptAt),
	)
	return OutcomeRetried, nil
}

func (s *DispatchService) fail(ctx context.Context, task *integration.SyncTask, src *integration.SourceRecord, reason string) (DispatchOutcome, error) {
	now := s.now()
	if err := task.MarkFailed(reason, now); err != nil {
		return "", err
	}
	var stored bool
	err := s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		var err error
		stored, err = repos.SyncTaskRepo().SaveIfStatus(ctx, task, integration.SyncTaskInFlight)
		if err != nil || !stored {
			return err
		}
		if src != nil {
			src.RecordPushFailure(reason, now)
			return repos.ProductRepo().SaveSourceRecord(ctx, src)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if !stored {
		return OutcomeLost, nil
	}
	s.recordOutcome(ctx, task.TargetPlatform, OutcomeFailed)
	s.logger.Error("Sync task failed",
		zap.String("task_id", task.ID.String()),
		zap.String("canonical_product_id", task.CanonicalProductID.String()),
		zap.String("platform", task.TargetPlatform.String()),
		zap.Int("attempts", task.AttemptCount),
		zap.String("error", reason),
	)
	if s.eventPublisher != nil {
		// Publish events (errors are logged by the event bus, not propagated)
		_ = s.eventPublisher.Publish(ctx, integration.NewSyncTaskFailedEvent(task))
	}
	return OutcomeFailed, nil
}

func (s *DispatchService) skip(ctx context.Context, task *integration.SyncTask, reason string) (DispatchOutcome, error) {
	if err := task.MarkDone(s.now()); err != nil {
		return "", err
	}
	task.LastError = reason
	stored, err := s.taskRepo.SaveIfStatus(ctx, task, integration.SyncTaskInFlight)
	if err != nil {
		return "", err
	}
	if !stored {
		return OutcomeLost, nil
	}
	s.recordOutcome(ctx, task.TargetPlatform, OutcomeSkipped)
	s.logger.Info("Sync task skipped",
		zap.String("task_id", task.ID.String()),
		zap.String("platform", task.TargetPlatform.String()),
		zap.String("reason", reason),
	)
	return OutcomeSkipped, nil
}

func (s *DispatchService) recordOutcome(ctx context.Context, platform integration.PlatformCode, outcome DispatchOutcome) {
	if s.metrics != nil {
		s.metrics.RecordSyncOutcome(ctx, platform.String(), string(outcome))
	}
}

// limiter returns the push limiter of a platform
func (s *DispatchService) limiter(code integration.PlatformCode) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[code]
	if !ok {
		limit := rate.Inf
		if s.config.RatePerSecond > 0 {
			limit = rate.Limit(s.config.RatePerSecond)
		}
		l = rate.NewLimiter(limit, s.config.Burst)
		s.limiters[code] = l
	}
	return l
}

// ResetStale puts tasks stuck in flight (for example after a crash mid-push) back to pending
func (s *DispatchService) ResetStale(ctx context.Context) (int64, error) {
	n, err := s.taskRepo.ResetStale(ctx, s.now().Add(-s.config.StaleAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("Stale in-flight sync tasks reset", zap.Int64("count", n))
	}
	return n, nil
}

// GetSyncTask returns a sync task by id
func (s *DispatchService) GetSyncTask(ctx context.Context, id uuid.UUID) (*SyncTaskResponse, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToSyncTaskResponse(task)
	return &response, nil
}

// ListSyncTasks lists sync tasks, newest first
func (s *DispatchService) ListSyncTasks(ctx context.Context, filter SyncTaskListFilter) ([]SyncTaskResponse, error) {
	f := integration.SyncTaskFilter{CanonicalProductID: filter.CanonicalProductID}
	if filter.Status != "" {
		status := integration.SyncTaskStatus(filter.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown sync task status: "+filter.Status)
		}
		f.Status = status
	}
	if filter.Platform != "" {
		code, err := integration.ParsePlatformCode(filter.Platform)
		if err != nil {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, err.Error())
		}
		f.Platform = code
	}
	f.Limit, f.Offset = pageOffset(filter.Page, filter.PageSize, 50, 500)
	tasks, err := s.taskRepo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	return ToSyncTaskResponses(tasks), nil
}

// RetrySyncTask re-queues a failed task with a fresh attempt budget. If a newer task for the
// same product and platform is already pending, the retried fields fold into it.
func (s *DispatchService) RetrySyncTask(ctx context.Context, id uuid.UUID, actor string) (*SyncTaskResponse, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := task.Retry(s.now()); err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, err.Error())
	}

	var queued *integration.SyncTask
	err = s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		pending, err := repos.SyncTaskRepo().FindPending(ctx, task.CanonicalProductID, task.TargetPlatform)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if pending != nil {
			if err := pending.Supersede(task); err != nil {
				return err
			}
			coalesced, err := repos.SyncTaskRepo().SaveIfStatus(ctx, pending, integration.SyncTaskPending)
			if err != nil {
				return err
			}
			if coalesced {
				queued = pending
				return nil
			}
		}
		requeued, err := repos.SyncTaskRepo().SaveIfStatus(ctx, task, integration.SyncTaskFailed)
		if err != nil {
			return err
		}
		if !requeued {
			return shared.NewDomainError(shared.CodeInvalidState, "Sync task was retried concurrently")
		}
		queued = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Sync task retried",
		zap.String("task_id", task.ID.String()),
		zap.String("queued_task_id", queued.ID.String()),
		zap.String("actor", actor),
	)
	response := ToSyncTaskResponse(queued)
	return &response, nil
}
