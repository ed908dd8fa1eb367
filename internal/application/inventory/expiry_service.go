package inventory

import (
	"context"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultSweepBatchSize bounds how many overdue reservations one query returns
const DefaultSweepBatchSize = 500

// ReservationExpirer expires a single overdue reservation under the unit exclusion
type ReservationExpirer interface {
	ExpireReservation(ctx context.Context, r *inventory.Reservation) (bool, error)
}

// ExpiryService releases reservations whose deadline has passed
type ExpiryService struct {
	reservationRepo inventory.ReservationRepository
	expirer         ReservationExpirer
	metrics         *telemetry.StockMetrics
	logger          *zap.Logger
	batchSize       int
	now             func() time.Time
}

// NewExpiryService creates a new ExpiryService
func NewExpiryService(
	reservationRepo inventory.ReservationRepository,
	expirer ReservationExpirer,
	logger *zap.Logger,
) *ExpiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryService{
		reservationRepo: reservationRepo,
		expirer:         expirer,
		logger:          logger,
		batchSize:       DefaultSweepBatchSize,
		now:             time.Now,
	}
}

// SetBatchSize overrides the per-query batch size
func (s *ExpiryService) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// SetStockMetrics sets the stock metrics collector
func (s *ExpiryService) SetStockMetrics(m *telemetry.StockMetrics) {
	s.metrics = m
}

// SweepStats contains statistics about one sweep
type SweepStats struct {
	TotalOverdue int           `json:"total_overdue"`
	Expired      int           `json:"expired"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
	ProcessedAt  time.Time     `json:"processed_at"`
	Duration     time.Duration `json:"duration"`
}

// SweepExpired finds active reservations past their deadline and expires each one.
// A reservation resolved between selection and action is counted as skipped; failures are
// logged and left for the next sweep.
func (s *ExpiryService) SweepExpired(ctx context.Context) (*SweepStats, error) {
	start := s.now()
	stats := &SweepStats{ProcessedAt: start}

	for {
		overdue, err := s.reservationRepo.FindExpiredActive(ctx, s.now(), s.batchSize)
		if err != nil {
			s.logger.Error("Failed to find overdue reservations", zap.Error(err))
			return nil, err
		}
		if len(overdue) == 0 {
			break
		}
		stats.TotalOverdue += len(overdue)

		progressed := false
		for i := range overdue {
			r := &overdue[i]
			expired, err := s.expirer.ExpireReservation(ctx, r)
			if err != nil {
				s.logger.Error("Failed to expire reservation",
					zap.String("reservation_id", r.ID.String()),
					zap.String("stock_unit_id", r.StockUnitID.String()),
					zap.String("order_reference", r.OrderReference),
					zap.Error(err),
				)
				stats.Failed++
				continue
			}
			if expired {
				stats.Expired++
				progressed = true
			} else {
				stats.Skipped++
			}
		}

		if len(overdue) < s.batchSize || !progressed {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}
	}

	stats.Duration = time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordSweep(ctx, stats.Expired, stats.Failed, stats.Duration)
	}

	if stats.TotalOverdue == 0 {
		s.logger.Debug("No overdue reservations found")
		return stats, nil
	}
	s.logger.Info("Completed reservation expiry sweep",
		zap.Int("total", stats.TotalOverdue),
		zap.Int("expired", stats.Expired),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// CountOverdue returns how many active reservations are past their deadline right now
func (s *ExpiryService) CountOverdue(ctx context.Context) (int, error) {
	overdue, err := s.reservationRepo.FindExpiredActive(ctx, s.now(), s.batchSize)
	if err != nil {
		return 0, err
	}
	return len(overdue), nil
}
