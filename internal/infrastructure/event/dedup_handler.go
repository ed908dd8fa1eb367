package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"go.uber.org/zap"
)

// Deduper remembers keys for a while. cache.Store satisfies it.
type Deduper interface {
	// MarkProcessed reports true the first time key is seen within ttl
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// DedupStats is a snapshot of a DedupHandler's counters
type DedupStats struct {
	Handled    int64 `json:"handled"`
	Suppressed int64 `json:"suppressed"`
	Failed     int64 `json:"failed"`
}

// KeyFunc derives the dedup key of an event
type KeyFunc func(shared.DomainEvent) string

// EventIDKey dedups redeliveries of the very same event
func EventIDKey(evt shared.DomainEvent) string {
	return evt.EventID().String()
}

// DedupHandler wraps a handler so events sharing a key are handled once per window
type DedupHandler struct {
	handler shared.EventHandler
	store   Deduper
	keyFn   KeyFunc
	window  time.Duration
	logger  *zap.Logger

	handled    atomic.Int64
	suppressed atomic.Int64
	failed     atomic.Int64
}

// DedupOption configures a DedupHandler
type DedupOption func(*DedupHandler)

// WithKeyFunc replaces the default event-ID key
func WithKeyFunc(fn KeyFunc) DedupOption {
	return func(h *DedupHandler) {
		h.keyFn = fn
	}
}

// WithWindow sets how long a key suppresses repeats. Default one hour.
func WithWindow(window time.Duration) DedupOption {
	return func(h *DedupHandler) {
		if window > 0 {
			h.window = window
		}
	}
}

// NewDedupHandler wraps handler with dedup checking against store
func NewDedupHandler(handler shared.EventHandler, store Deduper, logger *zap.Logger, opts ...DedupOption) *DedupHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &DedupHandler{
		handler: handler,
		store:   store,
		keyFn:   EventIDKey,
		window:  time.Hour,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the wrapped handler's event types
func (h *DedupHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle forwards the event unless its key was seen within the window.
// A store failure lets the event through; a duplicate alert beats a lost one.
func (h *DedupHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	key := h.keyFn(evt)

	first, err := h.store.MarkProcessed(ctx, key, h.window)
	switch {
	case err != nil:
		h.logger.Warn("Dedup check failed, handling anyway",
			zap.String("dedup_key", key),
			zap.String("event_type", evt.EventType()),
			zap.Error(err),
		)
	case !first:
		h.suppressed.Add(1)
		h.logger.Debug("Duplicate event suppressed",
			zap.String("dedup_key", key),
			zap.String("event_type", evt.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, evt); err != nil {
		// the key is kept so a failing sink is not hammered; it retries after the window
		h.failed.Add(1)
		return err
	}
	h.handled.Add(1)
	return nil
}

// Stats returns the handler's counters
func (h *DedupHandler) Stats() DedupStats {
	return DedupStats{
		Handled:    h.handled.Load(),
		Suppressed: h.suppressed.Load(),
		Failed:     h.failed.Load(),
	}
}

// Unwrap returns the wrapped handler
func (h *DedupHandler) Unwrap() shared.EventHandler {
	return h.handler
}

var _ shared.EventHandler = (*DedupHandler)(nil)
