package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Severity ranks alerts for the consumers of the alert topic
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Alert is the message written to the alert topic
type Alert struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	Severity      Severity        `json:"severity"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload"`
}

// MessageWriter is the part of *kafka.Writer the alert handler needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer for the configured alert topic
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AlertTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  5,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}
}

// AlertEventTypes are the events forwarded to the alert topic
var AlertEventTypes = []string{
	integration.EventTypeStockDriftDetected,
	integration.EventTypeSyncTaskFailed,
	inventory.EventTypeLedgerIntegrityViolated,
}

// AlertHandler forwards drift, dispatch-failure and integrity events to Kafka
type AlertHandler struct {
	writer  MessageWriter
	source  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewAlertHandler creates an alert handler writing through writer
func NewAlertHandler(writer MessageWriter, source string, timeout time.Duration, logger *zap.Logger) *AlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AlertHandler{
		writer:  writer,
		source:  source,
		timeout: timeout,
		logger:  logger.Named("alerts"),
	}
}

// EventTypes returns the alerting event types
func (h *AlertHandler) EventTypes() []string {
	return AlertEventTypes
}

// Handle writes one message keyed by aggregate ID so alerts about the same
// product or stock unit stay ordered within a partition
func (h *AlertHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	alert, err := h.toAlert(evt)
	if err != nil {
		return err
	}
	value, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(alert.AggregateID.String()),
		Value: value,
		Time:  alert.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(alert.Type)},
			{Key: "severity", Value: []byte(alert.Severity)},
			{Key: "event-id", Value: []byte(alert.ID.String())},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("failed to publish %s alert: %w", alert.Type, err)
	}

	h.logger.Info("Alert published",
		zap.String("event_type", alert.Type),
		zap.String("severity", string(alert.Severity)),
		zap.String("aggregate_id", alert.AggregateID.String()),
	)
	return nil
}

// Close closes the underlying writer
func (h *AlertHandler) Close() error {
	return h.writer.Close()
}

func (h *AlertHandler) toAlert(evt shared.DomainEvent) (*Alert, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", evt.EventType(), err)
	}
	return &Alert{
		ID:            evt.EventID(),
		Type:          evt.EventType(),
		Severity:      SeverityOf(evt),
		OccurredAt:    evt.OccurredAt(),
		AggregateType: evt.AggregateType(),
		AggregateID:   evt.AggregateID(),
		OwnerID:       evt.OwnerID(),
		Source:        h.source,
		Payload:       payload,
	}, nil
}

// SeverityOf classifies an alerting event
func SeverityOf(evt shared.DomainEvent) Severity {
	switch evt.EventType() {
	case inventory.EventTypeLedgerIntegrityViolated:
		return SeverityCritical
	case integration.EventTypeSyncTaskFailed:
		return SeverityError
	default:
		return SeverityWarning
	}
}

// AlertKey identifies an alert by the condition it reports, so an unchanged
// drift found by every reconcile pass is published once per dedup window
func AlertKey(evt shared.DomainEvent) string {
	switch e := evt.(type) {
	case *integration.StockDriftDetectedEvent:
		return fmt.Sprintf("drift:%s:%s:%d:%d", e.CanonicalProductID, e.Platform, e.ReportedStock, e.LedgerStock)
	case *inventory.LedgerIntegrityViolatedEvent:
		return fmt.Sprintf("integrity:%s:%d:%d:%d", e.StockUnitID, e.StoredOnHand, e.LedgerOnHand, e.Reserved)
	default:
		return evt.EventType() + ":" + EventIDKey(evt)
	}
}

var _ shared.EventHandler = (*AlertHandler)(nil)
