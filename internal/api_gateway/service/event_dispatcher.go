package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/shared"
	"github.com/vcard-ledger/internal/platform/messaging/producers"
	processing "github.com/vcard-ledger/internal/transaction_processor/service"
)

// QueuedEvent is the body answered when a webhook was handed to Kafka
type QueuedEvent struct {
	EventID uuid.UUID `json:"event_id"`
	Status  string    `json:"status"`
}

// KafkaEventDispatcher publishes verified webhooks for the transaction processor.
// Deduplication happens when the processor consumes the event.
type KafkaEventDispatcher struct {
	producer producers.MessagePublisher
	logger   *slog.Logger
}

// NewKafkaEventDispatcher creates a dispatcher writing to the processor events topic
func NewKafkaEventDispatcher(logger *slog.Logger, producer producers.MessagePublisher) *KafkaEventDispatcher {
	return &KafkaEventDispatcher{producer: producer, logger: logger}
}

// Dispatch validates and enqueues the event, answering 202
func (d *KafkaEventDispatcher) Dispatch(ctx context.Context, event *shared.ProcessorEvent) (*idempotency.Response, error) {
	if err := event.Validate(); err != nil {
		return nil, processing.ErrInvalidRequest{Field: "type", Reason: err.Error()}
	}

	if err := d.producer.Publish(ctx, event.PartitionKey(), event); err != nil {
		d.logger.Error("Failed to publish processor event",
			"event_id", event.EventID.String(),
			"type", string(event.Type),
			"error", err,
		)
		return nil, fmt.Errorf("failed to enqueue processor event %s: %w", event.EventID, err)
	}

	d.logger.Info("Processor event published",
		"event_id", event.EventID.String(),
		"type", string(event.Type),
		"idempotency_key", event.IdempotencyKey,
	)

	body, err := json.Marshal(QueuedEvent{EventID: event.EventID, Status: "QUEUED"})
	if err != nil {
		return nil, err
	}
	return &idempotency.Response{StatusCode: http.StatusAccepted, Body: body}, nil
}

// InlineEventDispatcher runs verified webhooks through the processing service in the gateway
type InlineEventDispatcher struct {
	processingService processing.ProcessingService
}

// NewInlineEventDispatcher creates a dispatcher that processes events synchronously
func NewInlineEventDispatcher(processingService processing.ProcessingService) *InlineEventDispatcher {
	return &InlineEventDispatcher{processingService: processingService}
}

// Dispatch processes the event and answers with its idempotent response
func (d *InlineEventDispatcher) Dispatch(ctx context.Context, event *shared.ProcessorEvent) (*idempotency.Response, error) {
	return processing.DispatchProcessorEvent(ctx, d.processingService, event)
}
