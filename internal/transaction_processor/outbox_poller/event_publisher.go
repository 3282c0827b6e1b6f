package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vcard-ledger/internal/domain/outbox"
	"github.com/vcard-ledger/internal/platform/messaging/producers"
	"github.com/vcard-ledger/internal/platform/metrics"
)

// EventPublisher relays one outbox message to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// AuditArchiver keeps a queryable copy of every published event
type AuditArchiver interface {
	Archive(ctx context.Context, event *outbox.Event) error
}

// EventPublisherImpl archives the event and then writes it to the domain events topic.
// Both steps tolerate repeats, so a message retried after a partial failure is safe.
type EventPublisherImpl struct {
	outboxRepo outbox.Repository
	archiver   AuditArchiver
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

// NewEventPublisher creates a new publisher. archiver may be nil when no audit store is configured.
func NewEventPublisher(
	outboxRepo outbox.Repository,
	archiver AuditArchiver,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) *EventPublisherImpl {
	return &EventPublisherImpl{
		outboxRepo: outboxRepo,
		archiver:   archiver,
		producer:   producer,
		logger:     logger,
	}
}

// Publish processes and publishes a message
func (p *EventPublisherImpl) Publish(ctx context.Context, message *outbox.Message) error {
	event, err := message.GetEvent()
	if err != nil {
		p.logger.Error("Failed to unmarshal event from outbox payload",
			"outbox_id", message.ID, "event_type", string(message.EventType), "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		metrics.OutboxPublished.WithLabelValues("undecodable").Inc()
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if event.CorrelationID != "" {
		logger = p.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Debug("Attempting to publish outbox message", "outbox_id", message.ID, "event_id", event.EventID.String())

	if p.archiver != nil {
		if err := p.archiver.Archive(ctx, event); err != nil {
			logger.Error("Failed to archive event", "event_id", event.EventID.String(), "error", err)
			return fmt.Errorf("failed to archive event %s: %w", event.EventID, err)
		}
	}

	headers := map[string]string{
		"event-id":   event.EventID.String(),
		"event-type": string(event.Type),
	}
	if event.CorrelationID != "" {
		headers["correlation-id"] = event.CorrelationID
	}
	if err := p.producer.PublishRaw(ctx, event.AggregateID.String(), message.Payload, headers); err != nil {
		logger.Error("Failed to publish event", "event_id", event.EventID.String(), "error", err)
		return fmt.Errorf("failed to publish event %s: %w", event.EventID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "event_id", event.EventID.String(), "error", err,
		)
		return fmt.Errorf("event %s published, but failed to mark outbox %d as PROCESSED: %w", event.EventID, message.ID, err)
	}

	metrics.OutboxPublished.WithLabelValues("published").Inc()
	logger.Info("Outbox message published",
		"outbox_id", message.ID,
		"event_id", event.EventID.String(),
		"event_type", string(event.Type),
		"aggregate_id", event.AggregateID.String())
	return nil
}
