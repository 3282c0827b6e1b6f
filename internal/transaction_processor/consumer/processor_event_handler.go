package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vcard-ledger/internal/domain/shared"
	"github.com/vcard-ledger/internal/platform/messaging/producers"
	"github.com/vcard-ledger/internal/platform/metrics"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

// ProcessorEventHandler handles verified processor webhooks delivered through Kafka
type ProcessorEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewProcessorEventHandler creates a new handler
func NewProcessorEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *ProcessorEventHandler {
	return &ProcessorEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes one Kafka message. Returning nil commits the offset; an
// error makes the consumer retry the same message.
func (h *ProcessorEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.ProcessorEvent
	if err := json.Unmarshal(value, &event); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal processor event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)
		metrics.ProcessorEventsConsumed.WithLabelValues("unknown", "dead_lettered").Inc()
		return h.deadLetter(ctx, h.logger, key, value, fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error()), err)
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}
	eventType := string(event.Type)

	logger.Info("Received processor event",
		"event_id", event.EventID.String(),
		"type", eventType,
		"idempotency_key", event.IdempotencyKey,
	)

	resp, err := service.DispatchProcessorEvent(ctx, h.processingService, &event)
	if err != nil {
		if service.IsPermanent(err) {
			logger.Warn("Processor event rejected permanently",
				"event_id", event.EventID.String(),
				"type", eventType,
				"error", err,
			)
			metrics.ProcessorEventsConsumed.WithLabelValues(eventType, "dead_lettered").Inc()
			return h.deadLetter(ctx, logger, key, value, err.Error(), err)
		}

		logger.Error("Failed to process processor event",
			"event_id", event.EventID.String(),
			"type", eventType,
			"error", err,
		)
		metrics.ProcessorEventsConsumed.WithLabelValues(eventType, "retry").Inc()
		return fmt.Errorf("processing %s event %s failed: %w", eventType, event.EventID, err)
	}

	result := "processed"
	if resp.Replayed {
		result = "replayed"
	}
	metrics.ProcessorEventsConsumed.WithLabelValues(eventType, result).Inc()
	logger.Info("Successfully processed processor event",
		"event_id", event.EventID.String(),
		"type", eventType,
		"status", resp.StatusCode,
		"replayed", resp.Replayed,
	)
	return nil
}

// deadLetter parks a message that can never succeed. Without a DLQ the message is
// dropped, since retrying it would block its partition forever.
func (h *ProcessorEventHandler) deadLetter(ctx context.Context, logger *slog.Logger, key, value []byte, reason string, cause error) error {
	if h.producer == nil {
		logger.Error("No DLQ configured, dropping unprocessable message", "message_key", string(key), "reason", reason)
		return nil
	}

	if err := h.producer.PublishToDLQ(ctx, string(key), value, reason); err != nil {
		if errors.Is(err, producers.ErrDLQDisabled) {
			logger.Error("No DLQ configured, dropping unprocessable message", "message_key", string(key), "reason", reason)
			return nil
		}
		logger.Error("Failed to publish message to DLQ",
			"dlq_error", err,
			"original_error", cause,
			"message_key", string(key),
		)
		return fmt.Errorf("dead-lettering message %s failed: %w", string(key), err)
	}

	logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", reason)
	return nil
}
