package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/domain/outbox"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

type OutboxManagerImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewOutboxManager(outboxRepo outbox.Repository, logger *slog.Logger) *OutboxManagerImpl {
	return &OutboxManagerImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

var _ service.OutboxManager = (*OutboxManagerImpl)(nil)

// Record stores an outbound event in the same unit as the state change it describes
func (m *OutboxManagerImpl) Record(ctx context.Context, tx pgx.Tx, eventType outbox.EventType, aggregateID uuid.UUID, meta service.RequestMeta, payload any) error {
	logger := m.logger
	if meta.CorrelationID != "" {
		logger = m.logger.With("correlation_id", meta.CorrelationID)
	}

	event, err := outbox.NewEvent(eventType, aggregateID, meta.CorrelationID, meta.ActorID, payload)
	if err != nil {
		logger.Error("Failed to build outbox event", "event_type", string(eventType), "aggregate_id", aggregateID.String(), "error", err)
		return err
	}

	message, err := outbox.NewMessage(event)
	if err != nil {
		logger.Error("Failed to create new outbox message (marshal payload)", "event_id", event.EventID.String(), "error", err)
		return fmt.Errorf("failed to create outbox message payload for %s: %w", aggregateID, err)
	}

	if err := m.outboxRepo.WithTx(tx).Create(ctx, message); err != nil {
		logger.Error("Failed to create outbox message",
			"event_type", string(eventType),
			"aggregate_id", aggregateID.String(),
			"error", err)
		return fmt.Errorf("failed to create outbox message for %s: %w", aggregateID, err)
	}
	logger.Debug("Outbox message created",
		"event_type", string(eventType),
		"aggregate_id", aggregateID.String(),
		"outbox_id", message.ID)

	return nil
}
