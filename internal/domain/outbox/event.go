package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names an outbound domain event
type EventType string

const (
	EventCardActivated         EventType = "card.activated"
	EventCardFrozen            EventType = "card.frozen"
	EventCardUnfrozen          EventType = "card.unfrozen"
	EventCardClosed            EventType = "card.closed"
	EventCardCreated           EventType = "card.created"
	EventCardLimitsUpdated     EventType = "card.limits_updated"
	EventTransactionAuthorized EventType = "transaction.authorized"
	EventTransactionDeclined   EventType = "transaction.declined"
	EventTransactionSettled    EventType = "transaction.settled"
	EventTransactionRefunded   EventType = "transaction.refunded"
	EventTransactionReversed   EventType = "transaction.reversed"
)

// Event is the envelope published to downstream notification and audit consumers
type Event struct {
	EventID       uuid.UUID       `json:"event_id"`
	Type          EventType       `json:"type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	ActorID       string          `json:"actor_id"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEvent encodes payload into a new event envelope
func NewEvent(eventType EventType, aggregateID uuid.UUID, correlationID, actorID string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return &Event{
		EventID:       uuid.New(),
		Type:          eventType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: correlationID,
		ActorID:       actorID,
		Payload:       raw,
	}, nil
}
