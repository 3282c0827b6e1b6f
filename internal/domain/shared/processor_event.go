package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidProcessorEventType = errors.New("invalid processor event type")
	ErrMissingAuthorizationCode  = errors.New("authorization_code is required for settlement events")
	ErrMissingOriginalID         = errors.New("original_transaction_id is required for refund and reversal events")
)

// ProcessorEventType defines the webhook notifications accepted from the card processor
type ProcessorEventType string

const (
	ProcessorEventSettlement ProcessorEventType = "settlement"
	ProcessorEventRefund     ProcessorEventType = "refund"
	ProcessorEventReversal   ProcessorEventType = "reversal"
)

// ProcessorEvent defines a Kafka message carrying a verified processor webhook
type ProcessorEvent struct {
	EventID               uuid.UUID          `json:"event_id"`
	Type                  ProcessorEventType `json:"type"`
	IdempotencyKey        string             `json:"idempotency_key"`
	Scope                 string             `json:"scope"`
	ProcessorID           string             `json:"processor_id"`
	AuthorizationCode     string             `json:"authorization_code,omitempty"`
	SettlementAmountMinor int64              `json:"settlement_amount_minor,omitempty"`
	SettlementCurrency    string             `json:"settlement_currency,omitempty"`
	OriginalTransactionID *uuid.UUID         `json:"original_transaction_id,omitempty"`
	RefundAmountMinor     *int64             `json:"refund_amount_minor,omitempty"`
	CorrelationID         string             `json:"correlation_id"`
	ReceivedAt            time.Time          `json:"received_at"`
}

// Validate checks the fields required by the event type
func (e *ProcessorEvent) Validate() error {
	switch e.Type {
	case ProcessorEventSettlement:
		if e.AuthorizationCode == "" {
			return ErrMissingAuthorizationCode
		}
	case ProcessorEventRefund, ProcessorEventReversal:
		if e.OriginalTransactionID == nil || *e.OriginalTransactionID == uuid.Nil {
			return ErrMissingOriginalID
		}
	default:
		return ErrInvalidProcessorEventType
	}
	return nil
}

// PartitionKey keeps every event about one transaction on the same partition
func (e *ProcessorEvent) PartitionKey() string {
	if e.OriginalTransactionID != nil {
		return e.OriginalTransactionID.String()
	}
	return e.AuthorizationCode
}
