package service

import (
	"context"

	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/shared"
)

// RequestMetaFromEvent carries the webhook's idempotency key and scope through the queue
func RequestMetaFromEvent(event *shared.ProcessorEvent) RequestMeta {
	return RequestMeta{
		IdempotencyKey: event.IdempotencyKey,
		Scope:          event.Scope,
		CorrelationID:  event.CorrelationID,
		ActorID:        event.ProcessorID,
	}
}

// DispatchProcessorEvent runs a verified processor event through the matching operation
func DispatchProcessorEvent(ctx context.Context, svc ProcessingService, event *shared.ProcessorEvent) (*idempotency.Response, error) {
	if err := event.Validate(); err != nil {
		return nil, ErrInvalidRequest{Field: "type", Reason: err.Error()}
	}
	meta := RequestMetaFromEvent(event)

	switch event.Type {
	case shared.ProcessorEventSettlement:
		return svc.ProcessSettlement(ctx, &SettlementRequest{
			RequestMeta:           meta,
			AuthorizationCode:     event.AuthorizationCode,
			SettlementAmountMinor: event.SettlementAmountMinor,
			SettlementCurrency:    event.SettlementCurrency,
		})
	default:
		return svc.ProcessRefund(ctx, &RefundRequest{
			RequestMeta:           meta,
			OriginalTransactionID: *event.OriginalTransactionID,
			RefundAmountMinor:     event.RefundAmountMinor,
			Reversal:              event.Type == shared.ProcessorEventReversal,
		})
	}
}
