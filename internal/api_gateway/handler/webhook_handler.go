package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/api_gateway/middleware"
	"github.com/vcard-ledger/internal/api_gateway/service"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/shared"
)

// WebhookHandler turns signature-verified processor notifications into processor events
type WebhookHandler struct {
	dispatcher  service.EventDispatcher
	processorID string
	logger      *slog.Logger
}

// NewWebhookHandler creates a new webhook handler for one processor
func NewWebhookHandler(logger *slog.Logger, dispatcher service.EventDispatcher, processorID string) *WebhookHandler {
	return &WebhookHandler{
		dispatcher:  dispatcher,
		processorID: processorID,
		logger:      logger,
	}
}

// Settlement handles a settlement notification
func (h *WebhookHandler) Settlement(c *gin.Context) {
	var req SettlementWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid webhook body: "+err.Error())
		return
	}

	event := h.newEvent(c, shared.ProcessorEventSettlement, req.IdempotencyKey)
	event.AuthorizationCode = req.AuthorizationCode
	event.SettlementAmountMinor = req.SettlementAmountMinor
	event.SettlementCurrency = normalizeCurrency(req.SettlementCurrency)
	h.dispatch(c, event)
}

// Refund handles a partial or full refund notification
func (h *WebhookHandler) Refund(c *gin.Context) {
	h.refund(c, shared.ProcessorEventRefund)
}

// Reversal handles a processor-initiated reversal notification
func (h *WebhookHandler) Reversal(c *gin.Context) {
	h.refund(c, shared.ProcessorEventReversal)
}

func (h *WebhookHandler) refund(c *gin.Context, eventType shared.ProcessorEventType) {
	var req RefundWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid webhook body: "+err.Error())
		return
	}
	originalID, err := uuid.Parse(req.OriginalTransactionID)
	if err != nil {
		RespondBadRequest(c, "Invalid original transaction ID")
		return
	}

	event := h.newEvent(c, eventType, req.IdempotencyKey)
	event.OriginalTransactionID = &originalID
	event.RefundAmountMinor = req.RefundAmountMinor
	h.dispatch(c, event)
}

// newEvent scopes the webhook by its route and the processor, never by the resolved resource
func (h *WebhookHandler) newEvent(c *gin.Context, eventType shared.ProcessorEventType, key string) *shared.ProcessorEvent {
	return &shared.ProcessorEvent{
		EventID:        uuid.New(),
		Type:           eventType,
		IdempotencyKey: key,
		Scope:          idempotency.WebhookScope(c.Request.Method, c.FullPath(), h.processorID),
		ProcessorID:    h.processorID,
		CorrelationID:  middleware.GetCorrelationID(c),
		ReceivedAt:     time.Now().UTC(),
	}
}

func (h *WebhookHandler) dispatch(c *gin.Context, event *shared.ProcessorEvent) {
	resp, err := h.dispatcher.Dispatch(c.Request.Context(), event)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondIdempotent(c, resp)
}
