package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/api_gateway/service"
	processing "github.com/vcard-ledger/internal/transaction_processor/service"
)

// TransactionHandler handles authorizations, settlements, refunds and transaction reads
type TransactionHandler struct {
	processingService  processing.ProcessingService
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, processingService processing.ProcessingService, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		processingService:  processingService,
		transactionService: transactionService,
		logger:             logger,
	}
}

// Authorize answers an approve/decline decision. Declines are 200 responses with approved=false.
func (h *TransactionHandler) Authorize(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		RespondBadRequest(c, "Invalid card ID")
		return
	}
	code := normalizeCurrency(req.Currency)
	amount, err := req.minorAmount(code)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.processingService.ProcessAuthorization(c.Request.Context(), &processing.AuthorizationRequest{
		RequestMeta:          clientMeta(c, req.IdempotencyKey),
		CardID:               cardID,
		AmountMinor:          amount,
		Currency:             code,
		MerchantID:           req.MerchantID,
		MerchantName:         req.MerchantName,
		MerchantCategoryCode: req.MerchantCategoryCode,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondIdempotent(c, resp)
}

// Settle confirms an authorization for exactly its authorized amount
func (h *TransactionHandler) Settle(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.processingService.ProcessSettlement(c.Request.Context(), &processing.SettlementRequest{
		RequestMeta:           clientMeta(c, req.IdempotencyKey),
		AuthorizationCode:     req.AuthorizationCode,
		SettlementAmountMinor: req.SettlementAmountMinor,
		SettlementCurrency:    normalizeCurrency(req.SettlementCurrency),
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondIdempotent(c, resp)
}

// Refund returns all or part of an authorization; the remaining amount defaults to the full original
func (h *TransactionHandler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	originalID, err := uuid.Parse(req.OriginalTransactionID)
	if err != nil {
		RespondBadRequest(c, "Invalid original transaction ID")
		return
	}

	resp, err := h.processingService.ProcessRefund(c.Request.Context(), &processing.RefundRequest{
		RequestMeta:           clientMeta(c, req.IdempotencyKey),
		OriginalTransactionID: originalID,
		RefundAmountMinor:     req.RefundAmountMinor,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondIdempotent(c, resp)
}

// GetByID retrieves transaction details by its ID, returns 404 if not found
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "transaction")
	if !ok {
		return
	}

	txn, err := h.transactionService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// ListByCard retrieves paginated transaction history for a card
func (h *TransactionHandler) ListByCard(c *gin.Context) {
	cardID, ok := parseIDParam(c, h.logger, "card")
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	txns, total, err := h.transactionService.ListByCard(c.Request.Context(), cardID, pagination.Page, pagination.PerPage)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	transactions := make([]TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		transactions = append(transactions, mapTransactionToResponse(txn))
	}

	RespondWithPaginatedData(c, http.StatusOK, transactions, pagination.Page, pagination.PerPage, int(total))
}

// ListEntries returns the ledger postings of a transaction
func (h *TransactionHandler) ListEntries(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "transaction")
	if !ok {
		return
	}

	entries, err := h.transactionService.ListEntries(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	response := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, mapEntryToResponse(e))
	}
	RespondOK(c, response)
}
