package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/api_gateway/service"
	"github.com/vcard-ledger/internal/domain/card"
)

// CardHandler handles HTTP requests for card lifecycle operations
type CardHandler struct {
	cardService service.CardService
	logger      *slog.Logger
}

// NewCardHandler creates a new card handler
func NewCardHandler(logger *slog.Logger, cardService service.CardService) *CardHandler {
	return &CardHandler{
		cardService: cardService,
		logger:      logger,
	}
}

// Create issues a new PENDING card
func (h *CardHandler) Create(c *gin.Context) {
	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	created, err := h.cardService.CreateCard(c.Request.Context(), service.CreateCardInput{
		UserID:   userID,
		Currency: normalizeCurrency(req.Currency),
		Limits: card.Limits{
			SingleTransaction: req.SingleTransactionLimit,
			Daily:             req.DailyLimit,
			Monthly:           req.MonthlyLimit,
		},
		MCCBlocklist: req.MCCBlocklist,
	}, clientMeta(c, ""))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapCardToResponse(created))
}

// GetByID retrieves a card by its ID, returning 404 if not found
func (h *CardHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "card")
	if !ok {
		return
	}

	found, err := h.cardService.GetCard(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondOK(c, mapCardToResponse(found))
}

// UpdateStatus moves the card along its lifecycle; illegal edges answer 422
func (h *CardHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "card")
	if !ok {
		return
	}

	var req UpdateCardStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	requested, err := card.ParseStatus(req.RequestedStatus)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	updated, err := h.cardService.TransitionStatus(c.Request.Context(), id, requested, clientMeta(c, ""))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondOK(c, mapCardToResponse(updated))
}

// UpdateLimits replaces the spending limits of a card that is not CLOSED
func (h *CardHandler) UpdateLimits(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "card")
	if !ok {
		return
	}

	var req UpdateCardLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	limits := card.Limits{
		SingleTransaction: req.SingleTransactionLimit,
		Daily:             req.DailyLimit,
		Monthly:           req.MonthlyLimit,
	}
	updated, err := h.cardService.UpdateLimits(c.Request.Context(), id, limits, req.MCCBlocklist, clientMeta(c, ""))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondOK(c, mapCardToResponse(updated))
}

// GetBalance returns the CARD_HOLDER ledger position of the card
func (h *CardHandler) GetBalance(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "card")
	if !ok {
		return
	}

	balance, err := h.cardService.GetBalance(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondOK(c, mapBalanceToResponse(balance))
}
