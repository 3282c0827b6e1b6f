package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/vcard-ledger/internal/api_gateway/middleware"
	"github.com/vcard-ledger/internal/currency"
	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/transaction"
	"github.com/vcard-ledger/internal/platform/persistence"
	processing "github.com/vcard-ledger/internal/transaction_processor/service"
)

// RespondError maps a service error to its HTTP answer. Unexpected errors are logged
// and answered with a generic message and the correlation id only.
func RespondError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		invalid     processing.ErrInvalidRequest
		unsupported currency.ErrUnsupportedCurrency
		transition  card.ErrInvalidStateTransition
		duplicate   transaction.ErrDuplicateIdempotencyKey
		conflict    transaction.ErrStatusConflict
		illegal     transaction.ErrIllegalState
	)

	switch {
	case errors.Is(err, idempotency.ErrMissingKey):
		RespondBadRequest(c, "An idempotency key is required")
	case errors.As(err, &invalid):
		RespondBadRequest(c, invalid.Error())
	case errors.As(err, &unsupported):
		RespondBadRequest(c, unsupported.Error())
	case errors.Is(err, card.ErrInvalidLimit),
		errors.Is(err, card.ErrInvalidMCC),
		errors.Is(err, card.ErrMissingUserID),
		errors.Is(err, transaction.ErrInvalidAmount):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, card.ErrCardNotFound{}):
		RespondNotFound(c, "Card not found")
	case errors.Is(err, transaction.ErrTransactionNotFound{}):
		RespondNotFound(c, "Transaction not found")
	case errors.As(err, &transition):
		RespondUnprocessable(c, "INVALID_STATE_TRANSITION", transition.Error())
	case errors.As(err, &illegal):
		RespondUnprocessable(c, "ILLEGAL_STATE", illegal.Error())
	case errors.Is(err, card.ErrCardClosed):
		RespondUnprocessable(c, "CARD_CLOSED", err.Error())
	case errors.Is(err, processing.ErrUnsupportedSettlementEvent{}):
		RespondUnprocessable(c, "unsupported_event", err.Error())
	case errors.Is(err, processing.ErrNotRefundable{}):
		RespondUnprocessable(c, "NOT_REFUNDABLE", err.Error())
	case errors.Is(err, processing.ErrRefundExceedsOriginal{}):
		RespondUnprocessable(c, "REFUND_EXCEEDS_ORIGINAL", err.Error())
	case errors.Is(err, idempotency.ErrPayloadMismatch):
		RespondConflict(c, "IDEMPOTENCY_PAYLOAD_MISMATCH", "Idempotency key was already used with a different payload")
	case errors.As(err, &duplicate):
		RespondConflict(c, "DUPLICATE_IDEMPOTENCY_KEY", "Idempotency key was already used for another request")
	case errors.As(err, &conflict):
		RespondConflict(c, "CONFLICT", conflict.Error())
	case errors.Is(err, persistence.ErrSerializationConflict):
		logger.Warn("Serializable unit exhausted its retries",
			"path", c.Request.URL.Path,
			"correlation_id", middleware.GetCorrelationID(c))
		RespondServiceUnavailable(c, "Concurrent update, please retry")
	default:
		if errors.Is(err, ledger.ErrLedgerInvariantViolation{}) {
			logger.Error("Ledger invariant violation surfaced to API",
				"alert", true,
				"path", c.Request.URL.Path,
				"correlation_id", middleware.GetCorrelationID(c),
				"error", err)
		} else {
			logger.Error("Request failed",
				"path", c.Request.URL.Path,
				"correlation_id", middleware.GetCorrelationID(c),
				"error", err)
		}
		RespondInternalError(c)
	}
}
