package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/api_gateway/middleware"
	"github.com/vcard-ledger/internal/domain/idempotency"
	processing "github.com/vcard-ledger/internal/transaction_processor/service"
)

// clientMeta builds the request metadata of a client mutation. The key comes from
// the body, or from the Idempotency-Key header when the body has none.
func clientMeta(c *gin.Context, bodyKey string) processing.RequestMeta {
	key := bodyKey
	if key == "" {
		key = c.GetHeader(IdempotencyKeyHeader)
	}
	actorID := middleware.GetActorID(c)
	return processing.RequestMeta{
		IdempotencyKey: key,
		Scope:          idempotency.ClientScope(c.Request.Method, c.Request.URL.Path, actorID),
		CorrelationID:  middleware.GetCorrelationID(c),
		ActorID:        actorID,
	}
}

// parseIDParam reads the :id path parameter and answers 400 when it is not a UUID
func parseIDParam(c *gin.Context, logger *slog.Logger, resource string) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		logger.Warn("Invalid "+resource+" ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid "+resource+" ID")
		return uuid.Nil, false
	}
	return id, true
}
