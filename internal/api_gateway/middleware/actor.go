package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	// ActorIDHeader carries the caller identity set by the upstream auth layer
	ActorIDHeader = "X-Actor-ID"

	// ActorIDKey is the key used to store the actor ID in the context
	ActorIDKey = "actor_id"

	// AnonymousActor is used when the upstream layer sent no identity
	AnonymousActor = "anonymous"
)

// Actor stores the caller identity used in idempotency scopes and outbound events
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(ActorIDHeader)
		if actorID == "" {
			actorID = AnonymousActor
		}
		c.Set(ActorIDKey, actorID)
		c.Next()
	}
}

// GetActorID retrieves the actor ID from the gin context, falling back to AnonymousActor
func GetActorID(c *gin.Context) string {
	if id, exists := c.Get(ActorIDKey); exists {
		if actorID, ok := id.(string); ok && actorID != "" {
			return actorID
		}
	}
	return AnonymousActor
}
