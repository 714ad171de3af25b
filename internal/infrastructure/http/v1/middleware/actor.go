package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "timberlot/internal/core/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
)

// defaultActor attributes records created outside an identified session
// (cron jobs, scripts, curl).
const defaultActor = "system"

// Actor middleware resolves the acting identity and puts it on the request
// context so attribution fields (created_by, set_by) can be filled in the
// domain layer. Identity comes from trusted proxy headers; an upstream
// gateway is expected to strip them from untrusted clients.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(HeaderActorID)
		actorName := c.GetHeader(HeaderActorName)

		if actorName == "" {
			actorName = defaultActor
		}
		if actorID == "" {
			actorID = actorName
		}

		ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{
			ID:   actorID,
			Name: actorName,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Set("actor_id", actorID)

		c.Next()
	}
}
