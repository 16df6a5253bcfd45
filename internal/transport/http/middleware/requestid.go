package middleware

import (
	"github.com/ErlanBelekov/points-rebuild/internal/runctx"
	"github.com/gin-gonic/gin"
)

// RequestID injects a request ID into the context and response header.
// The orchestrator sends its run ID as X-Request-ID, so a run's calls share
// one ID on both sides; requests without one get a fresh UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = runctx.NewID()
		}

		ctx := runctx.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
