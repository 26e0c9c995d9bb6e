package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextRequestID is the gin context key for the request correlation id.
// Recovery and Logger read it when writing their log lines.
const ContextRequestID = "request_id"

// RequestID assigns a correlation id to every request, honoring an incoming
// X-Request-ID so callers can carry their own id through the gateway.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(ContextRequestID, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}
