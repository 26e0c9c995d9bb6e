package middleware

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spectraquiz/api-gateway/internal/apierror"
)

// Recovery turns a handler panic into a taxonomy error response, so callers
// always see the same JSON error shape whether a check rejected them or a
// handler blew up. The panic is logged with the request id for correlation.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[%s] PANIC recovered: %v", c.GetString(ContextRequestID), r)
				apierror.Abort(c, apierror.New(apierror.CodeInternalError, "Internal server error"))
			}
		}()
		c.Next()
	}
}
