package middleware

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spectraquiz/api-gateway/internal/ratelimit"
)

// DefaultIPLimit is the pre-auth per-IP budget per minute. It mainly slows
// down brute-force key guessing, so it is deliberately tight.
const DefaultIPLimit = 10

// IPRateLimit throttles by client IP before any authentication happens.
// When the store errors the request is let through: the per-key limiter
// behind it still applies, and a degraded counter store should not take the
// API down.
func IPRateLimit(store ratelimit.Store, limit int) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultIPLimit
	}

	return func(c *gin.Context) {
		entity := "ip:" + c.ClientIP()

		res, err := store.CheckAndConsume(c.Request.Context(), entity, ratelimit.GranularityMinute, limit)
		if err != nil {
			log.Printf("IP rate limit check failed for %s: %v", c.ClientIP(), err)
			c.Next()
			return
		}

		if !res.Allowed {
			abortRateLimited(c, "minute", res)
			return
		}

		c.Next()
	}
}
