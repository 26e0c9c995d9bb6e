package middleware

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spectraquiz/api-gateway/internal/apierror"
	"github.com/spectraquiz/api-gateway/internal/models"
	"github.com/spectraquiz/api-gateway/internal/ratelimit"
)

// RateLimitWithTier throttles authenticated traffic per credential, checking
// the minute window first and the day window second, short-circuiting on the
// first one exceeded. Successful responses carry X-RateLimit-* headers for
// the minute window.
func RateLimitWithTier(store ratelimit.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKeyInterface, exists := c.Get(ContextAPIKey)
		if !exists || apiKeyInterface == nil {
			// Auth middleware did not run; nothing to throttle against.
			c.Next()
			return
		}

		apiKey := apiKeyInterface.(*models.APIKey)
		perMinute, perDay := apiKey.EffectiveLimits()
		entity := apiKey.ID.String()

		ctx := c.Request.Context()

		minuteRes, err := store.CheckAndConsume(ctx, entity, ratelimit.GranularityMinute, perMinute)
		if err != nil {
			log.Printf("Rate limit check failed for key %s: %v", entity, err)
			apierror.Abort(c, apierror.New(apierror.CodeInternalError, "Rate limit check failed"))
			return
		}

		setRateLimitHeaders(c, minuteRes)

		if !minuteRes.Allowed {
			abortRateLimited(c, "minute", minuteRes)
			return
		}

		dayRes, err := store.CheckAndConsume(ctx, entity, ratelimit.GranularityDay, perDay)
		if err != nil {
			log.Printf("Rate limit check failed for key %s: %v", entity, err)
			apierror.Abort(c, apierror.New(apierror.CodeInternalError, "Rate limit check failed"))
			return
		}

		if !dayRes.Allowed {
			abortRateLimited(c, "day", dayRes)
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, res ratelimit.Result) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", res.Limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", res.ResetAt.Unix()))
}

func abortRateLimited(c *gin.Context, window string, res ratelimit.Result) {
	retryAfter := int(res.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	apierror.Abort(c, apierror.New(apierror.CodeRateLimitExceeded,
		fmt.Sprintf("Rate limit exceeded: %d requests per %s", res.Limit, window)).
		WithDetails(map[string]any{
			"window": window,
			"limit":  res.Limit,
			"reset":  res.ResetAt.Unix(),
		}).
		WithRetryAfter(retryAfter))
}
