package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spectraquiz/api-gateway/internal/middleware"
	"github.com/spectraquiz/api-gateway/internal/models"
	"github.com/spectraquiz/api-gateway/internal/ratelimit"
)

type UsageHandler struct {
	store ratelimit.Store
}

func NewUsageHandler(store ratelimit.Store) *UsageHandler {
	return &UsageHandler{store: store}
}

// Get reports the calling key's consumption of its current day window plus
// its minute snapshot. Read-only: looking at your usage never consumes it.
func (h *UsageHandler) Get(c *gin.Context) {
	apiKeyInterface, exists := c.Get(middleware.ContextAPIKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
		return
	}
	apiKey := apiKeyInterface.(*models.APIKey)

	perMinute, perDay := apiKey.EffectiveLimits()
	entity := apiKey.ID.String()
	ctx := c.Request.Context()

	day, err := h.store.Peek(ctx, entity, ratelimit.GranularityDay, perDay)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read usage"})
		return
	}

	minute, err := h.store.Peek(ctx, entity, ratelimit.GranularityMinute, perMinute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read usage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier": apiKey.Tier,
		"day": gin.H{
			"used":      day.Limit - day.Remaining,
			"limit":     day.Limit,
			"remaining": day.Remaining,
			"reset":     day.ResetAt.Unix(),
		},
		"minute": gin.H{
			"used":      minute.Limit - minute.Remaining,
			"limit":     minute.Limit,
			"remaining": minute.Remaining,
			"reset":     minute.ResetAt.Unix(),
		},
		"last_used_at": apiKey.LastUsedAt,
	})
}
