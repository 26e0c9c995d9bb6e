package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spectraquiz/api-gateway/internal/middleware"
	"github.com/spectraquiz/api-gateway/internal/models"
	"github.com/spectraquiz/api-gateway/internal/ratelimit"
	"github.com/spectraquiz/api-gateway/internal/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageReportsDayWindowWithoutConsuming(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	lastUsed := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	apiKey := &models.APIKey{ID: uuid.New(), Tier: tier.Free, LastUsedAt: &lastUsed}

	// Simulate three requests already consumed today.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := store.CheckAndConsume(ctx, apiKey.ID.String(), ratelimit.GranularityDay, 100)
		require.NoError(t, err)
	}

	h := NewUsageHandler(store)
	router := gin.New()
	router.GET("/v1/usage",
		func(c *gin.Context) { c.Set(middleware.ContextAPIKey, apiKey) },
		h.Get,
	)

	get := func() map[string]any {
		req, _ := http.NewRequest(http.MethodGet, "/v1/usage", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		return body
	}

	body := get()
	day := body["day"].(map[string]any)
	assert.Equal(t, float64(3), day["used"])
	assert.Equal(t, float64(100), day["limit"])
	assert.Equal(t, float64(97), day["remaining"])
	assert.Equal(t, "free", body["tier"])
	assert.NotNil(t, body["last_used_at"])

	// Reading usage twice must not change the numbers.
	body = get()
	assert.Equal(t, float64(97), body["day"].(map[string]any)["remaining"])
}
