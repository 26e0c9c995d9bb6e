package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spectraquiz/api-gateway/internal/models"
	"github.com/spectraquiz/api-gateway/internal/ratelimit"
	"github.com/spectraquiz/api-gateway/internal/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedRouter(t *testing.T, apiKey *models.APIKey) (*gin.Engine, *ratelimit.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	router := gin.New()
	router.GET("/limited",
		func(c *gin.Context) {
			// Stand-in for APIKeyAuth.
			c.Set(ContextAPIKey, apiKey)
			c.Set(ContextAPIKeyID, apiKey.ID)
		},
		RateLimitWithTier(store),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	return router, store
}

func hit(router *gin.Engine) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/limited", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestTierDefaultLimitEnforced(t *testing.T) {
	// Free tier, no overrides: the tier default of 5/min applies.
	apiKey := &models.APIKey{ID: uuid.New(), Tier: tier.Free}
	router, _ := limitedRouter(t, apiKey)

	for i := 1; i <= 5; i++ {
		rr := hit(router)
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i)
		assert.Equal(t, "5", rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(5-i), rr.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))
	}

	rr := hit(router)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])
	assert.Greater(t, body["retry_after"].(float64), float64(0))
	assert.Equal(t, rr.Header().Get("Retry-After"), fmt.Sprintf("%.0f", body["retry_after"].(float64)))
}

func TestOverrideWinsOverTierDefault(t *testing.T) {
	// Free tier would allow 5/min, but the explicit override of 2 wins.
	apiKey := &models.APIKey{ID: uuid.New(), Tier: tier.Free, RateLimitPerMinute: 2}
	router, _ := limitedRouter(t, apiKey)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, hit(router).Code)
	}

	rr := hit(router)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
}

func TestDayLimitShortCircuits(t *testing.T) {
	// Generous minute budget, day budget of 3: the fourth request fails on
	// the day window even though the minute window has room.
	apiKey := &models.APIKey{
		ID:                 uuid.New(),
		Tier:               tier.Free,
		RateLimitPerMinute: 100,
		RateLimitPerDay:    3,
	}
	router, _ := limitedRouter(t, apiKey)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, hit(router).Code)
	}

	rr := hit(router)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "day", body["details"].(map[string]any)["window"])
}

func TestRemainingNeverNegative(t *testing.T) {
	apiKey := &models.APIKey{ID: uuid.New(), Tier: tier.Free, RateLimitPerMinute: 1}
	router, _ := limitedRouter(t, apiKey)

	require.Equal(t, http.StatusOK, hit(router).Code)

	for i := 0; i < 3; i++ {
		rr := hit(router)
		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		remaining, err := strconv.Atoi(rr.Header().Get("X-RateLimit-Remaining"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, remaining, 0)
	}
}

func TestDistinctKeysDoNotShareBudget(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	keyA := &models.APIKey{ID: uuid.New(), Tier: tier.Free, RateLimitPerMinute: 1}
	keyB := &models.APIKey{ID: uuid.New(), Tier: tier.Free, RateLimitPerMinute: 1}

	router := gin.New()
	router.GET("/limited/:who",
		func(c *gin.Context) {
			if c.Param("who") == "a" {
				c.Set(ContextAPIKey, keyA)
			} else {
				c.Set(ContextAPIKey, keyB)
			}
		},
		RateLimitWithTier(store),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	get := func(who string) int {
		req, _ := http.NewRequest(http.MethodGet, "/limited/"+who, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, get("a"))
	require.Equal(t, http.StatusTooManyRequests, get("a"))

	assert.Equal(t, http.StatusOK, get("b"))
}

func TestNoCredentialPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	router := gin.New()
	router.GET("/open", RateLimitWithTier(store), func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodGet, "/open", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
