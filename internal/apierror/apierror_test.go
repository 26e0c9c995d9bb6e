package apierror

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusByCode(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeAuthenticationRequired, http.StatusUnauthorized},
		{CodeInvalidAPIKey, http.StatusUnauthorized},
		{CodeAPIKeyRevoked, http.StatusUnauthorized},
		{CodeAPIKeyExpired, http.StatusUnauthorized},
		{CodeAPIKeySuspended, http.StatusForbidden},
		{CodeRateLimitExceeded, http.StatusTooManyRequests},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, New(tt.code, "x").Status(), "code %s", tt.code)
	}

	assert.Equal(t, http.StatusInternalServerError, New(Code("mystery"), "x").Status())
}

func TestAbortWritesTaxonomyPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		Abort(c, New(CodeAPIKeyRevoked, "API key has been revoked").
			WithDetails(map[string]any{"reason": "abuse"}))
		c.String(http.StatusOK, "should not run")
	})

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "api_key_revoked", body["error"])
	assert.Equal(t, "API key has been revoked", body["message"])
	assert.Equal(t, "abuse", body["details"].(map[string]any)["reason"])
	assert.NotContains(t, body, "retry_after")
}

func TestAbortRateLimitSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		Abort(c, New(CodeRateLimitExceeded, "too many").WithRetryAfter(37))
	})

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "37", rr.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(37), body["retry_after"])
}

func TestRetryAfterNeverNegative(t *testing.T) {
	e := New(CodeRateLimitExceeded, "x").WithRetryAfter(-5)
	assert.Equal(t, 0, e.RetryAfter)
}
