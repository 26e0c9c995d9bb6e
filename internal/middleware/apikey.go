package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spectraquiz/api-gateway/internal/apierror"
	"github.com/spectraquiz/api-gateway/internal/service"
)

// Context keys set by APIKeyAuth on success.
const (
	ContextAPIKey     = "api_key"
	ContextAPIKeyID   = "api_key_id"
	ContextAPIKeyTier = "api_key_tier"
)

// ExtractAPIKey pulls the credential out of an Authorization header value.
// "Bearer <key>" (capital B, one space) strips the scheme; anything else is
// treated as a raw key. Both shapes are trimmed of surrounding whitespace.
// Returns "" when no credential is present.
func ExtractAPIKey(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return strings.TrimSpace(header)
}

// APIKeyAuth authenticates requests to the analysis API. The credential is
// format-checked before any store access, then resolved and lifecycle-checked
// by the service.
func APIKeyAuth(apiKeyService *service.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := ExtractAPIKey(c.GetHeader("Authorization"))
		if rawKey == "" {
			apierror.Abort(c, apierror.New(apierror.CodeAuthenticationRequired, "API key required"))
			return
		}

		apiKey, apiErr := apiKeyService.Validate(c.Request.Context(), rawKey)
		if apiErr != nil {
			apierror.Abort(c, apiErr)
			return
		}

		c.Set(ContextAPIKey, apiKey)
		c.Set(ContextAPIKeyID, apiKey.ID)
		c.Set(ContextAPIKeyTier, apiKey.Tier)

		c.Next()
	}
}
