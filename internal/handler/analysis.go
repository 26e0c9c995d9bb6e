package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spectraquiz/api-gateway/internal/analysis"
	"github.com/spectraquiz/api-gateway/internal/middleware"
	"github.com/spectraquiz/api-gateway/internal/models"
	"github.com/spectraquiz/api-gateway/internal/tier"
)

type AnalysisHandler struct {
	analyzer analysis.Analyzer
}

func NewAnalysisHandler(analyzer analysis.Analyzer) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer}
}

// Analyze runs figure assessments for an authenticated key. Batch size and
// response detail (reasoning, confidence) follow the key's tier.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	apiKeyInterface, exists := c.Get(middleware.ContextAPIKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
		return
	}
	apiKey := apiKeyInterface.(*models.APIKey)

	var req struct {
		Figures []string `json:"figures" binding:"required,min=1"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile := tier.Get(apiKey.Tier)
	if len(req.Figures) > profile.MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "batch_too_large",
			"message": "Batch size exceeds the tier limit",
			"details": gin.H{
				"tier":           profile.Name,
				"max_batch_size": profile.MaxBatchSize,
				"requested":      len(req.Figures),
			},
		})
		return
	}

	opts := analysis.Options{
		IncludeReasoning:  profile.IncludeReasoning,
		IncludeConfidence: profile.IncludeConfidence,
		AdvancedModel:     profile.AdvancedModelAccess,
		Priority:          profile.PriorityProcessing,
	}

	ctx := c.Request.Context()
	results, err := h.analyzer.Analyze(ctx, req.Figures, opts)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
