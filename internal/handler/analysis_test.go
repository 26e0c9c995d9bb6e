package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spectraquiz/api-gateway/internal/analysis"
	"github.com/spectraquiz/api-gateway/internal/middleware"
	"github.com/spectraquiz/api-gateway/internal/models"
	"github.com/spectraquiz/api-gateway/internal/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAnalyzer struct {
	lastFigures []string
	lastOpts    analysis.Options
}

func (r *recordingAnalyzer) Analyze(ctx context.Context, figures []string, opts analysis.Options) ([]analysis.Assessment, error) {
	r.lastFigures = figures
	r.lastOpts = opts
	out := make([]analysis.Assessment, len(figures))
	for i, f := range figures {
		out[i] = analysis.Assessment{Figure: f}
	}
	return out, nil
}

func analyzeRouter(apiKey *models.APIKey, analyzer analysis.Analyzer) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewAnalysisHandler(analyzer)
	router := gin.New()
	router.POST("/v1/analyze",
		func(c *gin.Context) { c.Set(middleware.ContextAPIKey, apiKey) },
		h.Analyze,
	)
	return router
}

func postAnalyze(router *gin.Engine, figures []string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(gin.H{"figures": figures})
	req, _ := http.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAnalyzeWithinBatchLimit(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	apiKey := &models.APIKey{ID: uuid.New(), Tier: tier.Standard}
	router := analyzeRouter(apiKey, analyzer)

	rr := postAnalyze(router, []string{"Figure A", "Figure B"})
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, []string{"Figure A", "Figure B"}, analyzer.lastFigures)
	assert.True(t, analyzer.lastOpts.IncludeReasoning)
	assert.False(t, analyzer.lastOpts.AdvancedModel)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body["results"], 2)
}

func TestAnalyzeBatchTooLargeForTier(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	apiKey := &models.APIKey{ID: uuid.New(), Tier: tier.Free} // max batch 1
	router := analyzeRouter(apiKey, analyzer)

	rr := postAnalyze(router, []string{"Figure A", "Figure B"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, analyzer.lastFigures, "analyzer must not run for oversized batches")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "batch_too_large", body["error"])
	assert.Equal(t, float64(1), body["details"].(map[string]any)["max_batch_size"])
}

func TestAnalyzeEmptyBatchRejected(t *testing.T) {
	apiKey := &models.APIKey{ID: uuid.New(), Tier: tier.Enterprise}
	router := analyzeRouter(apiKey, &recordingAnalyzer{})

	rr := postAnalyze(router, []string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAnalyzeEnterpriseGetsAllFeatures(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	apiKey := &models.APIKey{ID: uuid.New(), Tier: tier.Enterprise}
	router := analyzeRouter(apiKey, analyzer)

	rr := postAnalyze(router, []string{"Figure A"})
	require.Equal(t, http.StatusOK, rr.Code)

	assert.True(t, analyzer.lastOpts.IncludeReasoning)
	assert.True(t, analyzer.lastOpts.IncludeConfidence)
	assert.True(t, analyzer.lastOpts.AdvancedModel)
	assert.True(t, analyzer.lastOpts.Priority)
}
