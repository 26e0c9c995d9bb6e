package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spectraquiz/api-gateway/internal/analysis"
	"github.com/spectraquiz/api-gateway/internal/config"
	"github.com/spectraquiz/api-gateway/internal/keys"
	"github.com/spectraquiz/api-gateway/internal/middleware"
	"github.com/spectraquiz/api-gateway/internal/models"
	"github.com/spectraquiz/api-gateway/internal/ratelimit"
	"github.com/spectraquiz/api-gateway/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubKeyStore answers every hash lookup with the same active credential.
type stubKeyStore struct {
	key *models.APIKey
}

func (s *stubKeyStore) Create(ctx context.Context, apiKey *models.APIKey) error { return nil }
func (s *stubKeyStore) FindByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	return s.key, nil
}
func (s *stubKeyStore) FindByID(ctx context.Context, id string) (*models.APIKey, error) {
	return s.key, nil
}
func (s *stubKeyStore) List(ctx context.Context) ([]models.APIKey, error) { return nil, nil }
func (s *stubKeyStore) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return nil
}
func (s *stubKeyStore) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}
func (s *stubKeyStore) Delete(ctx context.Context, id string) error { return nil }

type stubUserStore struct{}

func (s *stubUserStore) Create(ctx context.Context, user *models.User) error { return nil }
func (s *stubUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}
func (s *stubUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, nil
}

type discardSink struct{}

func (discardSink) CreateBatch(ctx context.Context, logs []models.RequestLog) error { return nil }

// newTestServer assembles the real route table over in-memory stubs, so the
// middleware wiring itself is what gets exercised.
func newTestServer(t *testing.T, ipLimitPerMinute int) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.RateLimit.IPLimitPerMinute = ipLimitPerMinute

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	apiKey := &models.APIKey{
		ID:     uuid.New(),
		Name:   "wiring test",
		Tier:   "free",
		Status: models.StatusActive,
	}

	s := &Server{
		router:        gin.New(),
		config:        cfg,
		limitStore:    store,
		apiKeyService: service.NewAPIKeyService(&stubKeyStore{key: apiKey}, nil),
		authService:   service.NewAuthService(&stubUserStore{}, "test-secret", 1),
		requestLogger: middleware.NewRequestLogger(discardSink{}, 64),
	}
	s.setupMiddleware()
	s.setupRoutes(analysis.NewStub())

	return s
}

func analyzeRequest(apiKey string) *http.Request {
	body := bytes.NewBufferString(`{"figures":["Ada Lovelace"]}`)
	req, _ := http.NewRequest(http.MethodPost, "/v1/analyze", body)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req
}

// Unauthenticated guessing against the analysis API must hit the IP limiter:
// after the per-IP budget the response flips from 401 to 429 even though no
// credential was ever presented.
func TestIPLimitGuardsAnalysisRoutes(t *testing.T) {
	s := newTestServer(t, 3)

	for i := 1; i <= 3; i++ {
		rr := httptest.NewRecorder()
		s.router.ServeHTTP(rr, analyzeRequest(""))
		require.Equal(t, http.StatusUnauthorized, rr.Code, "request %d", i)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "authentication_required", body["error"])
	}

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, analyzeRequest(""))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])
}

// Reading usage is free: it neither consumes quota nor gets blocked once the
// analysis budget is spent.
func TestUsageReadsDoNotConsumeQuota(t *testing.T) {
	s := newTestServer(t, 100)

	plaintext, err := keys.Generate(keys.EnvLive)
	require.NoError(t, err)

	usageRequest := func() map[string]any {
		req, _ := http.NewRequest(http.MethodGet, "/v1/usage", nil)
		req.Header.Set("Authorization", "Bearer "+plaintext)
		rr := httptest.NewRecorder()
		s.router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		return body
	}

	for i := 0; i < 8; i++ {
		usageRequest()
	}
	body := usageRequest()
	minute := body["minute"].(map[string]any)
	assert.Equal(t, float64(0), minute["used"])

	// Free tier: 5 analysis calls per minute.
	for i := 1; i <= 5; i++ {
		rr := httptest.NewRecorder()
		s.router.ServeHTTP(rr, analyzeRequest(plaintext))
		require.Equal(t, http.StatusOK, rr.Code, "analyze %d", i)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, analyzeRequest(plaintext))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Usage still answers after the analysis budget is gone.
	body = usageRequest()
	minute = body["minute"].(map[string]any)
	assert.Equal(t, float64(5), minute["used"])
}
