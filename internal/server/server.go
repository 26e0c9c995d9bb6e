package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spectraquiz/api-gateway/internal/analysis"
	"github.com/spectraquiz/api-gateway/internal/config"
	"github.com/spectraquiz/api-gateway/internal/handler"
	"github.com/spectraquiz/api-gateway/internal/middleware"
	"github.com/spectraquiz/api-gateway/internal/ratelimit"
	"github.com/spectraquiz/api-gateway/internal/repository"
	"github.com/spectraquiz/api-gateway/internal/service"
	"github.com/spectraquiz/api-gateway/internal/storage"
)

type Server struct {
	router        *gin.Engine
	config        *config.Config
	redis         *storage.RedisClient
	postgres      *storage.Postgres
	limitStore    ratelimit.Store
	apiKeyService *service.APIKeyService
	authService   *service.AuthService
	requestLogger *middleware.RequestLogger
	httpServer    *http.Server
}

// New wires the gateway: repositories over postgres, the key and auth
// services, the rate limit store handed in by the composition root, and the
// route table. redis may be nil; the credential cache is skipped then.
func New(cfg *config.Config, postgres *storage.Postgres, redis *storage.RedisClient, limitStore ratelimit.Store, analyzer analysis.Analyzer) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	apiKeyRepo := repository.NewAPIKeyRepository(postgres)
	userRepo := repository.NewUserRepository(postgres)
	logRepo := repository.NewRequestLogRepository(postgres)

	var cache service.Cache
	if redis != nil {
		cache = redis
	}

	apiKeyService := service.NewAPIKeyService(apiKeyRepo, cache)
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.JWTExpiryHours)
	requestLogger := middleware.NewRequestLogger(logRepo, 1000)

	s := &Server{
		router:        router,
		config:        cfg,
		redis:         redis,
		postgres:      postgres,
		limitStore:    limitStore,
		apiKeyService: apiKeyService,
		authService:   authService,
		requestLogger: requestLogger,
	}

	s.setupMiddleware()
	s.setupRoutes(analyzer)

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
	s.router.Use(s.requestLogger.Middleware())
}

func (s *Server) setupRoutes(analyzer analysis.Analyzer) {
	apiKeyHandler := handler.NewAPIKeyHandler(s.apiKeyService)
	authHandler := handler.NewAuthHandler(s.authService)
	usageHandler := handler.NewUsageHandler(s.limitStore)
	analysisHandler := handler.NewAnalysisHandler(analyzer)

	ipLimit := middleware.IPRateLimit(s.limitStore, s.config.RateLimit.IPLimitPerMinute)

	s.router.GET("/health", s.healthCheck)

	s.router.POST("/auth/login", ipLimit, authHandler.Login)

	// The IP limiter sits in front of authentication so key guessing is
	// throttled before it can reach the credential store.
	v1 := s.router.Group("/v1")
	v1.Use(ipLimit)
	v1.Use(middleware.APIKeyAuth(s.apiKeyService))
	{
		// Usage is a read-only snapshot and must not consume quota, so it
		// stays outside the tier limiter.
		v1.GET("/usage", usageHandler.Get)
	}

	limited := v1.Group("")
	limited.Use(middleware.RateLimitWithTier(s.limitStore))
	{
		limited.POST("/analyze", analysisHandler.Analyze)
	}

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAdmin(s.authService))
	{
		admin.POST("/keys", apiKeyHandler.Create)
		admin.GET("/keys", apiKeyHandler.List)
		admin.GET("/keys/:id", apiKeyHandler.Get)
		admin.PATCH("/keys/:id", apiKeyHandler.Update)
		admin.POST("/keys/:id/suspend", apiKeyHandler.Suspend)
		admin.POST("/keys/:id/reactivate", apiKeyHandler.Reactivate)
		admin.POST("/keys/:id/revoke", apiKeyHandler.Revoke)
		admin.DELETE("/keys/:id", apiKeyHandler.Delete)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	redisHealthy := true
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()); err != nil {
			redisHealthy = false
			log.Printf("Redis health check failed: %v", err)
		}
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !dbHealthy || !redisHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "analysis-api-gateway",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"database": dbHealthy,
			"redis":    redisHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.requestLogger.Start()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting analysis API gateway on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Flush queued request logs after in-flight requests finish.
	s.requestLogger.Stop()

	return err
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
