package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spectraquiz/api-gateway/internal/analysis"
	"github.com/spectraquiz/api-gateway/internal/config"
	"github.com/spectraquiz/api-gateway/internal/ratelimit"
	"github.com/spectraquiz/api-gateway/internal/server"
	"github.com/spectraquiz/api-gateway/internal/storage"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	postgres, err := storage.NewPostgres(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var redis *storage.RedisClient
	if cfg.Redis.Enabled {
		redis, err = storage.NewRedis(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redis.Close()
		log.Println("Connected to redis successfully")
	}

	limitStore := buildLimitStore(cfg, redis)
	defer limitStore.Close()

	srv := server.New(cfg, postgres, redis, limitStore, analysis.NewStub())

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func buildLimitStore(cfg *config.Config, redis *storage.RedisClient) ratelimit.Store {
	if cfg.RateLimit.Backend == "redis" {
		if redis == nil {
			log.Println("Rate limit backend is redis but redis is not configured, falling back to memory")
		} else {
			return ratelimit.NewRedisStore(redis)
		}
	}

	store := ratelimit.NewMemoryStore()
	store.StartSweeper(time.Duration(cfg.RateLimit.SweepIntervalMinutes) * time.Minute)
	return store
}
