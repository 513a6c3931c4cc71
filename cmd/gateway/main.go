package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"chatgate/internal/backend"
	"chatgate/internal/cache"
	"chatgate/internal/config"
	"chatgate/internal/handlers"
	"chatgate/internal/httpserver"
	"chatgate/internal/metrics"
	"chatgate/internal/provider"
	"chatgate/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.toml (default: /etc/chatgate or .)")
	flag.Parse()

	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config (all validation failures here are fatal) -----
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("configuration invalid", zap.Error(err))
		return err
	}

	logger.Info("loaded config",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("backend_endpoint", cfg.Backend.Endpoint),
		zap.String("provider", cfg.Backend.Provider),
		zap.Duration("backend_timeout", cfg.Backend.Timeout()),
		zap.Strings("cors_origins", cfg.Server.CORSOrigins),
		zap.Float64("rate_limit", cfg.Server.RateLimit.Rate),
		zap.Int("rate_burst", cfg.Server.RateLimit.Burst),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	// ----- Outbound client (mutual-TLS identity; fail fast) -----
	client, err := backend.NewClient(cfg.Backend, logger)
	if err != nil {
		logger.Error("backend client construction failed", zap.Error(err))
		return err
	}
	defer client.Close()

	// ----- Provider variant -----
	prov, err := provider.New(cfg.Backend.Provider, logger)
	if err != nil {
		return err
	}

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.Cache.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established", zap.String("addr", cfg.Cache.RedisAddr))
	}

	// ----- Response cache (optional) -----
	responseCache := cache.New(cache.Config{
		Backend: cfg.Cache.Backend,
		TTL:     cfg.Cache.TTL(),
		Prefix:  cfg.Cache.Prefix,
	}, redisClient)
	responseCache = cache.NewLoggingCache(responseCache)

	// ----- Rate limiter (one shared bucket per process) -----
	limiter := rate.NewLimiter(rate.Limit(cfg.Server.RateLimit.Rate), cfg.Server.RateLimit.Burst)

	// ----- Handlers + router -----
	chatHandler := handlers.NewChatHandler(prov, client, responseCache, cfg.Cache.TTL(), cfg.Model)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, limiter, cfg.Server.CORSOrigins, chatHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("provider", prov.Name()),
		zap.String("backend_endpoint", client.Endpoint()),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
