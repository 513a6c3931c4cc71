package httpserver

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"chatgate/internal/handlers"
	"chatgate/internal/metrics"
	"chatgate/internal/middleware"
)

// SetupRouter wires all middleware and routes. The admission limiter runs
// before routing so rejected requests never reach a handler.
func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, limiter *rate.Limiter, corsOrigins []string, chatHandler *handlers.ChatHandler) {
	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.RateLimit(limiter))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.MaxBodySize(2 * 1024 * 1024)) // 2 MB max body

	// routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat/completions", chatHandler.ChatCompletion)
		r.Get("/models", chatHandler.Models)
	})

	r.Get("/health", chatHandler.Health)
	r.Handle("/metrics", metrics.Handler())
}
