package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/engine"
	"github.com/fraudshield/fraudshield/internal/kyc"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	auth    *Authenticator
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg *domain.Config, eng *engine.Engine, registry *kyc.Registry, store domain.Store, bus domain.EventBus, version string) *Server {
	handler := NewHandler(eng, registry, store, bus, version)
	auth := NewAuthenticator(cfg.Auth)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no auth required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Simulated login (no auth required)
	router.Post("/auth/login", auth.Login)

	// API routes (session token required when auth is enabled)
	router.Route("/", func(r chi.Router) {
		r.Use(auth.Middleware)

		// Prediction
		r.Post("/predict", handler.Predict)
		r.Post("/predict/batch", handler.PredictBatch)

		// Batch row management
		r.Post("/batch", handler.UploadBatch)
		r.Get("/batch", handler.GetBatch)
		r.Delete("/batch", handler.ClearBatch)

		// History
		r.Get("/history", handler.ListHistory)
		r.Get("/history/export", handler.ExportHistory)
		r.Delete("/history/{index}", handler.DeleteHistoryEntry)
		r.Delete("/history", handler.ClearHistory)

		// Alerts and patterns
		r.Get("/alerts", handler.ListAlerts)
		r.Get("/patterns", handler.GetPatterns)

		// Analytics
		r.Get("/analytics/summary", handler.AnalyticsSummary)
		r.Get("/metrics", handler.ModelMetrics)

		// KYC
		r.Post("/kyc/verify", handler.KYCVerify)
		r.Get("/kyc/{customerId}", handler.KYCStatus)

		// Customer profiles
		r.Get("/customers/{customerId}/profile", handler.GetCustomerProfile)

		// Custom alert rules
		r.Get("/rules", handler.ListRules)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/validate", handler.ValidateRuleCheck)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		auth:    auth,
		config:  cfg.Server,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}

// Auth returns the authenticator for testing.
func (s *Server) Auth() *Authenticator {
	return s.auth
}
