// Package server assembles the HTTP and WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/truesightdao/tokenops/internal/domain"
	"github.com/truesightdao/tokenops/internal/server/handler"
	"github.com/truesightdao/tokenops/internal/server/middleware"
	"github.com/truesightdao/tokenops/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// RateLimit caps requests per client IP per RateWindow; zero disables.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers. Archives may
// be nil when no object storage is configured; its routes are then omitted.
type Handlers struct {
	Health       *handler.HealthHandler
	Verify       *handler.VerifyHandler
	Cycles       *handler.CycleHandler
	Contributors *handler.ContributorHandler
	Archives     *handler.ArchiveHandler
}

// Server is the headless HTTP + WebSocket API for the token automation
// suite.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// (rate limit, auth, logging, CORS) applied. limiter may be nil.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required by the dashboard's probes).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Verification endpoints.
	mux.HandleFunc("POST /api/verify", handlers.Verify.Verify)
	mux.HandleFunc("GET /api/verifications/recent", handlers.Verify.ListRecent)

	// Trading cycle endpoints.
	mux.HandleFunc("GET /api/plans/recent", handlers.Cycles.ListRecentPlans)
	mux.HandleFunc("POST /api/marketmaker/run", handlers.Cycles.RunMarketMaker)
	mux.HandleFunc("POST /api/buyback/run", handlers.Cycles.RunBuyback)

	// Contributor registry.
	mux.HandleFunc("GET /api/contributors", handlers.Contributors.List)
	mux.HandleFunc("POST /api/contributors", handlers.Contributors.Upsert)

	// Cold-storage archive retrieval.
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.List)
		mux.HandleFunc("GET /api/archives/{path...}", handlers.Archives.Get)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening. It blocks until the server errors or shuts down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
