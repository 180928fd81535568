// Package api implements the HTTP layer for the CropSafe decision backend.
// Handlers are methods on *Server; the decision logic itself sits behind the
// Decider interface.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nyashahama/cropsafe-backend/internal/policy"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// CORSOrigin, when set, is the only origin allowed to call the API.
	// e.g. "https://cropsafe.app"
	CORSOrigin string

	// RequestTimeout caps the whole request, on top of the per-call
	// deadlines inside the pipeline. Default: 3 minutes.
	RequestTimeout time.Duration
}

// Decider produces quotes and claim decisions. *decision.Pipeline is the
// production implementation; tests use stubs.
type Decider interface {
	Quote(ctx context.Context, req policy.Request) (policy.PremiumQuote, error)
	DecideClaim(ctx context.Context, req policy.Request) (policy.ClaimDecision, error)
}

// Server holds all shared dependencies.
type Server struct {
	decider Decider
	cfg     Config
	logger  *slog.Logger
}

// NewServer constructs the Server and wires the chi router.
func NewServer(decider Decider, cfg Config, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Minute
	}
	s := &Server{
		decider: decider,
		cfg:     cfg,
		logger:  logger,
	}
	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// ── Health ────────────────────────────────────────────────────────────────
	// The frontend pings / to wake the server before the first real request.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Hello, World!"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── Decisions ─────────────────────────────────────────────────────────────
	r.Post("/get-premium", s.handleGetPremium)
	r.Post("/process-claim", s.handleProcessClaim)

	return r
}
