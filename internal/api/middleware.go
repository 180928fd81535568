package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nyashahama/cropsafe-backend/internal/decision"
	"github.com/nyashahama/cropsafe-backend/internal/policy"
)

// Client-facing error bodies. Upstream detail is logged, never returned.
const (
	msgInvalidBody = "Invalid request body"
	msgGeneric     = "An error occurred"
)

// errorCodeHeader lets callers tell failure classes apart without parsing
// the generic body.
const errorCodeHeader = "X-Error-Code"

// ─── CORS ─────────────────────────────────────────────────────────────────────

// corsMiddleware handles preflight OPTIONS requests and sets CORS headers.
// With no configured origin, production allows any origin and other
// environments echo the caller's.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed := s.cfg.CORSOrigin
		if allowed == "" {
			allowed = "*"
			if s.cfg.Env != "production" {
				allowed = origin
			}
		}

		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", errorCodeHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ─── LOGGER MIDDLEWARE ────────────────────────────────────────────────────────

// loggerMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ─── RESPONSE HELPERS ─────────────────────────────────────────────────────────

// respond writes a JSON body with the given status code.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondErr writes a standard JSON error envelope.
func respondErr(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

// errorClass is how one pipeline failure is presented to the caller.
type errorClass struct {
	status int
	code   string
}

// classify maps a pipeline error to its status and X-Error-Code. A payout
// that timed out keeps the payout code but is reported as 504.
func classify(err error) errorClass {
	timedOut := errors.Is(err, decision.ErrTimeout)
	status := http.StatusInternalServerError
	if timedOut {
		status = http.StatusGatewayTimeout
	}

	switch {
	case errors.Is(err, policy.ErrInvalid):
		return errorClass{http.StatusBadRequest, "invalid_request"}
	case errors.Is(err, decision.ErrPayout):
		return errorClass{status, "payout_failed"}
	case timedOut:
		return errorClass{status, "upstream_timeout"}
	case errors.Is(err, decision.ErrUpstreamParse):
		return errorClass{status, "upstream_parse"}
	case errors.Is(err, decision.ErrWeatherUnavailable):
		return errorClass{status, "weather_unavailable"}
	case errors.Is(err, decision.ErrModelUnavailable):
		return errorClass{status, "model_unavailable"}
	default:
		return errorClass{status, "internal"}
	}
}

// respondDecisionErr logs err with request context and writes the fixed
// client body for its class. Caller mistakes are logged at info.
func (s *Server) respondDecisionErr(w http.ResponseWriter, r *http.Request, err error) {
	class := classify(err)
	attrs := []any{
		"error", err,
		"code", class.code,
		"endpoint", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	}

	w.Header().Set(errorCodeHeader, class.code)
	if class.status == http.StatusBadRequest {
		s.logger.Info("rejected request", attrs...)
		respondErr(w, class.status, msgInvalidBody)
		return
	}

	s.logger.Error("decision failed", attrs...)
	respondErr(w, class.status, msgGeneric)
}

// ─── REQUEST PARSING HELPERS ─────────────────────────────────────────────────

// decode JSON-decodes r.Body into dst. Returns false and writes 400 if the
// body is missing, malformed, or too large. Unknown fields are accepted: the
// frontend sends display-only extras. Callers should return immediately on
// false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB max
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.logger.Info("rejected request",
			"error", err,
			"code", "invalid_request",
			logField(r),
		)
		w.Header().Set(errorCodeHeader, "invalid_request")
		respondErr(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

// logField returns a slog.Attr using the request ID for correlation.
func logField(r *http.Request) slog.Attr {
	return slog.String("request_id", middleware.GetReqID(r.Context()))
}
