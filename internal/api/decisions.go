package api

import (
	"net/http"

	"github.com/nyashahama/cropsafe-backend/internal/policy"
)

// ─── POST /get-premium ────────────────────────────────────────────────────────

// handleGetPremium quotes the first policy in the body.
func (s *Server) handleGetPremium(w http.ResponseWriter, r *http.Request) {
	var req policy.Request
	if !s.decode(w, r, &req) {
		return
	}

	quote, err := s.decider.Quote(r.Context(), req)
	if err != nil {
		s.respondDecisionErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, quote)
}

// ─── POST /process-claim ──────────────────────────────────────────────────────

// handleProcessClaim assesses a claim for the first policy in the body. An
// approved claim is only returned once its payout has gone through.
func (s *Server) handleProcessClaim(w http.ResponseWriter, r *http.Request) {
	var req policy.Request
	if !s.decode(w, r, &req) {
		return
	}

	decision, err := s.decider.DecideClaim(r.Context(), req)
	if err != nil {
		s.respondDecisionErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, decision)
}
