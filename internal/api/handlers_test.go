package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/nyashahama/cropsafe-backend/internal/api"
	"github.com/nyashahama/cropsafe-backend/internal/decision"
	"github.com/nyashahama/cropsafe-backend/internal/policy"
	"github.com/nyashahama/cropsafe-backend/internal/weather"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubDecider lets a test force a specific pipeline outcome.
type stubDecider struct {
	quote    policy.PremiumQuote
	claim    policy.ClaimDecision
	err      error
	requests []policy.Request
}

func (d *stubDecider) Quote(_ context.Context, req policy.Request) (policy.PremiumQuote, error) {
	d.requests = append(d.requests, req)
	return d.quote, d.err
}

func (d *stubDecider) DecideClaim(_ context.Context, req policy.Request) (policy.ClaimDecision, error) {
	d.requests = append(d.requests, req)
	return d.claim, d.err
}

type stubWeather struct{}

func (stubWeather) Name() string { return "stub" }

func (stubWeather) Forecast(context.Context, float64, float64) (weather.Forecast, error) {
	return weather.Forecast{}, nil
}

type stubModel struct{ reply string }

func (m stubModel) Complete(context.Context, string, string) (string, error) { return m.reply, nil }

type failingPayer struct{}

func (failingPayer) UpdatePolicyClaim(context.Context, *big.Int, *big.Int) (string, error) {
	return "", errors.New("execution reverted")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func newTestServer(t *testing.T, decider api.Decider) http.Handler {
	t.Helper()
	return api.NewServer(decider, api.Config{Env: "development"}, discardLogger())
}

func heuristicServer(t *testing.T) http.Handler {
	t.Helper()
	pl, err := decision.NewPipeline(decision.DefaultConfig(), decision.Deps{}, discardLogger())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return newTestServer(t, pl)
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(dst); err != nil {
		t.Fatalf("decode response body: %v (raw: %s)", err, rr.Body.String())
	}
}

func policyBody(policyID, conditionType string) string {
	return fmt.Sprintf(`{"policies":[{
		"policyId": %q,
		"policyHolder": "0x1234",
		"policyName": "Maize cover",
		"basename": "farmer.base.eth",
		"location": {"latitude": -1.2921, "longitude": 36.8219},
		"startDate": "2024-08-01",
		"endDate": "2024-08-31",
		"maxCoverage": 20,
		"coverageCurrency": "ETH",
		"premiumCurrency": "ETH",
		"weatherCondition": {"conditionType": %q, "operator": "greaterThan", "threshold": "10 mm"}
	}]}`, policyID, conditionType)
}

func assertErrorBody(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d (body: %s)", status, rr.Code, rr.Body.String())
	}
	var body map[string]any
	decodeJSON(t, rr, &body)
	if len(body) != 1 || body["error"] != message {
		t.Errorf("expected {\"error\":%q}, got %v", message, body)
	}
}

// ─── GET / and /healthz ───────────────────────────────────────────────────────

func TestRoot_ReturnsLivenessString(t *testing.T) {
	rr := doRequest(t, heuristicServer(t), http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "Hello, World!" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	rr := doRequest(t, heuristicServer(t), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

// ─── INVALID BODIES ───────────────────────────────────────────────────────────

func TestDecisionEndpoints_InvalidBodyReturns400(t *testing.T) {
	bodies := map[string]string{
		"no body":          "",
		"not json":         "policies=1",
		"policies missing": `{}`,
		"policies null":    `{"policies":null}`,
		"policies empty":   `{"policies":[]}`,
		"policies object":  `{"policies":{"policyId":"P1"}}`,
		"policies string":  `{"policies":"P1"}`,
		"head not object":  `{"policies":[42]}`,
		"bad operator":     strings.Replace(policyBody("P1", "Rainfall"), "greaterThan", "equals", 1),
	}

	for _, path := range []string{"/get-premium", "/process-claim"} {
		for name, body := range bodies {
			t.Run(path+"/"+name, func(t *testing.T) {
				rr := doRequest(t, heuristicServer(t), http.MethodPost, path, body)
				assertErrorBody(t, rr, http.StatusBadRequest, "Invalid request body")
				if got := rr.Header().Get("X-Error-Code"); got != "invalid_request" {
					t.Errorf("expected X-Error-Code invalid_request, got %q", got)
				}
			})
		}
	}
}

// ─── POST /get-premium ────────────────────────────────────────────────────────

var premiumPattern = regexp.MustCompile(`^(\d+\.\d{2}) ETH$`)

func TestGetPremium_HeuristicQuote(t *testing.T) {
	handler := heuristicServer(t)

	for range 50 {
		rr := doRequest(t, handler, http.MethodPost, "/get-premium", policyBody("P1", "Rainfall"))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (body: %s)", rr.Code, rr.Body.String())
		}

		var quote policy.PremiumQuote
		decodeJSON(t, rr, &quote)

		if quote.PolicyID != "P1" {
			t.Errorf("expected policyId P1, got %q", quote.PolicyID)
		}
		if quote.RiskFactor < 0 || quote.RiskFactor > 1 {
			t.Errorf("riskFactor %v out of [0,1]", quote.RiskFactor)
		}
		m := premiumPattern.FindStringSubmatch(quote.CalculatedPremium)
		if m == nil {
			t.Fatalf("calculatedPremium %q does not match <amount> ETH", quote.CalculatedPremium)
		}
		amount, _ := strconv.ParseFloat(m[1], 64)
		if amount < 0 || amount > 20 {
			t.Errorf("premium %v out of [0,20]", amount)
		}
		if quote.MajorUpcomingEvents == "" {
			t.Error("expected a narrative")
		}
	}
}

func TestGetPremium_OnlyFirstPolicyUsed(t *testing.T) {
	body := `{"policies":[` +
		strings.TrimSuffix(strings.TrimPrefix(policyBody("FIRST", "Wind"), `{"policies":[`), `]}`) +
		`, "not even an object"]}`

	rr := doRequest(t, heuristicServer(t), http.MethodPost, "/get-premium", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rr.Code, rr.Body.String())
	}
	var quote policy.PremiumQuote
	decodeJSON(t, rr, &quote)
	if quote.PolicyID != "FIRST" {
		t.Errorf("expected head policy, got %q", quote.PolicyID)
	}
}

func TestGetPremium_ParseFailureReturns500(t *testing.T) {
	cfg := decision.DefaultConfig()
	cfg.Mode = decision.ModeAI
	pl, err := decision.NewPipeline(cfg, decision.Deps{
		Weather: stubWeather{},
		Model:   stubModel{reply: "calculatedPremium: 4\nmajorUpcomingEvents: \"Rain\""},
		Payer:   failingPayer{},
	}, discardLogger())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	rr := doRequest(t, newTestServer(t, pl), http.MethodPost, "/get-premium", policyBody("7", "Rainfall"))
	assertErrorBody(t, rr, http.StatusInternalServerError, "An error occurred")
	if got := rr.Header().Get("X-Error-Code"); got != "upstream_parse" {
		t.Errorf("expected X-Error-Code upstream_parse, got %q", got)
	}
}

func TestGetPremium_TimeoutReturns504(t *testing.T) {
	d := &stubDecider{err: fmt.Errorf("%w: %w", decision.ErrModelUnavailable, decision.ErrTimeout)}

	rr := doRequest(t, newTestServer(t, d), http.MethodPost, "/get-premium", policyBody("P1", "Rainfall"))
	assertErrorBody(t, rr, http.StatusGatewayTimeout, "An error occurred")
	if got := rr.Header().Get("X-Error-Code"); got != "upstream_timeout" {
		t.Errorf("expected X-Error-Code upstream_timeout, got %q", got)
	}
}

func TestGetPremium_UpstreamErrorsReturn500(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: dial tcp", decision.ErrWeatherUnavailable), "weather_unavailable"},
		{fmt.Errorf("%w: 529 overloaded", decision.ErrModelUnavailable), "model_unavailable"},
		{errors.New("something unexpected"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rr := doRequest(t, newTestServer(t, &stubDecider{err: tt.err}), http.MethodPost, "/get-premium", policyBody("P1", "Rainfall"))
			assertErrorBody(t, rr, http.StatusInternalServerError, "An error occurred")
			if got := rr.Header().Get("X-Error-Code"); got != tt.code {
				t.Errorf("expected X-Error-Code %s, got %q", tt.code, got)
			}
			if strings.Contains(rr.Body.String(), tt.err.Error()) {
				t.Error("upstream detail leaked to the caller")
			}
		})
	}
}

// ─── POST /process-claim ──────────────────────────────────────────────────────

func TestProcessClaim_HeuristicWindMessages(t *testing.T) {
	handler := heuristicServer(t)
	allowed := map[string]bool{
		"Strong winds of 100 km/h recorded, exceeding the threshold":          true,
		"Calm conditions of 10 km/h recorded, below the wind speed threshold": true,
	}

	for range 50 {
		rr := doRequest(t, handler, http.MethodPost, "/process-claim", policyBody("P1", "Wind"))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (body: %s)", rr.Code, rr.Body.String())
		}

		var body map[string]any
		decodeJSON(t, rr, &body)
		if body["policyId"] != "P1" {
			t.Errorf("expected policyId P1, got %v", body["policyId"])
		}
		if _, ok := body["canClaim"].(bool); !ok {
			t.Errorf("canClaim is not a boolean: %v", body["canClaim"])
		}
		if msg, _ := body["claimConditionMessage"].(string); !allowed[msg] {
			t.Errorf("unexpected wind message %q", msg)
		}
		if _, ok := body["transactionHash"]; ok {
			t.Error("heuristic claims must not carry a transactionHash")
		}
	}
}

func TestProcessClaim_PayoutFailureReturns500WithoutHash(t *testing.T) {
	cfg := decision.DefaultConfig()
	cfg.Mode = decision.ModeAI
	pl, err := decision.NewPipeline(cfg, decision.Deps{
		Weather: stubWeather{},
		Model:   stubModel{reply: "canClaim: true\nclaimConditionMessage: \"Rainfall exceeded threshold\""},
		Payer:   failingPayer{},
	}, discardLogger())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	rr := doRequest(t, newTestServer(t, pl), http.MethodPost, "/process-claim", policyBody("12", "Rainfall"))
	assertErrorBody(t, rr, http.StatusInternalServerError, "An error occurred")
	if strings.Contains(rr.Body.String(), "transactionHash") {
		t.Error("failed payout must not expose a transactionHash")
	}
	if got := rr.Header().Get("X-Error-Code"); got != "payout_failed" {
		t.Errorf("expected X-Error-Code payout_failed, got %q", got)
	}
}

func TestProcessClaim_PayoutTimeoutReturns504(t *testing.T) {
	d := &stubDecider{err: fmt.Errorf("%w: %w", decision.ErrPayout, decision.ErrTimeout)}

	rr := doRequest(t, newTestServer(t, d), http.MethodPost, "/process-claim", policyBody("12", "Rainfall"))
	assertErrorBody(t, rr, http.StatusGatewayTimeout, "An error occurred")
	if got := rr.Header().Get("X-Error-Code"); got != "payout_failed" {
		t.Errorf("expected X-Error-Code payout_failed, got %q", got)
	}
}

func TestProcessClaim_ApprovedWithHash(t *testing.T) {
	d := &stubDecider{claim: policy.ClaimDecision{
		PolicyID:              "12",
		CanClaim:              true,
		ClaimConditionMessage: "Rainfall exceeded threshold",
		TransactionHash:       "0xabc",
	}}

	rr := doRequest(t, newTestServer(t, d), http.MethodPost, "/process-claim", policyBody("12", "Rainfall"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got policy.ClaimDecision
	decodeJSON(t, rr, &got)
	if got != d.claim {
		t.Errorf("expected %+v, got %+v", d.claim, got)
	}
	if len(d.requests) != 1 || len(d.requests[0].Policies) != 1 {
		t.Errorf("decider did not receive the envelope: %+v", d.requests)
	}
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

func TestCORS_PreflightReturns204(t *testing.T) {
	handler := heuristicServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/get-premium", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("unexpected Access-Control-Allow-Origin %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if rr.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("missing Access-Control-Allow-Methods header")
	}
}

func TestCORS_ConfiguredOrigin(t *testing.T) {
	handler := api.NewServer(&stubDecider{}, api.Config{Env: "development", CORSOrigin: "https://cropsafe.app"}, discardLogger())
	req := httptest.NewRequest(http.MethodOptions, "/process-claim", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://cropsafe.app" {
		t.Errorf("expected configured origin, got %q", got)
	}
}

func TestCORS_NoOriginHeader_SkipsCORSHeaders(t *testing.T) {
	rr := doRequest(t, heuristicServer(t), http.MethodGet, "/healthz", "")
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("should not set CORS headers when no Origin present")
	}
}
