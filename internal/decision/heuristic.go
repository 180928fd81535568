package decision

import (
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nyashahama/cropsafe-backend/internal/policy"
)

// ─── MESSAGE POOLS ────────────────────────────────────────────────────────────

var upcomingEvents = []string{
	"Heavy rainfall expected in the next week",
	"Possible heatwave approaching in 20 days",
	"Mild drought conditions forecasted for the coming month",
	"Unexpected frost might occur in the next 3 weeks",
	"Strong winds predicted for the latter half of the month",
}

// claimMessages is keyed by lower-cased condition type.
var claimMessages = map[string][]string{
	"rainfall": {
		"Excessive rainfall of 15 mm recorded, exceeding the 10 mm threshold",
		"Insufficient rainfall of 5 mm recorded, below the 10 mm threshold",
	},
	"temperature": {
		"High temperature of 40°C recorded, exceeding the threshold",
		"Low temperature of 5°C recorded, below the threshold",
	},
	"wind": {
		"Strong winds of 100 km/h recorded, exceeding the threshold",
		"Calm conditions of 10 km/h recorded, below the wind speed threshold",
	},
}

var defaultClaimMessages = []string{
	"Unexpected weather conditions met the claim criteria",
	"Weather conditions did not meet the specified threshold for claims",
}

// ClaimMessages returns the pool a heuristic claim message for conditionType
// is drawn from.
func ClaimMessages(conditionType string) []string {
	if pool, ok := claimMessages[strings.ToLower(strings.TrimSpace(conditionType))]; ok {
		return pool
	}
	return defaultClaimMessages
}

// UpcomingEvents returns the pool heuristic quote narratives are drawn from.
func UpcomingEvents() []string {
	return upcomingEvents
}

// ─── HEURISTIC ────────────────────────────────────────────────────────────────

// Heuristic produces placeholder quotes and claim decisions without any
// external call. Values are uniformly random and unseeded.
type Heuristic struct {
	unit func() float64 // [0,1)
	pick func(n int) int
}

// NewHeuristic returns a Heuristic backed by the process-wide generator,
// which is safe for concurrent use.
func NewHeuristic() *Heuristic {
	return &Heuristic{unit: rand.Float64, pick: rand.IntN}
}

// Quote draws riskFactor from [0,1] (two decimals) and the premium from
// [0, maxCoverage] (truncated to two decimals so it never exceeds the cap).
func (h *Heuristic) Quote(p policy.Policy) policy.PremiumQuote {
	risk := decimal.NewFromFloat(h.unit()).Round(2)
	premium := decimal.NewFromFloat(h.unit()).
		Mul(decimal.NewFromFloat(p.Coverage())).
		Truncate(2)

	return policy.PremiumQuote{
		PolicyID:            p.PolicyID,
		RiskFactor:          risk.InexactFloat64(),
		CalculatedPremium:   formatPremium(premium, p.CoverageCurrency),
		MajorUpcomingEvents: upcomingEvents[h.pick(len(upcomingEvents))],
	}
}

// Claim flips a fair coin and picks a message from the condition's pool.
func (h *Heuristic) Claim(p policy.Policy) policy.ClaimDecision {
	pool := ClaimMessages(p.WeatherCondition.ConditionType)
	return policy.ClaimDecision{
		PolicyID:              p.PolicyID,
		CanClaim:              h.unit() < 0.5,
		ClaimConditionMessage: pool[h.pick(len(pool))],
	}
}

func formatPremium(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(2) + " " + currency
}
