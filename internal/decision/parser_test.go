package decision_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyashahama/cropsafe-backend/internal/decision"
)

func TestParseQuote(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		risk    float64
		premium string
		events  string
	}{
		{
			name:    "documented format",
			reply:   "riskFactor: 0.35\ncalculatedPremium: 2.5\nmajorUpcomingEvents: \"Heavy rain on Thursday\"",
			risk:    0.35,
			premium: "2.5",
			events:  "Heavy rain on Thursday",
		},
		{
			name:    "markdown emphasis and extra whitespace",
			reply:   "Here you go:\n\n**riskFactor**:   0.8  \n**calculatedPremium:** 12\n  **majorUpcomingEvents**: \"Storm front mid-week\"\n",
			risk:    0.8,
			premium: "12",
			events:  "Storm front mid-week",
		},
		{
			name:    "unquoted narrative and premium with unit",
			reply:   "RISKFACTOR: .2\ncalculatedpremium: 1.75 ETH\nmajorUpcomingEvents: Dry spell expected next week",
			risk:    0.2,
			premium: "1.75",
			events:  "Dry spell expected next week",
		},
		{
			name:    "curly quotes",
			reply:   "riskFactor: 1\ncalculatedPremium: 0\nmajorUpcomingEvents: “No significant events”",
			risk:    1,
			premium: "0",
			events:  "No significant events",
		},
		{
			name:    "thousands separator",
			reply:   "riskFactor: 0.4\ncalculatedPremium: 1,250.50\nmajorUpcomingEvents: \"x\"",
			risk:    0.4,
			premium: "1250.5",
			events:  "x",
		},
		{
			name:    "sentence punctuation after numbers",
			reply:   "riskFactor: 0.25.\ncalculatedPremium: $12,000 ETH.\nmajorUpcomingEvents: \"Flooding\"",
			risk:    0.25,
			premium: "12000",
			events:  "Flooding",
		},
		{
			name:    "compact json",
			reply:   `{"riskFactor":0.5,"calculatedPremium":3,"majorUpcomingEvents":"Frost risk"}`,
			risk:    0.5,
			premium: "3",
			events:  "Frost risk",
		},
		{
			name:    "json-ish labels",
			reply:   `{"riskFactor": 0.5, "calculatedPremium": 3, "majorUpcomingEvents": "Frost risk"}`,
			risk:    0.5,
			premium: "3",
			events:  "Frost risk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decision.ParseQuote(tt.reply)
			require.NoError(t, err)
			assert.InDelta(t, tt.risk, got.RiskFactor, 1e-9)
			assert.Equal(t, tt.premium, got.Premium.String())
			assert.Equal(t, tt.events, got.MajorUpcomingEvents)
		})
	}
}

func TestParseQuote_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		missing []string
	}{
		{
			name:    "no riskFactor line",
			reply:   "calculatedPremium: 2\nmajorUpcomingEvents: \"Rain\"",
			missing: []string{"riskFactor"},
		},
		{
			name:    "empty narrative",
			reply:   "riskFactor: 0.1\ncalculatedPremium: 2\nmajorUpcomingEvents: \"\"",
			missing: []string{"majorUpcomingEvents"},
		},
		{
			name:    "non-numeric premium",
			reply:   "riskFactor: 0.1\ncalculatedPremium: unknown\nmajorUpcomingEvents: \"Rain\"",
			missing: []string{"calculatedPremium"},
		},
		{
			name:    "malformed grouping",
			reply:   "riskFactor: 0.4\ncalculatedPremium: 1,25.50\nmajorUpcomingEvents: \"x\"",
			missing: []string{"calculatedPremium"},
		},
		{
			name:    "decimal comma",
			reply:   "riskFactor: 0,4\ncalculatedPremium: 2\nmajorUpcomingEvents: \"x\"",
			missing: []string{"riskFactor"},
		},
		{
			name:    "prose only",
			reply:   "I cannot assess this policy.",
			missing: []string{"riskFactor", "calculatedPremium", "majorUpcomingEvents"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decision.ParseQuote(tt.reply)
			require.Error(t, err)
			assert.ErrorIs(t, err, decision.ErrUpstreamParse)

			var perr *decision.ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.missing, perr.Missing)
		})
	}
}

func TestParseClaim(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		can     bool
		message string
	}{
		{"documented format", "canClaim: true\nclaimConditionMessage: \"Rainfall exceeded 10 mm\"", true, "Rainfall exceeded 10 mm"},
		{"capitalised boolean", "canClaim: False\nclaimConditionMessage: \"Threshold not reached\"", false, "Threshold not reached"},
		{"upper-case boolean with emphasis", "**canClaim:** TRUE\n**claimConditionMessage:** Wind gusts above threshold", true, "Wind gusts above threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decision.ParseClaim(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.can, got.CanClaim)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}

func TestParseClaim_MissingFields(t *testing.T) {
	_, err := decision.ParseClaim("claimConditionMessage: \"Looks fine\"")
	assert.ErrorIs(t, err, decision.ErrUpstreamParse)

	_, err = decision.ParseClaim("canClaim: maybe\nclaimConditionMessage: \"Unsure\"")
	assert.ErrorIs(t, err, decision.ErrUpstreamParse)

	_, err = decision.ParseClaim("canClaim: true")
	var perr *decision.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []string{"claimConditionMessage"}, perr.Missing)
}
