package decision

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nyashahama/cropsafe-backend/internal/policy"
	"github.com/nyashahama/cropsafe-backend/internal/weather"
)

const systemPrompt = `You are an underwriting assistant for parametric crop weather insurance.
Answer only in the format the user asks for: one "label: value" field per line, no other text.`

func quotePrompt(p policy.Policy, forecast weather.Forecast) string {
	var b strings.Builder
	b.WriteString("Assess the weather risk for the following parametric insurance policy and quote a premium.\n\n")
	writePolicy(&b, p)

	b.WriteString("\nWeather forecast for the insured location:\n")
	b.WriteString(forecast.Summary())

	fmt.Fprintf(&b, `

Reply in exactly this format:
riskFactor: <number between 0 and 1>
calculatedPremium: <number between 0 and %s, in %s>
majorUpcomingEvents: "<upcoming weather events relevant to the policy, at most 15 words>"
`, amount(p.Coverage()), p.CoverageCurrency)
	return b.String()
}

func claimPrompt(p policy.Policy) string {
	var b strings.Builder
	b.WriteString("Decide whether the following parametric insurance policy can claim its payout.\n\n")
	writePolicy(&b, p)

	if p.Premium != nil {
		fmt.Fprintf(&b, "Premium paid: %s %s\n", amount(*p.Premium), p.CoverageCurrency)
	} else {
		b.WriteString("Premium paid: not recorded\n")
	}

	b.WriteString(`
Approve the claim only if the trigger condition was met at the location during the coverage period.

Reply in exactly this format:
canClaim: <true or false>
claimConditionMessage: "<reason for the decision, at most 15 words>"
`)
	return b.String()
}

func writePolicy(b *strings.Builder, p policy.Policy) {
	fmt.Fprintf(b, "Policy: %s (id %s, holder %s)\n", p.PolicyName, p.PolicyID, p.PolicyHolder)
	fmt.Fprintf(b, "Location: latitude %.4f, longitude %.4f\n", p.Location.Latitude, p.Location.Longitude)
	fmt.Fprintf(b, "Coverage period: %s to %s\n", p.StartDate, p.EndDate)
	fmt.Fprintf(b, "Maximum coverage: %s %s\n", amount(p.Coverage()), p.CoverageCurrency)
	fmt.Fprintf(b, "Trigger condition: %s\n", p.WeatherCondition)
}

func amount(v float64) string {
	return decimal.NewFromFloat(v).String()
}
