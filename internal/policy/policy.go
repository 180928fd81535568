// Package policy defines the wire types exchanged with the frontend: the
// policy description submitted for a quote or claim, and the two response
// shapes. Validation happens here, once, at the boundary. Everything past
// Request.Head works with a fully-populated Policy.
package policy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ─── CONDITION ────────────────────────────────────────────────────────────────

// Operator is the comparison half of a trigger condition.
type Operator string

const (
	OperatorGreaterThan Operator = "greaterThan"
	OperatorLessThan    Operator = "lessThan"
)

// Phrase renders the operator the way it reads in a sentence.
func (o Operator) Phrase() string {
	switch o {
	case OperatorGreaterThan:
		return "above"
	case OperatorLessThan:
		return "below"
	default:
		return string(o)
	}
}

// WeatherCondition is the (category, operator, threshold) trigger of a policy.
// ConditionType is open-ended; Rainfall, Temperature and Wind are the
// categories the frontend offers but anything else is accepted.
type WeatherCondition struct {
	ConditionType string   `json:"conditionType" validate:"required"`
	Operator      Operator `json:"operator" validate:"required,oneof=greaterThan lessThan"`
	Threshold     string   `json:"threshold" validate:"required"`
}

// String renders the trigger as "Rainfall above 10 mm".
func (c WeatherCondition) String() string {
	return fmt.Sprintf("%s %s %s", c.ConditionType, c.Operator.Phrase(), c.Threshold)
}

// Location is a coordinate in signed decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// ─── DATE ─────────────────────────────────────────────────────────────────────

const dateLayout = "2006-01-02"

// Date is a calendar date. It accepts both the HTML date-input format
// ("2024-08-01") and full RFC 3339 timestamps, and always marshals as the
// former.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	y, m, day := t.Date()
	d.Time = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// ─── POLICY ───────────────────────────────────────────────────────────────────

// Policy is one prospective (quote) or existing (claim) policy. Fields the
// frontend sends that are not listed here are ignored.
type Policy struct {
	PolicyID     string    `json:"policyId"`
	PolicyHolder string    `json:"policyHolder"`
	PolicyName   string    `json:"policyName"`
	Location     *Location `json:"location" validate:"required"`

	StartDate Date `json:"startDate" validate:"-"`
	EndDate   Date `json:"endDate" validate:"-"`

	// MaxCoverage is a pointer so that an absent value can be told apart
	// from an explicit zero.
	MaxCoverage      *float64 `json:"maxCoverage" validate:"required,gte=0"`
	CoverageCurrency string   `json:"coverageCurrency" validate:"required"`

	// Premium is the amount already paid for the policy. Only claim prompts
	// read it.
	Premium *float64 `json:"premium,omitempty" validate:"omitempty,gte=0"`

	WeatherCondition WeatherCondition `json:"weatherCondition"`
}

// Coverage returns MaxCoverage, or zero when it is unset.
func (p Policy) Coverage() float64 {
	if p.MaxCoverage == nil {
		return 0
	}
	return *p.MaxCoverage
}

// ─── RESPONSES ────────────────────────────────────────────────────────────────

// PremiumQuote is the body returned by POST /get-premium.
type PremiumQuote struct {
	PolicyID            string  `json:"policyId"`
	RiskFactor          float64 `json:"riskFactor"`
	CalculatedPremium   string  `json:"calculatedPremium"`
	MajorUpcomingEvents string  `json:"majorUpcomingEvents"`
}

// ClaimDecision is the body returned by POST /process-claim.
// TransactionHash is set only when the claim was approved and the on-chain
// payout succeeded.
type ClaimDecision struct {
	PolicyID              string `json:"policyId"`
	CanClaim              bool   `json:"canClaim"`
	ClaimConditionMessage string `json:"claimConditionMessage"`
	TransactionHash       string `json:"transactionHash,omitempty"`
}
