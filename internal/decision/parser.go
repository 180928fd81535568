package decision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ─── REPLY GRAMMAR ────────────────────────────────────────────────────────────
//
// The model is asked to answer with one labelled field per line:
//
//	riskFactor: <float>
//	calculatedPremium: <float>
//	majorUpcomingEvents: "<text>"
//
// or
//
//	canClaim: <true|false>
//	claimConditionMessage: "<text>"
//
// Each label is matched independently and case-insensitively. Markdown
// emphasis and quotes around labels or values are tolerated, as is a unit
// after a number ("1.25 ETH") or thousands grouping ("1,250.50").

const (
	labelRiskFactor = "riskFactor"
	labelPremium    = "calculatedPremium"
	labelEvents     = "majorUpcomingEvents"
	labelCanClaim   = "canClaim"
	labelMessage    = "claimConditionMessage"
)

// label prefix: the label itself, then any emphasis/quote characters around
// the colon.
func fieldPattern(label, value string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + `\b[*_"'\s]*:[*_"'\s]*` + value)
}

// A number may use comma thousands grouping ("1,250.50") and must end at a
// character that cannot continue it, so "1,25" or "0,4" never match a prefix.
const numberPattern = `[$€£]?\s*([-+]?(?:\d{1,3}(?:,\d{3})+(?:\.\d*)?|\d+(?:\.\d*)?|\.\d+))(?:[^\d.,]|[.,](?:\D|$)|$)`

var (
	riskFactorRE = fieldPattern(labelRiskFactor, numberPattern)
	premiumRE    = fieldPattern(labelPremium, numberPattern)
	canClaimRE   = fieldPattern(labelCanClaim, `(true|false)\b`)

	// Narratives may be quoted (straight or curly) or run to the end of
	// the line.
	eventsRE  = textFieldPattern(labelEvents)
	messageRE = textFieldPattern(labelMessage)
)

func textFieldPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + `\b[*_"'\s]*:[*_ \t]*(?:["“]([^"”\n]*)["”]|([^\n]*))`)
}

// QuoteFields is the parsed content of a quote reply. Range checks against
// the policy happen in the pipeline.
type QuoteFields struct {
	RiskFactor          float64
	Premium             decimal.Decimal
	MajorUpcomingEvents string
}

// ClaimFields is the parsed content of a claim reply.
type ClaimFields struct {
	CanClaim bool
	Message  string
}

// ParseQuote extracts all three quote fields. Any field that is absent or
// unparsable is reported in the returned *ParseError.
func ParseQuote(reply string) (QuoteFields, error) {
	var (
		out     QuoteFields
		missing []string
	)

	if m := riskFactorRE.FindStringSubmatch(reply); m != nil {
		v, err := strconv.ParseFloat(ungroup(m[1]), 64)
		if err != nil {
			return QuoteFields{}, &ParseError{Reason: fmt.Sprintf("riskFactor %q: %v", m[1], err)}
		}
		out.RiskFactor = v
	} else {
		missing = append(missing, labelRiskFactor)
	}

	if m := premiumRE.FindStringSubmatch(reply); m != nil {
		v, err := decimal.NewFromString(ungroup(m[1]))
		if err != nil {
			return QuoteFields{}, &ParseError{Reason: fmt.Sprintf("calculatedPremium %q: %v", m[1], err)}
		}
		out.Premium = v
	} else {
		missing = append(missing, labelPremium)
	}

	if text, ok := matchText(eventsRE, reply); ok {
		out.MajorUpcomingEvents = text
	} else {
		missing = append(missing, labelEvents)
	}

	if len(missing) > 0 {
		return QuoteFields{}, &ParseError{Missing: missing}
	}
	return out, nil
}

// ParseClaim extracts the decision and its justification. Both are required.
func ParseClaim(reply string) (ClaimFields, error) {
	var (
		out     ClaimFields
		missing []string
	)

	if m := canClaimRE.FindStringSubmatch(reply); m != nil {
		out.CanClaim = strings.EqualFold(m[1], "true")
	} else {
		missing = append(missing, labelCanClaim)
	}

	if text, ok := matchText(messageRE, reply); ok {
		out.Message = text
	} else {
		missing = append(missing, labelMessage)
	}

	if len(missing) > 0 {
		return ClaimFields{}, &ParseError{Missing: missing}
	}
	return out, nil
}

func ungroup(number string) string {
	return strings.ReplaceAll(number, ",", "")
}

// matchText returns the narrative captured by re. A blank narrative counts
// as missing.
func matchText(re *regexp.Regexp, reply string) (string, bool) {
	m := re.FindStringSubmatch(reply)
	if m == nil {
		return "", false
	}
	text := m[1]
	if text == "" {
		text = m[2]
	}
	text = strings.Trim(strings.TrimSpace(text), `*_"'“”`)
	text = strings.TrimSpace(text)
	return text, text != ""
}
