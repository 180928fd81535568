// Package decision turns one policy request into a premium quote or a claim
// decision. In AI mode a quote is built from a weather forecast and a model
// reply, and an approved claim is paid out on-chain. In heuristic mode both
// are drawn at random without any external call.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nyashahama/cropsafe-backend/internal/ai"
	"github.com/nyashahama/cropsafe-backend/internal/chain"
	"github.com/nyashahama/cropsafe-backend/internal/policy"
	"github.com/nyashahama/cropsafe-backend/internal/weather"
)

// ─── CONFIG ───────────────────────────────────────────────────────────────────

// Mode selects how decisions are produced. It is fixed at startup.
type Mode string

const (
	ModeAI        Mode = "ai"
	ModeHeuristic Mode = "heuristic"
)

// Config holds the mode and per-call deadlines. Zero durations fall back to
// DefaultConfig's values.
type Config struct {
	Mode Mode

	// WeatherTimeout bounds one forecast fetch. Default: 10s.
	WeatherTimeout time.Duration
	// ModelTimeout bounds one model completion, including provider
	// failover. Default: 60s.
	ModelTimeout time.Duration
	// PayoutTimeout bounds sending the payout transaction and waiting for
	// its receipt. Default: 2m.
	PayoutTimeout time.Duration
}

// DefaultConfig returns heuristic mode with production deadlines.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeHeuristic,
		WeatherTimeout: 10 * time.Second,
		ModelTimeout:   60 * time.Second,
		PayoutTimeout:  2 * time.Minute,
	}
}

// Deps are the external collaborators used in AI mode. Heuristic mode ignores
// them.
type Deps struct {
	Weather weather.Source
	Model   ai.Client
	Payer   chain.Payer
}

// ─── PIPELINE ─────────────────────────────────────────────────────────────────

// Pipeline is safe for concurrent use; it keeps no per-request state.
type Pipeline struct {
	cfg       Config
	deps      Deps
	heuristic *Heuristic
	logger    *slog.Logger
}

// NewPipeline validates cfg and, in AI mode, that every collaborator is set.
func NewPipeline(cfg Config, deps Deps, logger *slog.Logger) (*Pipeline, error) {
	def := DefaultConfig()
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.WeatherTimeout <= 0 {
		cfg.WeatherTimeout = def.WeatherTimeout
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = def.ModelTimeout
	}
	if cfg.PayoutTimeout <= 0 {
		cfg.PayoutTimeout = def.PayoutTimeout
	}

	switch cfg.Mode {
	case ModeHeuristic:
	case ModeAI:
		var missing []error
		if deps.Weather == nil {
			missing = append(missing, errors.New("weather source is required"))
		}
		if deps.Model == nil {
			missing = append(missing, errors.New("language model client is required"))
		}
		if deps.Payer == nil {
			missing = append(missing, errors.New("payer is required"))
		}
		if err := errors.Join(missing...); err != nil {
			return nil, fmt.Errorf("decision: ai mode: %w", err)
		}
	default:
		return nil, fmt.Errorf("decision: unknown mode %q", cfg.Mode)
	}

	return &Pipeline{
		cfg:       cfg,
		deps:      deps,
		heuristic: NewHeuristic(),
		logger:    logger,
	}, nil
}

// Mode reports the mode the pipeline was built with.
func (p *Pipeline) Mode() Mode { return p.cfg.Mode }

// ─── QUOTE ────────────────────────────────────────────────────────────────────

// Quote prices the first policy in req.
func (p *Pipeline) Quote(ctx context.Context, req policy.Request) (policy.PremiumQuote, error) {
	pol, err := req.Head()
	if err != nil {
		return policy.PremiumQuote{}, err
	}

	if p.cfg.Mode == ModeHeuristic {
		return p.heuristic.Quote(pol), nil
	}

	forecast, err := bounded(ctx, p.cfg.WeatherTimeout, func(ctx context.Context) (weather.Forecast, error) {
		return p.deps.Weather.Forecast(ctx, pol.Location.Latitude, pol.Location.Longitude)
	})
	if err != nil {
		return policy.PremiumQuote{}, fmt.Errorf("%w: %s: %w", ErrWeatherUnavailable, p.deps.Weather.Name(), err)
	}

	reply, err := p.complete(ctx, quotePrompt(pol, forecast))
	if err != nil {
		return policy.PremiumQuote{}, err
	}

	fields, err := ParseQuote(reply)
	if err == nil {
		err = checkQuoteRange(fields, pol.Coverage())
	}
	if err != nil {
		p.logger.WarnContext(ctx, "decision: unusable quote reply",
			"policy_id", pol.PolicyID,
			"reply", truncate(reply, 500),
			"error", err,
		)
		return policy.PremiumQuote{}, fmt.Errorf("quote %s: %w", pol.PolicyID, err)
	}

	return policy.PremiumQuote{
		PolicyID:            pol.PolicyID,
		RiskFactor:          fields.RiskFactor,
		CalculatedPremium:   formatPremium(fields.Premium.Truncate(2), pol.CoverageCurrency),
		MajorUpcomingEvents: fields.MajorUpcomingEvents,
	}, nil
}

// checkQuoteRange rejects model values outside riskFactor ∈ [0,1] and
// premium ∈ [0, maxCoverage].
func checkQuoteRange(f QuoteFields, maxCoverage float64) error {
	if f.RiskFactor < 0 || f.RiskFactor > 1 {
		return &ParseError{Reason: fmt.Sprintf("riskFactor %g outside [0,1]", f.RiskFactor)}
	}
	limit := decimal.NewFromFloat(maxCoverage)
	if f.Premium.IsNegative() || f.Premium.GreaterThan(limit) {
		return &ParseError{Reason: fmt.Sprintf("calculatedPremium %s outside [0,%s]", f.Premium, limit)}
	}
	return nil
}

// ─── CLAIM ────────────────────────────────────────────────────────────────────

// DecideClaim assesses the first policy in req. In AI mode an approved claim
// is returned only after the payout transaction succeeded.
func (p *Pipeline) DecideClaim(ctx context.Context, req policy.Request) (policy.ClaimDecision, error) {
	pol, err := req.Head()
	if err != nil {
		return policy.ClaimDecision{}, err
	}

	if p.cfg.Mode == ModeHeuristic {
		return p.heuristic.Claim(pol), nil
	}

	reply, err := p.complete(ctx, claimPrompt(pol))
	if err != nil {
		return policy.ClaimDecision{}, err
	}

	fields, err := ParseClaim(reply)
	if err != nil {
		p.logger.WarnContext(ctx, "decision: unusable claim reply",
			"policy_id", pol.PolicyID,
			"reply", truncate(reply, 500),
			"error", err,
		)
		return policy.ClaimDecision{}, fmt.Errorf("claim %s: %w", pol.PolicyID, err)
	}

	decision := policy.ClaimDecision{
		PolicyID:              pol.PolicyID,
		CanClaim:              fields.CanClaim,
		ClaimConditionMessage: fields.Message,
	}
	if !decision.CanClaim {
		return decision, nil
	}

	hash, wei, err := p.payout(ctx, pol)
	if err != nil {
		return policy.ClaimDecision{}, err
	}
	decision.TransactionHash = hash

	p.logger.InfoContext(ctx, "decision: claim paid out",
		"policy_id", pol.PolicyID,
		"amount", chain.FromWei(wei).String(),
		"tx", hash,
	)
	return decision, nil
}

// payout converts maxCoverage to wei and records the approved claim. It
// returns the transaction hash and the amount sent.
func (p *Pipeline) payout(ctx context.Context, pol policy.Policy) (string, *big.Int, error) {
	id, err := chain.ParsePolicyID(pol.PolicyID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrPayout, err)
	}
	wei, err := chain.ToWei(decimal.NewFromFloat(pol.Coverage()))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrPayout, err)
	}

	hash, err := bounded(ctx, p.cfg.PayoutTimeout, func(ctx context.Context) (string, error) {
		return p.deps.Payer.UpdatePolicyClaim(ctx, id, wei)
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: policy %s: %w", ErrPayout, pol.PolicyID, err)
	}
	return hash, wei, nil
}

// ─── HELPERS ──────────────────────────────────────────────────────────────────

func (p *Pipeline) complete(ctx context.Context, prompt string) (string, error) {
	reply, err := bounded(ctx, p.cfg.ModelTimeout, func(ctx context.Context) (string, error) {
		return p.deps.Model.Complete(ctx, systemPrompt, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
