package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nyashahama/cropsafe-backend/internal/ai"
	"github.com/nyashahama/cropsafe-backend/internal/chain"
	"github.com/nyashahama/cropsafe-backend/internal/config"
	"github.com/nyashahama/cropsafe-backend/internal/decision"
	"github.com/nyashahama/cropsafe-backend/internal/weather"
)

// buildPipeline wires the decision pipeline for cfg.Mode. The returned
// cleanup func releases the model and chain connections.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*decision.Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pcfg := decision.Config{
		Mode:           decision.Mode(cfg.Mode),
		WeatherTimeout: cfg.WeatherTimeout,
		ModelTimeout:   cfg.ModelTimeout,
		PayoutTimeout:  cfg.PayoutTimeout,
	}

	var deps decision.Deps
	if pcfg.Mode == decision.ModeAI {
		// ── AI ────────────────────────────────────────────────────────────────
		model, closeModel, err := buildModel(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, closeModel)
		deps.Model = model

		// ── Weather ───────────────────────────────────────────────────────────
		var wopts []weather.Option
		if hc := outboundClient(cfg.WeatherTimeout); hc != nil {
			wopts = append(wopts, weather.WithHTTPClient(hc))
		}
		switch cfg.WeatherProvider {
		case config.WeatherOpenMeteo:
			deps.Weather = weather.NewOpenMeteoSource(wopts...)
		default:
			deps.Weather = weather.NewOpenWeatherSource(cfg.OpenWeatherAPIKey, wopts...)
		}
		logger.Info("weather: provider selected", "provider", deps.Weather.Name())

		// ── Chain ─────────────────────────────────────────────────────────────
		payer, closePayer, err := chain.NewContractPayer(ctx, chain.ContractConfig{
			RPCURL:          cfg.ChainRPCURL,
			PrivateKeyHex:   cfg.ChainPrivateKey,
			ContractAddress: cfg.PolicyContractAddress,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("chain: %w", err)
		}
		closers = append(closers, closePayer)
		deps.Payer = payer
		logger.Info("chain: policy contract bound", "address", cfg.PolicyContractAddress)
	}

	pipeline, err := decision.NewPipeline(pcfg, deps, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	logger.Info("decision pipeline ready", "mode", pipeline.Mode())
	return pipeline, cleanup, nil
}

// modelProviders lists the providers buildModel uses, in call order. Only
// the first configured one is returned unless cfg.ModelFailover is set.
func modelProviders(cfg *config.Config) []string {
	var names []string
	if cfg.AnthropicAPIKey != "" {
		names = append(names, "anthropic")
	}
	if cfg.DeepSeekAPIKey != "" {
		names = append(names, "deepseek")
	}
	if cfg.GeminiAPIKey != "" {
		names = append(names, "gemini")
	}
	if !cfg.ModelFailover && len(names) > 1 {
		names = names[:1]
	}
	return names
}

// buildModel returns the client for modelProviders(cfg). With failover on,
// each link only falls through on error.
func buildModel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ai.Client, func(), error) {
	names := modelProviders(cfg)
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("ai: no language model configured")
	}

	var (
		clients []ai.Client
		opts    []ai.Option
		closeFn = func() {}
	)
	if hc := outboundClient(cfg.ModelTimeout); hc != nil {
		opts = append(opts, ai.WithHTTPClient(hc))
	}
	for _, name := range names {
		switch name {
		case "anthropic":
			clients = append(clients, ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, opts...))
		case "deepseek":
			clients = append(clients, ai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, opts...))
		case "gemini":
			gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return nil, nil, fmt.Errorf("gemini: %w", err)
			}
			clients = append(clients, gemini)
			closeFn = func() { _ = gemini.Close() }
		}
	}

	model := clients[len(clients)-1]
	for i := len(clients) - 2; i >= 0; i-- {
		model = ai.NewFallbackClient(clients[i], model, logger)
	}
	logger.Info("ai: model configured", "providers", names, "failover", cfg.ModelFailover)
	return model, closeFn, nil
}

// outboundClient returns an HTTP client whose timeout matches the configured
// step deadline, or nil to keep the package default.
func outboundClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		return nil
	}
	return &http.Client{Timeout: timeout}
}
