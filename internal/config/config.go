// Package config loads and validates all environment variables at startup.
// Every other package receives typed values and never reads os.Getenv.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Decision modes accepted in MODE.
const (
	ModeAI        = "ai"
	ModeHeuristic = "heuristic"
)

// Weather providers accepted in WEATHER_PROVIDER.
const (
	WeatherOpenWeather = "openweather"
	WeatherOpenMeteo   = "openmeteo"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port       string // default "3000"
	Env        string // "development" | "staging" | "production"
	Mode       string // "heuristic" (default) | "ai"
	CORSOrigin string // optional; empty allows any origin

	// ── Language models ───────────────────────────────────────────────────────
	// The first key set in the order Anthropic → DeepSeek → Gemini is used.
	// With ModelFailover every configured provider is chained in that order.
	ModelFailover   bool // default false
	AnthropicAPIKey string
	AnthropicModel  string // default "claude-sonnet-4-5"
	DeepSeekAPIKey  string
	DeepSeekModel   string // default "deepseek-chat"
	GeminiAPIKey    string
	GeminiModel     string // default "gemini-1.5-flash"

	// ── Weather ───────────────────────────────────────────────────────────────
	WeatherProvider   string // "openweather" (default) | "openmeteo"
	OpenWeatherAPIKey string

	// ── Chain ─────────────────────────────────────────────────────────────────
	ChainRPCURL           string
	ChainPrivateKey       string // hex, with or without 0x
	PolicyContractAddress string

	// ── Timeouts ──────────────────────────────────────────────────────────────
	WeatherTimeout time.Duration // default 10s
	ModelTimeout   time.Duration // default 60s
	PayoutTimeout  time.Duration // default 2m
	RequestTimeout time.Duration // default 3m
}

// Load reads all environment variables and returns a validated Config.
// A .env file in the working directory is loaded first when present; real
// environment variables always take precedence over .env values.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv paths. Missing files are ignored.
func LoadFiles(paths ...string) (*Config, error) {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	c := &Config{
		Port:                  getEnv("PORT", "3000"),
		Env:                   getEnv("ENV", "development"),
		Mode:                  strings.ToLower(getEnv("MODE", ModeHeuristic)),
		CORSOrigin:            os.Getenv("CORS_ORIGIN"),
		ModelFailover:         getEnvAsBool("MODEL_FAILOVER", false),
		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:        getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		DeepSeekAPIKey:        os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekModel:         getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		WeatherProvider:       strings.ToLower(getEnv("WEATHER_PROVIDER", WeatherOpenWeather)),
		OpenWeatherAPIKey:     os.Getenv("OPENWEATHER_API_KEY"),
		ChainRPCURL:           os.Getenv("CHAIN_RPC_URL"),
		ChainPrivateKey:       os.Getenv("CHAIN_PRIVATE_KEY"),
		PolicyContractAddress: os.Getenv("POLICY_CONTRACT_ADDRESS"),
		WeatherTimeout:        getEnvAsDuration("WEATHER_TIMEOUT", 10*time.Second),
		ModelTimeout:          getEnvAsDuration("MODEL_TIMEOUT", 60*time.Second),
		PayoutTimeout:         getEnvAsDuration("PAYOUT_TIMEOUT", 2*time.Minute),
		RequestTimeout:        getEnvAsDuration("REQUEST_TIMEOUT", 3*time.Minute),
	}

	return c, c.validate()
}

// HasModel reports whether at least one language model provider is set.
func (c *Config) HasModel() bool {
	return c.AnthropicAPIKey != "" || c.DeepSeekAPIKey != "" || c.GeminiAPIKey != ""
}

// validate rejects misconfiguration. In AI mode every collaborator must be
// configured; the server never silently drops back to heuristic mode.
func (c *Config) validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be numeric, got %q", c.Port))
	}

	switch c.WeatherProvider {
	case WeatherOpenWeather, WeatherOpenMeteo:
	default:
		errs = append(errs, fmt.Errorf("WEATHER_PROVIDER must be %q or %q, got %q", WeatherOpenWeather, WeatherOpenMeteo, c.WeatherProvider))
	}

	switch c.Mode {
	case ModeHeuristic:
	case ModeAI:
		if !c.HasModel() {
			errs = append(errs, errors.New("ai mode: at least one of ANTHROPIC_API_KEY, DEEPSEEK_API_KEY or GEMINI_API_KEY must be set"))
		}
		required := []struct{ name, val string }{
			{"CHAIN_RPC_URL", c.ChainRPCURL},
			{"CHAIN_PRIVATE_KEY", c.ChainPrivateKey},
			{"POLICY_CONTRACT_ADDRESS", c.PolicyContractAddress},
		}
		if c.WeatherProvider == WeatherOpenWeather {
			required = append(required, struct{ name, val string }{"OPENWEATHER_API_KEY", c.OpenWeatherAPIKey})
		}
		for _, r := range required {
			if r.val == "" {
				errs = append(errs, fmt.Errorf("ai mode: missing required env var: %s", r.name))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("MODE must be %q or %q, got %q", ModeAI, ModeHeuristic, c.Mode))
	}

	return errors.Join(errs...)
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	// A plain integer is read as seconds.
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Second
	}
	// Fall back to Go duration syntax: "30s", "5m", "1h", etc.
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}
