package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "ENV", "MODE", "CORS_ORIGIN",
	"MODEL_FAILOVER", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "DEEPSEEK_API_KEY", "DEEPSEEK_MODEL",
	"GEMINI_API_KEY", "GEMINI_MODEL",
	"WEATHER_PROVIDER", "OPENWEATHER_API_KEY",
	"CHAIN_RPC_URL", "CHAIN_PRIVATE_KEY", "POLICY_CONTRACT_ADDRESS",
	"WEATHER_TIMEOUT", "MODEL_TIMEOUT", "PAYOUT_TIMEOUT", "REQUEST_TIMEOUT",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them after
// the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_HeuristicDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFiles()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, ModeHeuristic, cfg.Mode)
	assert.Equal(t, WeatherOpenWeather, cfg.WeatherProvider)
	assert.Equal(t, 10*time.Second, cfg.WeatherTimeout)
	assert.Equal(t, 60*time.Second, cfg.ModelTimeout)
	assert.Equal(t, 2*time.Minute, cfg.PayoutTimeout)
	assert.Equal(t, 3*time.Minute, cfg.RequestTimeout)
	assert.False(t, cfg.ModelFailover)
}

func TestLoad_ModelFailover(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_FAILOVER", "true")

	cfg, err := LoadFiles()
	require.NoError(t, err)
	assert.True(t, cfg.ModelFailover)

	t.Setenv("MODEL_FAILOVER", "sometimes")
	cfg, err = LoadFiles()
	require.NoError(t, err)
	assert.False(t, cfg.ModelFailover)
}

func TestLoad_AIModeRequiresEverything(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODE", "AI")

	_, err := LoadFiles()
	require.Error(t, err)
	for _, want := range []string{
		"ANTHROPIC_API_KEY",
		"CHAIN_RPC_URL",
		"CHAIN_PRIVATE_KEY",
		"POLICY_CONTRACT_ADDRESS",
		"OPENWEATHER_API_KEY",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_AIModeComplete(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODE", "ai")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("WEATHER_PROVIDER", "openmeteo")
	t.Setenv("CHAIN_RPC_URL", "http://127.0.0.1:8545")
	t.Setenv("CHAIN_PRIVATE_KEY", "0xabc")
	t.Setenv("POLICY_CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000001")
	t.Setenv("MODEL_TIMEOUT", "90")
	t.Setenv("PAYOUT_TIMEOUT", "5m")

	cfg, err := LoadFiles()
	require.NoError(t, err)
	assert.True(t, cfg.HasModel())
	assert.Equal(t, 90*time.Second, cfg.ModelTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PayoutTimeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODE", "oracle")
	t.Setenv("WEATHER_PROVIDER", "almanac")
	t.Setenv("PORT", "http")

	_, err := LoadFiles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODE")
	assert.Contains(t, err.Error(), "WEATHER_PROVIDER")
	assert.Contains(t, err.Error(), "PORT")
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=4000\nCORS_ORIGIN=\"https://cropsafe.app\"\n# comment\n"), 0o600))

	cfg, err := LoadFiles(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://cropsafe.app", cfg.CORSOrigin)
}
