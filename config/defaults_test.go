package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEmpty(t, cfg.Council.Members)
	assert.NotEmpty(t, cfg.Providers)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NotEqual(t, MetricsConfig{}, cfg.Metrics)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
}

func TestDefaultConfig_Validates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

// --- Individual Default*Config functions ---

func TestDefaultCouncilConfig(t *testing.T) {
	cfg := DefaultCouncilConfig()
	require.Len(t, cfg.Members, 3)
	assert.Equal(t, "openai/gpt-5", cfg.Members[0].MemberID())
	assert.Equal(t, "google/gemini-3-pro-preview", cfg.Members[1].MemberID())
	assert.Equal(t, "anthropic/claude-sonnet-4-5-20250929", cfg.Members[2].MemberID())
	for _, m := range cfg.Members {
		assert.InDelta(t, 0.7, m.Temperature, 0.001)
	}

	assert.Equal(t, "google/gemini-3-pro-preview", cfg.Chairman.MemberID())
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, 120*time.Second, cfg.ChairmanTimeout)
	assert.Equal(t, "FINAL RANKING:", cfg.RankingHeader)
	assert.Equal(t, "count", cfg.SelfVotePolicy)
}

func TestDefaultProviders(t *testing.T) {
	p := DefaultProviders()
	for _, name := range []string{"openai", "google", "anthropic"} {
		cfg, ok := p[name]
		require.True(t, ok, name)
		assert.Equal(t, 120*time.Second, cfg.Timeout)
	}
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "llmcouncil", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 0.001)
}

func TestDefaultMetricsConfig(t *testing.T) {
	cfg := DefaultMetricsConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "llmcouncil", cfg.Namespace)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "data/conversations.db", cfg.DSN())
}
