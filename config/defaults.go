// =============================================================================
// 📦 llmcouncil 默认配置
// =============================================================================
// 默认议会：三个来自不同服务商的成员 + 一个主席
// =============================================================================
package config

import "time"

const (
	// DefaultTemperature 默认采样温度
	DefaultTemperature = 0.7
	// DefaultTimeout 默认单次调用超时
	DefaultTimeout = 120 * time.Second
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Council:   DefaultCouncilConfig(),
		Providers: DefaultProviders(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
		Database:  DefaultDatabaseConfig(),
	}
}

// DefaultCouncilConfig 返回默认议会配置
func DefaultCouncilConfig() CouncilConfig {
	return CouncilConfig{
		Members: []MemberConfig{
			{Provider: "openai", Model: "gpt-5", Temperature: DefaultTemperature},
			{Provider: "google", Model: "gemini-3-pro-preview", Temperature: DefaultTemperature},
			{Provider: "anthropic", Model: "claude-sonnet-4-5-20250929", Temperature: DefaultTemperature},
		},
		Chairman:        MemberConfig{Provider: "google", Model: "gemini-3-pro-preview", Temperature: DefaultTemperature},
		Timeout:         DefaultTimeout,
		ChairmanTimeout: DefaultTimeout,
		MaxConcurrency:  0,
		RankingHeader:   "FINAL RANKING:",
		SelfVotePolicy:  "count",
	}
}

// DefaultProviders 返回默认服务商配置（BaseURL 与 API Key 环境变量来自内置预设）
func DefaultProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"openai":    {Timeout: DefaultTimeout, MaxRetries: 2},
		"google":    {Timeout: DefaultTimeout, MaxRetries: 2},
		"anthropic": {Timeout: DefaultTimeout, MaxRetries: 2},
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "llmcouncil",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "llmcouncil",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "data/conversations.db",
		SSLMode:         "disable",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
	}
}
