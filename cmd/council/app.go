package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/BaSui01/llmcouncil/config"
	"github.com/BaSui01/llmcouncil/council"
	"github.com/BaSui01/llmcouncil/internal/metrics"
	"github.com/BaSui01/llmcouncil/internal/telemetry"
	"github.com/BaSui01/llmcouncil/llm"
	"github.com/BaSui01/llmcouncil/llm/providers"
	"github.com/BaSui01/llmcouncil/llm/providers/openaicompat"
	"github.com/BaSui01/llmcouncil/llm/retry"
	"github.com/BaSui01/llmcouncil/llm/tokenizer"
	"github.com/BaSui01/llmcouncil/store"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// app 一次命令执行所需的全部组件
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *llm.ProviderRegistry
	pipeline  *council.Pipeline
	members   []council.CouncilMember
	chairman  council.CouncilMember
	metrics   *metrics.Collector
	promReg   *prometheus.Registry
	telemetry *telemetry.Providers
	store     *store.Store
}

// newApp 按配置装配 Provider、Invoker、指标、遥测与 Pipeline；withStore 时同时打开会话存储
func newApp(cfg *config.Config, logger *zap.Logger, withStore bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	a.telemetry = otelProviders

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.registry = registry

	recorders := []council.Recorder{}
	if cfg.Metrics.Enabled {
		a.promReg = prometheus.NewRegistry()
		a.metrics = metrics.NewCollectorWithRegistry(a.promReg, cfg.Metrics.Namespace, logger)
		recorders = append(recorders, a.metrics)
	}
	if a.telemetry.Enabled() {
		meterRecorder, err := telemetry.NewMeterRecorder(a.telemetry.Meter())
		if err != nil {
			logger.Warn("failed to create otel instruments", zap.Error(err))
		} else {
			recorders = append(recorders, meterRecorder)
		}
	}

	invoker := council.NewProviderInvoker(registry, invokerOptions(cfg, logger, a.metrics)...)

	tokens := tokenizer.NewRegistry()
	a.members = toMembers(cfg.Council.Members)
	a.chairman = toMember(cfg.Council.Chairman)
	a.pipeline = council.NewPipeline(invoker,
		council.WithLogger(logger),
		council.WithTimeout(cfg.Council.Timeout),
		council.WithChairmanTimeout(cfg.Council.ChairmanTimeout),
		council.WithMaxConcurrency(cfg.Council.MaxConcurrency),
		council.WithParser(council.NewParser(cfg.Council.RankingHeader)),
		council.WithSelfVotePolicy(council.SelfVotePolicy(cfg.Council.SelfVotePolicy)),
		council.WithMetrics(council.NewMultiRecorder(recorders...)),
		council.WithTracer(a.telemetry.Tracer()),
		council.WithTokenCounter(tokens.CountTokens),
	)

	if withStore {
		if err := a.openStore(); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStore() error {
	var opts []store.Option
	if a.metrics != nil {
		opts = append(opts, store.WithObserver(a.metrics))
	}
	s, err := store.Open(a.cfg.Database, a.logger, opts...)
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	a.store = s
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store close failed", zap.Error(err))
		}
	}
}

// dumpMetrics 以 Prometheus 文本格式输出本次进程采集的指标
func (a *app) dumpMetrics(w io.Writer) error {
	if a.promReg == nil {
		return errors.New("metrics are disabled")
	}
	families, err := a.promReg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// usedProviders 返回成员与主席用到的 provider 名称（排序去重）
func usedProviders(cfg *config.Config) []string {
	seen := make(map[string]bool)
	for _, m := range cfg.Council.Members {
		seen[m.Provider] = true
	}
	seen[cfg.Council.Chairman.Provider] = true
	names := make([]string, 0, len(seen))
	for name := range seen {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// buildRegistry 为每个用到的 provider 创建 OpenAI 兼容客户端。
// 已知服务商使用内置预设，配置文件中的 base_url / endpoint_path / api_key 优先。
func buildRegistry(cfg *config.Config, logger *zap.Logger) (*llm.ProviderRegistry, error) {
	registry := llm.NewProviderRegistry()
	for _, name := range usedProviders(cfg) {
		pc := cfg.Providers[name]
		preset, known := providers.LookupPreset(name)

		baseURL := pc.BaseURL
		if baseURL == "" {
			baseURL = preset.BaseURL
		}
		if baseURL == "" {
			return nil, fmt.Errorf("provider %q is not a known preset and has no base_url", name)
		}
		endpointPath := pc.EndpointPath
		if endpointPath == "" {
			endpointPath = preset.EndpointPath
		}

		apiKey := pc.ResolveAPIKey(preset.APIKeyEnv)
		if apiKey == "" && known && preset.APIKeyEnv != "" {
			logger.Warn("provider has no api key", zap.String("provider", name), zap.String("env", preset.APIKeyEnv))
		}

		registry.Register(name, openaicompat.New(openaicompat.Config{
			ProviderName:   name,
			APIKey:         apiKey,
			BaseURL:        baseURL,
			Timeout:        pc.Timeout,
			EndpointPath:   endpointPath,
			ModelsEndpoint: preset.ModelsEndpoint,
		}, logger))
	}
	return registry, nil
}

// invokerOptions 按 provider 配置限流与重试
func invokerOptions(cfg *config.Config, logger *zap.Logger, usage *metrics.Collector) []council.ProviderInvokerOption {
	opts := []council.ProviderInvokerOption{council.WithInvokerLogger(logger)}
	if usage != nil {
		opts = append(opts, council.WithUsageRecorder(usage))
	}
	for name, pc := range cfg.Providers {
		opts = append(opts,
			council.WithRateLimit(name, pc.RateLimitRPS, pc.RateLimitBurst),
			council.WithRetryPolicy(name, retryPolicy(pc.MaxRetries)),
		)
	}
	return opts
}

func retryPolicy(maxRetries int) *retry.RetryPolicy {
	if maxRetries <= 0 {
		return retry.NoRetry()
	}
	p := retry.DefaultRetryPolicy()
	p.MaxRetries = maxRetries
	return p
}

func toMember(m config.MemberConfig) council.CouncilMember {
	return council.CouncilMember{
		ID:          m.MemberID(),
		Provider:    m.Provider,
		Model:       m.Model,
		Temperature: float32(m.Temperature),
		MaxTokens:   m.MaxTokens,
		Timeout:     m.Timeout,
	}
}

func toMembers(ms []config.MemberConfig) []council.CouncilMember {
	out := make([]council.CouncilMember, len(ms))
	for i, m := range ms {
		out[i] = toMember(m)
	}
	return out
}
