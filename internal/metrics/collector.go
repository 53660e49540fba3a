// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 审议指标
	deliberationsTotal   *prometheus.CounterVec
	deliberationDuration *prometheus.HistogramVec
	stageDuration        *prometheus.HistogramVec
	stateTransitions     *prometheus.CounterVec

	// 成员调用指标
	memberInvocationsTotal   *prometheus.CounterVec
	memberInvocationDuration *prometheus.HistogramVec
	promptTokens             *prometheus.CounterVec

	// 排名解析指标
	rankingParses *prometheus.CounterVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	// 数据库指标
	dbQueryDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer, namespace, logger)
}

// NewCollectorWithRegistry 创建指标收集器，注册到指定 Registerer
func NewCollectorWithRegistry(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 审议指标
	c.deliberationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliberations_total",
			Help:      "Total number of deliberations by outcome",
		},
		[]string{"outcome"},
	)

	c.deliberationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deliberation_duration_seconds",
			Help:      "End-to-end deliberation duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	c.stageDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Deliberation stage duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	c.stateTransitions = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of deliberation state transitions",
		},
		[]string{"from", "to"},
	)

	// 成员调用指标
	c.memberInvocationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_invocations_total",
			Help:      "Total number of council member invocations",
		},
		[]string{"round", "status"},
	)

	c.memberInvocationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "member_invocation_duration_seconds",
			Help:      "Council member invocation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"round"},
	)

	c.promptTokens = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_tokens_total",
			Help:      "Total number of prompt tokens sent to council members",
		},
		[]string{"round"},
	)

	c.rankingParses = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_parses_total",
			Help:      "Total number of ranking parses by strategy",
		},
		[]string{"strategy"},
	)

	// LLM 指标
	c.llmRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens reported by providers",
		},
		[]string{"provider", "model", "type"},
	)

	// 数据库指标
	c.dbQueryDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Conversation store query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🏛️ 审议指标记录
// =============================================================================

// RecordDeliberation 记录一次审议的结果与耗时
func (c *Collector) RecordDeliberation(outcome string, duration time.Duration) {
	c.deliberationsTotal.WithLabelValues(outcome).Inc()
	c.deliberationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordStage 记录阶段耗时
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordTransition 记录状态转换
func (c *Collector) RecordTransition(from, to string) {
	c.stateTransitions.WithLabelValues(from, to).Inc()
}

// RecordInvocation 记录成员调用
func (c *Collector) RecordInvocation(round, status string, duration time.Duration) {
	c.memberInvocationsTotal.WithLabelValues(round, status).Inc()
	c.memberInvocationDuration.WithLabelValues(round).Observe(duration.Seconds())
}

// RecordPromptTokens 记录提示词 token 数
func (c *Collector) RecordPromptTokens(round string, tokens int) {
	c.promptTokens.WithLabelValues(round).Add(float64(tokens))
}

// RecordParse 记录排名解析策略
func (c *Collector) RecordParse(strategy string) {
	c.rankingParses.WithLabelValues(strategy).Inc()
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// RecordLLMRequest 记录 LLM 请求
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
