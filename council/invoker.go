package council

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/llmcouncil/llm"
	"github.com/BaSui01/llmcouncil/llm/retry"
	"github.com/BaSui01/llmcouncil/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Invoker 是模型调用后端的唯一契约：向成员发送提示词，返回文本或错误。
// 任何失败对审议核心而言都是同一种"失败"。
type Invoker interface {
	Invoke(ctx context.Context, member CouncilMember, prompt string) (string, error)
}

// InvokerFunc 函数适配器
type InvokerFunc func(ctx context.Context, member CouncilMember, prompt string) (string, error)

// Invoke 实现 Invoker
func (f InvokerFunc) Invoke(ctx context.Context, member CouncilMember, prompt string) (string, error) {
	return f(ctx, member, prompt)
}

// UsageRecorder 记录每次 Provider 请求（由 internal/metrics.Collector 实现）
type UsageRecorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

// ProviderInvoker 把 llm.Provider 注册表适配为 Invoker：
// 按 member.Provider 查找 Provider，经过限流与重试后取第一个 choice 的文本。
type ProviderInvoker struct {
	registry *llm.ProviderRegistry
	logger   *zap.Logger
	usage    UsageRecorder

	defaultPolicy *retry.RetryPolicy
	policies      map[string]*retry.RetryPolicy

	mu       sync.Mutex
	limits   map[string]rate.Limit
	bursts   map[string]int
	limiters map[string]*rate.Limiter
	retryers map[string]*retry.Retryer
}

// ProviderInvokerOption 配置 ProviderInvoker
type ProviderInvokerOption func(*ProviderInvoker)

// WithInvokerLogger 设置日志
func WithInvokerLogger(logger *zap.Logger) ProviderInvokerOption {
	return func(p *ProviderInvoker) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithUsageRecorder 记录 Provider 请求指标
func WithUsageRecorder(r UsageRecorder) ProviderInvokerOption {
	return func(p *ProviderInvoker) { p.usage = r }
}

// WithRateLimit 为某个 provider 设置每秒请求数与突发容量；rps <= 0 表示不限流
func WithRateLimit(provider string, rps float64, burst int) ProviderInvokerOption {
	return func(p *ProviderInvoker) {
		if rps <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		p.limits[provider] = rate.Limit(rps)
		p.bursts[provider] = burst
	}
}

// WithRetryPolicy 为某个 provider 设置重试策略；provider 为空时作为默认策略
func WithRetryPolicy(provider string, policy *retry.RetryPolicy) ProviderInvokerOption {
	return func(p *ProviderInvoker) {
		if provider == "" {
			p.defaultPolicy = policy
			return
		}
		p.policies[provider] = policy
	}
}

// NewProviderInvoker 创建基于 Provider 注册表的 Invoker
func NewProviderInvoker(registry *llm.ProviderRegistry, opts ...ProviderInvokerOption) *ProviderInvoker {
	p := &ProviderInvoker{
		registry:      registry,
		logger:        zap.NewNop(),
		defaultPolicy: retry.DefaultRetryPolicy(),
		policies:      make(map[string]*retry.RetryPolicy),
		limits:        make(map[string]rate.Limit),
		bursts:        make(map[string]int),
		limiters:      make(map[string]*rate.Limiter),
		retryers:      make(map[string]*retry.Retryer),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("component", "provider_invoker"))
	return p
}

// Invoke 实现 Invoker
func (p *ProviderInvoker) Invoke(ctx context.Context, member CouncilMember, prompt string) (string, error) {
	provider, err := p.registry.MustGet(member.Provider)
	if err != nil {
		return "", err
	}

	req := &llm.ChatRequest{
		Model:       member.Model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   member.MaxTokens,
		Temperature: member.Temperature,
	}
	if traceID, ok := types.TraceID(ctx); ok {
		req.TraceID = traceID
	} else if sessionID, ok := types.SessionID(ctx); ok {
		req.TraceID = sessionID
	}

	limiter := p.limiter(member.Provider)
	return retry.Do(ctx, p.retryer(member.Provider), func(ctx context.Context) (string, error) {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		start := time.Now()
		resp, err := provider.Completion(ctx, req)
		p.recordUsage(member, resp, err, time.Since(start))
		if err != nil {
			return "", err
		}

		content, ok := resp.FirstContent()
		if !ok {
			return "", &llm.Error{
				Code:       llm.ErrEmptyResponse,
				Message:    "response contained no choices",
				HTTPStatus: http.StatusBadGateway,
				Provider:   member.Provider,
			}
		}
		return content, nil
	})
}

func (p *ProviderInvoker) recordUsage(member CouncilMember, resp *llm.ChatResponse, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
		p.logger.Debug("provider request failed",
			zap.String("provider", member.Provider),
			zap.String("model", member.Model),
			zap.Error(err),
		)
	}
	if p.usage == nil {
		return
	}
	var promptTokens, completionTokens int
	if resp != nil {
		promptTokens = resp.Usage.PromptTokens
		completionTokens = resp.Usage.CompletionTokens
	}
	p.usage.RecordLLMRequest(member.Provider, member.Model, status, d, promptTokens, completionTokens)
}

func (p *ProviderInvoker) limiter(provider string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.limiters[provider]; ok {
		return l
	}
	limit, ok := p.limits[provider]
	if !ok {
		return nil
	}
	l := rate.NewLimiter(limit, p.bursts[provider])
	p.limiters[provider] = l
	return l
}

func (p *ProviderInvoker) retryer(provider string) *retry.Retryer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.retryers[provider]; ok {
		return r
	}
	policy, ok := p.policies[provider]
	if !ok || policy == nil {
		policy = p.defaultPolicy
	}
	cp := *policy
	if cp.ShouldRetry == nil {
		cp.ShouldRetry = IsRetryable
	}
	r := retry.NewRetryer(&cp, p.logger.With(zap.String("provider", provider)))
	p.retryers[provider] = r
	return r
}

// IsRetryable 只有标记为可重试的 llm.Error / types.Error 才重试
func IsRetryable(err error) bool {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return types.IsRetryable(err)
}
