package council

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/llmcouncil/llm"
	"github.com/BaSui01/llmcouncil/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// tracerName 默认 tracer 名称
const tracerName = "github.com/BaSui01/llmcouncil/council"

// 调用状态（指标标签）
const (
	statusSuccess = "success"
	statusError   = "error"
	statusTimeout = "timeout"
)

// CollectorConfig 收集器配置
type CollectorConfig struct {
	// MaxConcurrency 单轮最大并发调用数，0 表示不限制
	MaxConcurrency int
	Recorder       Recorder
	Tracer         trace.Tracer
	// Tokens 可选，用于统计提示词 token 数
	Tokens TokenCounter
}

// Collector 并发调用一轮中的所有成员并等待全部完成。
// 单个成员的失败、超时或 panic 只会变成一条失败的 ModelResponse。
type Collector struct {
	invoker  Invoker
	cfg      CollectorConfig
	recorder Recorder
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewCollector 创建收集器
func NewCollector(invoker Invoker, cfg CollectorConfig, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		invoker:  invoker,
		cfg:      cfg,
		recorder: cfg.Recorder,
		tracer:   cfg.Tracer,
		logger:   logger.With(zap.String("component", "collector")),
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// CollectPrompt 向所有成员发送同一个提示词
func (c *Collector) CollectPrompt(ctx context.Context, members []CouncilMember, prompt string, timeout time.Duration) ([]ModelResponse, error) {
	return c.Collect(ctx, members, func(CouncilMember) string { return prompt }, timeout)
}

// Collect 为每个成员构造提示词并并发调用。
//
// 返回值与 members 一一对应（成员顺序，而非完成顺序）。
// 没有任何成员成功时，仍返回全部失败记录，同时返回 ALL_MEMBERS_FAILED 错误。
// 轮次从 ctx 中读取（types.WithRound）。
func (c *Collector) Collect(ctx context.Context, members []CouncilMember, promptFor func(CouncilMember) string, timeout time.Duration) ([]ModelResponse, error) {
	round, _ := types.Round(ctx)
	responses := make([]ModelResponse, len(members))

	var g errgroup.Group
	if c.cfg.MaxConcurrency > 0 {
		g.SetLimit(c.cfg.MaxConcurrency)
	}
	for i, member := range members {
		i, member := i, member.normalized()
		g.Go(func() error {
			responses[i] = c.invoke(ctx, round, member, promptFor(member), timeout)
			return nil // 成员之间互不取消
		})
	}
	_ = g.Wait()

	failed := 0
	for _, resp := range responses {
		if !resp.Succeeded {
			failed++
		}
	}
	if failed == len(responses) {
		return responses, types.NewError(types.ErrAllMembersFailed,
			fmt.Sprintf("all %d members failed in round %s", len(responses), round)).
			WithRound(round)
	}
	return responses, nil
}

func (c *Collector) invoke(ctx context.Context, round string, member CouncilMember, prompt string, timeout time.Duration) ModelResponse {
	if member.Timeout > 0 {
		timeout = member.Timeout
	}
	ctx = types.WithMemberID(ctx, member.ID)
	ctx, span := c.tracer.Start(ctx, "council.invoke", trace.WithAttributes(
		attribute.String("council.round", round),
		attribute.String("council.member_id", member.ID),
		attribute.String("llm.model", member.Model),
	))
	defer span.End()

	if c.cfg.Tokens != nil {
		tokens := c.cfg.Tokens(member.Model, prompt)
		c.recorder.RecordPromptTokens(round, tokens)
		span.SetAttributes(attribute.Int("council.prompt_tokens", tokens))
	}

	start := time.Now()
	content, err := c.call(ctx, member, prompt, timeout)
	latency := time.Since(start)

	if err != nil {
		status := statusError
		if types.IsErrorCode(err, types.ErrInvocationTimeout) {
			status = statusTimeout
		}
		c.recorder.RecordInvocation(round, status, latency)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("member invocation failed",
			zap.String("round", round),
			zap.String("member_id", member.ID),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return ModelResponse{
			MemberID:  member.ID,
			Succeeded: false,
			Error:     err.Error(),
			ErrorCode: errorCode(err),
			Latency:   latency,
		}
	}

	c.recorder.RecordInvocation(round, statusSuccess, latency)
	c.logger.Debug("member invocation succeeded",
		zap.String("round", round),
		zap.String("member_id", member.ID),
		zap.Duration("latency", latency),
		zap.Int("content_length", len(content)),
	)
	return ModelResponse{
		MemberID:  member.ID,
		Content:   content,
		Succeeded: true,
		Latency:   latency,
	}
}

type invokeOutcome struct {
	content string
	err     error
}

// call 在独立 goroutine 中执行调用，超时后立即返回，不等待调用方退出
func (c *Collector) call(ctx context.Context, member CouncilMember, prompt string, timeout time.Duration) (string, error) {
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	// 只有本次调用自己的期限到期才算超时；调用方的期限或取消归为中止
	ownDeadline := func() bool {
		return timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil
	}

	ch := make(chan invokeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- invokeOutcome{err: types.NewError(types.ErrInternalError, fmt.Sprintf("invoker panic: %v", r))}
			}
		}()
		content, err := c.invoker.Invoke(ctx, member, prompt)
		ch <- invokeOutcome{content: content, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			if ownDeadline() {
				return "", timeoutError(timeout, out.err)
			}
			if parent.Err() != nil {
				return "", fmt.Errorf("invocation aborted: %w", out.err)
			}
			return "", out.err
		}
		if strings.TrimSpace(out.content) == "" {
			return "", types.NewError(types.ErrEmptyModelOutput, "model returned empty output")
		}
		return out.content, nil
	case <-ctx.Done():
		if ownDeadline() {
			return "", timeoutError(timeout, ctx.Err())
		}
		return "", fmt.Errorf("invocation aborted: %w", ctx.Err())
	}
}

func timeoutError(timeout time.Duration, cause error) error {
	return types.NewError(types.ErrInvocationTimeout,
		fmt.Sprintf("invocation timed out after %s", timeout)).
		WithCause(cause).
		WithRetryable(true)
}

// errorCode 提取结构化错误码，未知错误返回空串
func errorCode(err error) string {
	if code := types.GetErrorCode(err); code != "" {
		return string(code)
	}
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return string(llmErr.Code)
	}
	return ""
}
