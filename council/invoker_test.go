package council_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/llmcouncil/council"
	"github.com/BaSui01/llmcouncil/llm"
	"github.com/BaSui01/llmcouncil/llm/retry"
	"github.com/BaSui01/llmcouncil/testutil/fixtures"
	"github.com/BaSui01/llmcouncil/testutil/mocks"
	"github.com/BaSui01/llmcouncil/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fastRetry(maxRetries int) *retry.RetryPolicy {
	return &retry.RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

type usageCall struct {
	provider, model, status string
	prompt, completion      int
}

type usageRecorder struct {
	mu    sync.Mutex
	calls []usageCall
}

func (u *usageRecorder) RecordLLMRequest(provider, model, status string, _ time.Duration, prompt, completion int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, usageCall{provider, model, status, prompt, completion})
}

func TestProviderInvoker_Success(t *testing.T) {
	provider := mocks.NewMockProvider("openai").WithResponse("the answer").WithTokenUsage(12, 34)
	registry := llm.NewProviderRegistry()
	registry.Register("openai", provider)

	usage := &usageRecorder{}
	inv := council.NewProviderInvoker(registry,
		council.WithUsageRecorder(usage),
		council.WithInvokerLogger(zaptest.NewLogger(t)),
	)

	member := council.CouncilMember{ID: "openai/gpt-5", Provider: "openai", Model: "gpt-5", Temperature: 0.7, MaxTokens: 256}
	ctx := types.WithSessionID(context.Background(), "session-1")
	out, err := inv.Invoke(ctx, member, "what is go?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)

	req := provider.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "gpt-5", req.Model)
	assert.Equal(t, float32(0.7), req.Temperature)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Equal(t, "session-1", req.TraceID)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Equal(t, "what is go?", req.Messages[0].Content)

	require.Len(t, usage.calls, 1)
	assert.Equal(t, usageCall{"openai", "gpt-5", "success", 12, 34}, usage.calls[0])
}

func TestProviderInvoker_TraceIDPreferred(t *testing.T) {
	provider := mocks.NewMockProvider("openai")
	registry := llm.NewProviderRegistry()
	registry.Register("openai", provider)
	inv := council.NewProviderInvoker(registry)

	ctx := types.WithTraceID(types.WithSessionID(context.Background(), "session-1"), "trace-9")
	_, err := inv.Invoke(ctx, fixtures.Member("openai", "gpt-5"), "q")
	require.NoError(t, err)
	assert.Equal(t, "trace-9", provider.LastRequest().TraceID)
}

func TestProviderInvoker_UnknownProvider(t *testing.T) {
	inv := council.NewProviderInvoker(llm.NewProviderRegistry())

	_, err := inv.Invoke(context.Background(), fixtures.Member("nope", "m"), "q")
	require.Error(t, err)
	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrProviderUnavailable, llmErr.Code)
}

func TestProviderInvoker_RetriesRetryableErrors(t *testing.T) {
	retryable := &llm.Error{Code: llm.ErrRateLimited, Message: "slow down", Retryable: true}
	provider := mocks.NewMockProvider("openai").
		WithResponse("eventually").
		WithErrorSequence(retryable, retryable)
	registry := llm.NewProviderRegistry()
	registry.Register("openai", provider)

	usage := &usageRecorder{}
	inv := council.NewProviderInvoker(registry,
		council.WithRetryPolicy("openai", fastRetry(2)),
		council.WithUsageRecorder(usage),
	)

	out, err := inv.Invoke(context.Background(), fixtures.Member("openai", "gpt-5"), "q")
	require.NoError(t, err)
	assert.Equal(t, "eventually", out)
	assert.Equal(t, 3, provider.CallCount())
	require.Len(t, usage.calls, 3)
	assert.Equal(t, "error", usage.calls[0].status)
	assert.Equal(t, "success", usage.calls[2].status)
}

func TestProviderInvoker_DoesNotRetryPermanentErrors(t *testing.T) {
	permanent := &llm.Error{Code: llm.ErrUnauthorized, Message: "bad key", Retryable: false}
	provider := mocks.NewMockProvider("openai").WithError(permanent)
	registry := llm.NewProviderRegistry()
	registry.Register("openai", provider)

	inv := council.NewProviderInvoker(registry, council.WithRetryPolicy("", fastRetry(3)))

	_, err := inv.Invoke(context.Background(), fixtures.Member("openai", "gpt-5"), "q")
	require.Error(t, err)
	assert.Equal(t, 1, provider.CallCount())
	assert.ErrorIs(t, err, permanent)
}

func TestProviderInvoker_RetriesExhausted(t *testing.T) {
	retryable := &llm.Error{Code: llm.ErrUpstreamError, Message: "502", Retryable: true}
	provider := mocks.NewMockProvider("openai").WithError(retryable)
	registry := llm.NewProviderRegistry()
	registry.Register("openai", provider)

	inv := council.NewProviderInvoker(registry, council.WithRetryPolicy("openai", fastRetry(1)))

	_, err := inv.Invoke(context.Background(), fixtures.Member("openai", "gpt-5"), "q")
	require.Error(t, err)
	assert.Equal(t, 2, provider.CallCount())
	assert.Contains(t, err.Error(), "failed after 1 retries")
}

func TestProviderInvoker_EmptyChoices(t *testing.T) {
	provider := mocks.NewMockProvider("openai").
		WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			return fixtures.EmptyChoicesResponse(), nil
		})
	registry := llm.NewProviderRegistry()
	registry.Register("openai", provider)

	inv := council.NewProviderInvoker(registry, council.WithRetryPolicy("", retry.NoRetry()))

	_, err := inv.Invoke(context.Background(), fixtures.Member("openai", "gpt-5"), "q")
	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrEmptyResponse, llmErr.Code)
}

func TestProviderInvoker_RateLimit(t *testing.T) {
	provider := mocks.NewMockProvider("openai")
	registry := llm.NewProviderRegistry()
	registry.Register("openai", provider)

	// 突发 1，每秒 20 次：第 3 次调用至少等待约 100ms
	inv := council.NewProviderInvoker(registry, council.WithRateLimit("openai", 20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := inv.Invoke(context.Background(), fixtures.Member("openai", "gpt-5"), "q")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestProviderInvoker_RateLimitHonoursContext(t *testing.T) {
	provider := mocks.NewMockProvider("openai")
	registry := llm.NewProviderRegistry()
	registry.Register("openai", provider)

	inv := council.NewProviderInvoker(registry,
		council.WithRateLimit("openai", 0.1, 1),
		council.WithRetryPolicy("", retry.NoRetry()),
	)

	_, err := inv.Invoke(context.Background(), fixtures.Member("openai", "gpt-5"), "q")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = inv.Invoke(ctx, fixtures.Member("openai", "gpt-5"), "q")
	require.Error(t, err)
	assert.Equal(t, 1, provider.CallCount())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, council.IsRetryable(&llm.Error{Retryable: true}))
	assert.False(t, council.IsRetryable(&llm.Error{Retryable: false}))
	assert.True(t, council.IsRetryable(types.NewError(types.ErrInvocationTimeout, "t").WithRetryable(true)))
	assert.False(t, council.IsRetryable(errors.New("plain")))
}

// ---------------------------------------------------------------------------
// ProviderInvoker 驱动完整流水线
// ---------------------------------------------------------------------------

func TestProviderInvoker_PipelineChairmanProviderFails(t *testing.T) {
	// 两个成员 × 两轮 = 4 次成功调用，第 5 次（主席）失败
	provider := mocks.NewMockProvider("mock").WithResponse("an answer").WithFailAfter(4)
	registry := llm.NewProviderRegistry()
	registry.Register("mock", provider)
	inv := council.NewProviderInvoker(registry, council.WithRetryPolicy("", retry.NoRetry()))

	result, err := council.NewPipeline(inv).
		Run(context.Background(), "q", fixtures.Council(2), fixtures.Chairman())
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrSynthesisFailed))
	require.NotNil(t, result)
	assert.Equal(t, council.StateFailed, result.State)
	assert.Len(t, result.Submissions, 2)

	calls := provider.Calls()
	require.Len(t, calls, 5)
	for _, c := range calls[:4] {
		assert.NoError(t, c.Error)
	}
	assert.Error(t, calls[4].Error)
	assert.Equal(t, "chairman", calls[4].Request.Model)
}

func TestProviderInvoker_PipelineSlowProviderTimesOut(t *testing.T) {
	provider := mocks.NewMockProvider("mock").WithDelay(time.Second)
	registry := llm.NewProviderRegistry()
	registry.Register("mock", provider)
	inv := council.NewProviderInvoker(registry, council.WithRetryPolicy("", retry.NoRetry()))

	start := time.Now()
	result, err := council.NewPipeline(inv, council.WithTimeout(20*time.Millisecond)).
		Run(context.Background(), "q", fixtures.Council(2), fixtures.Chairman())
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	assert.True(t, types.IsErrorCode(err, types.ErrAllMembersFailed))
	require.Len(t, result.Responses, 2)
	for _, r := range result.Responses {
		assert.Equal(t, string(types.ErrInvocationTimeout), r.ErrorCode)
	}
	assert.Equal(t, 2, provider.CallCount())
}
