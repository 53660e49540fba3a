// MockInvoker 议会成员调用的测试模拟实现。
//
// 按成员与轮次编排响应，支持错误、延迟与 panic 注入，并记录每次调用。
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/llmcouncil/council"
	"github.com/BaSui01/llmcouncil/types"
)

// AnyRound 匹配任意轮次
const AnyRound = ""

// --- MockInvoker 结构 ---

// Behavior 单个成员在某一轮的行为
type Behavior struct {
	Response string
	Err      error
	Delay    time.Duration
	Panic    any
	Func     func(ctx context.Context, member council.CouncilMember, prompt string) (string, error)
}

// InvokerCall 记录单次调用
type InvokerCall struct {
	MemberID string
	Round    string
	Prompt   string
	At       time.Time
}

type scriptKey struct {
	memberID string
	round    string
}

// MockInvoker 实现 council.Invoker
type MockInvoker struct {
	mu sync.Mutex

	scripts  map[scriptKey]Behavior
	fallback func(member council.CouncilMember, round, prompt string) string
	calls    []InvokerCall
}

var _ council.Invoker = (*MockInvoker)(nil)

// --- 构造函数和 Builder 方法 ---

// NewMockInvoker 创建新的 MockInvoker。
// 未编排的调用返回 "<round> answer from <member>"。
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		scripts: make(map[scriptKey]Behavior),
		fallback: func(member council.CouncilMember, round, _ string) string {
			return fmt.Sprintf("%s answer from %s", round, member.ID)
		},
		calls: []InvokerCall{},
	}
}

// On 为成员在某一轮设置完整行为；round 为 AnyRound 时对所有轮次生效
func (m *MockInvoker) On(memberID, round string, b Behavior) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[scriptKey{memberID, round}] = b
	return m
}

// WithResponse 设置固定响应内容
func (m *MockInvoker) WithResponse(memberID, round, response string) *MockInvoker {
	return m.On(memberID, round, Behavior{Response: response})
}

// WithError 设置返回错误
func (m *MockInvoker) WithError(memberID, round string, err error) *MockInvoker {
	return m.On(memberID, round, Behavior{Err: err})
}

// WithDelay 设置响应延迟，延迟期间响应 ctx 取消
func (m *MockInvoker) WithDelay(memberID, round string, delay time.Duration, response string) *MockInvoker {
	return m.On(memberID, round, Behavior{Delay: delay, Response: response})
}

// WithPanic 调用时 panic
func (m *MockInvoker) WithPanic(memberID, round string, v any) *MockInvoker {
	return m.On(memberID, round, Behavior{Panic: v})
}

// WithFunc 设置自定义调用函数
func (m *MockInvoker) WithFunc(memberID, round string, fn func(ctx context.Context, member council.CouncilMember, prompt string) (string, error)) *MockInvoker {
	return m.On(memberID, round, Behavior{Func: fn})
}

// WithFallback 设置未编排调用的默认响应
func (m *MockInvoker) WithFallback(fn func(member council.CouncilMember, round, prompt string) string) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
	return m
}

// --- council.Invoker 实现 ---

// Invoke 按编排返回响应
func (m *MockInvoker) Invoke(ctx context.Context, member council.CouncilMember, prompt string) (string, error) {
	round, _ := types.Round(ctx)

	m.mu.Lock()
	m.calls = append(m.calls, InvokerCall{MemberID: member.ID, Round: round, Prompt: prompt, At: time.Now()})
	b, ok := m.scripts[scriptKey{member.ID, round}]
	if !ok {
		b, ok = m.scripts[scriptKey{member.ID, AnyRound}]
	}
	fallback := m.fallback
	m.mu.Unlock()

	if !ok {
		return fallback(member, round, prompt), nil
	}

	if b.Delay > 0 {
		select {
		case <-time.After(b.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if b.Panic != nil {
		panic(b.Panic)
	}
	if b.Func != nil {
		return b.Func(ctx, member, prompt)
	}
	if b.Err != nil {
		return "", b.Err
	}
	return b.Response, nil
}

// --- 调用记录 ---

// Calls 返回所有调用记录（副本）
func (m *MockInvoker) Calls() []InvokerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InvokerCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor 返回某一轮的调用记录
func (m *MockInvoker) CallsFor(round string) []InvokerCall {
	var out []InvokerCall
	for _, c := range m.Calls() {
		if c.Round == round {
			out = append(out, c)
		}
	}
	return out
}

// CallCount 返回调用次数
func (m *MockInvoker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset 清空调用记录
func (m *MockInvoker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = []InvokerCall{}
}
