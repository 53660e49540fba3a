package tokenizer

import (
	"strings"
	"sync"
)

// Tokenizer 是统一的 Token 计数接口
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数，包含每条消息的角色/分隔符开销
	CountMessages(messages []Message) (int, error)

	// Name 返回分词器名称
	Name() string
}

// Message 是 tokenizer 包内部使用的轻量消息，避免依赖 llm 包
type Message struct {
	Role    string
	Content string
}

// Registry 按模型缓存分词器
type Registry struct {
	mu         sync.RWMutex
	tokenizers map[string]Tokenizer
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{tokenizers: make(map[string]Tokenizer)}
}

// Register 为模型注册分词器
func (r *Registry) Register(model string, t Tokenizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenizers[model] = t
}

// ForModel 返回模型对应的分词器。
// 未注册时：OpenAI 系模型创建 tiktoken 分词器，其余使用估算器。
// 形如 "openai/gpt-5" 的 provider 前缀会被忽略。
func (r *Registry) ForModel(model string) Tokenizer {
	r.mu.RLock()
	t, ok := r.tokenizers[model]
	r.mu.RUnlock()
	if ok {
		return t
	}

	bare := model
	if i := strings.LastIndex(bare, "/"); i >= 0 {
		bare = bare[i+1:]
	}

	if enc, ok := lookupEncoding(bare); ok {
		t = &fallbackTokenizer{
			primary:  newTiktoken(enc),
			fallback: NewEstimator(),
		}
	} else {
		t = NewEstimator()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tokenizers[model]; ok {
		return existing
	}
	r.tokenizers[model] = t
	return t
}

// CountTokens 便捷方法：按模型计数，出错时返回估算值
func (r *Registry) CountTokens(model, text string) int {
	n, err := r.ForModel(model).CountTokens(text)
	if err != nil {
		n, _ = NewEstimator().CountTokens(text)
	}
	return n
}

// fallbackTokenizer 在主分词器初始化失败（例如无法加载 BPE 数据）时使用估算器
type fallbackTokenizer struct {
	primary  Tokenizer
	fallback Tokenizer
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	if n, err := f.primary.CountTokens(text); err == nil {
		return n, nil
	}
	return f.fallback.CountTokens(text)
}

func (f *fallbackTokenizer) CountMessages(messages []Message) (int, error) {
	if n, err := f.primary.CountMessages(messages); err == nil {
		return n, nil
	}
	return f.fallback.CountMessages(messages)
}

func (f *fallbackTokenizer) Name() string {
	return f.primary.Name() + "|" + f.fallback.Name()
}
