package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// ProviderRegistry 线程安全的 Provider 注册表，议会成员按 provider 名称查找
type ProviderRegistry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewProviderRegistry 创建空注册表
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]Provider),
	}
}

// Register 以名称注册 Provider，同名覆盖
func (r *ProviderRegistry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get 按名称获取 Provider
func (r *ProviderRegistry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// MustGet 获取 Provider，未注册时返回 ErrProviderUnavailable
func (r *ProviderRegistry) MustGet(name string) (Provider, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, &Error{
			Code:       ErrProviderUnavailable,
			Message:    fmt.Sprintf("provider %q not registered", name),
			HTTPStatus: http.StatusServiceUnavailable,
			Provider:   name,
		}
	}
	return p, nil
}

// List 返回已注册 Provider 名称（排序）
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len 返回注册数量
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// HealthCheckAll 依次探活所有 Provider
func (r *ProviderRegistry) HealthCheckAll(ctx context.Context) map[string]error {
	out := make(map[string]error)
	for _, name := range r.List() {
		p, _ := r.Get(name)
		if p == nil {
			continue
		}
		_, err := p.HealthCheck(ctx)
		out[name] = err
	}
	return out
}
