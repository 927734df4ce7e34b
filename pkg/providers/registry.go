package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor 根据配置构造引擎
type Constructor func(cfg Config) (Engine, error)

// Registry 引擎构造器注册表
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry 创建新的注册表
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register 注册构造器
func (r *Registry) Register(name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	r.constructors[name] = ctor
	return nil
}

// Build 按名称构造引擎
func (r *Registry) Build(cfg Config) (Engine, error) {
	r.mu.RLock()
	ctor, exists := r.constructors[cfg.Provider]
	r.mu.RUnlock()

	if !exists {
		return nil, NewError(cfg.Provider, CodeInvalidConfig,
			fmt.Sprintf("unsupported provider %q (available: %v)", cfg.Provider, r.List()), nil)
	}
	return ctor(cfg)
}

// List 列出所有已注册名称（排序）
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
