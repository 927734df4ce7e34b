package test

import (
	"context"
	"sync/atomic"

	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
)

// MockEngine 进程内的翻译引擎，用于调度器测试
type MockEngine struct {
	// Fn 处理一次请求；为 nil 时使用 BilingualEcho
	Fn    func(ctx context.Context, req *providers.Request) (string, error)
	calls atomic.Int64
}

var _ providers.Engine = (*MockEngine)(nil)

// Name 引擎名称
func (m *MockEngine) Name() string {
	return "mock"
}

// Translate 执行翻译
func (m *MockEngine) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	m.calls.Add(1)
	if m.Fn == nil {
		return &providers.Response{Text: BilingualEcho(req.Text), Model: "mock"}, nil
	}
	text, err := m.Fn(ctx, req)
	if err != nil {
		return nil, err
	}
	return &providers.Response{Text: text, Model: "mock"}, nil
}

// Calls 调用次数
func (m *MockEngine) Calls() int {
	return int(m.calls.Load())
}
