package stats

import (
	"context"
	"regexp"
	"time"

	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
)

var placeholderPattern = regexp.MustCompile(`\[\[__[A-Z_]+_\d+__\]\]`)

// Middleware 统计中间件
type Middleware struct {
	next     providers.Engine
	recorder *Recorder
}

var _ providers.Engine = (*Middleware)(nil)

// Wrap 创建统计中间件
func Wrap(next providers.Engine, recorder *Recorder) *Middleware {
	return &Middleware{next: next, recorder: recorder}
}

// Name 返回被包装引擎的名称
func (m *Middleware) Name() string {
	return m.next.Name()
}

// Translate 带统计的翻译方法
func (m *Middleware) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	start := time.Now()
	resp, err := m.next.Translate(ctx, req)

	result := RequestResult{
		Success: err == nil,
		Latency: time.Since(start),
	}
	if err != nil {
		result.ErrorCode = providers.CodeOf(err)
	} else {
		result.TokensIn = resp.TokensIn
		result.TokensOut = resp.TokensOut
		result.PlaceholdersSent, result.PlaceholdersLost = lostPlaceholders(req.Text, resp.Text)
	}
	m.recorder.Record(m.next.Name(), result)

	return resp, err
}

// lostPlaceholders 统计请求中出现、但响应里完全没有出现的占位符
func lostPlaceholders(sent, received string) (int, int) {
	keys := placeholderPattern.FindAllString(sent, -1)
	if len(keys) == 0 {
		return 0, 0
	}
	seen := make(map[string]bool)
	for _, k := range placeholderPattern.FindAllString(received, -1) {
		seen[k] = true
	}
	unique := make(map[string]bool)
	lost := 0
	for _, k := range keys {
		if unique[k] {
			continue
		}
		unique[k] = true
		if !seen[k] {
			lost++
		}
	}
	return len(unique), lost
}
