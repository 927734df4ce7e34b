// Package translator 并发翻译批次：每个批次独立隔离、调用引擎、重组，按输入顺序合并。
package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/chunker"
	"github.com/nerdneilsfield/ocr-bilingual/internal/isolate"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
)

const (
	// DefaultConcurrency 同时在途的翻译请求上限
	DefaultConcurrency = 8
	// DefaultTimeout 单次引擎调用超时
	DefaultTimeout = 120 * time.Second
)

// ErrEmptyResponse 引擎返回了空白内容
var ErrEmptyResponse = errors.New("translation engine returned an empty response")

// Options 调度参数
type Options struct {
	Concurrency  int
	Timeout      time.Duration
	Temperature  float32
	SystemPrompt string
	// Progress 每完成一个批次回调一次，可为 nil
	Progress func(done, total int)
}

// Result 一个批次的翻译结果
type Result struct {
	Index int
	// Separator 切分时该批次前面被去掉的分隔符
	Separator string
	Original  string
	// Text 最终输出；降级时等于 Original
	Text  string
	Lines []Line
	// Degraded 为 true 表示翻译失败、原文直通
	Degraded bool
	Err      error
}

// Dispatcher 批次调度器
type Dispatcher struct {
	engine providers.Engine
	rules  []isolate.Rule
	opts   Options
	logger *zap.Logger
}

// New 创建调度器
func New(engine providers.Engine, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = SystemPrompt("", "")
	}
	return &Dispatcher{
		engine: engine,
		rules:  isolate.DefaultRules(),
		opts:   opts,
		logger: logger,
	}
}

// Dispatch 并发翻译所有批次。输出长度与输入相同，output[i] 对应 batches[i]；
// 单个批次失败只会让该批次原文直通，不返回错误。
func (d *Dispatcher) Dispatch(ctx context.Context, batches []chunker.Batch) []Result {
	var done atomic.Int64
	total := len(batches)
	mapper := iter.Mapper[chunker.Batch, Result]{MaxGoroutines: d.opts.Concurrency}

	return mapper.Map(batches, func(b *chunker.Batch) Result {
		res := d.translateGuarded(ctx, b.Index, b.Text)
		res.Separator = b.Separator
		if d.opts.Progress != nil {
			d.opts.Progress(int(done.Add(1)), total)
		}
		return res
	})
}

// translateGuarded 引擎实现里的 panic 也按失败处理
func (d *Dispatcher) translateGuarded(ctx context.Context, index int, text string) Result {
	var res Result
	var pc panics.Catcher
	pc.Try(func() {
		res = d.TranslateBatch(ctx, index, text)
	})
	if r := pc.Recovered(); r != nil {
		return d.degrade(index, text, r.AsError())
	}
	return res
}

// TranslateBatch 翻译一个批次：隔离 → 引擎 → 重组。隔离会话只在本次调用内有效。
func (d *Dispatcher) TranslateBatch(ctx context.Context, index int, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Index: index, Original: text, Text: ""}
	}

	iso := isolate.New(text)
	protected, err := iso.ProtectAll(text, d.rules)
	if err != nil {
		return d.degrade(index, text, err)
	}

	start := time.Now()
	resp, err := d.call(ctx, &providers.Request{
		SystemPrompt: d.opts.SystemPrompt,
		Text:         protected,
		Temperature:  d.opts.Temperature,
	})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		return d.degrade(index, text, err)
	}

	lines := Reassemble(resp.Text, iso)
	d.logger.Debug("batch translated",
		zap.Int("batch", index),
		zap.Int("placeholders", iso.Vault().Len()),
		zap.Int("lines", len(lines)),
		zap.Duration("elapsed", time.Since(start)))

	return Result{
		Index:    index,
		Original: text,
		Text:     JoinLines(lines),
		Lines:    lines,
	}
}

type callResult struct {
	resp *providers.Response
	err  error
}

// call 带超时调用引擎。引擎不理会 ctx 时也会在超时后返回，
// 遗留的调用在后台结束，结果被丢弃。
func (d *Dispatcher) call(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	ch := make(chan callResult, 1)
	go func() {
		var res callResult
		var pc panics.Catcher
		pc.Try(func() {
			res.resp, res.err = d.engine.Translate(callCtx, req)
		})
		if r := pc.Recovered(); r != nil {
			res.err = r.AsError()
		}
		ch <- res
	}()

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}

func (d *Dispatcher) degrade(index int, text string, err error) Result {
	d.logger.Warn("batch translation failed, keeping original text",
		zap.Int("batch", index),
		zap.String("engine", d.engine.Name()),
		zap.Error(err))
	return Result{
		Index:    index,
		Original: text,
		Text:     text,
		Degraded: true,
		Err:      fmt.Errorf("batch %d: %w", index, err),
	}
}

// Merge 按顺序拼接批次输出，每个批次前补回切分时去掉的分隔符。空输出的批次连同分隔符一起跳过。
func Merge(results []Result) string {
	var sb strings.Builder
	for _, r := range results {
		if r.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(r.Separator)
		}
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// CountDegraded 降级批次数
func CountDegraded(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Degraded {
			n++
		}
	}
	return n
}
