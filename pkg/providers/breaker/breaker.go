// Package breaker 用熔断器包装翻译引擎。熔断打开期间请求直接失败，调度器随即降级为原文输出。
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
)

// Settings 熔断参数
type Settings struct {
	// 连续失败多少次后打开
	MaxFailures uint32
	// 打开多久后进入半开
	OpenTimeout time.Duration
}

// DefaultSettings 默认参数
func DefaultSettings() Settings {
	return Settings{MaxFailures: 5, OpenTimeout: 30 * time.Second}
}

// Engine 带熔断的引擎
type Engine struct {
	next   providers.Engine
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ providers.Engine = (*Engine)(nil)

// Wrap 包装引擎
func Wrap(next providers.Engine, settings Settings, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.MaxFailures == 0 {
		settings.MaxFailures = DefaultSettings().MaxFailures
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = DefaultSettings().OpenTimeout
	}

	e := &Engine{next: next, logger: logger}
	e.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		// 调用方主动取消不算引擎故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("engine", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return e
}

// Name 返回被包装引擎的名称
func (e *Engine) Name() string {
	return e.next.Name()
}

// State 当前熔断状态
func (e *Engine) State() string {
	return e.cb.State().String()
}

// Translate 执行翻译
func (e *Engine) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	out, err := e.cb.Execute(func() (interface{}, error) {
		return e.next.Translate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, providers.NewError(e.Name(), providers.CodeCircuitOpen, "circuit breaker is open", err)
		}
		return nil, err
	}
	return out.(*providers.Response), nil
}
