// Package factory 根据配置构造翻译引擎：具体实现 → 统计 → 熔断。
package factory

import (
	"context"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/config"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/breaker"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/gemini"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/openai"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/stats"
)

// NewRegistry 注册所有内置引擎
func NewRegistry(ctx context.Context) *providers.Registry {
	r := providers.NewRegistry()
	_ = r.Register(openai.Name, func(cfg providers.Config) (providers.Engine, error) {
		return openai.New(cfg)
	})
	_ = r.Register(openai.OfficialName, func(cfg providers.Config) (providers.Engine, error) {
		return openai.NewOfficial(cfg)
	})
	_ = r.Register(gemini.Name, func(cfg providers.Config) (providers.Engine, error) {
		return gemini.New(ctx, cfg)
	})
	return r
}

// ProviderConfig 把配置文件中的翻译段落转换为引擎配置
func ProviderConfig(cfg *config.Config) providers.Config {
	pc := providers.DefaultConfig()
	pc.Provider = cfg.Translation.Provider
	pc.APIKey = cfg.Translation.APIKey
	pc.Model = cfg.Translation.Model
	pc.Temperature = float32(cfg.Translation.Temperature)
	pc.Timeout = cfg.TranslationTimeout()
	pc.APIEndpoint = cfg.Translation.BaseURL

	// DeepSeek 的地址和模型只是 openai 兼容引擎的默认值
	if pc.Provider == gemini.Name {
		defaults := providers.DefaultConfig()
		if pc.APIEndpoint == defaults.APIEndpoint {
			pc.APIEndpoint = ""
		}
		if pc.Model == defaults.Model {
			pc.Model = ""
		}
	}
	return pc
}

// New 构造带统计和熔断的引擎
func New(ctx context.Context, cfg *config.Config, recorder *stats.Recorder, logger *zap.Logger) (providers.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.ValidateTranslation(); err != nil {
		return nil, err
	}

	pc := ProviderConfig(cfg)
	engine, err := NewRegistry(ctx).Build(pc)
	if err != nil {
		return nil, err
	}

	if recorder != nil {
		engine = stats.Wrap(engine, recorder)
	}
	engine = breaker.Wrap(engine, breaker.Settings{
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout(),
	}, logger)

	logger.Info("translation engine ready",
		zap.String("provider", pc.Provider),
		zap.String("model", pc.Model),
		zap.String("endpoint", pc.APIEndpoint))
	return engine, nil
}
