package cli

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/cache"
	"github.com/nerdneilsfield/ocr-bilingual/internal/catalog"
	"github.com/nerdneilsfield/ocr-bilingual/internal/chunker"
	"github.com/nerdneilsfield/ocr-bilingual/internal/cleaner"
	"github.com/nerdneilsfield/ocr-bilingual/internal/config"
	"github.com/nerdneilsfield/ocr-bilingual/internal/logger"
	"github.com/nerdneilsfield/ocr-bilingual/internal/ocr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/service"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store"
	storefactory "github.com/nerdneilsfield/ocr-bilingual/internal/store/factory"
	"github.com/nerdneilsfield/ocr-bilingual/internal/translator"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/factory"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/retry"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/stats"
)

// app 一次命令执行的配置和日志
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func loadApp(opts *rootOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.cfgFile)
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.Debug = true
	}
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	return &app{cfg: cfg, log: logger.NewLoggerWithLevel(level)}, nil
}

func (a *app) cleaner() *cleaner.Cleaner {
	return cleaner.New(a.log.Named("cleaner"), a.cfg.Cleaner.Boilerplate)
}

// pipeline 组装翻译流水线，progress 可为 nil
func (a *app) pipeline(ctx context.Context, recorder *stats.Recorder, progress func(done, total int)) (*translator.Pipeline, error) {
	engine, err := factory.New(ctx, a.cfg, recorder, a.log.Named("engine"))
	if err != nil {
		return nil, err
	}
	t := a.cfg.Translation
	d := translator.New(engine, translator.Options{
		Concurrency:  t.Concurrency,
		Timeout:      a.cfg.TranslationTimeout(),
		Temperature:  float32(t.Temperature),
		SystemPrompt: translator.SystemPrompt(t.SourceLang, t.TargetLang),
		Progress:     progress,
	}, a.log.Named("dispatcher"))
	return translator.NewPipeline(a.cleaner(), chunker.New(t.MaxChars, a.log.Named("chunker")), d, a.log), nil
}

// reader 组装 OCR 流程
func (a *app) reader() (*ocr.DocumentReader, error) {
	if err := a.cfg.ValidateOCR(); err != nil {
		return nil, err
	}
	client, err := ocr.New(ocr.Config{
		APIKey:   a.cfg.OCR.APIKey,
		Model:    a.cfg.OCR.Model,
		Endpoint: a.cfg.OCR.Endpoint,
		Timeout:  a.cfg.OCRTimeout(),
		Retry:    retry.DefaultConfig(),
	}, a.log.Named("ocr"))
	if err != nil {
		return nil, err
	}
	return ocr.NewDocumentReader(client, a.cfg.OCR.PageChunkSize, a.log.Named("ocr")), nil
}

// runtime 依赖远端存储的完整服务
type runtime struct {
	svc       *service.Service
	store     store.Store
	refresher *cache.Refresher
	snapshot  *cache.RedisSnapshot
	recorder  *stats.Recorder
}

// Close 等待后台刷新结束并释放连接
func (r *runtime) Close() {
	r.refresher.Close()
	if r.snapshot != nil {
		_ = r.snapshot.Close()
	}
}

// runtime 组装服务。OCR 或翻译配置缺失时只禁用对应能力，调用时返回配置错误。
func (a *app) runtime(ctx context.Context, progress func(done, total int)) (*runtime, error) {
	st, err := storefactory.New(a.cfg, a.log.Named("store"))
	if err != nil {
		return nil, err
	}

	rt := &runtime{store: st, recorder: stats.NewRecorder(a.log.Named("stats"))}
	manager := cache.NewManager(a.log.Named("cache"))
	refresherOpts := cache.RefresherOptions{MaxPerKey: a.cfg.Cache.MaxRefreshPerKey}

	if url := a.cfg.Cache.RedisURL; url != "" {
		snap, err := cache.NewRedisSnapshot(url, a.cfg.SnapshotTTL())
		if err != nil {
			a.log.Warn("redis snapshot disabled", zap.Error(err))
		} else {
			rt.snapshot = snap
			refresherOpts.Snapshot = snap
			warmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_, _ = cache.Warm(warmCtx, manager, snap, a.log.Named("cache"))
			cancel()
		}
	}

	builder := catalog.NewBuilder(st, a.cfg.Catalog.EnrichLimit, a.log.Named("catalog"))
	rt.refresher = cache.NewRefresher(manager, builder.Rebuild, refresherOpts, a.log.Named("refresher"))

	opts := service.Options{
		Store:     st,
		Refresher: rt.refresher,
		Cleaner:   a.cleaner(),
		Users:     a.cfg.Users,
	}
	if reader, err := a.reader(); err != nil {
		a.log.Warn("upload disabled", zap.Error(err))
	} else {
		opts.Reader = reader
	}
	if p, err := a.pipeline(ctx, rt.recorder, progress); err != nil {
		a.log.Warn("translation disabled", zap.Error(err))
	} else {
		opts.Translator = p
	}

	rt.svc = service.New(opts, a.log.Named("service"))
	return rt, nil
}
