package translator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/chunker"
	"github.com/nerdneilsfield/ocr-bilingual/internal/cleaner"
	"github.com/nerdneilsfield/ocr-bilingual/internal/fidelity"
)

// Report 一次文档翻译的统计
type Report struct {
	JobID    string
	Batches  int
	Degraded int
	// Missing 输出中数量少于原文的结构元素
	Missing  []fidelity.Shortfall
	Duration time.Duration
}

// Pipeline 清洗 → 切分 → 并发翻译 → 合并
type Pipeline struct {
	cleaner    *cleaner.Cleaner
	chunker    *chunker.Chunker
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewPipeline 创建文档翻译流水线
func NewPipeline(c *cleaner.Cleaner, ch *chunker.Chunker, d *Dispatcher, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cleaner: c, chunker: ch, dispatcher: d, logger: logger}
}

// Run 翻译整篇 Markdown。批次失败只会降级，不会返回错误。
func (p *Pipeline) Run(ctx context.Context, markdown string) (string, Report) {
	start := time.Now()
	report := Report{JobID: uuid.New().String()}
	log := p.logger.With(zap.String("job", report.JobID))

	cleaned := p.cleaner.Clean(markdown)
	batches := p.chunker.Chunk(cleaned)
	report.Batches = len(batches)
	log.Info("translation job started",
		zap.Int("chars", len([]rune(cleaned))),
		zap.Int("batches", len(batches)))

	results := p.dispatcher.Dispatch(ctx, batches)
	output := Merge(results)

	report.Degraded = CountDegraded(results)
	report.Missing = fidelity.Compare(cleaned, output)
	report.Duration = time.Since(start)

	if len(report.Missing) > 0 {
		log.Warn("bilingual output lost structural elements", zap.Any("missing", report.Missing))
	}
	log.Info("translation job finished",
		zap.Int("batches", report.Batches),
		zap.Int("degraded", report.Degraded),
		zap.Duration("elapsed", report.Duration))
	return output, report
}
