// Package pdfsplit 把 PDF 按固定页数切成多个小 PDF，供 OCR 分块处理。
package pdfsplit

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
)

// DefaultSpan 每块页数
const DefaultSpan = 5

func init() {
	// 不在用户目录下生成 pdfcpu 配置文件
	api.DisableConfigDir()
}

// Chunk 一段连续页
type Chunk struct {
	FirstPage int // 从 1 开始
	LastPage  int
	Data      []byte
}

// Label 页码范围，例如 "P1-P5"
func (c Chunk) Label() string {
	return fmt.Sprintf("P%d-P%d", c.FirstPage, c.LastPage)
}

// PageCount 优先用 ledongthuc/pdf 计数，失败时回退到 pdfcpu
func PageCount(data []byte) (int, error) {
	if n, err := countWithReader(data); err == nil && n > 0 {
		return n, nil
	}
	ctx, err := api.ReadContext(bytes.NewReader(data), nil)
	if err != nil {
		return 0, apperr.Validation("pdfsplit.page_count", "invalid pdf: "+err.Error())
	}
	return ctx.PageCount, nil
}

func countWithReader(data []byte) (n int, err error) {
	// ledongthuc/pdf 在损坏的文件上可能 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// Split 按 span 页切分，块按页码顺序返回
func Split(ctx context.Context, data []byte, span int) ([]Chunk, error) {
	if span <= 0 {
		span = DefaultSpan
	}
	total, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, apperr.Validation("pdfsplit.split", "pdf has no pages")
	}

	chunks := make([]Chunk, 0, (total+span-1)/span)
	for first := 1; first <= total; first += span {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		last := min(first+span-1, total)

		var buf bytes.Buffer
		selection := []string{fmt.Sprintf("%d-%d", first, last)}
		if err := api.Trim(bytes.NewReader(data), &buf, selection, nil); err != nil {
			return nil, fmt.Errorf("extract pages %d-%d: %w", first, last, err)
		}
		chunks = append(chunks, Chunk{FirstPage: first, LastPage: last, Data: buf.Bytes()})
	}
	return chunks, nil
}
