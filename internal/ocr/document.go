package ocr

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/pdfsplit"
)

// Recognizer 识别单块内容
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType, label string) string
}

// DocumentReader 按文件类型选择处理流程：PDF 分块逐块识别，图片整张识别
type DocumentReader struct {
	recognizer Recognizer
	span       int
	logger     *zap.Logger
}

// NewDocumentReader 创建文档识别流程，span 为 PDF 每块页数
func NewDocumentReader(r Recognizer, span int, logger *zap.Logger) *DocumentReader {
	if span <= 0 {
		span = pdfsplit.DefaultSpan
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentReader{recognizer: r, span: span, logger: logger}
}

// Extension 小写扩展名（不含点）
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}

// Supported 是否支持该扩展名
func Supported(ext string) bool {
	switch ext {
	case "pdf", "jpg", "jpeg", "png":
		return true
	}
	return false
}

// MimeType 上传给 OCR 的媒体类型
func MimeType(ext string) string {
	switch ext {
	case "pdf":
		return "application/pdf"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	}
	return "application/octet-stream"
}

// Read 识别整份文档，返回合并后的 Markdown（尚未清洗）
func (d *DocumentReader) Read(ctx context.Context, filename string, data []byte) (string, error) {
	ext := Extension(filename)
	switch ext {
	case "pdf":
		chunks, err := pdfsplit.Split(ctx, data, d.span)
		if err != nil {
			return "", err
		}
		d.logger.Info("pdf split for ocr",
			zap.String("file", filename),
			zap.Int("chunks", len(chunks)))

		parts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			parts = append(parts, d.recognizer.Recognize(ctx, c.Data, MimeType(ext), c.Label()))
		}
		return JoinChunks(parts), nil
	case "jpg", "jpeg", "png":
		return JoinChunks([]string{d.recognizer.Recognize(ctx, data, MimeType(ext), filename)}), nil
	}
	return "", apperr.Validation("ocr.read", "unsupported file type: "+filename)
}
