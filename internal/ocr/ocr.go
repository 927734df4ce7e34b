// Package ocr 调用 Mistral OCR 接口，把 PDF/图片识别为带内联图片的 Markdown。
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/retry"
)

const (
	// DefaultEndpoint Mistral OCR 接口
	DefaultEndpoint = "https://api.mistral.ai/v1/ocr"
	// DefaultModel 默认模型
	DefaultModel = "mistral-ocr-latest"

	// PageBreak 每页前插入的分页标记，前端据此同步滚动
	PageBreak = "\n\n[[PAGE_BREAK]]\n\n"
	// ChunkSeparator 多个 PDF 分块结果之间的分隔
	ChunkSeparator = "\n----------\n"
	// EmptyMarker 识别结果为空时的占位内容
	EmptyMarker = "# ⚠️ 识别内容为空"
)

var imageRefPattern = regexp.MustCompile(`!\[.*?\]\((.*?)\)`)

// Config OCR 客户端配置
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
	Retry    retry.Config
}

// Image 页面中的一张图片
type Image struct {
	ID          string `json:"id"`
	ImageBase64 string `json:"image_base64"`
}

// Page 一页识别结果
type Page struct {
	Index    int     `json:"index"`
	Markdown string  `json:"markdown"`
	Images   []Image `json:"images"`
}

type document struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type request struct {
	Model              string   `json:"model"`
	Document           document `json:"document"`
	IncludeImageBase64 bool     `json:"include_image_base64"`
}

type response struct {
	Model string `json:"model"`
	Pages []Page `json:"pages"`
}

// Client Mistral OCR 客户端
type Client struct {
	config Config
	http   *retry.Client
	logger *zap.Logger
}

// New 创建客户端，缺少 API Key 时返回配置错误
func New(config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, apperr.Configuration("ocr.new", "mistral api key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		http:   retry.NewClient(&http.Client{Timeout: config.Timeout}, config.Retry, logger),
		logger: logger,
	}, nil
}

// Process 识别一份文档，返回各页结果
func (c *Client) Process(ctx context.Context, data []byte, mimeType string) ([]Page, error) {
	const op = "ocr.process"

	uri := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	doc := document{Type: "document_url", DocumentURL: uri}
	if strings.HasPrefix(mimeType, "image/") {
		doc = document{Type: "image_url", ImageURL: uri}
	}

	body, err := json.Marshal(request{Model: c.config.Model, Document: doc, IncludeImageBase64: true})
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Transport(op, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport(op, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Transport(op, resp.StatusCode,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Transport(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return out.Pages, nil
}

// Recognize 识别一块内容并合并为 Markdown。失败时返回可见的错误标记，不中断整个文档。
func (c *Client) Recognize(ctx context.Context, data []byte, mimeType, label string) string {
	start := time.Now()
	pages, err := c.Process(ctx, data, mimeType)
	if err != nil {
		c.logger.Error("ocr chunk failed", zap.String("chunk", label), zap.Error(err))
		return FailureMarker(err)
	}
	c.logger.Info("ocr chunk recognized",
		zap.String("chunk", label),
		zap.Int("pages", len(pages)),
		zap.Duration("elapsed", time.Since(start)))
	return MergePages(pages)
}

// FailureMarker 嵌入到输出中的失败标记
func FailureMarker(err error) string {
	return fmt.Sprintf("# ❌ 解析失败: %s\n\n", err.Error())
}

// MergePages 每页前加分页标记，并把 ![..](id) 图片引用替换为内联 base64 数据
func MergePages(pages []Page) string {
	images := make(map[string]string)
	var sb strings.Builder
	for _, p := range pages {
		for _, img := range p.Images {
			images[img.ID] = img.ImageBase64
		}
		sb.WriteString(PageBreak)
		sb.WriteString(p.Markdown)
	}

	return imageRefPattern.ReplaceAllStringFunc(sb.String(), func(m string) string {
		id := imageRefPattern.FindStringSubmatch(m)[1]
		data, ok := images[id]
		if !ok {
			return m
		}
		if !strings.HasPrefix(data, "data:") {
			data = "data:image/jpeg;base64," + data
		}
		return "![image](" + data + ")"
	})
}

// JoinChunks 合并多个分块的结果；全部为空时返回 EmptyMarker
func JoinChunks(chunks []string) string {
	joined := strings.Join(chunks, ChunkSeparator)
	if joined == "" {
		return EmptyMarker
	}
	return joined
}
