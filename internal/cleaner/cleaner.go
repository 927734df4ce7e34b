// Package cleaner 清理 OCR 输出中的噪声：HTML 实体、矩阵标注、广告行、页码、软换行箭头等。
package cleaner

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Stage 一个清理步骤，纯函数 text -> text
type Stage struct {
	Name  string
	Apply func(string) string
}

// Cleaner 按固定顺序执行清理步骤。base64 图片在所有步骤之前被替换为短标记，结束后原样还原。
type Cleaner struct {
	logger *zap.Logger
	stages []Stage
}

// New 创建清理器，boilerplate 为需要整行删除的关键词
func New(logger *zap.Logger, boilerplate []string) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{
		logger: logger,
		stages: DefaultStages(boilerplate),
	}
}

// Stages 返回步骤名称（按执行顺序）
func (c *Cleaner) Stages() []string {
	names := make([]string, 0, len(c.stages))
	for _, s := range c.stages {
		names = append(names, s.Name)
	}
	return names
}

// Clean 清理原始 Markdown
func (c *Cleaner) Clean(raw string) string {
	if raw == "" {
		return ""
	}

	shield := newImageShield()
	content := shield.hide(raw)

	for _, stage := range c.stages {
		content = stage.Apply(content)
	}

	content = strings.TrimSpace(shield.reveal(content))

	c.logger.Debug("document cleaned",
		zap.Int("original_length", len(raw)),
		zap.Int("cleaned_length", len(content)),
		zap.Int("shielded_images", len(shield.images)))
	return content
}

var base64ImagePattern = regexp.MustCompile(`!\[.*?\]\(data:image/.*?;base64,.*?\)`)

// imageShield 文档级的图片隔离，和翻译时的占位符会话互不相关
type imageShield struct {
	images []string
}

func newImageShield() *imageShield {
	return &imageShield{}
}

func (s *imageShield) token(i int) string {
	return fmt.Sprintf("__IMG_TMP_%d__", i)
}

func (s *imageShield) hide(content string) string {
	return base64ImagePattern.ReplaceAllStringFunc(content, func(m string) string {
		s.images = append(s.images, m)
		return s.token(len(s.images) - 1)
	})
}

func (s *imageShield) reveal(content string) string {
	for i := len(s.images) - 1; i >= 0; i-- {
		content = strings.ReplaceAll(content, s.token(i), s.images[i])
	}
	return content
}
