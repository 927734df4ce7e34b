// Package chunker 把清理后的文档切成有序、不重叠、有长度上限的批次。
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// DefaultMaxChars 每个批次的默认字符上限
	DefaultMaxChars = 2000

	paragraphSep = "\n\n"
	lineSep      = "\n"

	// 目录判定所需的最少 "标题 ... 页码" 行数
	minTOCLines = 3
)

var (
	tocLinePattern       = regexp.MustCompile(`(?m)^[^\n]{5,}[ \t]+\d+$`)
	chapterMarkerPattern = regexp.MustCompile(`^\d+\s+[A-Z\x{4e00}-\x{9fa5}]`)
)

// Batch 文档中的一段连续内容。Separator 是它和前一个批次之间被切掉的分隔符，
// 第一个批次为空串。
type Batch struct {
	Index     int
	Text      string
	Separator string
}

// Chunker 段落优先的切分器
type Chunker struct {
	maxChars int
	logger   *zap.Logger
}

// New 创建切分器，maxChars <= 0 时使用默认值
func New(maxChars int, logger *zap.Logger) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{maxChars: maxChars, logger: logger}
}

// MaxChars 返回批次上限
func (c *Chunker) MaxChars() int {
	return c.maxChars
}

// IsTOC 至少 3 行形如 "标题 ... 页码" 时认为整篇是目录
func IsTOC(text string) bool {
	return len(tocLinePattern.FindAllStringIndex(text, minTOCLines)) >= minTOCLines
}

// IsChapterMarker 段落是否以数字章节号开头，例如 "1 Introduction"
func IsChapterMarker(paragraph string) bool {
	return chapterMarkerPattern.MatchString(strings.TrimSpace(paragraph))
}

// Chunk 切分文本。长度按字符（rune）计算，包含批次内部的分隔符。
func (c *Chunker) Chunk(text string) []Batch {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	b := &builder{max: c.maxChars}
	tocMode := IsTOC(text)

	for _, para := range strings.Split(text, paragraphSep) {
		paraLen := utf8.RuneCountInString(para)

		// 目录模式下章节标题强制开启新批次
		if tocMode && IsChapterMarker(para) {
			b.seal()
		}

		switch {
		case paraLen > c.maxChars:
			b.seal()
			b.splitLines(para)
		case len(b.parts) > 0 && b.len+len(paragraphSep)+paraLen > c.maxChars:
			b.seal()
			b.add(para, paraLen)
		default:
			b.add(para, paraLen)
		}
	}
	b.seal()

	c.logger.Debug("document chunked",
		zap.Int("batches", len(b.batches)),
		zap.Int("max_chars", c.maxChars),
		zap.Bool("toc_mode", tocMode))
	return b.batches
}

type builder struct {
	max     int
	batches []Batch
	parts   []string
	len     int
	// pendingSep 下一个封存批次前面的分隔符
	pendingSep string
	// lead 第一个批次之前的空白段落
	lead string
}

func (b *builder) add(para string, n int) {
	if len(b.parts) > 0 {
		b.len += len(paragraphSep)
	}
	b.parts = append(b.parts, para)
	b.len += n
}

func (b *builder) seal() {
	if len(b.parts) == 0 {
		return
	}
	text := strings.Join(b.parts, paragraphSep)
	b.parts = nil
	b.len = 0

	// 只有空白的段落不单独成批：并入上一批次，或作为前缀留给下一批次
	if strings.TrimSpace(text) == "" {
		if n := len(b.batches); n > 0 {
			b.batches[n-1].Text += b.pendingSep + text
			b.pendingSep = paragraphSep
		} else {
			b.lead += text + paragraphSep
		}
		return
	}
	b.emit(text, paragraphSep)
}

// emit 追加一个批次。after 是该批次之后、下一个批次之前的分隔符。
func (b *builder) emit(text, after string) {
	if b.lead != "" {
		text = b.lead + text
		b.lead = ""
	}
	sep := ""
	if len(b.batches) > 0 {
		sep = b.pendingSep
	}
	b.batches = append(b.batches, Batch{Index: len(b.batches), Text: text, Separator: sep})
	b.pendingSep = after
}

// splitLines 超长段落按单换行切成若干行组
func (b *builder) splitLines(para string) {
	lines := strings.Split(para, lineSep)
	var group []string
	groupLen := 0
	for i, line := range lines {
		lineLen := utf8.RuneCountInString(line)
		cost := lineLen
		if len(group) > 0 {
			cost += len(lineSep)
		}
		// 段落末尾的空行并入前一组，避免产生空批次
		trailingEmpty := i == len(lines)-1 && line == ""
		if len(group) > 0 && groupLen+cost > b.max && !trailingEmpty {
			b.emit(strings.Join(group, lineSep), lineSep)
			group = []string{line}
			groupLen = lineLen
			continue
		}
		group = append(group, line)
		groupLen += cost
	}
	if len(group) > 0 {
		b.emit(strings.Join(group, lineSep), paragraphSep)
	}
}

// Join 用切分时去掉的分隔符把批次拼回原文
func Join(batches []Batch) string {
	var sb strings.Builder
	for _, batch := range batches {
		sb.WriteString(batch.Separator)
		sb.WriteString(batch.Text)
	}
	return sb.String()
}

// Texts 返回批次文本
func Texts(batches []Batch) []string {
	out := make([]string, len(batches))
	for i, batch := range batches {
		out[i] = batch.Text
	}
	return out
}
