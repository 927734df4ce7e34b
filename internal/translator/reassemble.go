package translator

import (
	"strings"

	"github.com/nerdneilsfield/ocr-bilingual/internal/isolate"
)

// LineKind 重组后一行的来源
type LineKind int

const (
	// LineSource 原文行，所有占位符都还原
	LineSource LineKind = iota
	// LineRendered 译文行（引用块），图片/表格/块级公式占位符被去掉
	LineRendered
)

// Line 重组后的一行
type Line struct {
	Kind LineKind
	Text string
}

// strippedFromRendered 不允许出现在译文行里的类别，原文行已经带着它们
var strippedFromRendered = []isolate.Category{
	isolate.CategoryImage,
	isolate.CategoryTable,
	isolate.CategoryBlockMath,
}

// Reassemble 把模型输出按行拆开：引用行去掉组件占位符后还原，其余行完整还原。
// 去掉占位符后只剩引用符号的行（只含组件的段落的"译文"）被丢弃。
func Reassemble(response string, iso *isolate.Isolator) []Line {
	raw := strings.Split(response, "\n")
	lines := make([]Line, 0, len(raw))
	skipBlank := false

	for _, line := range raw {
		if skipBlank {
			skipBlank = false
			if strings.TrimSpace(line) == "" {
				continue
			}
		}

		if !isQuoted(line) {
			lines = append(lines, Line{Kind: LineSource, Text: iso.Restore(line)})
			continue
		}

		stripped := isolate.StripCategories(line, strippedFromRendered...)
		if stripped != line && isEmptyQuote(stripped) {
			// 丢掉空译文行时顺带吃掉一侧的空行，避免留下连续空段
			if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1].Text) == "" {
				skipBlank = true
			}
			continue
		}
		lines = append(lines, Line{Kind: LineRendered, Text: iso.Restore(stripped)})
	}
	return lines
}

// JoinLines 用换行拼接
func JoinLines(lines []Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, "\n")
}

func isQuoted(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), ">")
}

func isEmptyQuote(line string) bool {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), ">")) == ""
}
