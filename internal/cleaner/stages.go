package cleaner

import (
	"regexp"
	"strings"
)

// 先处理二次转义，再处理标准转义
var entityReplacer = strings.NewReplacer(
	"&amp;lt;", "<", "&lt;", "<",
	"&amp;gt;", ">", "&gt;", ">",
	"&amp;le;", `\le`, "&le;", `\le`,
	"&amp;ge;", `\ge`, "&ge;", `\ge`,
	"&amp;plusmn;", `\pm`, "&plusmn;", `\pm`,
)

var (
	arrayAnnotationPattern = regexp.MustCompile(`(?s)\\begin\{array\}\s*\[.*?\]`)
	teamMarkerPattern      = regexp.MustCompile(`(?m)^Team[ \t]*#?[ \t]*\d+.*$`)
	pageMarkerPattern      = regexp.MustCompile(`(?m)^Page[ \t]+\d+(?:[ \t]+of[ \t]+\d+)?.*$`)
	controlCharPattern     = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
	tocPageNumberPattern   = regexp.MustCompile(`(?m)(\d+\.[\d\.]*.*)\n+(\d+)$`)
	tocLeaderPattern       = regexp.MustCompile(`\.{3,}\s*(\d+)`)
	blankRunPattern        = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)
)

// DefaultStages 默认清理流水线。顺序有意义：后面的步骤假定实体已经还原。
func DefaultStages(boilerplate []string) []Stage {
	stages := []Stage{
		{Name: "normalize-newlines", Apply: normalizeNewlines},
		{Name: "strip-control-chars", Apply: stripControlChars},
		{Name: "unescape-entities", Apply: entityReplacer.Replace},
		{Name: "fix-array-annotation", Apply: fixArrayAnnotation},
	}
	if remove := boilerplateStage(boilerplate); remove != nil {
		stages = append(stages, Stage{Name: "remove-boilerplate", Apply: remove})
	}
	stages = append(stages,
		Stage{Name: "remove-page-markers", Apply: removePageMarkers},
		Stage{Name: "strip-soft-wrap", Apply: func(s string) string { return strings.ReplaceAll(s, "\u21aa", "") }},
		Stage{Name: "join-toc-page-numbers", Apply: joinTOCPageNumbers},
		Stage{Name: "collapse-blank-lines", Apply: func(s string) string { return blankRunPattern.ReplaceAllString(s, "\n\n") }},
	)
	return stages
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func stripControlChars(s string) string {
	return controlCharPattern.ReplaceAllString(s, "")
}

// fixArrayAnnotation 移除 \begin{array}[...] 这种非标准标注
func fixArrayAnnotation(s string) string {
	s = arrayAnnotationPattern.ReplaceAllString(s, `\begin{array}`)
	return strings.ReplaceAll(s, "[]{cccccc}", "{cccccc}")
}

// boilerplateStage 任一关键词出现的整行被清空；没有关键词时返回 nil
func boilerplateStage(keywords []string) func(string) string {
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			quoted = append(quoted, regexp.QuoteMeta(kw))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	pattern := regexp.MustCompile(`(?m)^.*(` + strings.Join(quoted, "|") + `).*$`)
	return func(s string) string {
		return pattern.ReplaceAllString(s, "")
	}
}

// removePageMarkers 标记只匹配当前行，不会吞掉下一行正文
func removePageMarkers(s string) string {
	s = teamMarkerPattern.ReplaceAllString(s, "")
	return pageMarkerPattern.ReplaceAllString(s, "")
}

// joinTOCPageNumbers 把被 OCR 挤到下一行的目录页码拉回标题行，并去掉引导点
func joinTOCPageNumbers(s string) string {
	s = tocPageNumberPattern.ReplaceAllString(s, "$1 $2")
	return tocLeaderPattern.ReplaceAllString(s, " $1")
}
