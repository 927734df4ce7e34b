package isolate

import (
	"regexp"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout 防止病态输入导致回溯失控
const matchTimeout = 5 * time.Second

// Rule 一个保护步骤：匹配到的片段替换为对应类别的占位符
type Rule struct {
	Name     string
	Category Category
	Pattern  *regexp2.Regexp
}

// MustRule 编译规则，匹配使用多行 + 点号匹配换行语义
func MustRule(name string, cat Category, pattern string) Rule {
	re := regexp2.MustCompile(pattern, regexp2.Multiline|regexp2.Singleline)
	re.MatchTimeout = matchTimeout
	return Rule{Name: name, Category: cat, Pattern: re}
}

var (
	// CodeRule 围栏代码块，优先级最高，防止代码里的 $ 或图片语法被误识别
	CodeRule = MustRule("fenced-code", CategoryCode, "```[\\s\\S]*?```")

	// ImageRule 图片（含 base64 数据）
	ImageRule = MustRule("image", CategoryImage, `!\[.*?\]\(.*?\)`)

	// TableRule 连续的以 | 开头并以 | 结尾的行；只吃行尾的空格和制表符，
	// 不吃表格后面的换行，段落边界保持不变
	TableRule = MustRule("table", CategoryTable, `^\|[^\n]*\|[ \t]*$(?:\n\|[^\n]*\|[ \t]*$)*`)

	// BlockMathRule $$ ... $$
	BlockMathRule = MustRule("block-math", CategoryBlockMath, `\$\$[\s\S]*?\$\$`)

	// InlineMathRule $...$，不匹配转义的 \$，定界符内侧不能是空白，也不跨越空行
	InlineMathRule = MustRule("inline-math", CategoryInlineMath,
		`(?<!\\)\$(?!\s)(?:(?!\n[ \t]*\n).)*?(?<!\s)(?<!\\)\$`)
)

// DefaultRules 固定的保护顺序：代码 → 图片 → 表格 → 块级公式 → 行内公式。
// 先保护的片段已经变成不透明的占位符，后面更宽松的规则不会匹配到它们内部。
func DefaultRules() []Rule {
	return []Rule{CodeRule, ImageRule, TableRule, BlockMathRule, InlineMathRule}
}

var (
	anyKeyPattern  = regexp.MustCompile(`\[\[__(CODE|IMG|TBL|EQ_BLOCK|EQ_INLINE)_\d+__\]\]`)
	soleKeyPattern = regexp.MustCompile(`^\[\[__(CODE|IMG|TBL|EQ_BLOCK|EQ_INLINE)_\d+__\]\]$`)
)

// StripCategories 删除指定类别的所有占位符
func StripCategories(text string, cats ...Category) string {
	if len(cats) == 0 {
		return text
	}
	drop := make(map[string]bool, len(cats))
	for _, c := range cats {
		drop[string(c)] = true
	}
	return anyKeyPattern.ReplaceAllStringFunc(text, func(key string) string {
		m := anyKeyPattern.FindStringSubmatch(key)
		if drop[m[1]] {
			return ""
		}
		return key
	})
}

// PlaceholderOnly 判断段落是否只由一个占位符组成（没有其他文字），
// 返回该占位符的类别
func PlaceholderOnly(paragraph string) (Category, bool) {
	m := soleKeyPattern.FindStringSubmatch(trimSpace(paragraph))
	if m == nil {
		return "", false
	}
	return Category(m[1]), true
}

// ContainsPlaceholder 文本中是否还有任意占位符
func ContainsPlaceholder(text string) bool {
	return anyKeyPattern.MatchString(text)
}
