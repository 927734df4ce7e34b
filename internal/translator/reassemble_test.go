package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/ocr-bilingual/internal/isolate"
)

func protect(t *testing.T, text string) (*isolate.Isolator, string) {
	t.Helper()
	iso := isolate.New(text)
	protected, err := iso.ProtectAll(text, isolate.DefaultRules())
	require.NoError(t, err)
	return iso, protected
}

// quoteEverything 每段后面都跟一行引用，包括只有占位符的段落
func quoteEverything(protected string) string {
	var out []string
	for _, para := range strings.Split(protected, "\n\n") {
		out = append(out, para, "> "+para)
	}
	return strings.Join(out, "\n\n")
}

func TestReassembleDropsPlaceholderOnlyTranslation(t *testing.T) {
	src := "Intro text.\n\n$$\nx^2\n$$\n\nMore text."
	iso, protected := protect(t, src)
	require.Equal(t, "Intro text.\n\n[[__EQ_BLOCK_0__]]\n\nMore text.", protected)

	lines := Reassemble(quoteEverything(protected), iso)
	assert.Equal(t,
		"Intro text.\n\n> Intro text.\n\n$$\nx^2\n$$\n\nMore text.\n\n> More text.",
		JoinLines(lines))

	for _, l := range lines {
		if l.Kind == LineRendered {
			assert.NotContains(t, l.Text, "x^2")
		}
	}
}

func TestReassembleCategoryAsymmetry(t *testing.T) {
	src := "Energy $E=mc^2$ in `code` here ![fig](a.png) done."
	iso, protected := protect(t, src)
	require.Equal(t, "Energy [[__EQ_INLINE_1__]] in `code` here [[__IMG_0__]] done.", protected)

	response := protected + "\n> 能量 [[__EQ_INLINE_1__]] 见 [[__IMG_0__]] 图。"
	lines := Reassemble(response, iso)

	require.Len(t, lines, 2)
	assert.Equal(t, Line{Kind: LineSource, Text: src}, lines[0])
	// 行内公式保留，图片去掉
	assert.Equal(t, Line{Kind: LineRendered, Text: "> 能量 $E=mc^2$ 见  图。"}, lines[1])
}

func TestReassembleKeepsSourcePlaceholders(t *testing.T) {
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n\nText."
	iso, protected := protect(t, src)
	require.Equal(t, "[[__TBL_0__]]\n\nText.", protected)

	lines := Reassemble(protected+"\n\n> 文本。", iso)
	assert.Equal(t, src+"\n\n> 文本。", JoinLines(lines))
	assert.Equal(t, LineSource, lines[0].Kind)
	assert.Equal(t, LineRendered, lines[len(lines)-1].Kind)
}

func TestReassembleKeepsLiteralEmptyQuote(t *testing.T) {
	iso, _ := protect(t, "Text.")
	// 没有被去掉占位符的空引用行原样保留
	lines := Reassemble("Text.\n>\n> 文本。", iso)
	assert.Equal(t, "Text.\n>\n> 文本。", JoinLines(lines))
}
