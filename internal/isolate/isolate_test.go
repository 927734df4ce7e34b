package isolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mixedDoc = "Intro $a+b$ here.\n\n" +
	"```go\nx := \"$y$\"\n```\n\n" +
	"![fig](data:image/png;base64,AAAA)\n\n" +
	"| a | b |\n|---|---|\n| 1 | 2 |\n\n" +
	"$$\nE=mc^2\n$$\n\n" +
	"Price is \\$5 and $x$."

func TestProtectAllOrderAndKeys(t *testing.T) {
	iso := New(mixedDoc)
	protected, err := iso.ProtectAll(mixedDoc, DefaultRules())
	require.NoError(t, err)

	expected := "Intro [[__EQ_INLINE_4__]] here.\n\n" +
		"[[__CODE_0__]]\n\n" +
		"[[__IMG_1__]]\n\n" +
		"[[__TBL_2__]]\n\n" +
		"[[__EQ_BLOCK_3__]]\n\n" +
		"Price is \\$5 and [[__EQ_INLINE_5__]]."
	assert.Equal(t, expected, protected)
	assert.Equal(t, 6, iso.Vault().Len())

	code, ok := iso.Vault().Get("[[__CODE_0__]]")
	require.True(t, ok)
	assert.Contains(t, code, `"$y$"`, "math inside code must stay with the code block")
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		mixedDoc,
		"",
		"plain text without anything special",
		"$x$ then ```a $b$ c``` then $$d$$",
		"nested $f([[__X__]])$ and ```q```",
		"| only | table |",
		"![a](b) ![c](d)\n\n![e](f)",
	}
	for _, in := range inputs {
		iso := New(in)
		protected, err := iso.ProtectAll(in, DefaultRules())
		require.NoError(t, err)
		assert.Equal(t, in, iso.Restore(protected))
	}
}

func TestRestoreNestedKeys(t *testing.T) {
	// 行内公式跨过一个代码占位符
	in := "see $a ```b``` c$ end"
	iso := New(in)
	protected, err := iso.ProtectAll(in, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, "see [[__EQ_INLINE_1__]] end", protected)
	assert.Equal(t, in, iso.Restore(protected))
}

func TestKeySkipsNaturalOccurrence(t *testing.T) {
	in := "literal [[__CODE_0__]] and ```real```"
	iso := New(in)
	protected, err := iso.Protect(in, CodeRule)
	require.NoError(t, err)
	assert.Equal(t, "literal [[__CODE_0__]] and [[__CODE_1__]]", protected)
	assert.Equal(t, in, iso.Restore(protected))
}

func TestRestoreDuplicatedKeys(t *testing.T) {
	in := "A ![x](y)"
	iso := New(in)
	protected, err := iso.ProtectAll(in, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, "A ![x](y) / ![x](y)", iso.Restore(protected+" / [[__IMG_0__]]"))
}

func TestInlineMathBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		matches int
	}{
		{"simple", "let $x$ be", 1},
		{"escaped dollar", `costs \$5 and \$6`, 0},
		{"space after opening", "a $ x$ b", 0},
		{"does not cross blank line", "cost $5\n\nand $6", 0},
		{"crosses single newline", "$a\nb$", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iso := New(tt.in)
			_, err := iso.Protect(tt.in, InlineMathRule)
			require.NoError(t, err)
			assert.Equal(t, tt.matches, iso.Vault().Len())
		})
	}
}

func TestTableKeepsParagraphBreak(t *testing.T) {
	in := "| a |\n| b |\n\nNext paragraph"
	iso := New(in)
	protected, err := iso.Protect(in, TableRule)
	require.NoError(t, err)
	assert.Equal(t, "[[__TBL_0__]]\n\nNext paragraph", protected)
}

func TestStripCategories(t *testing.T) {
	line := "> 见 [[__IMG_1__]] 和 [[__EQ_INLINE_2__]] 以及 [[__TBL_3__]][[__EQ_BLOCK_4__]]"
	got := StripCategories(line, CategoryImage, CategoryTable, CategoryBlockMath)
	assert.Equal(t, "> 见  和 [[__EQ_INLINE_2__]] 以及 ", got)
	assert.Equal(t, line, StripCategories(line))
}

func TestPlaceholderOnly(t *testing.T) {
	cat, ok := PlaceholderOnly("  [[__EQ_BLOCK_3__]]\n")
	assert.True(t, ok)
	assert.Equal(t, CategoryBlockMath, cat)

	_, ok = PlaceholderOnly("see [[__EQ_BLOCK_3__]]")
	assert.False(t, ok)
	_, ok = PlaceholderOnly("[[__EQ_BLOCK_3__]] [[__IMG_4__]]")
	assert.False(t, ok)

	assert.True(t, ContainsPlaceholder("x [[__CODE_12__]] y"))
	assert.False(t, ContainsPlaceholder("x [[CODE_12]] y"))
}
