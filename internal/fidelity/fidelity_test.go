package fidelity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sample = "# Title\n\n" +
	"Energy $E=mc^2$ and $a+b$.\n\n" +
	"```go\nfmt.Println(1)\n```\n\n" +
	"![fig](data:image/png;base64,AAAA)\n\n" +
	"| a | b |\n|---|---|\n| 1 | 2 |\n\n" +
	"$$\nx^2\n$$\n"

func TestCensus(t *testing.T) {
	c := Census(sample)
	assert.Equal(t, 1, c.CodeBlocks)
	assert.Equal(t, 1, c.Images)
	assert.Equal(t, 1, c.Tables)
	assert.Equal(t, 1, c.MathBlocks)
	assert.Equal(t, 2, c.InlineMath)
}

func TestCompare(t *testing.T) {
	assert.Empty(t, Compare(sample, sample+"\n> 译文 $E=mc^2$\n"))

	lost := "# Title\n\nEnergy $E=mc^2$ and $a+b$.\n"
	shortfalls := Compare(sample, lost)
	categories := make([]string, 0, len(shortfalls))
	for _, s := range shortfalls {
		categories = append(categories, s.Category)
	}
	assert.ElementsMatch(t, []string{"code_blocks", "images", "tables", "math_blocks"}, categories)
}

func TestCensusEmpty(t *testing.T) {
	assert.Equal(t, Counts{}, Census(""))
}

func TestCensusMath(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		blocks int
		inline int
	}{
		{name: "display block only", input: "Text.\n\n$$\nx^2\n$$\n", blocks: 1},
		{name: "two blocks", input: "$$\na\n$$\n\nmid\n\n$$\nb\n$$\n", blocks: 2},
		{name: "inline only", input: "Let $x$ be $y$.\n", inline: 2},
		{name: "mixed", input: "Let $x$.\n\n$$\ny\n$$\n", blocks: 1, inline: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Census(tt.input)
			assert.Equal(t, tt.blocks, c.MathBlocks)
			assert.Equal(t, tt.inline, c.InlineMath)
		})
	}
}

func TestCompareReportsLostMathBlock(t *testing.T) {
	src := "Text.\n\n$$\nx^2\n$$\n"
	shortfalls := Compare(src, "Text.\n")
	assert.Equal(t, []Shortfall{{Category: "math_blocks", Source: 1, Output: 0}}, shortfalls)
}
