package chunker

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmpty(t *testing.T) {
	assert.Empty(t, New(100, nil).Chunk(""))
}

func TestChunkParagraphAccumulation(t *testing.T) {
	batches := New(10, nil).Chunk("aaaa\n\nbbbb\n\ncccc")
	assert.Equal(t, []string{"aaaa\n\nbbbb", "cccc"}, Texts(batches))
	assert.Equal(t, "", batches[0].Separator)
	assert.Equal(t, "\n\n", batches[1].Separator)
}

func TestChunkOversizedParagraph(t *testing.T) {
	text := "aaaa\nbbbb\ncccc\n\ndd"
	batches := New(10, nil).Chunk(text)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc", "dd"}, Texts(batches))
	assert.Equal(t, "\n", batches[1].Separator)
	assert.Equal(t, "\n\n", batches[2].Separator)
	assert.Equal(t, text, Join(batches))
}

func TestChunkFoldsWhitespaceParagraphs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "leading", text: "  \n\naaaa", want: []string{"  \n\naaaa"}},
		{name: "middle", text: "aaaa\n\n \n\nbbbb", want: []string{"aaaa\n\n ", "bbbb"}},
		{name: "after line groups", text: "aaaa\nbbbb\ncccc\n\n\t", want: []string{"aaaa\nbbbb", "cccc\n\n\t"}},
		{name: "before oversized", text: " \n\naaaa\nbbbb\ncccc", want: []string{" \n\naaaa\nbbbb", "cccc"}},
		{name: "only whitespace", text: " \n\n\t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := New(10, nil).Chunk(tt.text)
			assert.Equal(t, tt.want, textsOrNil(batches))
			if len(batches) > 0 {
				assert.Equal(t, tt.text, Join(batches))
			}
			for _, b := range batches {
				assert.NotEmpty(t, strings.TrimSpace(b.Text))
			}
		})
	}
}

func textsOrNil(batches []Batch) []string {
	if len(batches) == 0 {
		return nil
	}
	return Texts(batches)
}

func TestChunkCountsRunes(t *testing.T) {
	batches := New(6, nil).Chunk("你好\n\n再见")
	assert.Equal(t, []string{"你好\n\n再见"}, Texts(batches))

	batches = New(5, nil).Chunk("你好世界\n\n再见")
	assert.Equal(t, []string{"你好世界", "再见"}, Texts(batches))
}

func TestChunkTOCChapterBoundaries(t *testing.T) {
	text := "Contents\n\n" +
		"1 Introduction 3\n\n1.1 Background 4\n\n" +
		"2 Model 7\n\n2.1 Assumptions 8\n\n" +
		"3 Results 12"
	require.True(t, IsTOC(text))

	batches := New(2000, nil).Chunk(text)
	assert.Equal(t, []string{
		"Contents",
		"1 Introduction 3\n\n1.1 Background 4",
		"2 Model 7\n\n2.1 Assumptions 8",
		"3 Results 12",
	}, Texts(batches))

	for _, b := range batches {
		markers := 0
		for _, para := range strings.Split(b.Text, "\n\n") {
			if IsChapterMarker(para) {
				markers++
			}
		}
		assert.LessOrEqual(t, markers, 1, "batch %d mixes chapters", b.Index)
	}
	assert.Equal(t, text, Join(batches))
}

func TestChunkWithoutTOCMergesChapters(t *testing.T) {
	text := "1 Introduction\n\nSome text.\n\n2 Method\n\nMore text."
	assert.False(t, IsTOC(text))
	batches := New(2000, nil).Chunk(text)
	assert.Equal(t, []string{text}, Texts(batches))
}

func TestIsTOC(t *testing.T) {
	assert.True(t, IsTOC("Abstract 1\nIntroduction 2\nConclusion 9"))
	assert.False(t, IsTOC("Abstract 1\nIntroduction 2"))
	// 页码必须和标题在同一行
	assert.False(t, IsTOC("Abstract\n1\nIntroduction\n2\nConclusion\n9"))
}

func TestChunkReconstructionAndBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		text := randomDocument(rng)
		maxChars := 20 + rng.Intn(300)

		batches := New(maxChars, nil).Chunk(text)
		require.NotEmpty(t, batches)
		assert.Equal(t, text, Join(batches), "round %d", round)

		for i, b := range batches {
			assert.Equal(t, i, b.Index)
			assert.NotEmpty(t, b.Text)
			if utf8.RuneCountInString(b.Text) > maxChars {
				first := strings.SplitN(b.Text, "\n", 2)[0]
				assert.Greater(t, utf8.RuneCountInString(first), maxChars,
					"round %d batch %d exceeds bound without an irreducible line", round, i)
			}
		}
	}
}

func randomDocument(rng *rand.Rand) string {
	words := []string{"alpha", "beta", "模型", "假设", "gamma", "δ", "[[__IMG_1__]]", "$x$"}
	paras := make([]string, 1+rng.Intn(12))
	for i := range paras {
		lines := make([]string, 1+rng.Intn(5))
		for j := range lines {
			n := 1 + rng.Intn(20)
			if rng.Intn(10) == 0 {
				n = 80 + rng.Intn(60)
			}
			ws := make([]string, n)
			for k := range ws {
				ws[k] = words[rng.Intn(len(words))]
			}
			lines[j] = strings.Join(ws, " ")
		}
		paras[i] = strings.Join(lines, "\n")
	}
	return strings.Join(paras, "\n\n")
}
