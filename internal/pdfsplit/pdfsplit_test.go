package pdfsplit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/test"
)

func TestPageCount(t *testing.T) {
	n, err := PageCount(test.BuildPDF(3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = PageCount([]byte("definitely not a pdf"))
	assert.True(t, apperr.IsValidation(err))
}

func TestSplit(t *testing.T) {
	tests := []struct {
		pages  int
		span   int
		labels []string
		counts []int
	}{
		{pages: 7, span: 5, labels: []string{"P1-P5", "P6-P7"}, counts: []int{5, 2}},
		{pages: 5, span: 5, labels: []string{"P1-P5"}, counts: []int{5}},
		{pages: 3, span: 1, labels: []string{"P1-P1", "P2-P2", "P3-P3"}, counts: []int{1, 1, 1}},
		{pages: 2, span: 0, labels: []string{"P1-P2"}, counts: []int{2}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d pages by %d", tt.pages, tt.span), func(t *testing.T) {
			chunks, err := Split(context.Background(), test.BuildPDF(tt.pages), tt.span)
			require.NoError(t, err)
			require.Len(t, chunks, len(tt.labels))
			for i, c := range chunks {
				assert.Equal(t, tt.labels[i], c.Label())
				n, err := PageCount(c.Data)
				require.NoError(t, err)
				assert.Equal(t, tt.counts[i], n)
			}
		})
	}
}

func TestSplitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Split(ctx, test.BuildPDF(2), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
