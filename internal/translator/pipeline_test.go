package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/ocr-bilingual/internal/chunker"
	"github.com/nerdneilsfield/ocr-bilingual/internal/cleaner"
	"github.com/nerdneilsfield/ocr-bilingual/internal/test"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
)

const pipelineDoc = "# Title\n\n" +
	"First paragraph with $x$.\n\n" +
	"![fig](data:image/png;base64,QUJD)\n\n" +
	"Second paragraph &lt;b&gt;.\n\n" +
	"$$\ny = x\n$$\n\n" +
	"Last paragraph."

func TestPipelineRun(t *testing.T) {
	engine := &test.MockEngine{}
	p := NewPipeline(
		cleaner.New(nil, nil),
		chunker.New(60, nil),
		New(engine, Options{Concurrency: 2}, nil),
		nil,
	)

	out, report := p.Run(context.Background(), pipelineDoc)

	assert.NotEmpty(t, report.JobID)
	assert.Greater(t, report.Batches, 1)
	assert.Equal(t, report.Batches, engine.Calls())
	assert.Zero(t, report.Degraded)
	assert.Empty(t, report.Missing)

	assert.Contains(t, out, "![fig](data:image/png;base64,QUJD)")
	assert.Contains(t, out, test.TranslatedPrefix+"First paragraph with $x$.")
	assert.Contains(t, out, "Second paragraph <b>.")
	assert.Equal(t, 1, strings.Count(out, "y = x"))
	assert.Less(t, strings.Index(out, "First paragraph"), strings.Index(out, "Last paragraph"))
}

func TestPipelineReportsDegradedBatches(t *testing.T) {
	engine := &test.MockEngine{Fn: func(ctx context.Context, req *providers.Request) (string, error) {
		return "", errors.New("down")
	}}
	p := NewPipeline(cleaner.New(nil, nil), chunker.New(40, nil), New(engine, Options{}, nil), nil)

	out, report := p.Run(context.Background(), pipelineDoc)
	require.Greater(t, report.Batches, 0)
	assert.Equal(t, report.Batches, report.Degraded)
	assert.Equal(t, cleaner.New(nil, nil).Clean(pipelineDoc), out)
}

func tableDoc(rows int) (string, string) {
	lines := make([]string, rows)
	for i := range lines {
		lines[i] = fmt.Sprintf("| r%d | value %d |", i, i)
	}
	table := strings.Join(lines, "\n")
	return "Intro paragraph.\n\n" + table + "\n\nOutro paragraph.", table
}

func TestPipelineKeepsSplitTableContiguous(t *testing.T) {
	doc, table := tableDoc(10)
	cleaned := cleaner.New(nil, nil).Clean(doc)

	tests := []struct {
		name   string
		engine *test.MockEngine
		exact  bool
	}{
		{
			name: "all batches degraded",
			engine: &test.MockEngine{Fn: func(ctx context.Context, req *providers.Request) (string, error) {
				return "", errors.New("down")
			}},
			exact: true,
		},
		{name: "bilingual echo", engine: &test.MockEngine{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(cleaner.New(nil, nil), chunker.New(80, nil), New(tt.engine, Options{}, nil), nil)

			out, report := p.Run(context.Background(), doc)
			require.Greater(t, report.Batches, 3)
			assert.Contains(t, out, table)
			assert.Empty(t, report.Missing)
			if tt.exact {
				assert.Equal(t, cleaned, out)
			} else {
				assert.Contains(t, out, test.TranslatedPrefix+"Intro paragraph.")
			}
		})
	}
}
