package ocr

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/test"
)

type recordingRecognizer struct {
	mu     sync.Mutex
	labels []string
	mimes  []string
	fail   map[string]bool
}

func (r *recordingRecognizer) Recognize(_ context.Context, _ []byte, mimeType, label string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, label)
	r.mimes = append(r.mimes, mimeType)
	if r.fail[label] {
		return FailureMarker(fmt.Errorf("chunk %s failed", label))
	}
	return "text of " + label
}

func TestReadPDFInChunks(t *testing.T) {
	rec := &recordingRecognizer{fail: map[string]bool{"P6-P10": true}}
	reader := NewDocumentReader(rec, 5, nil)

	out, err := reader.Read(context.Background(), "paper.PDF", test.BuildPDF(12))
	require.NoError(t, err)

	assert.Equal(t, []string{"P1-P5", "P6-P10", "P11-P12"}, rec.labels)
	assert.Equal(t, "application/pdf", rec.mimes[0])

	parts := strings.Split(out, ChunkSeparator)
	require.Len(t, parts, 3)
	assert.Equal(t, "text of P1-P5", parts[0])
	assert.Equal(t, "# ❌ 解析失败: chunk P6-P10 failed\n\n", parts[1])
	assert.Equal(t, "text of P11-P12", parts[2])
}

func TestReadImage(t *testing.T) {
	mock := test.NewMockOCRServer(t)
	reader := NewDocumentReader(newTestClient(t, mock), 5, nil)

	out, err := reader.Read(context.Background(), "scan.jpeg", []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.Equal(t, PageBreak+"# Title\n\nRecognized text.", out)

	docs := mock.Documents()
	require.Len(t, docs, 1)
	assert.True(t, strings.HasPrefix(docs[0], "data:image/jpeg;base64,"))
}

func TestReadImageMimeTypes(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "scan.jpg", want: "image/jpeg"},
		{filename: "scan.JPEG", want: "image/jpeg"},
		{filename: "scan.png", want: "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			rec := &recordingRecognizer{}
			_, err := NewDocumentReader(rec, 5, nil).Read(context.Background(), tt.filename, []byte{1})
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, rec.mimes)
		})
	}
}

func TestReadEmptyResult(t *testing.T) {
	mock := test.NewMockOCRServer(t)
	mock.SetResponder(func(string) ([]test.MockOCRPage, int) { return nil, http.StatusOK })
	reader := NewDocumentReader(newTestClient(t, mock), 5, nil)

	out, err := reader.Read(context.Background(), "scan.png", []byte{1})
	require.NoError(t, err)
	assert.Equal(t, EmptyMarker, out)
}

func TestReadRejectsUnsupported(t *testing.T) {
	reader := NewDocumentReader(&recordingRecognizer{}, 5, nil)
	_, err := reader.Read(context.Background(), "notes.docx", []byte("x"))
	assert.True(t, apperr.IsValidation(err))

	_, err = reader.Read(context.Background(), "broken.pdf", []byte("not a pdf"))
	assert.True(t, apperr.IsValidation(err))
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{"pdf", "jpg", "jpeg", "png"} {
		assert.True(t, Supported(ext), ext)
	}
	assert.False(t, Supported("gif"))
	assert.Equal(t, "pdf", Extension("A.Paper.PDF"))
	assert.Equal(t, "", Extension("README"))
}
