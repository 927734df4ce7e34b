package ocr

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/test"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/retry"
)

func newTestClient(t *testing.T, mock *test.MockOCRServer) *Client {
	t.Helper()
	c, err := New(Config{
		APIKey:   "mistral-key",
		Endpoint: mock.URL + "/v1/ocr",
		Retry:    retry.Config{MaxRetries: 0},
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.True(t, apperr.IsConfiguration(err))
}

func TestMergePages(t *testing.T) {
	pages := []Page{
		{
			Markdown: "# Page 1\n\n![img-0.jpeg](img-0.jpeg)",
			Images:   []Image{{ID: "img-0.jpeg", ImageBase64: "QUJD"}},
		},
		{
			Markdown: "![fig](img-1.png) and ![other](unknown.png)",
			Images:   []Image{{ID: "img-1.png", ImageBase64: "data:image/png;base64,REVG"}},
		},
	}

	got := MergePages(pages)
	want := PageBreak + "# Page 1\n\n![image](data:image/jpeg;base64,QUJD)" +
		PageBreak + "![image](data:image/png;base64,REVG) and ![other](unknown.png)"
	assert.Equal(t, want, got)
	assert.Equal(t, "", MergePages(nil))
}

func TestJoinChunks(t *testing.T) {
	assert.Equal(t, "a\n----------\nb", JoinChunks([]string{"a", "b"}))
	assert.Equal(t, EmptyMarker, JoinChunks(nil))
	assert.Equal(t, EmptyMarker, JoinChunks([]string{""}))
}

func TestProcess(t *testing.T) {
	mock := test.NewMockOCRServer(t)
	mock.SetResponder(func(string) ([]test.MockOCRPage, int) {
		return []test.MockOCRPage{
			{Markdown: "one ![x](i1)", Images: map[string]string{"i1": "AAAA"}},
			{Markdown: "two"},
		}, http.StatusOK
	})
	c := newTestClient(t, mock)

	pages, err := c.Process(context.Background(), []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "one ![x](i1)", pages[0].Markdown)
	assert.Equal(t, []Image{{ID: "i1", ImageBase64: "AAAA"}}, pages[0].Images)

	docs := mock.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "data:application/pdf;base64,JVBERi0xLjQ=", docs[0])
}

func TestRecognizeFailureMarker(t *testing.T) {
	mock := test.NewMockOCRServer(t)
	mock.SetResponder(func(string) ([]test.MockOCRPage, int) {
		return nil, http.StatusBadGateway
	})
	c := newTestClient(t, mock)

	out := c.Recognize(context.Background(), []byte("img"), "image/png", "scan.png")
	assert.True(t, strings.HasPrefix(out, "# ❌ 解析失败: "))
	assert.Contains(t, out, "mock ocr failure")
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}

func TestRecognizeTimeout(t *testing.T) {
	mock := test.NewMockOCRServer(t)
	mock.SetResponder(func(string) ([]test.MockOCRPage, int) {
		time.Sleep(200 * time.Millisecond)
		return []test.MockOCRPage{{Markdown: "late"}}, http.StatusOK
	})
	c, err := New(Config{APIKey: "k", Endpoint: mock.URL + "/v1/ocr", Timeout: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = c.Process(context.Background(), []byte("x"), "image/png")
	assert.True(t, apperr.IsTransport(err))
}

func TestFailureMarker(t *testing.T) {
	assert.Equal(t, "# ❌ 解析失败: boom\n\n", FailureMarker(errors.New("boom")))
}
