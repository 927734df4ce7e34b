package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockOCRPage 模拟的 OCR 页
type MockOCRPage struct {
	Markdown string
	Images   map[string]string
}

// MockOCRServer 模拟 Mistral OCR 接口（POST /v1/ocr）
type MockOCRServer struct {
	Server *httptest.Server
	URL    string

	mu sync.Mutex
	// Respond 根据 data URI 返回页面；返回非 200 状态码时模拟错误
	Respond   func(documentURL string) ([]MockOCRPage, int)
	documents []string
}

// NewMockOCRServer 创建模拟服务器，默认每个文档返回一页
func NewMockOCRServer(t *testing.T) *MockOCRServer {
	mock := &MockOCRServer{
		Respond: func(string) ([]MockOCRPage, int) {
			return []MockOCRPage{{Markdown: "# Title\n\nRecognized text."}}, http.StatusOK
		},
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/v1/ocr") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthorized"}`))
			return
		}

		var body struct {
			Model    string `json:"model"`
			Document struct {
				Type        string `json:"type"`
				DocumentURL string `json:"document_url"`
				ImageURL    string `json:"image_url"`
			} `json:"document"`
			IncludeImageBase64 bool `json:"include_image_base64"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		docURL := body.Document.DocumentURL
		if docURL == "" {
			docURL = body.Document.ImageURL
		}

		mock.mu.Lock()
		mock.documents = append(mock.documents, docURL)
		respond := mock.Respond
		mock.mu.Unlock()

		pages, status := respond(docURL)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"mock ocr failure"}`))
			return
		}

		out := make([]map[string]interface{}, 0, len(pages))
		for i, p := range pages {
			images := make([]map[string]interface{}, 0, len(p.Images))
			for id, b64 := range p.Images {
				images = append(images, map[string]interface{}{"id": id, "image_base64": b64})
			}
			out = append(out, map[string]interface{}{
				"index":    i,
				"markdown": p.Markdown,
				"images":   images,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": body.Model,
			"pages": out,
		})
	}))
	mock.URL = mock.Server.URL
	t.Cleanup(mock.Server.Close)
	return mock
}

// SetResponder 替换回复函数
func (m *MockOCRServer) SetResponder(fn func(documentURL string) ([]MockOCRPage, int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Respond = fn
}

// Documents 返回收到的 data URI
func (m *MockOCRServer) Documents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.documents))
	copy(out, m.documents)
	return out
}
