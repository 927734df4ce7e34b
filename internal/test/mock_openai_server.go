package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerdneilsfield/ocr-bilingual/internal/isolate"
)

// MockOpenAIServer 是一个模拟的 OpenAI 兼容 API 服务器（/chat/completions）
type MockOpenAIServer struct {
	Server *httptest.Server
	URL    string

	mu sync.Mutex
	// Respond 根据用户消息生成回复；返回非 200 状态码时模拟错误
	Respond  func(system, user string) (string, int)
	Delay    time.Duration
	requests []MockChatRequest
	calls    atomic.Int64
}

// MockChatRequest 记录的请求
type MockChatRequest struct {
	Model         string
	System        string
	User          string
	Authorization string
	Temperature   float64
}

// NewMockOpenAIServer 创建一个新的模拟服务器，默认按双语格式回显
func NewMockOpenAIServer(t *testing.T) *MockOpenAIServer {
	mock := &MockOpenAIServer{
		Respond: func(_, user string) (string, int) {
			return BilingualEcho(user), http.StatusOK
		},
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}

		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"message": "无法解析请求体", "type": "invalid_request_error"}}`))
			return
		}

		req := MockChatRequest{
			Model:         body.Model,
			Authorization: r.Header.Get("Authorization"),
			Temperature:   body.Temperature,
		}
		for _, msg := range body.Messages {
			switch msg.Role {
			case "system":
				req.System = msg.Content
			case "user":
				req.User = msg.Content
			}
		}

		mock.mu.Lock()
		mock.requests = append(mock.requests, req)
		respond := mock.Respond
		delay := mock.Delay
		mock.mu.Unlock()
		mock.calls.Add(1)

		if delay > 0 {
			time.Sleep(delay)
		}

		content, status := respond(req.System, req.User)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": {"message": "模拟服务器错误", "type": "server_error"}}`))
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   body.Model,
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": content,
					},
				},
			},
			"usage": map[string]interface{}{
				"prompt_tokens":     100,
				"completion_tokens": 50,
				"total_tokens":      150,
			},
		})
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(handler))
	mock.URL = mock.Server.URL
	t.Cleanup(mock.Server.Close)
	return mock
}

// SetResponder 替换回复函数
func (m *MockOpenAIServer) SetResponder(fn func(system, user string) (string, int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Respond = fn
}

// SetDelay 设置每个请求的延迟
func (m *MockOpenAIServer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Delay = d
}

// Requests 返回已收到的请求副本
func (m *MockOpenAIServer) Requests() []MockChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls 请求次数
func (m *MockOpenAIServer) Calls() int {
	return int(m.calls.Load())
}

// TranslatedPrefix BilingualEcho 在译文行前加的标记
const TranslatedPrefix = "> 译: "

// BilingualEcho 模拟模型的双语输出：每段原文后跟一行引用形式的"译文"，
// 只有占位符的段落原样输出不翻译
func BilingualEcho(user string) string {
	var out []string
	for _, para := range strings.Split(user, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		out = append(out, para)
		if _, ok := isolate.PlaceholderOnly(para); ok {
			continue
		}
		out = append(out, TranslatedPrefix+strings.ReplaceAll(para, "\n", " "))
	}
	return strings.Join(out, "\n\n")
}
