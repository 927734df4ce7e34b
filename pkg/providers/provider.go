package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config 翻译引擎的通用配置
type Config struct {
	Provider    string `json:"provider"`
	APIKey      string `json:"api_key,omitempty"`
	APIEndpoint string `json:"api_endpoint,omitempty"`
	Model       string `json:"model"`

	Temperature float32 `json:"temperature"`

	// 单次调用的超时，由调用方通过 context 施加
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`

	// 自定义头部
	Headers map[string]string `json:"headers,omitempty"`
}

// DefaultConfig 返回默认配置（DeepSeek 的 OpenAI 兼容接口）
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		APIEndpoint: "https://api.deepseek.com",
		Model:       "deepseek-chat",
		Temperature: 0.1,
		Timeout:     120 * time.Second,
		Headers:     make(map[string]string),
	}
}

// Request 一次翻译请求：固定的系统指令 + 已隔离的文本
type Request struct {
	SystemPrompt string                 `json:"system_prompt"`
	Text         string                 `json:"text"`
	Temperature  float32                `json:"temperature"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Response 引擎的原始输出
type Response struct {
	Text      string                 `json:"text"`
	Model     string                 `json:"model,omitempty"`
	TokensIn  int                    `json:"tokens_in,omitempty"`
	TokensOut int                    `json:"tokens_out,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Engine 翻译引擎。实现必须是并发安全的，调度器会同时发起多个调用。
// Translate 应在 ctx 取消后尽快返回；调度器超时后不再等待结果，
// 不理会 ctx 的实现会在后台占用连接直到自行结束。
type Engine interface {
	Translate(ctx context.Context, req *Request) (*Response, error)
	Name() string
}

// 错误码
const (
	CodeRateLimit     = "rate_limit"
	CodeTimeout       = "timeout"
	CodeServerError   = "server_error"
	CodeInvalidConfig = "invalid_config"
	CodeEmptyResponse = "empty_response"
	CodeCircuitOpen   = "circuit_open"
	CodeRequestFailed = "request_failed"
)

// Error 提供商错误
type Error struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Cause    error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable 判断错误是否可重试
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case CodeRateLimit, CodeTimeout, CodeServerError:
		return true
	default:
		return false
	}
}

// NewError 创建提供商错误
func NewError(provider, code, message string, cause error) *Error {
	return &Error{
		Provider: provider,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// CodeOf 提取错误码，非提供商错误返回空串
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// StatusCode 把 HTTP 状态码映射为错误码
func StatusCode(status int) string {
	switch {
	case status == 429:
		return CodeRateLimit
	case status == 408 || status == 504:
		return CodeTimeout
	case status >= 500:
		return CodeServerError
	default:
		return CodeRequestFailed
	}
}
