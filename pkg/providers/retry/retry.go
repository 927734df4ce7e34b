// Package retry 为外部 HTTP 调用（对象存储、OCR）提供有界的指数退避重试。
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Config 重试配置
type Config struct {
	// 最大重试次数（不含首次请求）
	MaxRetries int `json:"max_retries"`

	// 初始延迟时间
	InitialDelay time.Duration `json:"initial_delay"`

	// 最大延迟时间
	MaxDelay time.Duration `json:"max_delay"`

	// 退避因子（指数退避）
	BackoffFactor float64 `json:"backoff_factor"`
}

// DefaultConfig 返回默认重试配置
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ErrorType 错误类型枚举
type ErrorType int

const (
	ErrorTypeNone        ErrorType = iota
	ErrorTypeNetwork               // 网络瞬时错误
	ErrorTypeRateLimit             // 429
	ErrorTypeServerError           // 5xx
	ErrorTypeClientError           // 其他 4xx
	ErrorTypePermanent             // 永久性错误
)

// Retryable 是否值得重试
func (t ErrorType) Retryable() bool {
	return t == ErrorTypeNetwork || t == ErrorTypeRateLimit || t == ErrorTypeServerError
}

// Classify 分类错误
func Classify(err error, resp *http.Response) ErrorType {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ErrorTypePermanent
		}
		if isNetworkError(err) {
			return ErrorTypeNetwork
		}
		return ErrorTypePermanent
	}
	if resp == nil {
		return ErrorTypeNone
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case resp.StatusCode >= 500:
		return ErrorTypeServerError
	case resp.StatusCode >= 400:
		return ErrorTypeClientError
	}
	return ErrorTypeNone
}

// isNetworkError 判断是否为网络错误
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		if isNetworkError(urlErr.Err) {
			return true
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"no such host",
		"broken pipe",
		"eof",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// Delay 第 attempt 次重试前的等待时间（attempt 从 0 开始）
func (c Config) Delay(attempt int) time.Duration {
	factor := c.BackoffFactor
	if factor <= 1.0 {
		factor = 2.0
	}
	delay := time.Duration(float64(c.InitialDelay) * math.Pow(factor, float64(attempt)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Client 带重试的 HTTP 客户端
type Client struct {
	client *http.Client
	config Config
	logger *zap.Logger
}

// NewClient 包装 HTTP 客户端
func NewClient(client *http.Client, config Config, logger *zap.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{client: client, config: config, logger: logger}
}

// Do 执行请求。带 body 的请求必须能通过 GetBody 重放（http.NewRequest 对
// bytes.Reader / strings.Reader 会自动设置）。最终的非 2xx 响应原样返回，由调用方解释。
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return send(req, c.config, c.logger, c.client.Do)
}

// Transport 带重试的 RoundTripper，供自带 HTTP 层的 SDK 使用
type Transport struct {
	base   http.RoundTripper
	config Config
	logger *zap.Logger
}

// NewTransport 包装 RoundTripper，base 为 nil 时使用 http.DefaultTransport
func NewTransport(base http.RoundTripper, config Config, logger *zap.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{base: base, config: config, logger: logger}
}

// RoundTrip 实现 http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return send(req, t.config, t.logger, t.base.RoundTrip)
}

// send 重试循环。每次重试都克隆请求，不修改调用方的请求。
func send(req *http.Request, config Config, logger *zap.Logger, do func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		attemptReq := req
		if attempt > 0 {
			attemptReq = req.Clone(ctx)
			if req.Body != nil && req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("rewind request body: %w", err)
				}
				attemptReq.Body = body
			}
		}

		resp, err := do(attemptReq)
		kind := Classify(err, resp)
		last := attempt >= config.MaxRetries || !kind.Retryable() ||
			(req.Body != nil && req.Body != http.NoBody && req.GetBody == nil)
		if last {
			return resp, err
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		delay := config.Delay(attempt)
		logger.Debug("retrying request",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
