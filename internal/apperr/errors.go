// Package apperr 定义服务的错误分类：配置错误、远端不存在、远端传输错误、校验错误。
package apperr

import (
	"errors"
	"fmt"
)

// 错误类别
var (
	// ErrConfiguration 缺失或无效的凭据/配置，对应能力启动即失败
	ErrConfiguration = errors.New("configuration error")

	// ErrRemoteNotFound 对象存储中不存在请求的路径，不重试
	ErrRemoteNotFound = errors.New("remote not found")

	// ErrRemoteTransport 网络错误或非 2xx 响应（翻译、OCR、存储）
	ErrRemoteTransport = errors.New("remote transport error")

	// ErrValidation 客户端输入错误（未知用户、缺少文件等）
	ErrValidation = errors.New("validation error")
)

// Error 带类别的错误
type Error struct {
	Kind    error  // 上面的某个类别
	Op      string // 出错的操作，例如 "store.get"
	Message string
	Cause   error
	// Status 远端返回的状态码，没有时为 0
	Status int
}

// Error 实现 error 接口
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	} else if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap 返回原因错误
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 使 errors.Is(err, ErrRemoteNotFound) 之类的判断生效
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// New 创建带类别的错误
func New(kind error, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap 用类别包装已有错误
func Wrap(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Configuration 创建配置错误
func Configuration(op, message string) *Error {
	return New(ErrConfiguration, op, message)
}

// Validation 创建校验错误
func Validation(op, message string) *Error {
	return New(ErrValidation, op, message)
}

// NotFound 创建远端不存在错误
func NotFound(op, path string) *Error {
	return New(ErrRemoteNotFound, op, fmt.Sprintf("%s not found", path))
}

// Transport 创建远端传输错误，status 为 0 表示没有拿到响应
func Transport(op string, status int, cause error) *Error {
	e := Wrap(ErrRemoteTransport, op, cause)
	e.Status = status
	if cause == nil {
		e.Message = fmt.Sprintf("unexpected status %d", status)
	}
	return e
}

func IsNotFound(err error) bool      { return errors.Is(err, ErrRemoteNotFound) }
func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }
func IsTransport(err error) bool     { return errors.Is(err, ErrRemoteTransport) }
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }
