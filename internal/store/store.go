// Package store 定义远端文件存储的接口。所有路径都相对于一个固定的仓库/分支（或桶）。
package store

import (
	"context"
	"path"
	"strings"
	"time"
)

// EntryType 目录项类型
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// Entry 目录列表中的一项
type Entry struct {
	Name string    `json:"name"`
	Path string    `json:"path"`
	Type EntryType `json:"type"`
	Size int64     `json:"size"`
}

// FileMeta 文件元数据。Digest 是删除/覆盖时需要的内容摘要。
type FileMeta struct {
	Path   string
	Digest string
	Size   int64
}

// Store 远端存储。不存在的路径返回 apperr.ErrRemoteNotFound，
// 网络错误或非 2xx 返回 apperr.ErrRemoteTransport。
type Store interface {
	List(ctx context.Context, dir string) ([]Entry, error)
	Stat(ctx context.Context, p string) (*FileMeta, error)
	Get(ctx context.Context, p string) ([]byte, error)
	Put(ctx context.Context, p string, content []byte, message string) error
	Delete(ctx context.Context, p string, message string) error
	// LastCommit 最近一次修改时间；没有历史时返回零值
	LastCommit(ctx context.Context, p string) (time.Time, error)
	Name() string
}

// Clean 规范化存储路径：斜杠分隔，没有前导斜杠
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
