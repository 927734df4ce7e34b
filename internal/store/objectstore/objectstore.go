// Package objectstore 基于 S3 兼容对象存储（minio-go）的存储后端。
// 对象存储没有提交历史，LastModified 充当最后修改时间，ETag 充当摘要。
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store"
)

// Name 后端名称
const Name = "minio"

// Config 对象存储配置
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// object 对象存储里的一个对象或公共前缀
type object struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	IsPrefix     bool
}

// bucket Store 依赖的最小桶操作集合
type bucket interface {
	list(ctx context.Context, prefix string) ([]object, error)
	stat(ctx context.Context, key string) (object, error)
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, content []byte, contentType string) error
	remove(ctx context.Context, key string) error
}

// Store 对象存储
type Store struct {
	bucket bucket
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New 创建 minio 客户端
func New(config Config, logger *zap.Logger) (*Store, error) {
	if config.Endpoint == "" || config.Bucket == "" {
		return nil, apperr.Configuration("objectstore.new", "endpoint and bucket are required")
	}
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, apperr.Configuration("objectstore.new", err.Error())
	}
	return newStore(&minioBucket{client: client, name: config.Bucket}, logger), nil
}

func newStore(b bucket, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{bucket: b, logger: logger}
}

// Name 后端名称
func (s *Store) Name() string {
	return Name
}

// List 列出一层"目录"。没有任何对象的前缀视为不存在。
func (s *Store) List(ctx context.Context, dir string) ([]store.Entry, error) {
	const op = "objectstore.list"
	dir = store.Clean(dir)
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	objects, err := s.bucket.list(ctx, prefix)
	if err != nil {
		return nil, classify(op, dir, err)
	}
	if len(objects) == 0 && dir != "" {
		return nil, apperr.NotFound(op, dir)
	}

	entries := make([]store.Entry, 0, len(objects))
	for _, o := range objects {
		key := strings.TrimSuffix(o.Key, "/")
		e := store.Entry{Name: path.Base(key), Path: key, Type: store.EntryFile, Size: o.Size}
		if o.IsPrefix {
			e.Type = store.EntryDir
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Stat 以 ETag 作为摘要
func (s *Store) Stat(ctx context.Context, p string) (*store.FileMeta, error) {
	p = store.Clean(p)
	o, err := s.bucket.stat(ctx, p)
	if err != nil {
		return nil, classify("objectstore.stat", p, err)
	}
	return &store.FileMeta{Path: p, Digest: strings.Trim(o.ETag, `"`), Size: o.Size}, nil
}

// Get 读取对象
func (s *Store) Get(ctx context.Context, p string) ([]byte, error) {
	p = store.Clean(p)
	data, err := s.bucket.get(ctx, p)
	if err != nil {
		return nil, classify("objectstore.get", p, err)
	}
	return data, nil
}

// Put 上传对象。对象存储没有提交信息，message 只记录到日志。
func (s *Store) Put(ctx context.Context, p string, content []byte, message string) error {
	p = store.Clean(p)
	if err := s.bucket.put(ctx, p, content, contentType(p)); err != nil {
		return classify("objectstore.put", p, err)
	}
	s.logger.Debug("object stored", zap.String("path", p), zap.String("message", message))
	return nil
}

// Delete 删除对象，不存在时返回 NotFound
func (s *Store) Delete(ctx context.Context, p string, message string) error {
	p = store.Clean(p)
	if _, err := s.Stat(ctx, p); err != nil {
		return err
	}
	if err := s.bucket.remove(ctx, p); err != nil {
		return classify("objectstore.delete", p, err)
	}
	s.logger.Debug("object deleted", zap.String("path", p), zap.String("message", message))
	return nil
}

// LastCommit 返回对象的 LastModified；对象不存在时为零值
func (s *Store) LastCommit(ctx context.Context, p string) (time.Time, error) {
	p = store.Clean(p)
	o, err := s.bucket.stat(ctx, p)
	if err != nil {
		err = classify("objectstore.last_commit", p, err)
		if apperr.IsNotFound(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return o.LastModified, nil
}

func contentType(p string) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// classify 把 minio 错误映射到 apperr 类别
func classify(op, p string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound(op, p)
	case resp.StatusCode != 0:
		return apperr.Transport(op, resp.StatusCode, err)
	}
	return apperr.Transport(op, 0, err)
}

// minioBucket 用 minio-go 实现 bucket
type minioBucket struct {
	client *minio.Client
	name   string
}

func (b *minioBucket) list(ctx context.Context, prefix string) ([]object, error) {
	var out []object
	for info := range b.client.ListObjects(ctx, b.name, minio.ListObjectsOptions{Prefix: prefix}) {
		if info.Err != nil {
			return nil, info.Err
		}
		out = append(out, object{
			Key:          info.Key,
			Size:         info.Size,
			ETag:         info.ETag,
			LastModified: info.LastModified,
			IsPrefix:     strings.HasSuffix(info.Key, "/"),
		})
	}
	return out, nil
}

func (b *minioBucket) stat(ctx context.Context, key string) (object, error) {
	info, err := b.client.StatObject(ctx, b.name, key, minio.StatObjectOptions{})
	if err != nil {
		return object{}, err
	}
	return object{Key: info.Key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

func (b *minioBucket) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (b *minioBucket) put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.name, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (b *minioBucket) remove(ctx context.Context, key string) error {
	return b.client.RemoveObject(ctx, b.name, key, minio.RemoveObjectOptions{})
}
