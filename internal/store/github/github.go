// Package github 基于 GitHub contents / commits API 的存储后端。
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/retry"
)

const (
	// Name 后端名称
	Name = "github"

	// DefaultAPIBase 公共 GitHub API
	DefaultAPIBase = "https://api.github.com"
)

// Config GitHub 后端配置
type Config struct {
	Owner   string
	Repo    string
	Branch  string
	Token   string
	APIBase string
	Timeout time.Duration
	Retry   retry.Config
}

// Client GitHub 存储
type Client struct {
	config Config
	repos  *gh.RepositoriesService
	git    *gh.GitService
	logger *zap.Logger
}

var _ store.Store = (*Client)(nil)

// New 创建 GitHub 存储客户端。瞬时错误由 retry.Transport 在 HTTP 层重试。
func New(config Config, logger *zap.Logger) (*Client, error) {
	if config.Owner == "" || config.Repo == "" {
		return nil, apperr.Configuration("github.new", "owner and repo are required")
	}
	if config.APIBase == "" {
		config.APIBase = DefaultAPIBase
	}
	if config.Branch == "" {
		config.Branch = "main"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base, err := url.Parse(strings.TrimRight(config.APIBase, "/") + "/")
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrConfiguration, "github.new", fmt.Errorf("invalid api_base: %w", err))
	}

	client := gh.NewClient(&http.Client{
		Timeout:   config.Timeout,
		Transport: retry.NewTransport(nil, config.Retry, logger),
	})
	client.BaseURL = base
	if config.Token != "" {
		client = client.WithAuthToken(config.Token)
	}

	return &Client{
		config: config,
		repos:  client.Repositories,
		git:    client.Git,
		logger: logger,
	}, nil
}

// Name 后端名称
func (c *Client) Name() string {
	return Name
}

func (c *Client) ref() *gh.RepositoryContentGetOptions {
	return &gh.RepositoryContentGetOptions{Ref: c.config.Branch}
}

// List 列出目录
func (c *Client) List(ctx context.Context, dir string) ([]store.Entry, error) {
	const op = "github.list"
	dir = store.Clean(dir)

	file, items, _, err := c.repos.GetContents(ctx, c.config.Owner, c.config.Repo, dir, c.ref())
	if err != nil {
		return nil, mapError(op, dir, err)
	}
	if file != nil {
		return nil, apperr.Validation(op, dir+" is not a directory")
	}

	entries := make([]store.Entry, 0, len(items))
	for _, it := range items {
		t := store.EntryFile
		if it.GetType() == "dir" {
			t = store.EntryDir
		}
		entries = append(entries, store.Entry{
			Name: it.GetName(),
			Path: it.GetPath(),
			Type: t,
			Size: int64(it.GetSize()),
		})
	}
	return entries, nil
}

func (c *Client) stat(ctx context.Context, op, p string) (*gh.RepositoryContent, error) {
	file, _, _, err := c.repos.GetContents(ctx, c.config.Owner, c.config.Repo, p, c.ref())
	if err != nil {
		return nil, mapError(op, p, err)
	}
	if file == nil {
		return nil, apperr.Validation(op, p+" is a directory")
	}
	return file, nil
}

// Stat 查询文件 sha
func (c *Client) Stat(ctx context.Context, p string) (*store.FileMeta, error) {
	p = store.Clean(p)
	file, err := c.stat(ctx, "github.stat", p)
	if err != nil {
		return nil, err
	}
	return &store.FileMeta{Path: p, Digest: file.GetSHA(), Size: int64(file.GetSize())}, nil
}

// Get 下载文件内容。超过 1MB 的文件 contents 接口不带内容，改走 blob 接口。
func (c *Client) Get(ctx context.Context, p string) ([]byte, error) {
	const op = "github.get"
	p = store.Clean(p)

	file, err := c.stat(ctx, op, p)
	if err != nil {
		return nil, err
	}
	if file.GetEncoding() == "base64" && file.Content != nil && *file.Content != "" {
		content, err := file.GetContent()
		if err != nil {
			return nil, apperr.Transport(op, http.StatusOK, fmt.Errorf("decode contents: %w", err))
		}
		return []byte(content), nil
	}

	data, _, err := c.git.GetBlobRaw(ctx, c.config.Owner, c.config.Repo, file.GetSHA())
	if err != nil {
		return nil, mapError(op, p, err)
	}
	return data, nil
}

// Put 创建或覆盖文件（一次提交）
func (c *Client) Put(ctx context.Context, p string, content []byte, message string) error {
	const op = "github.put"
	p = store.Clean(p)

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: content,
		Branch:  gh.String(c.config.Branch),
	}
	meta, err := c.Stat(ctx, p)
	switch {
	case err == nil:
		opts.SHA = gh.String(meta.Digest)
		_, _, err = c.repos.UpdateFile(ctx, c.config.Owner, c.config.Repo, escapePath(p), opts)
	case apperr.IsNotFound(err):
		_, _, err = c.repos.CreateFile(ctx, c.config.Owner, c.config.Repo, escapePath(p), opts)
	default:
		return err
	}
	if err != nil {
		return mapError(op, p, err)
	}
	c.logger.Debug("file committed", zap.String("path", p), zap.Int("bytes", len(content)))
	return nil
}

// Delete 删除文件（一次提交），需要先取得 sha
func (c *Client) Delete(ctx context.Context, p string, message string) error {
	const op = "github.delete"
	p = store.Clean(p)

	meta, err := c.Stat(ctx, p)
	if err != nil {
		return err
	}
	_, _, err = c.repos.DeleteFile(ctx, c.config.Owner, c.config.Repo, escapePath(p), &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		SHA:     gh.String(meta.Digest),
		Branch:  gh.String(c.config.Branch),
	})
	if err != nil {
		return mapError(op, p, err)
	}
	c.logger.Debug("file deleted", zap.String("path", p))
	return nil
}

// LastCommit 查询路径最近一次提交的时间
func (c *Client) LastCommit(ctx context.Context, p string) (time.Time, error) {
	const op = "github.last_commit"
	p = store.Clean(p)

	commits, _, err := c.repos.ListCommits(ctx, c.config.Owner, c.config.Repo, &gh.CommitsListOptions{
		SHA:         c.config.Branch,
		Path:        p,
		ListOptions: gh.ListOptions{PerPage: 1},
	})
	if err != nil {
		return time.Time{}, mapError(op, p, err)
	}
	if len(commits) == 0 {
		return time.Time{}, nil
	}
	return commits[0].GetCommit().GetCommitter().GetDate().Time, nil
}

// escapePath 逐段转义，保留分隔符。CreateFile / UpdateFile / DeleteFile 不转义路径。
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// mapError 404 转为 NotFound，其余 API 错误和网络错误转为 Transport
func mapError(op, p string, err error) error {
	var (
		errResp  *gh.ErrorResponse
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
	)
	switch {
	case errors.As(err, &errResp):
		status := 0
		if errResp.Response != nil {
			status = errResp.Response.StatusCode
		}
		if status == http.StatusNotFound {
			return apperr.NotFound(op, p)
		}
		return apperr.Transport(op, status, fmt.Errorf("status %d: %s", status, errResp.Message))
	case errors.As(err, &rateErr):
		return apperr.Transport(op, http.StatusForbidden, err)
	case errors.As(err, &abuseErr):
		return apperr.Transport(op, http.StatusForbidden, err)
	case errors.Is(err, gh.ErrPathForbidden):
		return apperr.Validation(op, "invalid path "+p)
	}
	return apperr.Transport(op, 0, err)
}
