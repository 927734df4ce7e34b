// Package service 组合 OCR、清洗、翻译、远端存储和列表缓存，对外提供上传、翻译、列表、删除等操作。
package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/cache"
	"github.com/nerdneilsfield/ocr-bilingual/internal/catalog"
	"github.com/nerdneilsfield/ocr-bilingual/internal/cleaner"
	"github.com/nerdneilsfield/ocr-bilingual/internal/ocr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store"
	"github.com/nerdneilsfield/ocr-bilingual/internal/translator"
)

const (
	// StatusCached 双语文件已存在，直接返回
	StatusCached = "cached"
	// StatusTranslated 本次新生成的双语文件
	StatusTranslated = "translated"

	// DeleteDone 文件已删除
	DeleteDone = "deleted"
	// DeleteSkipped 文件不存在，跳过
	DeleteSkipped = "skipped"
	// DeleteFailed 删除失败
	DeleteFailed = "failed"
)

// ErrUnknownUser 用户不在白名单中
var ErrUnknownUser = errors.New("unknown user")

// DocumentReader 把上传的文件识别为 Markdown
type DocumentReader interface {
	Read(ctx context.Context, filename string, data []byte) (string, error)
}

// Translator 把整篇 Markdown 翻译为双语 Markdown
type Translator interface {
	Run(ctx context.Context, markdown string) (string, translator.Report)
}

// Options 服务依赖
type Options struct {
	Store     store.Store
	Refresher *cache.Refresher
	Cleaner   *cleaner.Cleaner
	// Reader 为 nil 时上传返回配置错误
	Reader DocumentReader
	// Translator 为 nil 时翻译返回配置错误
	Translator Translator
	// Users 用户 id -> 显示名
	Users map[string]string
	Now   func() time.Time
}

// Service 业务入口
type Service struct {
	store      store.Store
	refresher  *cache.Refresher
	cleaner    *cleaner.Cleaner
	reader     DocumentReader
	translator Translator
	users      map[string]string
	now        func() time.Time
	logger     *zap.Logger
}

// New 创建服务
func New(opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cleaner == nil {
		opts.Cleaner = cleaner.New(logger, nil)
	}
	return &Service{
		store:      opts.Store,
		refresher:  opts.Refresher,
		cleaner:    opts.Cleaner,
		reader:     opts.Reader,
		translator: opts.Translator,
		users:      opts.Users,
		now:        opts.Now,
		logger:     logger,
	}
}

// UploadResult 上传结果
type UploadResult struct {
	TaskID       string `json:"task_id"`
	Markdown     string `json:"markdown"`
	MarkdownPath string `json:"md_path"`
	SourcePath   string `json:"pdf_path"`
}

// TranslateResult 翻译结果
type TranslateResult struct {
	Path     string             `json:"path"`
	DualPath string             `json:"dual_path"`
	Content  string             `json:"content"`
	Status   string             `json:"status"`
	Report   *translator.Report `json:"-"`
}

// DeleteDetail 单个文件的删除结果
type DeleteDetail struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// File 代理读取的文件
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// CheckUser 校验用户是否在白名单中
func (s *Service) CheckUser(op, user string) error {
	if _, ok := s.users[user]; ok {
		return nil
	}
	return &apperr.Error{
		Kind:    apperr.ErrValidation,
		Op:      op,
		Message: "invalid user " + user,
		Cause:   ErrUnknownUser,
	}
}

// Users 白名单
func (s *Service) Users() map[string]string {
	out := make(map[string]string, len(s.users))
	for k, v := range s.users {
		out[k] = v
	}
	return out
}

// Upload 识别上传的文件，把原文件和清洗后的 Markdown 存入 <user>/ 目录，并安排刷新列表
func (s *Service) Upload(ctx context.Context, user, filename string, data []byte) (*UploadResult, error) {
	const op = "service.upload"
	if err := s.CheckUser(op, user); err != nil {
		return nil, err
	}
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if len(data) == 0 || filename == "" || filename == "." || filename == "/" {
		return nil, apperr.Validation(op, "no file uploaded")
	}
	ext := ocr.Extension(filename)
	if !ocr.Supported(ext) {
		return nil, apperr.Validation(op, "unsupported file type: "+filename)
	}
	if s.reader == nil {
		return nil, apperr.Configuration(op, "ocr is not configured")
	}

	taskID := fmt.Sprintf("%s_%d", strings.TrimSuffix(filename, path.Ext(filename)), s.now().Unix())
	sourcePath := fmt.Sprintf("%s/%s.%s", user, taskID, ext)
	mdPath := fmt.Sprintf("%s/%s.md", user, taskID)
	log := s.logger.With(zap.String("user", user), zap.String("task", taskID))
	log.Info("upload received", zap.String("file", filename), zap.Int("bytes", len(data)))

	raw, err := s.reader.Read(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	markdown := s.cleaner.Clean(raw)

	if err := s.store.Put(ctx, sourcePath, data, "Add source: "+filename); err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, mdPath, []byte(markdown), "Add markdown: "+filename); err != nil {
		return nil, err
	}
	log.Info("upload stored", zap.String("source", sourcePath), zap.String("markdown", mdPath))

	s.refresher.Trigger(user)
	return &UploadResult{
		TaskID:       taskID,
		Markdown:     markdown,
		MarkdownPath: mdPath,
		SourcePath:   sourcePath,
	}, nil
}

// DualPath 由 Markdown 路径得到双语文件路径
func DualPath(mdPath string) string {
	return strings.TrimSuffix(mdPath, ".md") + catalog.DualSuffix + ".md"
}

// Translate 返回 mdPath 的双语版本：已存在时直接读取，否则翻译并存入远端
func (s *Service) Translate(ctx context.Context, mdPath string) (*TranslateResult, error) {
	const op = "service.translate"
	mdPath = store.Clean(mdPath)
	if mdPath == "" {
		return nil, apperr.Validation(op, "missing path parameter")
	}
	if !strings.HasSuffix(mdPath, ".md") {
		return nil, apperr.Validation(op, "not a markdown file: "+mdPath)
	}
	if strings.HasSuffix(mdPath, catalog.DualSuffix+".md") {
		return nil, apperr.Validation(op, "already a bilingual file: "+mdPath)
	}
	dualPath := DualPath(mdPath)
	log := s.logger.With(zap.String("path", mdPath))

	cached, err := s.store.Get(ctx, dualPath)
	switch {
	case err == nil:
		log.Info("bilingual file already exists", zap.String("dual", dualPath))
		return &TranslateResult{Path: mdPath, DualPath: dualPath, Content: string(cached), Status: StatusCached}, nil
	case !apperr.IsNotFound(err):
		return nil, err
	}

	original, err := s.store.Get(ctx, mdPath)
	if err != nil {
		return nil, err
	}
	if s.translator == nil {
		return nil, apperr.Configuration(op, "translation is not configured")
	}

	content, report := s.translator.Run(ctx, string(original))
	if err := s.store.Put(ctx, dualPath, []byte(content), "Add bilingual: "+path.Base(mdPath)); err != nil {
		return nil, err
	}
	log.Info("bilingual file stored",
		zap.String("dual", dualPath),
		zap.String("job", report.JobID),
		zap.Int("degraded", report.Degraded))

	if user := ownerOf(mdPath); user != "" {
		s.refresher.Trigger(user)
	}
	return &TranslateResult{
		Path:     mdPath,
		DualPath: dualPath,
		Content:  content,
		Status:   StatusTranslated,
		Report:   &report,
	}, nil
}

// List 返回用户的文档列表，query 非空时做模糊过滤
func (s *Service) List(ctx context.Context, user, query string) ([]catalog.Record, error) {
	if err := s.CheckUser("service.list", user); err != nil {
		return nil, err
	}
	return catalog.Filter(s.refresher.ReadThrough(ctx, user), query), nil
}

// Delete 删除源文件、Markdown 及其双语版本，然后同步刷新列表。
// 不存在的文件记为跳过；单个文件失败不影响其余文件。
func (s *Service) Delete(ctx context.Context, user, sourcePath, mdPath string) ([]DeleteDetail, error) {
	const op = "service.delete"
	if user == "" || sourcePath == "" || mdPath == "" {
		return nil, apperr.Validation(op, "missing parameters")
	}
	if err := s.CheckUser(op, user); err != nil {
		return nil, err
	}
	sourcePath, mdPath = store.Clean(sourcePath), store.Clean(mdPath)
	for _, p := range []string{sourcePath, mdPath} {
		if ownerOf(p) != user {
			return nil, apperr.Validation(op, fmt.Sprintf("%s does not belong to %s", p, user))
		}
	}

	targets := []string{sourcePath, mdPath, DualPath(mdPath)}
	details := make([]DeleteDetail, 0, len(targets))
	for _, p := range targets {
		d := DeleteDetail{Path: p, Status: DeleteDone}
		err := s.store.Delete(ctx, p, "Delete "+path.Base(p))
		switch {
		case err == nil:
		case apperr.IsNotFound(err):
			d.Status = DeleteSkipped
		default:
			d.Status = DeleteFailed
			d.Error = err.Error()
			s.logger.Warn("delete failed", zap.String("path", p), zap.Error(err))
		}
		details = append(details, d)
	}

	if _, err := s.refresher.Refresh(ctx, user); err != nil {
		s.logger.Warn("refresh after delete failed", zap.String("user", user), zap.Error(err))
	}
	return details, nil
}

// Preload 安排一次后台刷新并立即返回，started 为 false 表示本次触发被丢弃
func (s *Service) Preload(user string) (started bool, err error) {
	if err := s.CheckUser("service.preload", user); err != nil {
		return false, err
	}
	return s.refresher.Trigger(user), nil
}

// Fetch 读取远端文件并给出内容类型
func (s *Service) Fetch(ctx context.Context, p string) (*File, error) {
	p = store.Clean(p)
	if p == "" {
		return nil, apperr.Validation("service.fetch", "no path specified")
	}
	data, err := s.store.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	return &File{Name: path.Base(p), ContentType: ContentType(p), Data: data}, nil
}

// ContentType 按扩展名给出响应类型
func ContentType(p string) string {
	switch ocr.Extension(p) {
	case "pdf":
		return "application/pdf"
	case "md":
		return "text/markdown; charset=utf-8"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	}
	return "text/plain; charset=utf-8"
}

func ownerOf(p string) string {
	if i := strings.Index(p, "/"); i > 0 {
		return p[:i]
	}
	return ""
}
