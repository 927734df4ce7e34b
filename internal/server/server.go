// Package server 把 service 暴露为 HTTP JSON 接口
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/catalog"
	"github.com/nerdneilsfield/ocr-bilingual/internal/service"
)

const (
	// DefaultMaxUpload 上传文件大小上限
	DefaultMaxUpload int64 = 64 << 20
	shutdownTimeout        = 30 * time.Second
)

// Server HTTP 服务
type Server struct {
	svc       *service.Service
	storeName string
	maxUpload int64
	logger    *zap.Logger
}

// New 创建 HTTP 服务
func New(svc *service.Service, storeName string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, storeName: storeName, maxUpload: DefaultMaxUpload, logger: logger}
}

// Handler 路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /history/preload", s.handlePreload)
	mux.HandleFunc("GET /history/list", s.handleList)
	mux.HandleFunc("POST /history/delete", s.handleDelete)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /translate", s.handleTranslate)
	mux.HandleFunc("GET /files", s.handleFile)
	return s.withLogging(mux)
}

// Run 监听 addr 直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": s.storeName})
}

type userBody struct {
	User string `json:"user"`
}

func (s *Server) handlePreload(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	started, err := s.svc.Preload(body.User)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := "started"
	if !started {
		status = "busy"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"message": fmt.Sprintf("background fetch %s for %s", status, body.User),
	})
}

// listItem 列表记录加上文件代理链接
type listItem struct {
	catalog.Record
	SourceURL   string `json:"pdf_url"`
	MarkdownURL string `json:"md_url"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.svc.List(r.Context(), q.Get("user"), q.Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]listItem, 0, len(records))
	for _, rec := range records {
		items = append(items, listItem{
			Record:      rec,
			SourceURL:   fileURL(rec.SourcePath, false),
			MarkdownURL: fileURL(rec.MarkdownPath, false),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid multipart form")
		return
	}
	user := r.FormValue("user")
	if err := s.svc.CheckUser("server.upload", user); err != nil {
		s.fail(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "no file uploaded")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "failed to read upload")
		return
	}

	res, err := s.svc.Upload(r.Context(), user, header.Filename, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":      res.TaskID,
		"markdown":     res.Markdown,
		"gh_path":      res.MarkdownPath,
		"pdf_path":     res.SourcePath,
		"download_url": fileURL(res.MarkdownPath, true),
		"pdf_url":      fileURL(res.SourcePath, false),
	})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if body.Path == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "missing path parameter")
		return
	}

	res, err := s.svc.Translate(r.Context(), body.Path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	payload := map[string]any{
		"content":  res.Content,
		"status":   res.Status,
		"dual_url": fileURL(res.DualPath, true),
	}
	if res.Report != nil {
		payload["job_id"] = res.Report.JobID
		payload["degraded"] = res.Report.Degraded
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		User       string `json:"user"`
		SourcePath string `json:"pdf_path"`
		MDPath     string `json:"md_path"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	details, err := s.svc.Delete(r.Context(), body.User, body.SourcePath, body.MDPath)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"details": details,
		"message": "files deleted and history refreshed",
	})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := s.svc.Fetch(r.Context(), q.Get("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	if q.Get("download") == "true" {
		w.Header().Set("Content-Disposition", "attachment; filename*=utf-8''"+url.PathEscape(f.Name))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

// fail 把业务错误映射为 HTTP 状态码
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeError(w, status, code, err.Error())
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnknownUser):
		return http.StatusForbidden, "FORBIDDEN"
	case apperr.IsValidation(err):
		return http.StatusBadRequest, "BAD_REQUEST"
	case apperr.IsNotFound(err):
		return http.StatusNotFound, "NOT_FOUND"
	case apperr.IsConfiguration(err):
		return http.StatusInternalServerError, "NOT_CONFIGURED"
	case apperr.IsTransport(err):
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func fileURL(p string, download bool) string {
	u := "/files?path=" + url.QueryEscape(p)
	if download {
		u += "&download=true"
	}
	return u
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":  code,
		"error": message,
	})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return errors.New("missing JSON body")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}
