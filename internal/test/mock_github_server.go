package test

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockGitHubServer 内存版的 GitHub contents / commits API
type MockGitHubServer struct {
	Server *httptest.Server
	URL    string
	Owner  string
	Repo   string

	mu    sync.Mutex
	files map[string]*mockFile
	// FailCommits 中的路径查询提交历史时返回 500
	FailCommits map[string]bool
	// FailList 为 true 时目录列表返回 500
	FailList bool
	// OmitContent 为 true 时文件查询不返回内容，和 GitHub 对大于 1MB 文件的处理一致
	OmitContent   bool
	commitLookups int
	blobReads     int
	now           func() time.Time
}

type mockFile struct {
	content   []byte
	sha       string
	committed time.Time
}

// NewMockGitHubServer 创建模拟服务器，仓库为 owner/repo
func NewMockGitHubServer(t *testing.T) *MockGitHubServer {
	mock := &MockGitHubServer{
		Owner:       "owner",
		Repo:        "repo",
		files:       make(map[string]*mockFile),
		FailCommits: make(map[string]bool),
		now:         time.Now,
	}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))
	mock.URL = mock.Server.URL
	t.Cleanup(mock.Server.Close)
	return mock
}

// PutFile 预置文件及其最近提交时间
func (m *MockGitHubServer) PutFile(p string, content []byte, committed time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = &mockFile{content: content, sha: blobSHA(content), committed: committed}
}

// File 读取文件
func (m *MockGitHubServer) File(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[p]
	if !ok {
		return nil, false
	}
	return f.content, true
}

// SetFailList 设置目录列表是否失败
func (m *MockGitHubServer) SetFailList(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailList = fail
}

// SetFailCommits 设置某个路径的提交查询是否失败
func (m *MockGitHubServer) SetFailCommits(p string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailCommits[p] = fail
}

// SetOmitContent 设置文件查询是否省略内容
func (m *MockGitHubServer) SetOmitContent(omit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OmitContent = omit
}

// BlobReads blob 接口读取次数
func (m *MockGitHubServer) BlobReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobReads
}

// CommitLookups 提交历史查询次数
func (m *MockGitHubServer) CommitLookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitLookups
}

func blobSHA(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func (m *MockGitHubServer) handle(w http.ResponseWriter, r *http.Request) {
	repoPrefix := fmt.Sprintf("/repos/%s/%s/", m.Owner, m.Repo)
	if !strings.HasPrefix(r.URL.Path, repoPrefix) {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, repoPrefix)

	switch {
	case rest == "commits" && r.Method == http.MethodGet:
		m.handleCommits(w, r)
	case strings.HasPrefix(rest, "git/blobs/") && r.Method == http.MethodGet:
		m.handleBlob(w, r, strings.TrimPrefix(rest, "git/blobs/"))
	case strings.HasPrefix(rest, "contents/"):
		p := strings.TrimPrefix(rest, "contents/")
		switch r.Method {
		case http.MethodGet:
			m.handleGet(w, r, p)
		case http.MethodPut:
			m.handlePut(w, r, p)
		case http.MethodDelete:
			m.handleDelete(w, r, p)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

func (m *MockGitHubServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *MockGitHubServer) entry(p string, f *mockFile) map[string]interface{} {
	return map[string]interface{}{
		"name":         path.Base(p),
		"path":         p,
		"sha":          f.sha,
		"size":         len(f.content),
		"type":         "file",
		"download_url": m.URL + "/raw/" + p,
	}
}

func (m *MockGitHubServer) handleGet(w http.ResponseWriter, r *http.Request, p string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.files[p]; ok {
		if strings.Contains(r.Header.Get("Accept"), "raw") {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(f.content)
			return
		}
		e := m.entry(p, f)
		if m.OmitContent {
			e["encoding"] = "none"
			e["content"] = ""
		} else {
			e["encoding"] = "base64"
			e["content"] = base64.StdEncoding.EncodeToString(f.content)
		}
		m.writeJSON(w, http.StatusOK, e)
		return
	}

	// 目录
	if m.FailList {
		m.writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "mock failure"})
		return
	}
	prefix := strings.TrimSuffix(p, "/") + "/"
	var names []string
	dirs := make(map[string]bool)
	for fp := range m.files {
		if !strings.HasPrefix(fp, prefix) {
			continue
		}
		sub := strings.TrimPrefix(fp, prefix)
		if i := strings.Index(sub, "/"); i >= 0 {
			dirs[sub[:i]] = true
			continue
		}
		names = append(names, fp)
	}
	if len(names) == 0 && len(dirs) == 0 {
		m.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	sort.Strings(names)

	items := make([]map[string]interface{}, 0, len(names)+len(dirs))
	for d := range dirs {
		items = append(items, map[string]interface{}{"name": d, "path": prefix + d, "type": "dir"})
	}
	for _, fp := range names {
		items = append(items, m.entry(fp, m.files[fp]))
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i]["name"].(string) < items[j]["name"].(string)
	})
	m.writeJSON(w, http.StatusOK, items)
}

func (m *MockGitHubServer) handleBlob(w http.ResponseWriter, r *http.Request, sha string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobReads++

	for _, f := range m.files {
		if f.sha != sha {
			continue
		}
		if !strings.Contains(r.Header.Get("Accept"), "raw") {
			m.writeJSON(w, http.StatusOK, map[string]interface{}{
				"sha":      f.sha,
				"size":     len(f.content),
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString(f.content),
			})
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(f.content)
		return
	}
	m.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (m *MockGitHubServer) handlePut(w http.ResponseWriter, r *http.Request, p string) {
	var body struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		m.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request"})
		return
	}
	content, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		m.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	status := http.StatusCreated
	if existing, ok := m.files[p]; ok {
		if body.SHA != existing.sha {
			m.writeJSON(w, http.StatusConflict, map[string]string{"message": "sha does not match"})
			return
		}
		status = http.StatusOK
	}
	f := &mockFile{content: content, sha: blobSHA(content), committed: m.now()}
	m.files[p] = f
	m.writeJSON(w, status, map[string]interface{}{"content": m.entry(p, f)})
}

func (m *MockGitHubServer) handleDelete(w http.ResponseWriter, r *http.Request, p string) {
	var body struct {
		Message string `json:"message"`
		SHA     string `json:"sha"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[p]
	if !ok {
		m.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	if body.SHA != f.sha {
		m.writeJSON(w, http.StatusConflict, map[string]string{"message": "sha does not match"})
		return
	}
	delete(m.files, p)
	m.writeJSON(w, http.StatusOK, map[string]interface{}{"content": nil})
}

func (m *MockGitHubServer) handleCommits(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitLookups++

	if m.FailCommits[p] {
		m.writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "mock failure"})
		return
	}
	f, ok := m.files[p]
	if !ok {
		m.writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	m.writeJSON(w, http.StatusOK, []map[string]interface{}{
		{
			"sha": f.sha,
			"commit": map[string]interface{}{
				"committer": map[string]interface{}{
					"date": f.committed.UTC().Format(time.RFC3339),
				},
			},
		},
	})
}
