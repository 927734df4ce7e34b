// Package gitrepo 把本地 git 仓库当作远端存储：每次写入/删除都是一次提交，
// 提交历史提供最后修改时间。
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store"
)

// Name 后端名称
const Name = "git"

// Repo 本地 git 仓库存储
type Repo struct {
	root   string
	branch string
	author string
	repo   *git.Repository
	mu     sync.Mutex
	logger *zap.Logger
}

var _ store.Store = (*Repo)(nil)

// Open 打开仓库，不存在时初始化并把 HEAD 指向 branch
func Open(root, branch, author string, logger *zap.Logger) (*Repo, error) {
	if root == "" {
		return nil, apperr.Configuration("gitrepo.open", "repository path is required")
	}
	if branch == "" {
		branch = "main"
	}
	if author == "" {
		author = "ocrtrans"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = initRepo(root, branch)
	}
	if err != nil {
		return nil, fmt.Errorf("open repo %s: %w", root, err)
	}

	return &Repo{
		root:   root,
		branch: branch,
		author: author,
		repo:   repo,
		logger: logger,
	}, nil
}

func initRepo(root, branch string) (*git.Repository, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(root, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branch, err)
	}
	return repo, nil
}

// Name 后端名称
func (r *Repo) Name() string {
	return Name
}

// List 列出工作区目录，忽略 .git
func (r *Repo) List(_ context.Context, dir string) ([]store.Entry, error) {
	dir = store.Clean(dir)
	items, err := os.ReadDir(r.abs(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound("gitrepo.list", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("gitrepo.list: %w", err)
	}

	entries := make([]store.Entry, 0, len(items))
	for _, it := range items {
		if it.Name() == ".git" {
			continue
		}
		e := store.Entry{Name: it.Name(), Path: joinPath(dir, it.Name()), Type: store.EntryFile}
		if it.IsDir() {
			e.Type = store.EntryDir
		} else if info, err := it.Info(); err == nil {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stat 返回 git blob 哈希作为摘要
func (r *Repo) Stat(ctx context.Context, p string) (*store.FileMeta, error) {
	p = store.Clean(p)
	content, err := r.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	return &store.FileMeta{
		Path:   p,
		Digest: plumbing.ComputeHash(plumbing.BlobObject, content).String(),
		Size:   int64(len(content)),
	}, nil
}

// Get 读取文件
func (r *Repo) Get(_ context.Context, p string) ([]byte, error) {
	p = store.Clean(p)
	info, err := os.Stat(r.abs(p))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound("gitrepo.get", p)
	}
	if err != nil {
		return nil, fmt.Errorf("gitrepo.get: %w", err)
	}
	if info.IsDir() {
		return nil, apperr.Validation("gitrepo.get", p+" is a directory")
	}
	return os.ReadFile(r.abs(p))
}

// Put 写入文件并提交
func (r *Repo) Put(_ context.Context, p string, content []byte, message string) error {
	p = store.Clean(p)
	if p == "" {
		return apperr.Validation("gitrepo.put", "empty path")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.abs(p)), 0o755); err != nil {
		return fmt.Errorf("gitrepo.put: create dir: %w", err)
	}
	if err := os.WriteFile(r.abs(p), content, 0o644); err != nil {
		return fmt.Errorf("gitrepo.put: write file: %w", err)
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("gitrepo.put: open worktree: %w", err)
	}
	if _, err := worktree.Add(p); err != nil {
		return fmt.Errorf("gitrepo.put: git add: %w", err)
	}
	return r.commit(worktree, message, p)
}

// Delete 删除文件并提交
func (r *Repo) Delete(_ context.Context, p string, message string) error {
	p = store.Clean(p)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.abs(p)); errors.Is(err, os.ErrNotExist) {
		return apperr.NotFound("gitrepo.delete", p)
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("gitrepo.delete: open worktree: %w", err)
	}
	if _, err := worktree.Remove(p); err != nil {
		return fmt.Errorf("gitrepo.delete: git rm: %w", err)
	}
	return r.commit(worktree, message, p)
}

// LastCommit 最近一次修改该路径的提交时间
func (r *Repo) LastCommit(_ context.Context, p string) (time.Time, error) {
	p = store.Clean(p)

	r.mu.Lock()
	defer r.mu.Unlock()

	ref, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("gitrepo.last_commit: resolve HEAD: %w", err)
	}

	iter, err := r.repo.Log(&git.LogOptions{From: ref.Hash(), FileName: &p})
	if err != nil {
		return time.Time{}, fmt.Errorf("gitrepo.last_commit: %w", err)
	}
	defer iter.Close()

	commit, err := iter.Next()
	if errors.Is(err, io.EOF) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("gitrepo.last_commit: %w", err)
	}
	return commit.Committer.When, nil
}

func (r *Repo) commit(worktree *git.Worktree, message, p string) error {
	if message == "" {
		message = "update " + p
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.author,
			Email: fmt.Sprintf("%s@local.ocrtrans", sanitizeEmail(r.author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit %s: %w", p, err)
	}
	r.logger.Debug("file committed",
		zap.String("path", p),
		zap.String("commit", hash.String()[:7]))
	return nil
}

func (r *Repo) abs(p string) string {
	return filepath.Join(r.root, filepath.FromSlash(p))
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func sanitizeEmail(input string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, input)
	if out == "" {
		return "user"
	}
	return out
}
