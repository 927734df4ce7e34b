package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/catalog"
)

const (
	// DefaultMaxPerKey 同一用户同时在途的后台刷新上限
	DefaultMaxPerKey = 2
	// DefaultRefreshTimeout 单次刷新的超时
	DefaultRefreshTimeout = 2 * time.Minute
)

// RebuildFunc 从远端重建一个用户的文档列表
type RebuildFunc func(ctx context.Context, key string) ([]catalog.Record, error)

// RefresherOptions 刷新参数
type RefresherOptions struct {
	MaxPerKey int
	Timeout   time.Duration
	// Snapshot 可选，每次成功刷新后保存
	Snapshot Snapshot
}

// Refresher 在受监督的 goroutine 池里执行后台刷新
type Refresher struct {
	manager *Manager
	rebuild RebuildFunc
	opts    RefresherOptions
	pool    *pool.Pool
	logger  *zap.Logger

	mu       sync.Mutex
	inflight map[string]int
	closed   bool
}

// NewRefresher 创建刷新器
func NewRefresher(m *Manager, rebuild RebuildFunc, opts RefresherOptions, logger *zap.Logger) *Refresher {
	if opts.MaxPerKey <= 0 {
		opts.MaxPerKey = DefaultMaxPerKey
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRefreshTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		manager:  m,
		rebuild:  rebuild,
		opts:     opts,
		pool:     pool.New(),
		logger:   logger,
		inflight: make(map[string]int),
	}
}

// Trigger 安排一次后台刷新并立即返回。同一用户在途刷新达到上限、
// 或刷新器已关闭时丢弃本次触发并返回 false。
func (r *Refresher) Trigger(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.logger.Debug("refresh dropped, refresher closed", zap.String("user", key))
		return false
	}
	if n := r.inflight[key]; n >= r.opts.MaxPerKey {
		r.logger.Info("refresh dropped, too many in flight",
			zap.String("user", key),
			zap.Int("in_flight", n))
		return false
	}
	r.inflight[key]++

	// Go 在持锁时调用，保证 Close 里的 Wait 之后不会再有新任务
	r.pool.Go(func() {
		defer r.release(key)

		ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
		defer cancel()

		r.logger.Debug("background refresh started", zap.String("user", key))
		if _, err := r.Refresh(ctx, key); err == nil {
			r.logger.Debug("background refresh finished", zap.String("user", key))
		}
	})
	return true
}

// Refresh 同步重建并写入缓存。失败时不覆盖已有条目。
func (r *Refresher) Refresh(ctx context.Context, key string) ([]catalog.Record, error) {
	records, err := r.rebuild(ctx, key)
	if err != nil {
		r.logger.Warn("cache refresh failed", zap.String("user", key), zap.Error(err))
		return nil, err
	}
	r.manager.Set(key, records)
	r.save(ctx, key)
	return records, nil
}

// ReadThrough 读取缓存；没有条目或条目为空时同步重建并写入（重建失败时写入空列表）
func (r *Refresher) ReadThrough(ctx context.Context, key string) []catalog.Record {
	if e, ok := r.manager.Get(key); ok && len(e.Records) > 0 {
		r.logger.Debug("cache hit", zap.String("user", key), zap.Int("records", len(e.Records)))
		return e.Records
	}

	r.logger.Info("cache miss, rebuilding", zap.String("user", key))
	records, err := r.rebuild(ctx, key)
	if err != nil {
		records = []catalog.Record{}
	}
	r.manager.Set(key, records)
	if err == nil {
		r.save(ctx, key)
	}
	return cloneRecords(records)
}

// InFlight 某个用户当前在途的后台刷新数
func (r *Refresher) InFlight(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight[key]
}

// Close 停止接受新的触发并等待在途刷新结束
func (r *Refresher) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.pool.Wait()
}

func (r *Refresher) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight[key]--
	if r.inflight[key] <= 0 {
		delete(r.inflight, key)
	}
}

func (r *Refresher) save(ctx context.Context, key string) {
	if r.opts.Snapshot == nil {
		return
	}
	e, ok := r.manager.Get(key)
	if !ok {
		return
	}
	if err := r.opts.Snapshot.Save(ctx, key, e); err != nil {
		r.logger.Warn("cache snapshot save failed", zap.String("user", key), zap.Error(err))
	}
}
