// Package cache 按用户缓存文档列表，并在后台从远端存储刷新。
//
// Manager 只暴露 Get/Set 等整体读写，所有访问都在同一把锁内完成，
// 调用方不会看到部分更新的条目。后台刷新是最终一致的：触发刷新后立即读取
// 可能仍然拿到旧值，多个刷新并发完成时最后一次 Set 生效。
package cache

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/catalog"
)

// Entry 一个用户的缓存条目
type Entry struct {
	Records  []catalog.Record `json:"records"`
	SyncedAt time.Time        `json:"synced_at"`
}

// Manager 用户 id -> 文档列表
type Manager struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
	logger  *zap.Logger
}

// NewManager 创建缓存
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		entries: make(map[string]Entry),
		now:     time.Now,
		logger:  logger,
	}
}

// Get 读取条目，返回的切片是副本
func (m *Manager) Get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false
	}
	return Entry{Records: cloneRecords(e.Records), SyncedAt: e.SyncedAt}, true
}

// Set 整体替换条目并记录同步时间
func (m *Manager) Set(key string, records []catalog.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = Entry{Records: cloneRecords(records), SyncedAt: m.now()}
	m.logger.Debug("cache entry replaced", zap.String("user", key), zap.Int("records", len(records)))
}

// restore 用快照里的条目填充，已有条目不覆盖
func (m *Manager) restore(key string, e Entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		return false
	}
	m.entries[key] = Entry{Records: cloneRecords(e.Records), SyncedAt: e.SyncedAt}
	return true
}

// LastSync 最近一次 Set 的时间
func (m *Manager) LastSync(key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	return e.SyncedAt, ok
}

// Invalidate 删除条目，下一次读取走重建
func (m *Manager) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

// Keys 已缓存的用户 id，已排序
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneRecords(records []catalog.Record) []catalog.Record {
	if records == nil {
		return []catalog.Record{}
	}
	out := make([]catalog.Record, len(records))
	copy(out, records)
	return out
}
