package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Snapshot 缓存条目的持久化，用于重启后预热
type Snapshot interface {
	Save(ctx context.Context, key string, e Entry) error
	Load(ctx context.Context) (map[string]Entry, error)
}

// RedisSnapshot 把条目以 JSON 形式写入 Redis
type RedisSnapshot struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Snapshot = (*RedisSnapshot)(nil)

// NewRedisSnapshot 连接 Redis 并检查连通性
func NewRedisSnapshot(redisURL string, ttl time.Duration) (*RedisSnapshot, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisSnapshotWithClient(client, ttl), nil
}

// NewRedisSnapshotWithClient 使用已有的客户端
func NewRedisSnapshotWithClient(client *redis.Client, ttl time.Duration) *RedisSnapshot {
	return &RedisSnapshot{client: client, prefix: "ocrtrans:catalog:", ttl: ttl}
}

// Save 写入一个用户的条目
func (s *RedisSnapshot) Save(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// Load 读取所有用户的条目
func (s *RedisSnapshot) Load(ctx context.Context) (map[string]Entry, error) {
	out := make(map[string]Entry)
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()
		raw, err := s.client.Get(ctx, redisKey).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load cache entry %s: %w", redisKey, err)
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("unmarshal cache entry %s: %w", redisKey, err)
		}
		out[strings.TrimPrefix(redisKey, s.prefix)] = e
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan cache entries: %w", err)
	}
	return out, nil
}

// Close 关闭连接
func (s *RedisSnapshot) Close() error {
	return s.client.Close()
}

// Warm 用快照填充缓存，返回载入的条目数。已有条目不会被覆盖。
func Warm(ctx context.Context, m *Manager, s Snapshot, logger *zap.Logger) (int, error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for key, e := range entries {
		if m.restore(key, e) {
			n++
		}
	}
	if logger != nil {
		logger.Info("cache warmed from snapshot", zap.Int("entries", n))
	}
	return n, nil
}
