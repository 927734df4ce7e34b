// Package stats 统计翻译引擎的调用情况：成功率、延迟、token 用量和占位符丢失。
package stats

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EngineStats 单个引擎的统计
type EngineStats struct {
	Engine             string           `json:"engine"`
	TotalRequests      int64            `json:"total_requests"`
	SuccessfulRequests int64            `json:"successful_requests"`
	FailedRequests     int64            `json:"failed_requests"`
	TotalTokensIn      int64            `json:"total_tokens_in"`
	TotalTokensOut     int64            `json:"total_tokens_out"`
	PlaceholdersSent   int64            `json:"placeholders_sent"`
	PlaceholdersLost   int64            `json:"placeholders_lost"`
	TotalLatency       time.Duration    `json:"total_latency"`
	MaxLatency         time.Duration    `json:"max_latency"`
	ErrorCodes         map[string]int64 `json:"error_codes"`
}

// AverageLatency 平均延迟
func (s EngineStats) AverageLatency() time.Duration {
	if s.TotalRequests == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.TotalRequests)
}

// SuccessRate 成功率 [0,1]
func (s EngineStats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests)
}

// RequestResult 单次请求结果
type RequestResult struct {
	Success          bool
	Latency          time.Duration
	TokensIn         int
	TokensOut        int
	ErrorCode        string
	PlaceholdersSent int
	PlaceholdersLost int
}

// Recorder 统计管理器
type Recorder struct {
	mu     sync.Mutex
	stats  map[string]*EngineStats
	logger *zap.Logger
}

// NewRecorder 创建统计管理器
func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		stats:  make(map[string]*EngineStats),
		logger: logger,
	}
}

// Record 记录请求结果
func (r *Recorder) Record(engine string, result RequestResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[engine]
	if !ok {
		s = &EngineStats{Engine: engine, ErrorCodes: make(map[string]int64)}
		r.stats[engine] = s
	}

	s.TotalRequests++
	s.TotalLatency += result.Latency
	if result.Latency > s.MaxLatency {
		s.MaxLatency = result.Latency
	}
	if !result.Success {
		s.FailedRequests++
		code := result.ErrorCode
		if code == "" {
			code = "unknown"
		}
		s.ErrorCodes[code]++
		return
	}
	s.SuccessfulRequests++
	s.TotalTokensIn += int64(result.TokensIn)
	s.TotalTokensOut += int64(result.TokensOut)
	s.PlaceholdersSent += int64(result.PlaceholdersSent)
	s.PlaceholdersLost += int64(result.PlaceholdersLost)
}

// Snapshot 返回所有引擎统计的副本（按名称排序）
func (r *Recorder) Snapshot() []EngineStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EngineStats, 0, len(r.stats))
	for _, s := range r.stats {
		cp := *s
		cp.ErrorCodes = make(map[string]int64, len(s.ErrorCodes))
		for k, v := range s.ErrorCodes {
			cp.ErrorCodes[k] = v
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Engine < out[j].Engine })
	return out
}

// LogSummary 以 Info 级别输出汇总
func (r *Recorder) LogSummary() {
	for _, s := range r.Snapshot() {
		r.logger.Info("engine statistics",
			zap.String("engine", s.Engine),
			zap.Int64("requests", s.TotalRequests),
			zap.Int64("failed", s.FailedRequests),
			zap.Float64("success_rate", s.SuccessRate()),
			zap.Duration("avg_latency", s.AverageLatency()),
			zap.Int64("tokens_in", s.TotalTokensIn),
			zap.Int64("tokens_out", s.TotalTokensOut),
			zap.Int64("placeholders_lost", s.PlaceholdersLost))
	}
}
