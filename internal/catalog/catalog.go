// Package catalog 把远端目录的扁平文件列表整理成文档记录：
// 一个源文件（PDF/图片）配一个或多个 Markdown 版本。
package catalog

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store"
)

const (
	// DefaultEnrichLimit 只为前 N 组查询最后修改时间
	DefaultEnrichLimit = 7

	// DualSuffix 双语版 Markdown 的文件名后缀
	DualSuffix = "_dual"
	// DualLabel 双语版记录的显示名后缀
	DualLabel = " (双语)"
)

var sourceExts = map[string]bool{".pdf": true, ".jpg": true, ".jpeg": true, ".png": true}

// Record 一条文档记录
type Record struct {
	Name         string `json:"name"`
	SourcePath   string `json:"pdf_path"`
	MarkdownPath string `json:"md_path"`
	// Timestamp 源文件最近一次提交的 Unix 秒，未查询时为 0
	Timestamp int64 `json:"timestamp"`
}

// Variant 一个 Markdown 版本
type Variant struct {
	DisplayName string
	Path        string
	Dual        bool
}

// Group 同一个原始文件名下的所有文件
type Group struct {
	Base      string
	Source    string
	Variants  []Variant
	Timestamp int64
}

// Complete 源文件和 Markdown 都存在
func (g *Group) Complete() bool {
	return g.Source != "" && len(g.Variants) > 0
}

// GroupEntries 按去掉双语后缀、NFC 规范化后的文件名分组，组的顺序为首次出现的顺序
func GroupEntries(entries []store.Entry) []*Group {
	var groups []*Group
	index := make(map[string]*Group)

	for _, e := range entries {
		if e.Type != store.EntryFile {
			continue
		}
		ext := path.Ext(e.Name)
		base := norm.NFC.String(strings.TrimSuffix(e.Name, ext))
		ext = strings.ToLower(ext)

		dual := strings.HasSuffix(base, DualSuffix)
		origin := strings.TrimSuffix(base, DualSuffix)

		g, ok := index[origin]
		if !ok {
			g = &Group{Base: origin}
			index[origin] = g
			groups = append(groups, g)
		}

		switch {
		case sourceExts[ext]:
			g.Source = e.Path
		case ext == ".md":
			name := origin
			if dual {
				name += DualLabel
			}
			g.Variants = append(g.Variants, Variant{DisplayName: name, Path: e.Path, Dual: dual})
		}
	}
	return groups
}

// Flatten 每个 Markdown 版本一条记录，丢弃不完整的组，按时间戳降序稳定排序
func Flatten(groups []*Group) []Record {
	records := make([]Record, 0, len(groups))
	for _, g := range groups {
		if !g.Complete() {
			continue
		}
		for _, v := range g.Variants {
			records = append(records, Record{
				Name:         v.DisplayName,
				SourcePath:   g.Source,
				MarkdownPath: v.Path,
				Timestamp:    g.Timestamp,
			})
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	return records
}

// Builder 从远端存储重建用户的文档列表
type Builder struct {
	store       store.Store
	enrichLimit int
	logger      *zap.Logger
}

// NewBuilder 创建构建器，enrichLimit <= 0 时使用默认值
func NewBuilder(s store.Store, enrichLimit int, logger *zap.Logger) *Builder {
	if enrichLimit <= 0 {
		enrichLimit = DefaultEnrichLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{store: s, enrichLimit: enrichLimit, logger: logger}
}

// Build 重建文档列表，任何失败都返回空列表
func (b *Builder) Build(ctx context.Context, user string) []Record {
	records, err := b.Rebuild(ctx, user)
	if err != nil {
		return []Record{}
	}
	return records
}

// Rebuild 重建文档列表并返回失败原因，供需要区分"空"和"失败"的调用方使用
func (b *Builder) Rebuild(ctx context.Context, user string) ([]Record, error) {
	start := time.Now()
	entries, err := b.store.List(ctx, user)
	if apperr.IsNotFound(err) {
		// 目录不存在即没有文档
		b.logger.Debug("catalog directory missing", zap.String("user", user))
		return []Record{}, nil
	}
	if err != nil {
		b.logger.Warn("catalog listing failed", zap.String("user", user), zap.Error(err))
		return nil, err
	}

	groups := GroupEntries(entries)
	enriched := b.enrich(ctx, groups)
	records := Flatten(groups)

	b.logger.Info("catalog rebuilt",
		zap.String("user", user),
		zap.Int("entries", len(entries)),
		zap.Int("groups", len(groups)),
		zap.Int("enriched", enriched),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records, nil
}

// enrich 为前 enrichLimit 个有源文件的组查询最后修改时间，失败的组保持 0
func (b *Builder) enrich(ctx context.Context, groups []*Group) int {
	n := 0
	for _, g := range groups {
		if g.Source == "" {
			continue
		}
		if n >= b.enrichLimit || ctx.Err() != nil {
			break
		}
		n++

		ts, err := b.store.LastCommit(ctx, g.Source)
		if err != nil {
			b.logger.Warn("catalog enrichment failed",
				zap.String("group", g.Base),
				zap.String("path", g.Source),
				zap.Error(err))
			continue
		}
		if !ts.IsZero() {
			g.Timestamp = ts.Unix()
		}
	}
	return n
}
