package catalog

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Filter 按显示名或路径模糊匹配，保持原有顺序。空查询返回全部记录。
func Filter(records []Record, query string) []Record {
	query = strings.TrimSpace(query)
	if query == "" {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if fuzzy.MatchNormalizedFold(query, r.Name) || fuzzy.MatchNormalizedFold(query, r.MarkdownPath) {
			out = append(out, r)
		}
	}
	return out
}
