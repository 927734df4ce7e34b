package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"

	"github.com/nerdneilsfield/ocr-bilingual/internal/catalog"
	"github.com/nerdneilsfield/ocr-bilingual/internal/service"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/stats"
)

// nameWidth 名称列的显示宽度，中文按两格计
const nameWidth = 40

// truncateName 按显示宽度截断
func truncateName(name string) string {
	return runewidth.Truncate(name, nameWidth, "…")
}

func formatTimestamp(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
}

// renderRecords 文档列表
func renderRecords(w io.Writer, records []catalog.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no documents")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "名称", "Markdown", "源文件", "更新时间"})
	for i, r := range records {
		tw.AppendRow(table.Row{i + 1, truncateName(r.Name), r.MarkdownPath, r.SourcePath, formatTimestamp(r.Timestamp)})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

// renderDeleteDetails 删除结果，状态着色
func renderDeleteDetails(w io.Writer, details []service.DeleteDetail) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"路径", "结果", "错误"})
	for _, d := range details {
		tw.AppendRow(table.Row{d.Path, statusColor(d.Status).Sprint(d.Status), d.Error})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

func statusColor(status string) *color.Color {
	switch status {
	case service.DeleteDone:
		return color.New(color.FgGreen)
	case service.DeleteSkipped:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgRed, color.Bold)
}

// renderEngineStats 引擎调用统计
func renderEngineStats(w io.Writer, snapshot []stats.EngineStats) {
	if len(snapshot) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"引擎", "请求", "失败", "成功率", "平均延迟", "输入 Tokens", "输出 Tokens", "丢失占位符"})
	for _, s := range snapshot {
		tw.AppendRow(table.Row{
			s.Engine,
			s.TotalRequests,
			s.FailedRequests,
			fmt.Sprintf("%.1f%%", s.SuccessRate()*100),
			s.AverageLatency().Round(time.Millisecond),
			s.TotalTokensIn,
			s.TotalTokensOut,
			s.PlaceholdersLost,
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}
