package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
)

// Reporter 运行摘要输出
type Reporter struct {
	out io.Writer
}

// NewReporter 创建摘要输出器, out 为空时写到标准输出
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{out: out}
}

// WriteSummary 把运行摘要保存为JSON
func (r *Reporter) WriteSummary(path string, summary *models.RunSummary) error {
	return SaveJSON(path, summary)
}

// PrintSummary 以表格形式打印运行摘要
func (r *Reporter) PrintSummary(summary *models.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("📊 运行摘要 - " + summary.Project)

	t.AppendHeader(table.Row{"项目", "值"})
	t.AppendRows([]table.Row{
		{"会话目录", summary.SessionDir},
		{"续跑", summary.Resumed},
		{"URL总数", summary.TotalURLs},
		{"分块数", summary.TotalChunks},
		{"✅ 成功分块", summary.SuccessCount},
		{"❌ 失败分块", summary.FailCount},
		{"截图数", summary.Screenshots},
		{"⏱️  总耗时", fmt.Sprintf("%.2f秒", summary.Duration)},
		{"内存峰值", fmt.Sprintf("%.2f MB", summary.PeakMemoryMB)},
	})
	t.Render()

	if len(summary.Stages) > 0 {
		st := table.NewWriter()
		st.SetOutputMirror(r.out)
		st.SetStyle(table.StyleLight)
		st.AppendHeader(table.Row{"阶段", "状态", "耗时"})
		for _, stage := range summary.Stages {
			status := "完成"
			if stage.Skipped {
				status = "跳过"
			}
			st.AppendRow(table.Row{stage.Name, status, fmt.Sprintf("%.2f秒", stage.Duration)})
		}
		st.Render()
	}

	if summary.FailCount > 0 {
		ft := table.NewWriter()
		ft.SetOutputMirror(r.out)
		ft.SetStyle(table.StyleLight)
		ft.AppendHeader(table.Row{"失败分块", "起始位置", "URL数", "退出码", "错误"})
		for _, chunk := range summary.Chunks {
			if chunk.Success() {
				continue
			}
			ft.AppendRow(table.Row{chunk.Index + 1, chunk.Start, chunk.Size, chunk.ExitCode, chunk.Error})
		}
		ft.Render()
	}
}

// SaveJSON 保存JSON文件
func SaveJSON(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}

	Debugf("保存文件: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
