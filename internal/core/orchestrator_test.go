package core

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
)

// loggingDriver 模拟真实驱动: 每个URL写一条结果记录
type loggingDriver struct {
	failChunk int
	cancel    context.CancelFunc
	cancelAt  int
	calls     []int
}

func (d *loggingDriver) RunChunk(ctx context.Context, req ChunkRequest) (int, error) {
	d.calls = append(d.calls, req.Index)

	opts, err := models.LoadRunOptions(req.OptionsPath)
	if err != nil {
		return -1, err
	}
	logs := utils.NewLogSet(req.ReportsDir)
	for _, u := range opts.TestURLs {
		record := models.PageResult{
			CurrentURL: u,
			Data: []models.RuleViolation{
				{ID: "image-alt", Impact: "critical", Nodes: []models.ViolationNode{{HTML: "<img>"}}},
			},
		}
		if err := logs.Append(models.LogResults, record); err != nil {
			return -1, err
		}
	}
	if err := logs.Append(models.LogPDF, []models.PDFReference{}); err != nil {
		return -1, err
	}

	if d.cancel != nil && req.Index == d.cancelAt {
		d.cancel()
	}
	if req.Index == d.failChunk {
		return 1, nil
	}
	return 0, nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	return &Config{
		Run: RunConfig{
			ReportRoot: filepath.Join(root, "reports"),
			WorkDir:    filepath.Join(root, ".sitea11y"),
			ChunkSize:  2,
		},
		Documents: DocumentsConfig{ConvertTimeoutSeconds: 5},
	}
}

func testOptions(n int) *models.RunOptions {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = "https://example.com/p" + string(rune('a'+i))
	}
	return &models.RunOptions{BaseURL: "https://example.com", TestURLs: urls}
}

func newTestOrchestrator(cfg *Config, driver ChunkDriver) (*Orchestrator, *bytes.Buffer) {
	var out bytes.Buffer
	o := NewOrchestrator(cfg, driver)
	o.SetReporter(utils.NewReporter(&out))
	return o, &out
}

func TestOrchestrator_Run(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.Command = "touch {session}/report.html"
	driver := &loggingDriver{failChunk: 1}
	o, out := newTestOrchestrator(cfg, driver)

	summary, err := o.Run(context.Background(), RunRequest{Project: "example", Options: testOptions(5)})
	if err != nil {
		t.Fatalf("Run() 失败: %v", err)
	}

	if summary.TotalURLs != 5 || summary.TotalChunks != 3 {
		t.Errorf("URL/分块数错误: %+v", summary)
	}
	if summary.SuccessCount != 2 || summary.FailCount != 1 {
		t.Errorf("成功 %d 失败 %d, 期望 2/1", summary.SuccessCount, summary.FailCount)
	}

	stageNames := make([]string, 0, len(summary.Stages))
	for _, s := range summary.Stages {
		if !s.Skipped {
			stageNames = append(stageNames, s.Name)
		}
	}
	if strings.Join(stageNames, ",") != "csv,report,collect" {
		t.Errorf("执行的阶段 = %v", stageNames)
	}

	for _, name := range []string{"options.json", "results.json", "pdf.json", "results.csv", "summary.csv", "report.html", "run-summary.json"} {
		if _, err := os.Stat(filepath.Join(summary.SessionDir, name)); err != nil {
			t.Errorf("会话目录缺少 %s", name)
		}
	}

	entries, err := utils.ReadLogArray(filepath.Join(summary.SessionDir, "results.json"))
	if err != nil {
		t.Fatalf("results.json 不是合法数组: %v", err)
	}
	if len(entries) != 6 {
		t.Errorf("期望 5 条记录加结束标记, 得到 %d", len(entries))
	}

	if _, err := os.Stat(cfg.CheckpointPath("example")); !os.IsNotExist(err) {
		t.Error("日志收尾后应删除检查点")
	}
	if !strings.Contains(out.String(), "example") {
		t.Error("应打印运行摘要")
	}
}

func TestOrchestrator_Resume(t *testing.T) {
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := &loggingDriver{failChunk: -1, cancel: cancel, cancelAt: 0}
	o, _ := newTestOrchestrator(cfg, first)

	if _, err := o.Run(ctx, RunRequest{Project: "example", Options: testOptions(5)}); err == nil {
		t.Fatal("中断的运行应返回错误")
	}
	checkpoint, err := models.LoadCheckpointFromFile(cfg.CheckpointPath("example"))
	if err != nil {
		t.Fatalf("中断后检查点应保留: %v", err)
	}
	if checkpoint.NextIndex != 2 {
		t.Errorf("NextIndex = %d, 期望 2", checkpoint.NextIndex)
	}

	second := &loggingDriver{failChunk: -1}
	o2, _ := newTestOrchestrator(cfg, second)
	summary, err := o2.Run(context.Background(), RunRequest{Project: "example", Resume: true})
	if err != nil {
		t.Fatalf("续跑失败: %v", err)
	}

	if !summary.Resumed || summary.SessionDir != checkpoint.SessionDir {
		t.Errorf("续跑应复用原会话: %+v", summary)
	}
	if len(second.calls) != 2 || second.calls[0] != 1 {
		t.Errorf("续跑应只执行剩余分块: %v", second.calls)
	}

	entries, err := utils.ReadLogArray(filepath.Join(summary.SessionDir, "results.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 6 {
		t.Errorf("续跑后应包含全部 5 条记录, 得到 %d", len(entries)-1)
	}
}

func TestOrchestrator_ResumeWithoutCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	driver := &loggingDriver{failChunk: -1}
	o, _ := newTestOrchestrator(cfg, driver)

	summary, err := o.Run(context.Background(), RunRequest{Project: "example", Options: testOptions(1), Resume: true})
	if err != nil {
		t.Fatalf("没有检查点时应开始新运行: %v", err)
	}
	if summary.Resumed {
		t.Error("新运行不应标记为续跑")
	}
}

func TestOrchestrator_Errors(t *testing.T) {
	start := 10
	emptySelection := testOptions(3)
	emptySelection.StartIndex = &start

	tests := []struct {
		name string
		req  RunRequest
	}{
		{"项目名非法", RunRequest{Project: "../x", Options: testOptions(1)}},
		{"缺少配置", RunRequest{Project: "example"}},
		{"配置文件不存在", RunRequest{Project: "example", OptionsPath: "/no/such/options.json"}},
		{"截取范围为空", RunRequest{Project: "example", Options: emptySelection}},
		{"配置无效", RunRequest{Project: "example", Options: &models.RunOptions{BaseURL: "https://example.com"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newTestOrchestrator(testConfig(t), &loggingDriver{failChunk: -1})
			if _, err := o.Run(context.Background(), tt.req); err == nil {
				t.Error("期望返回错误")
			}
		})
	}
}

func TestOrchestrator_StageFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.Command = "false"
	o, _ := newTestOrchestrator(cfg, &loggingDriver{failChunk: -1})
	o.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	summary, err := o.Run(context.Background(), RunRequest{Project: "example", Options: testOptions(2)})
	if err == nil || !strings.Contains(err.Error(), StageReport) {
		t.Fatalf("报告阶段失败应返回错误, 得到 %v", err)
	}
	if !strings.HasSuffix(summary.SessionDir, "20240101000000") {
		t.Errorf("会话目录 = %s", summary.SessionDir)
	}
	if _, err := os.Stat(filepath.Join(summary.SessionDir, "run-summary.json")); !os.IsNotExist(err) {
		t.Error("后处理失败时不应写入运行摘要")
	}
}
