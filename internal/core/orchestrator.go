package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
)

// 后处理阶段名
const (
	StagePDF      = "pdf"
	StageMSOffice = "msoffice"
	StageCSV      = "csv"
	StageReport   = "report"
	StageCollect  = "collect"
)

// RunRequest 一次批量运行的输入
type RunRequest struct {
	Project     string
	OptionsPath string             // options.json 路径
	Options     *models.RunOptions // 已构建的配置, 非空时忽略 OptionsPath
	Resume      bool
}

// Orchestrator 运行编排器
// 流程: 准备会话 -> 初始化日志 -> 分块测试 -> 日志收尾 -> 后处理
type Orchestrator struct {
	config       *Config
	driver       ChunkDriver
	reporter     *utils.Reporter
	showProgress bool
	now          func() time.Time
}

// NewOrchestrator 创建运行编排器
func NewOrchestrator(config *Config, driver ChunkDriver) *Orchestrator {
	return &Orchestrator{
		config:   config,
		driver:   driver,
		reporter: utils.NewReporter(nil),
		now:      time.Now,
	}
}

// SetShowProgress 是否显示分块进度条
func (o *Orchestrator) SetShowProgress(show bool) {
	o.showProgress = show
}

// SetReporter 替换摘要输出器
func (o *Orchestrator) SetReporter(r *utils.Reporter) {
	o.reporter = r
}

// runState 运行过程中的上下文
type runState struct {
	session    *Session
	options    *models.RunOptions
	urls       []string
	checkpoint *models.RunCheckpoint
	logs       *utils.LogSet
	resumed    bool
}

// Run 执行一次完整运行
// 分块失败只记录; 后处理任何阶段失败立即返回错误
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*models.RunSummary, error) {
	if err := models.ValidateProjectName(req.Project); err != nil {
		return nil, err
	}

	stats := utils.NewRunStats()
	startTime := o.now()

	state, err := o.prepare(req)
	if err != nil {
		return nil, err
	}

	summary := &models.RunSummary{
		RunID:      state.checkpoint.RunID,
		Project:    req.Project,
		SessionDir: state.session.Dir,
		Resumed:    state.resumed,
		StartTime:  startTime,
		TotalURLs:  len(state.urls),
		Chunks:     []models.ChunkResult{},
		Stages:     []models.StageResult{},
	}

	utils.Infof("🚀 开始运行: 项目 %s, %d 个URL", req.Project, len(state.urls))
	utils.Infof("会话目录: %s", state.session.Dir)

	runner := NewChunkRunner(ChunkRunnerConfig{
		ChunkSize:          state.checkpoint.ChunkSize,
		ChunkOptionsPath:   o.config.ChunkOptionsPath(),
		ReportsDir:         state.logs.Dir(),
		StagingScreenshots: o.config.StagingScreenshotsDir(),
		SessionScreenshots: state.session.ScreenshotsDir(),
		CheckpointPath:     o.config.CheckpointPath(req.Project),
		ShowProgress:       o.showProgress,
	}, o.driver, stats)

	chunks, err := runner.Run(ctx, state.options, state.urls, state.checkpoint)
	summary.TotalChunks = len(PartitionChunks(len(state.urls), state.checkpoint.ChunkSize))
	summary.Chunks = append(summary.Chunks, chunks...)
	for _, c := range chunks {
		if c.Success() {
			summary.SuccessCount++
		} else {
			summary.FailCount++
		}
		summary.Screenshots += c.Screenshots
	}
	if err != nil {
		return summary, fmt.Errorf("分块测试中断: %w", err)
	}

	// 日志收尾后不能再续跑
	if err := state.logs.Finalize(); err != nil {
		return summary, fmt.Errorf("日志收尾失败: %w", err)
	}
	if err := os.Remove(o.config.CheckpointPath(req.Project)); err != nil && !os.IsNotExist(err) {
		utils.Warnf("删除检查点失败: %v", err)
	}
	utils.Info("✅ 增量日志已收尾")

	if err := o.postProcess(ctx, state, stats, summary); err != nil {
		return summary, err
	}

	summary.EndTime = o.now()
	summary.Duration = summary.EndTime.Sub(startTime).Seconds()
	summary.PeakMemoryMB = stats.PeakHeapMB()

	if err := o.reporter.WriteSummary(state.session.SummaryPath(), summary); err != nil {
		return summary, err
	}
	o.reporter.PrintSummary(summary)
	return summary, nil
}

// prepare 准备会话: 续跑时复用检查点中的会话, 否则新建
func (o *Orchestrator) prepare(req RunRequest) (*runState, error) {
	checkpointPath := o.config.CheckpointPath(req.Project)
	if req.Resume {
		if _, err := os.Stat(checkpointPath); err == nil {
			return o.resume(req, checkpointPath)
		}
		utils.Warnf("未找到项目 %s 的检查点, 开始新的运行", req.Project)
	}

	opts := req.Options
	if opts == nil {
		if req.OptionsPath == "" {
			return nil, fmt.Errorf("缺少运行配置文件")
		}
		loaded, err := models.LoadRunOptions(req.OptionsPath)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}
	if err := opts.Validate(); err != nil {
		return nil, &models.ConfigError{FilePath: req.OptionsPath, Cause: err}
	}

	urls := opts.SelectedURLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("截取范围内没有URL (startIndex/endIndex)")
	}

	session, err := NewSession(o.config.Run.ReportRoot, req.Project, o.now())
	if err != nil {
		return nil, err
	}
	if err := session.SaveOptions(opts); err != nil {
		return nil, err
	}

	if err := o.cleanStaging(); err != nil {
		return nil, err
	}
	logs := utils.NewLogSet(o.config.StagingReportsDir())
	if err := logs.Init(); err != nil {
		return nil, err
	}

	checkpoint := models.NewRunCheckpoint(req.Project, session.Dir, session.OptionsPath(), len(urls), o.config.Run.ChunkSize)
	if err := checkpoint.SaveToFile(checkpointPath); err != nil {
		return nil, fmt.Errorf("保存检查点失败: %w", err)
	}

	return &runState{
		session:    session,
		options:    opts,
		urls:       urls,
		checkpoint: checkpoint,
		logs:       logs,
	}, nil
}

// resume 从检查点恢复, 跳过日志初始化
func (o *Orchestrator) resume(req RunRequest, checkpointPath string) (*runState, error) {
	checkpoint, err := models.LoadCheckpointFromFile(checkpointPath)
	if err != nil {
		return nil, &models.ConfigError{FilePath: checkpointPath, Cause: err}
	}

	session, err := OpenSession(req.Project, checkpoint.SessionDir)
	if err != nil {
		return nil, err
	}

	opts, err := models.LoadRunOptions(checkpoint.OptionsFile)
	if err != nil {
		return nil, err
	}
	urls := opts.SelectedURLs()
	if len(urls) != checkpoint.TotalURLs {
		return nil, fmt.Errorf("检查点与会话配置不一致: 检查点 %d 个URL, 配置 %d 个", checkpoint.TotalURLs, len(urls))
	}

	logs := utils.NewLogSet(o.config.StagingReportsDir())
	if err := logs.Ensure(); err != nil {
		return nil, err
	}

	utils.Infof("🔄 续跑会话 %s: 已完成 %d/%d 个URL", session.Dir, checkpoint.NextIndex, checkpoint.TotalURLs)
	if checkpoint.Done() {
		utils.Info("所有分块已处理, 直接进入日志收尾")
	}
	return &runState{
		session:    session,
		options:    opts,
		urls:       urls,
		checkpoint: checkpoint,
		logs:       logs,
		resumed:    true,
	}, nil
}

// cleanStaging 清理上次运行留下的暂存文件
func (o *Orchestrator) cleanStaging() error {
	dirs := []string{
		o.config.StagingReportsDir(),
		o.config.StagingScreenshotsDir(),
		o.stageArtifactDir(PDFDocuments),
		o.stageArtifactDir(OfficeDocuments),
	}
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("清理暂存目录失败 [%s]: %w", dir, err)
		}
	}
	return nil
}

func (o *Orchestrator) stageArtifactDir(kind DocumentKind) string {
	return filepath.Join(o.config.Run.WorkDir, kind.Name)
}

// postProcess 依次执行后处理阶段
func (o *Orchestrator) postProcess(ctx context.Context, state *runState, stats *utils.RunStats, summary *models.RunSummary) error {
	stages := []struct {
		name    string
		enabled bool
		run     func() error
	}{
		{StagePDF, o.config.Documents.PDF.Enabled, func() error {
			return o.processDocuments(ctx, PDFDocuments, o.config.Documents.PDF, state, stats)
		}},
		{StageMSOffice, o.config.Documents.MSOffice.Enabled, func() error {
			return o.processDocuments(ctx, OfficeDocuments, o.config.Documents.MSOffice, state, stats)
		}},
		{StageCSV, true, func() error {
			_, err := ProjectCSV(state.logs.Dir())
			return err
		}},
		{StageReport, o.config.Report.Command != "", func() error {
			_, err := runCommand(ctx, o.config.Report.Command, map[string]string{
				"reports": state.logs.Dir(),
				"session": state.session.Dir,
			}, 0)
			return err
		}},
		{StageCollect, true, func() error {
			return o.collect(state)
		}},
	}

	for _, stage := range stages {
		result := models.StageResult{Name: stage.name, Skipped: !stage.enabled}
		if !stage.enabled {
			utils.Debugf("跳过阶段: %s", stage.name)
			summary.Stages = append(summary.Stages, result)
			continue
		}

		utils.Infof("🔧 后处理阶段: %s", stage.name)
		start := time.Now()
		err := stage.run()
		result.Duration = time.Since(start).Seconds()
		summary.Stages = append(summary.Stages, result)
		if err != nil {
			return fmt.Errorf("后处理阶段 %s 失败: %w", stage.name, err)
		}
	}
	return nil
}

// processDocuments 文档阶段
func (o *Orchestrator) processDocuments(ctx context.Context, kind DocumentKind, dc DocumentConfig, state *runState, stats *utils.RunStats) error {
	docs := o.config.Documents
	processor := NewDocumentProcessor(kind, DocumentProcessorConfig{
		Converter:       dc.Converter,
		Tester:          dc.Tester,
		ConvertTimeout:  time.Duration(docs.ConvertTimeoutSeconds) * time.Second,
		DownloadTimeout: time.Duration(docs.DownloadTimeoutSeconds) * time.Second,
		TestTimeout:     time.Duration(docs.TestTimeoutSeconds) * time.Second,
		ReportsDir:      state.logs.Dir(),
		ArtifactDir:     o.stageArtifactDir(kind),
		HTTPUser:        state.options.HTTPUser,
		HTTPPassword:    state.options.HTTPPassword,
		Insecure:        o.config.Crawl.InsecureSkipVerify,
	}, stats)
	_, err := processor.Process(ctx)
	return err
}

// collect 把暂存的JSON/CSV和文档产物移动到会话目录
func (o *Orchestrator) collect(state *runState) error {
	var errs []error
	for _, pattern := range []string{"*.json", "*.csv"} {
		moved, err := utils.MoveMatching(state.logs.Dir(), pattern, state.session.Dir)
		if err != nil {
			errs = append(errs, err)
		}
		utils.Debugf("移动 %d 个 %s 文件到会话目录", moved, pattern)
	}

	for _, kind := range []DocumentKind{PDFDocuments, OfficeDocuments} {
		dst := filepath.Join(state.session.Dir, kind.Name)
		if moved, err := utils.ReplaceDir(o.stageArtifactDir(kind), dst); err != nil {
			errs = append(errs, err)
		} else if moved {
			utils.Debugf("文档产物已移动到: %s", dst)
		}
	}
	return errors.Join(errs...)
}
