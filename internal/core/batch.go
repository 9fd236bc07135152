package core

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
)

// ChunkPlan 一个分块在截取列表中的范围 [Start, End)
type ChunkPlan struct {
	Index int
	Start int
	End   int
}

// Size 分块中的URL数
func (p ChunkPlan) Size() int {
	return p.End - p.Start
}

// PartitionChunks 把 total 个URL按 size 切成连续分块, 最后一块可能较小
func PartitionChunks(total, size int) []ChunkPlan {
	if total <= 0 || size <= 0 {
		return nil
	}
	plans := make([]ChunkPlan, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		plans = append(plans, ChunkPlan{Index: len(plans), Start: start, End: end})
	}
	return plans
}

// ChunkRunnerConfig 分块执行器的路径和选项
type ChunkRunnerConfig struct {
	ChunkSize          int
	ChunkOptionsPath   string // 分块配置暂存文件
	ReportsDir         string // 增量日志暂存目录
	StagingScreenshots string // 驱动写入截图的目录
	SessionScreenshots string // 截图最终目录
	CheckpointPath     string // 为空时不保存检查点
	ShowProgress       bool
}

// ChunkRunner 分块执行器
// 按顺序把URL分块交给驱动, 单个分块失败不影响后续分块
type ChunkRunner struct {
	config ChunkRunnerConfig
	driver ChunkDriver
	stats  *utils.RunStats
}

// NewChunkRunner 创建分块执行器
func NewChunkRunner(config ChunkRunnerConfig, driver ChunkDriver, stats *utils.RunStats) *ChunkRunner {
	if stats == nil {
		stats = utils.NewRunStats()
	}
	return &ChunkRunner{
		config: config,
		driver: driver,
		stats:  stats,
	}
}

// Run 从 checkpoint.NextIndex 开始依次执行剩余分块
// 上下文取消时当前分块照常跑完, 之后停止派发新分块, 已完成的进度保留在检查点中
func (r *ChunkRunner) Run(ctx context.Context, opts *models.RunOptions, urls []string, checkpoint *models.RunCheckpoint) ([]models.ChunkResult, error) {
	plans := PartitionChunks(len(urls), r.config.ChunkSize)
	pending := make([]ChunkPlan, 0, len(plans))
	for _, plan := range plans {
		if plan.Start >= checkpoint.NextIndex {
			pending = append(pending, plan)
		}
	}

	results := make([]models.ChunkResult, 0, len(pending))
	if len(pending) == 0 {
		utils.Info("没有待处理的分块")
		return results, nil
	}

	utils.Infof("🚀 开始分块测试: %d 个URL, %d 个分块 (每块 %d)", len(urls), len(plans), r.config.ChunkSize)
	if len(pending) < len(plans) {
		utils.Infof("从第 %d 个分块继续 (已完成 %d 个)", pending[0].Index+1, len(plans)-len(pending))
	}

	if err := os.MkdirAll(r.config.StagingScreenshots, 0755); err != nil {
		return results, fmt.Errorf("创建截图暂存目录失败: %w", err)
	}

	var bar interface{ Add(int) error }
	if r.config.ShowProgress {
		bar = utils.NewProgressBar(len(pending), "分块测试")
	}

	for _, plan := range pending {
		if err := ctx.Err(); err != nil {
			utils.Warnf("运行被中断, 下次可使用 --resume 从第 %d 个分块继续", plan.Index+1)
			return results, err
		}

		utils.Infof("\n==================== [分块 %d/%d] ====================", plan.Index+1, len(plans))
		offset := opts.SelectionOffset()
		utils.Infof("URL %d - %d (testUrls[%d:%d])", plan.Start+1, plan.End, offset+plan.Start, offset+plan.End)

		result := r.runChunk(ctx, opts, urls, plan, len(plans))
		// 驱动在中断期间失败(例如终端信号也送到了子进程)时分块未测完, 不推进检查点
		if err := ctx.Err(); err != nil && !result.Success() {
			utils.Warnf("分块 %d 被中断, 下次可使用 --resume 从该分块重新开始", plan.Index+1)
			return results, err
		}
		results = append(results, result)

		checkpoint.RecordChunk(plan.Index, plan.End, result.Success())
		if r.config.CheckpointPath != "" {
			if err := checkpoint.SaveToFile(r.config.CheckpointPath); err != nil {
				utils.Warnf("保存检查点失败: %v", err)
			}
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	return results, nil
}

// runChunk 执行单个分块
func (r *ChunkRunner) runChunk(ctx context.Context, opts *models.RunOptions, urls []string, plan ChunkPlan, total int) models.ChunkResult {
	result := models.ChunkResult{
		Index:       plan.Index,
		Start:       plan.Start,
		Size:        plan.Size(),
		ProcessedAt: time.Now(),
	}

	chunkOpts := opts.WithChunk(urls[plan.Start:plan.End])
	if err := chunkOpts.SaveToFile(r.config.ChunkOptionsPath); err != nil {
		result.ExitCode = -1
		result.Error = fmt.Sprintf("写入分块配置失败: %v", err)
		utils.Errorf("❌ 分块 %d: %s", plan.Index+1, result.Error)
		return r.finishChunk(result)
	}

	// 运行中的分块不随上下文取消, 只受驱动自身的超时约束
	exitCode, err := r.driver.RunChunk(context.WithoutCancel(ctx), ChunkRequest{
		Index:          plan.Index,
		OptionsPath:    r.config.ChunkOptionsPath,
		ReportsDir:     r.config.ReportsDir,
		ScreenshotsDir: r.config.StagingScreenshots,
	})
	result.ExitCode = exitCode
	switch {
	case err != nil:
		result.Error = err.Error()
		utils.Errorf("❌ 分块 %d/%d 驱动失败: %v", plan.Index+1, total, err)
	case exitCode != 0:
		result.Error = fmt.Sprintf("驱动退出码 %d", exitCode)
		utils.Errorf("❌ 分块 %d/%d 驱动非零退出: %d", plan.Index+1, total, exitCode)
	default:
		utils.Infof("✅ 分块 %d/%d 完成", plan.Index+1, total)
	}

	return r.finishChunk(result)
}

// finishChunk 收集截图并记录耗时
func (r *ChunkRunner) finishChunk(result models.ChunkResult) models.ChunkResult {
	moved, err := utils.MoveMatching(r.config.StagingScreenshots, "*.png", r.config.SessionScreenshots)
	if err != nil {
		utils.Warnf("收集截图失败: %v", err)
	}
	result.Screenshots = moved
	result.Duration = time.Since(result.ProcessedAt).Seconds()
	if moved > 0 {
		utils.Debugf("收集了 %d 张截图", moved)
	}

	elapsed, average := r.stats.Tick()
	sample := r.stats.SampleMemory()
	utils.Infof("⏱️  分块耗时: %.2f秒, 平均: %.2f秒, 内存: %.2f MB",
		elapsed.Seconds(), average.Seconds(), sample.HeapMB)
	return result
}
