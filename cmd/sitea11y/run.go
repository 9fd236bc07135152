package main

import (
	"fmt"
	"time"

	"github.com/RecoveryAshes/SiteA11y/internal/core"
	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		flags       discoveryFlags
		project     string
		optionsPath string
		resume      bool
		chunkSize   int
		noProgress  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "分块运行测试驱动并生成报告",
		Long: `读取 options.json (或指定 --base-url 时先执行发现),
把 testUrls 按分块交给测试驱动, 所有分块结束后收尾增量日志,
处理PDF/Office文档, 生成CSV并把结果移动到
<report_root>/<project>/<时间戳>/ 会话目录。

中断后使用 --resume 从检查点继续。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ValidateProject(project); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			cfg := *appConfig
			if chunkSize > 0 {
				cfg.Run.ChunkSize = chunkSize
			}

			req := core.RunRequest{
				Project:     project,
				OptionsPath: optionsPath,
				Resume:      resume,
			}

			if flags.baseURL != "" && !resume {
				opts, err := flags.discover(ctx, cmd.Flags())
				if err != nil {
					return err
				}
				req.Options = opts
			} else if err := applyIndexOverrides(cmd, &flags, &req); err != nil {
				return err
			}

			driver, err := newChunkDriver(&cfg)
			if err != nil {
				return err
			}

			orchestrator := core.NewOrchestrator(&cfg, driver)
			orchestrator.SetShowProgress(!noProgress)

			if _, err := orchestrator.Run(ctx, req); err != nil {
				return err
			}
			utils.Info("✨ 运行完成!")
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&project, "project", "p", "", "项目名 (报告目录名)")
	cmd.Flags().StringVar(&optionsPath, "options", "options.json", "运行配置文件")
	cmd.Flags().BoolVar(&resume, "resume", false, "从检查点继续未完成的运行")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "每个分块的URL数 (覆盖 run.chunk_size)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// applyIndexOverrides 命令行的 --start-index/--end-index 覆盖配置文件中的值
func applyIndexOverrides(cmd *cobra.Command, flags *discoveryFlags, req *core.RunRequest) error {
	fs := cmd.Flags()
	if !fs.Changed("start-index") && !fs.Changed("end-index") {
		return nil
	}
	if req.Resume {
		return fmt.Errorf("--resume 不能与 --start-index/--end-index 同时使用")
	}

	opts, err := models.LoadRunOptions(req.OptionsPath)
	if err != nil {
		return err
	}
	if fs.Changed("start-index") {
		v := flags.startIndex
		opts.StartIndex = &v
	}
	if fs.Changed("end-index") {
		v := flags.endIndex
		opts.EndIndex = &v
	}
	req.Options = opts
	return nil
}

// newChunkDriver 未配置外部命令时使用内置驱动
func newChunkDriver(cfg *core.Config) (core.ChunkDriver, error) {
	timeout := time.Duration(cfg.Driver.ChunkTimeoutMinutes) * time.Minute
	if cfg.Driver.Command != "" {
		utils.Infof("使用外部驱动: %s", cfg.Driver.Command)
		return core.NewProcessDriver(cfg.Driver.Command, timeout)
	}
	return core.NewBuiltinDriver(configFile, timeout)
}
