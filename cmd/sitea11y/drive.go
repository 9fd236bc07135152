package main

import (
	"fmt"
	"os"

	"github.com/RecoveryAshes/SiteA11y/internal/core"
	"github.com/RecoveryAshes/SiteA11y/internal/crawlers"
	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
	"github.com/spf13/cobra"
)

func newDriveCmd() *cobra.Command {
	var (
		optionsPath    string
		reportsDir     string
		screenshotsDir string
		screenshots    string
		headful        bool
	)

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "内置测试驱动: 用无头Chrome逐个访问分块中的URL",
		Long: `读取分块配置, 依次访问 testUrls 中的每个URL并把结果追加到增量日志:
results.json, redirects.json, exceptions.json, pdf.json, msoffice.json。

通常由 run 命令以子进程方式调用, 参数也可以通过环境变量
SITEA11Y_OPTIONS, SITEA11Y_REPORTS, SITEA11Y_SCREENSHOTS 传入。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			optionsPath = flagOrEnv(optionsPath, core.EnvDriverOptions)
			reportsDir = flagOrEnv(reportsDir, core.EnvDriverReports)
			screenshotsDir = flagOrEnv(screenshotsDir, core.EnvDriverScreenshots)
			if optionsPath == "" || reportsDir == "" || screenshotsDir == "" {
				return fmt.Errorf("必须提供 --options, --reports, --screenshots")
			}
			if err := ValidateScreenshotMode(screenshots); err != nil {
				return err
			}

			opts, err := models.LoadRunOptions(optionsPath)
			if err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return &models.ConfigError{FilePath: optionsPath, Cause: err}
			}

			driverConfig := appConfig.PageDriverConfig()
			if screenshots != "" {
				driverConfig.Screenshots = screenshots
			}
			if headful {
				driverConfig.Headless = false
			}

			ctx, stop := signalContext()
			defer stop()

			driver := crawlers.NewPageDriver(opts, driverConfig, utils.NewLogSet(reportsDir), screenshotsDir)
			summary, err := driver.Run(ctx)
			if err != nil {
				return fmt.Errorf("驱动运行失败: %w", err)
			}

			utils.Infof("📊 分块结果: %d 个URL, 成功 %d, 失败 %d, 截图 %d, 耗时 %.2f秒",
				summary.Total, summary.Tested, summary.Failed, summary.Screenshots, summary.Duration)
			return nil
		},
	}

	cmd.Flags().StringVar(&optionsPath, "options", "", "分块配置文件")
	cmd.Flags().StringVar(&reportsDir, "reports", "", "增量日志目录")
	cmd.Flags().StringVar(&screenshotsDir, "screenshots", "", "截图目录")
	cmd.Flags().StringVar(&screenshots, "screenshot-mode", "", "截图模式 none|errors|all (覆盖 driver.screenshots)")
	cmd.Flags().BoolVar(&headful, "headful", false, "显示浏览器窗口 (调试用)")
	return cmd
}

func flagOrEnv(value, env string) string {
	if value != "" {
		return value
	}
	return os.Getenv(env)
}
