package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/RecoveryAshes/SiteA11y/internal/core"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 全局参数
var (
	configFile  string
	verbose     bool
	logLevel    string
	headers     []string
	headersFile string

	appConfig *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "sitea11y",
	Short: "站点可访问性批量测试工具",
	Long: `SiteA11y - 站点可访问性批量测试工具

工作流程:
  1. discover  通过站点地图和同源爬取发现待测试URL, 生成 options.json
  2. run       把URL分块交给测试驱动(默认是内置的无头Chrome驱动),
               收集增量日志、截图, 测试PDF/Office文档并生成CSV报告
  3. check     验证配置文件和HTTP头部

示例:
  sitea11y discover -u https://example.com --sitemap https://example.com/sitemap.xml --crawl
  sitea11y run -p example --options options.json
  sitea11y run -p example --resume

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig = config

		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			FileName:   "sitea11y",
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}
		// 驱动子进程与主进程分开写日志文件
		if cmd.Name() == "drive" {
			logConfig.FileName = "sitea11y_drive"
		}
		if logLevel != "" {
			logConfig.Level = logLevel
		} else if verbose {
			logConfig.Level = "debug"
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SiteA11y %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Printf("Go版本: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

// newHeaderManager 按 --headers-file > crawl.headers_file 的顺序选择头部配置
func newHeaderManager() (*core.HeaderManager, error) {
	file := headersFile
	if file == "" {
		file = appConfig.Crawl.HeadersFile
	}
	hm, err := core.NewHeaderManager(file, headers)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	return hm, nil
}

// signalContext Ctrl+C 时取消上下文, 让正在运行的阶段自行收尾
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式 (等同 --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "发现阶段的自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringVar(&headersFile, "headers-file", "", "HTTP头部配置文件 (默认 configs/headers.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newDiscoverCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDriveCmd())
	rootCmd.AddCommand(newDocumentsCmd())
	rootCmd.AddCommand(newCheckCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
