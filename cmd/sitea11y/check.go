package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/RecoveryAshes/SiteA11y/internal/config"
	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCheckCmd() *cobra.Command {
	var (
		printConfig bool
		initHeaders bool
		optionsPath string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "验证配置文件、HTTP头部和运行配置",
		RunE: func(cmd *cobra.Command, args []string) error {
			if initHeaders {
				file := headersFile
				if file == "" {
					file = appConfig.Crawl.HeadersFile
				}
				loader := config.NewHeaderConfigLoader(file)
				created, err := loader.WriteTemplate()
				if err != nil {
					return err
				}
				if created {
					utils.Infof("✅ 已生成头部配置模板: %s", loader.Path())
				} else {
					utils.Infof("头部配置已存在: %s", loader.Path())
				}
			}

			utils.Info("🔍 验证HTTP头部配置...")
			headerManager, err := newHeaderManager()
			if err != nil {
				return err
			}
			safeHeaders, err := headerManager.GetSafeHeaders()
			if err != nil {
				return fmt.Errorf("头部配置验证失败: %w", err)
			}
			names := make([]string, 0, len(safeHeaders))
			for name := range safeHeaders {
				names = append(names, name)
			}
			sort.Strings(names)
			utils.Infof("当前有效的HTTP头部 (%d个):", len(names))
			for _, name := range names {
				utils.Infof("  %s: %s", name, safeHeaders[name])
			}

			if optionsPath != "" {
				opts, err := models.LoadRunOptions(optionsPath)
				if err != nil {
					return err
				}
				if err := opts.Validate(); err != nil {
					return &models.ConfigError{FilePath: optionsPath, Cause: err}
				}
				utils.Infof("运行配置: %d 个URL, 截取后 %d 个, PDF %d, Office %d",
					len(opts.TestURLs), len(opts.SelectedURLs()), len(opts.PDFURLs), len(opts.MSOfficeURLs))
				if printConfig {
					data, err := utils.RedactOptions(opts).ToJSON()
					if err != nil {
						return err
					}
					fmt.Fprintln(os.Stdout, string(data))
				}
			}

			if printConfig {
				out, err := yaml.Marshal(appConfig)
				if err != nil {
					return fmt.Errorf("序列化配置失败: %w", err)
				}
				fmt.Fprint(os.Stdout, string(out))
			}

			utils.Info("✅ 配置验证通过!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&printConfig, "print-config", false, "打印生效的配置 (YAML)")
	cmd.Flags().BoolVar(&initHeaders, "init-headers", false, "生成HTTP头部配置模板")
	cmd.Flags().StringVar(&optionsPath, "options", "", "同时验证运行配置文件")
	return cmd
}
