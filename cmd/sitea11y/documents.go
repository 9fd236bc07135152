package main

import (
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/SiteA11y/internal/core"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
	"github.com/spf13/cobra"
)

func newDocumentsCmd() *cobra.Command {
	var (
		reportsDir   string
		artifactRoot string
		kind         string
		httpUser     string
		httpPassword string
	)

	cmd := &cobra.Command{
		Use:   "documents",
		Short: "单独处理已收尾的 pdf.json / msoffice.json",
		Long: `下载日志中引用的文档, 用配置的转换命令转成HTML,
可选地运行测试命令, 结果写入 <kind>-results.json 和 <kind>-results.csv。
run 命令的后处理阶段会自动执行这一步, 此命令用于单独重跑。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ValidateDocumentKind(kind); err != nil {
				return err
			}
			if reportsDir == "" {
				reportsDir = appConfig.StagingReportsDir()
			}
			if artifactRoot == "" {
				artifactRoot = reportsDir
			}

			ctx, stop := signalContext()
			defer stop()

			docs := appConfig.Documents
			stats := utils.NewRunStats()
			targets := []struct {
				kind   core.DocumentKind
				config core.DocumentConfig
			}{
				{core.PDFDocuments, docs.PDF},
				{core.OfficeDocuments, docs.MSOffice},
			}

			for _, t := range targets {
				if kind != "all" && kind != t.kind.Name {
					continue
				}
				processor := core.NewDocumentProcessor(t.kind, core.DocumentProcessorConfig{
					Converter:       t.config.Converter,
					Tester:          t.config.Tester,
					ConvertTimeout:  time.Duration(docs.ConvertTimeoutSeconds) * time.Second,
					DownloadTimeout: time.Duration(docs.DownloadTimeoutSeconds) * time.Second,
					TestTimeout:     time.Duration(docs.TestTimeoutSeconds) * time.Second,
					ReportsDir:      reportsDir,
					ArtifactDir:     filepath.Join(artifactRoot, t.kind.Name),
					HTTPUser:        httpUser,
					HTTPPassword:    httpPassword,
					Insecure:        appConfig.Crawl.InsecureSkipVerify,
				}, stats)
				if _, err := processor.Process(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportsDir, "reports", "", "包含已收尾日志的目录 (默认为暂存目录, 也可以是会话目录)")
	cmd.Flags().StringVar(&artifactRoot, "artifacts", "", "下载和转换产物的根目录 (默认与 --reports 相同)")
	cmd.Flags().StringVar(&kind, "kind", "all", "文档类别 pdf|msoffice|all")
	cmd.Flags().StringVar(&httpUser, "http-user", "", "HTTP基本认证用户名")
	cmd.Flags().StringVar(&httpPassword, "http-password", "", "HTTP基本认证密码")
	return cmd
}
