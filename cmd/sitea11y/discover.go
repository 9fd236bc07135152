package main

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/SiteA11y/internal/core"
	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// discoveryFlags discover 和 run 共用的发现参数
type discoveryFlags struct {
	baseURL      string
	sitemaps     []string
	sitemapsFile string
	crawl        bool
	httpUser     string
	httpPassword string
	wpLoginURL   string
	wpUsername   string
	wpPassword   string
	startIndex   int
	endIndex     int
	maxURLs      int
}

func (f *discoveryFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.baseURL, "base-url", "u", "", "站点基础URL")
	fs.StringSliceVar(&f.sitemaps, "sitemap", []string{}, "站点地图URL, 可多次指定")
	fs.StringVar(&f.sitemapsFile, "sitemaps-file", "", "包含站点地图URL列表的文件")
	fs.BoolVar(&f.crawl, "crawl", false, "从基础URL开始爬取同源页面")
	fs.StringVar(&f.httpUser, "http-user", "", "HTTP基本认证用户名")
	fs.StringVar(&f.httpPassword, "http-password", "", "HTTP基本认证密码")
	fs.StringVar(&f.wpLoginURL, "wp-login-url", "", "WordPress登录页URL")
	fs.StringVar(&f.wpUsername, "wp-username", "", "WordPress用户名")
	fs.StringVar(&f.wpPassword, "wp-password", "", "WordPress密码")
	fs.IntVar(&f.startIndex, "start-index", 0, "只测试 testUrls[start:] (支持负数)")
	fs.IntVar(&f.endIndex, "end-index", 0, "只测试 testUrls[:end] (支持负数, 0 表示到末尾)")
	fs.IntVar(&f.maxURLs, "max-urls", -1, "爬取URL数上限 (覆盖 crawl.max_urls, 0为不限)")
}

// input 转换为发现输入, 只有显式指定的索引才会写入配置
func (f *discoveryFlags) input(fs *pflag.FlagSet) (core.DiscoveryInput, error) {
	in := core.DiscoveryInput{
		BaseURL:      f.baseURL,
		SitemapURLs:  append([]string{}, f.sitemaps...),
		HTTPUser:     f.httpUser,
		HTTPPassword: f.httpPassword,
		WPLogin: models.WPLogin{
			URL:      f.wpLoginURL,
			Username: f.wpUsername,
			Password: f.wpPassword,
		},
		Crawl: f.crawl,
	}

	if f.sitemapsFile != "" {
		urls, err := utils.ReadURLsFromFile(f.sitemapsFile)
		if err != nil {
			return in, err
		}
		in.SitemapURLs = append(in.SitemapURLs, urls...)
	}

	if fs.Changed("start-index") {
		v := f.startIndex
		in.StartIndex = &v
	}
	if fs.Changed("end-index") {
		v := f.endIndex
		in.EndIndex = &v
	}

	if err := ValidateDiscoveryFlags(f); err != nil {
		return in, err
	}
	return in, nil
}

// discover 运行发现阶段
func (f *discoveryFlags) discover(ctx context.Context, fs *pflag.FlagSet) (*models.RunOptions, error) {
	in, err := f.input(fs)
	if err != nil {
		return nil, err
	}

	headerManager, err := newHeaderManager()
	if err != nil {
		return nil, err
	}

	cfg := *appConfig
	if f.maxURLs >= 0 {
		cfg.Crawl.MaxURLs = f.maxURLs
	}

	utils.Infof("🔍 开始发现: %s", in.BaseURL)
	return core.NewDiscoverer(&cfg, headerManager).Discover(ctx, in)
}

func newDiscoverCmd() *cobra.Command {
	var (
		flags  discoveryFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "发现待测试URL并生成运行配置",
		Long: `解析站点地图(支持站点地图索引)并可选地爬取同源页面,
把结果写成 options.json: testUrls 第一个总是基础URL,
PDF/Office/其他非HTML资源分别列出。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			opts, err := flags.discover(ctx, cmd.Flags())
			if err != nil {
				return err
			}

			if err := opts.SaveToFile(output); err != nil {
				return err
			}
			utils.Infof("✅ 运行配置已写入: %s (%d 个待测试URL)", output, len(opts.TestURLs))
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "options.json", "运行配置输出文件")
	_ = cmd.MarkFlagRequired("base-url")
	return cmd
}
