package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/RecoveryAshes/SiteA11y/internal/crawlers"
	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
)

// SitemapSource 站点地图来源
type SitemapSource interface {
	Resolve(ctx context.Context, sitemapURL string) []string
}

// SiteSource 站点爬取来源
type SiteSource interface {
	Crawl(ctx context.Context, seed string) (*crawlers.CrawlResult, error)
}

// DiscoveryInput 发现阶段的全部输入
// 命令行只是构造它的一种方式
type DiscoveryInput struct {
	BaseURL      string
	SitemapURLs  []string
	HTTPUser     string
	HTTPPassword string
	WPLogin      models.WPLogin
	Crawl        bool
	StartIndex   *int
	EndIndex     *int
}

// Validate 校验输入
func (in *DiscoveryInput) Validate() error {
	if err := models.ValidateURL(in.BaseURL); err != nil {
		return fmt.Errorf("无效的基础URL: %w", err)
	}
	for _, s := range in.SitemapURLs {
		if err := models.ValidateURL(s); err != nil {
			return fmt.Errorf("无效的站点地图URL [%s]: %w", s, err)
		}
	}
	if in.HTTPPassword != "" && in.HTTPUser == "" {
		return fmt.Errorf("提供了HTTP密码但缺少HTTP用户名")
	}
	return nil
}

// BuildRunOptions 根据输入生成运行配置
// testUrls 第一个总是规范化后的基础URL,其余为站点地图和爬取结果合并去重后的有序列表
func BuildRunOptions(ctx context.Context, in DiscoveryInput, sitemaps SitemapSource, site SiteSource) (*models.RunOptions, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	base := utils.NormalizeURL(in.BaseURL)
	opts := &models.RunOptions{
		BaseURL:      in.BaseURL,
		SitemapURLs:  append([]string{}, in.SitemapURLs...),
		HTTPUser:     in.HTTPUser,
		HTTPPassword: in.HTTPPassword,
		StartIndex:   in.StartIndex,
		EndIndex:     in.EndIndex,
	}
	if in.WPLogin.Complete() {
		login := in.WPLogin
		opts.WPLogin = &login
	}

	discovered := make([]string, 0)
	for _, sitemapURL := range in.SitemapURLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		discovered = append(discovered, sitemaps.Resolve(ctx, sitemapURL)...)
	}

	if in.Crawl {
		result, err := site.Crawl(ctx, base)
		if err != nil {
			return nil, fmt.Errorf("站点爬取失败: %w", err)
		}
		discovered = append(discovered, result.HTMLURLs...)
		opts.PDFURLs = utils.DedupeURLs(result.PDFURLs)
		opts.MSOfficeURLs = utils.DedupeURLs(result.OfficeURLs)
		opts.OtherNonHTMLURLs = dedupeOther(result.OtherURLs)
	}

	opts.TestURLs = []string{base}
	for _, u := range utils.DedupeURLs(discovered) {
		if u != base {
			opts.TestURLs = append(opts.TestURLs, u)
		}
	}

	utils.Infof("📋 发现完成: %d 个待测试URL", len(opts.TestURLs))
	if n := len(opts.PDFURLs) + len(opts.MSOfficeURLs) + len(opts.OtherNonHTMLURLs); n > 0 {
		utils.Infof("另有 %d 个非HTML资源 (PDF %d, Office %d, 其他 %d)",
			n, len(opts.PDFURLs), len(opts.MSOfficeURLs), len(opts.OtherNonHTMLURLs))
	}
	return opts, nil
}

// dedupeOther 按URL去重并排序
func dedupeOther(items []models.OtherURL) []models.OtherURL {
	seen := make(map[string]bool, len(items))
	result := make([]models.OtherURL, 0, len(items))
	for _, item := range items {
		key := utils.URLKey(item.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, models.OtherURL{URL: key, ContentType: item.ContentType})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].URL < result[j].URL })
	return result
}

// Discoverer 使用真实网络的发现器
type Discoverer struct {
	config         *Config
	headerProvider models.HeaderProvider
}

// NewDiscoverer 创建发现器
func NewDiscoverer(config *Config, headerProvider models.HeaderProvider) *Discoverer {
	return &Discoverer{config: config, headerProvider: headerProvider}
}

// Discover 解析站点地图、按需爬取站点并生成运行配置
func (d *Discoverer) Discover(ctx context.Context, in DiscoveryInput) (*models.RunOptions, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	fetchConfig := d.config.FetchConfig()
	fetchConfig.HTTPUser = in.HTTPUser
	fetchConfig.HTTPPassword = in.HTTPPassword

	sitemapFetcher, err := crawlers.NewFetcher(ctx, fetchConfig, d.headerProvider)
	if err != nil {
		return nil, err
	}
	pageFetcher, err := crawlers.NewFetcher(ctx, fetchConfig, d.headerProvider)
	if err != nil {
		return nil, err
	}
	pageFetcher.SetBodyFilter(crawlers.HTMLOnly)

	return BuildRunOptions(ctx, in,
		crawlers.NewSitemapResolver(sitemapFetcher),
		crawlers.NewSiteCrawler(pageFetcher, d.config.Crawl.MaxURLs),
	)
}
