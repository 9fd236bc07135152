package crawlers

import (
	"bytes"
	"context"
	"strings"

	"github.com/RecoveryAshes/SiteA11y/internal/utils"
	"github.com/antchfx/xmlquery"
)

// SitemapResolver 站点地图解析器
// 支持 urlset 和 sitemapindex 两种文档,索引会被递归展开
type SitemapResolver struct {
	fetcher PageFetcher
}

// NewSitemapResolver 创建站点地图解析器
func NewSitemapResolver(fetcher PageFetcher) *SitemapResolver {
	return &SitemapResolver{fetcher: fetcher}
}

// Resolve 解析一个顶层站点地图,返回其中所有页面URL (已规范化)
// 抓取或解析失败只记录警告并返回空结果,不会中断调用方
// 同一次调用内已访问过的站点地图不会被重复展开,输出的URL不重复
func (sr *SitemapResolver) Resolve(ctx context.Context, sitemapURL string) []string {
	visited := make(map[string]bool)
	emitted := make(map[string]bool)
	urls := make([]string, 0)

	sr.resolve(ctx, sitemapURL, visited, emitted, &urls)

	utils.Infof("站点地图 %s 共解析出 %d 个URL", sitemapURL, len(urls))
	return urls
}

func (sr *SitemapResolver) resolve(ctx context.Context, sitemapURL string, visited, emitted map[string]bool, urls *[]string) {
	if ctx.Err() != nil {
		return
	}

	key := utils.URLKey(sitemapURL)
	if visited[key] {
		utils.Warnf("⚠️  站点地图已解析过,跳过循环引用: %s", sitemapURL)
		return
	}
	visited[key] = true

	utils.Infof("解析站点地图: %s", sitemapURL)

	resp, err := sr.fetcher.Fetch(sitemapURL)
	if err != nil {
		utils.Warnf("获取站点地图失败 [%s]: %v", sitemapURL, err)
		return
	}

	doc, err := xmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		utils.Warnf("解析站点地图失败 [%s]: %v", sitemapURL, err)
		return
	}

	if entries := xmlquery.Find(doc, "//urlset/url/loc"); len(entries) > 0 {
		for _, loc := range entries {
			u := strings.TrimSpace(loc.InnerText())
			if u == "" {
				continue
			}
			normalized := utils.NormalizeURL(u)
			if emitted[normalized] {
				continue
			}
			emitted[normalized] = true
			*urls = append(*urls, normalized)
		}
		return
	}

	nested := xmlquery.Find(doc, "//sitemapindex/sitemap/loc")
	if len(nested) == 0 {
		utils.Warnf("站点地图中没有找到 urlset 或 sitemapindex: %s", sitemapURL)
		return
	}
	for _, loc := range nested {
		child := strings.TrimSpace(loc.InnerText())
		if child == "" {
			continue
		}
		sr.resolve(ctx, child, visited, emitted, urls)
	}
}
