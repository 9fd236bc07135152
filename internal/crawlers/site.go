package crawlers

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
)

// PageFetcher 站点爬取器依赖的抓取接口
type PageFetcher interface {
	Fetch(rawURL string) (*FetchResult, error)
}

// CrawlResult 爬取结果,四个互不相交的分类
type CrawlResult struct {
	HTMLURLs   []string
	PDFURLs    []string
	OfficeURLs []string
	OtherURLs  []models.OtherURL

	Visited  int
	Failed   int
	Duration float64 // 秒
}

// Total 已分类的URL总数
func (r *CrawlResult) Total() int {
	return len(r.HTMLURLs) + len(r.PDFURLs) + len(r.OfficeURLs) + len(r.OtherURLs)
}

// SiteCrawler 同源广度优先爬取器
type SiteCrawler struct {
	fetcher PageFetcher

	// maxURLs 最多抓取的URL数, 0 表示不限制
	maxURLs int

	// progressEvery 每抓取多少个URL输出一次进度
	progressEvery int
}

// NewSiteCrawler 创建站点爬取器
func NewSiteCrawler(fetcher PageFetcher, maxURLs int) *SiteCrawler {
	return &SiteCrawler{
		fetcher:       fetcher,
		maxURLs:       maxURLs,
		progressEvery: 25,
	}
}

// Crawl 从种子URL开始广度优先爬取
// 单个URL抓取失败只记录日志并丢弃,不重试;只有种子无效或ctx取消才返回错误
func (sc *SiteCrawler) Crawl(ctx context.Context, seed string) (*CrawlResult, error) {
	startTime := time.Now()

	seed = utils.NormalizeURL(seed)
	if err := models.ValidateURL(seed); err != nil {
		return nil, fmt.Errorf("种子URL无效: %w", err)
	}
	baseHost := utils.URLHostname(seed)

	utils.Infof("🔍 开始爬取站点: %s", seed)
	utils.Debugf("目标主机: %s, URL上限: %d", baseHost, sc.maxURLs)

	frontier := NewFrontier(baseHost)
	frontier.Push(seed)

	result := &CrawlResult{
		HTMLURLs:   []string{},
		PDFURLs:    []string{},
		OfficeURLs: []string{},
		OtherURLs:  []models.OtherURL{},
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sc.maxURLs > 0 && frontier.VisitedCount() >= sc.maxURLs {
			utils.Warnf("⚠️  已达到URL上限 %d, 剩余 %d 个URL未抓取", sc.maxURLs, frontier.PendingCount())
			break
		}

		next, ok := frontier.Pop()
		if !ok {
			break
		}
		current := utils.NormalizeURL(next)
		if frontier.IsVisited(current) {
			continue
		}
		frontier.MarkVisited(current)
		result.Visited++

		utils.Debugf("抓取: %s", current)
		resp, err := sc.fetcher.Fetch(current)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			utils.Warnf("抓取失败 [%s]: %v", current, err)
			result.Failed++
			continue
		}

		// 重定向后的地址作为相对链接的基准, 同主机时不再重复抓取
		base := current
		if final := utils.NormalizeURL(resp.FinalURL); final != "" && final != current {
			utils.Debugf("重定向: %s -> %s", current, final)
			if frontier.SameHost(final) {
				frontier.MarkVisited(final)
			}
			base = final
		}

		class := ClassifyResource(resp.ContentType(), resp.ContentDisposition(), utils.URLPathname(current))
		switch class {
		case models.ResourceHTML:
			result.HTMLURLs = append(result.HTMLURLs, current)
			added := sc.enqueueLinks(frontier, base, resp.Body)
			utils.Debugf("页面 %s 新增 %d 个链接", current, added)
		case models.ResourcePDF:
			result.PDFURLs = append(result.PDFURLs, current)
		case models.ResourceOffice:
			result.OfficeURLs = append(result.OfficeURLs, current)
		default:
			result.OtherURLs = append(result.OtherURLs, models.OtherURL{
				URL:         current,
				ContentType: resp.ContentType(),
			})
		}

		if sc.progressEvery > 0 && result.Visited%sc.progressEvery == 0 {
			utils.Infof("进度: 已抓取 %d 个URL, 待抓取 %d 个, 失败 %d 个",
				result.Visited, frontier.PendingCount(), result.Failed)
		}
	}

	result.Duration = time.Since(startTime).Seconds()

	utils.Infof("✅ 站点爬取完成")
	utils.Infof("HTML页面: %d, PDF: %d, Office: %d, 其他: %d",
		len(result.HTMLURLs), len(result.PDFURLs), len(result.OfficeURLs), len(result.OtherURLs))
	utils.Infof("失败: %d, 总耗时: %.2f秒", result.Failed, result.Duration)

	return result, nil
}

// enqueueLinks 提取页面中所有 a[href] 并把同主机链接加入队列
func (sc *SiteCrawler) enqueueLinks(frontier *Frontier, pageURL string, body []byte) int {
	if len(body) == 0 {
		return 0
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		utils.Warnf("解析HTML失败 [%s]: %v", pageURL, err)
		return 0
	}

	added := 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, err := utils.ResolveURL(pageURL, href)
		if err != nil {
			return
		}
		if frontier.Push(link) {
			added++
		}
	})
	return added
}
