package crawlers

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sort"
	"testing"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
)

type fakePage struct {
	contentType string
	body        string
	finalURL    string
	err         error
}

// fakeFetcher 按URL返回预设响应并记录请求顺序
type fakeFetcher struct {
	pages     map[string]fakePage
	requested []string
}

func (f *fakeFetcher) Fetch(rawURL string) (*FetchResult, error) {
	f.requested = append(f.requested, rawURL)
	page, ok := f.pages[rawURL]
	if !ok {
		return nil, errors.New("HTTP状态码异常: 404")
	}
	if page.err != nil {
		return nil, page.err
	}
	header := http.Header{}
	header.Set("Content-Type", page.contentType)
	finalURL := rawURL
	if page.finalURL != "" {
		finalURL = page.finalURL
	}
	return &FetchResult{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       []byte(page.body),
	}, nil
}

func htmlPage(body string) fakePage {
	return fakePage{contentType: "text/html; charset=utf-8", body: body}
}

func TestClassifyResource(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		disposition string
		path        string
		want        models.ResourceClass
	}{
		{"HTML页面", "text/html; charset=utf-8", "", "/about", models.ResourceHTML},
		{"HTML优先于扩展名", "text/html", "", "/report.pdf", models.ResourceHTML},
		{"PDF类型优先于Office路径", "application/pdf", "", "/file.docx", models.ResourcePDF},
		{"PDF扩展名", "application/octet-stream", "", "/files/a.pdf", models.ResourcePDF},
		{"PDF附件名", "application/octet-stream", `attachment; filename="a.pdf"`, "/download", models.ResourcePDF},
		{"Word文档", "application/octet-stream", "", "/files/a.docx", models.ResourceOffice},
		{"Excel附件", "", `attachment; filename=data.XLSX`, "/download", models.ResourceOffice},
		{"图片", "image/png", "", "/logo.png", models.ResourceOther},
		{"无类型", "", "", "/data", models.ResourceOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyResource(tt.contentType, tt.disposition, tt.path); got != tt.want {
				t.Errorf("ClassifyResource() = %v, 期望 %v", got, tt.want)
			}
		})
	}
}

func TestDocumentPaths(t *testing.T) {
	if !IsPDFPath("/a/B.PDF") || IsPDFPath("/a/b.pdf.html") {
		t.Error("IsPDFPath 判断错误")
	}
	if !IsOfficePath("/a/b.pptx") || IsOfficePath("/a/b.txt") {
		t.Error("IsOfficePath 判断错误")
	}
}

func TestFrontier(t *testing.T) {
	f := NewFrontier("Example.com")

	if !f.Push("https://example.com/a") {
		t.Error("同主机URL应入队")
	}
	if f.Push("https://other.com/a") {
		t.Error("跨主机URL不应入队")
	}
	if !f.Push("http://EXAMPLE.com:8080/b") {
		t.Error("主机名比较应忽略大小写和端口")
	}
	if f.Push("mailto:a@example.com") {
		t.Error("无主机名的URL不应入队")
	}
	if f.Push("ftp://example.com/file.txt") {
		t.Error("非 http/https 的URL不应入队")
	}

	next, ok := f.Pop()
	if !ok || next != "https://example.com/a" {
		t.Errorf("Pop() = %q, %v", next, ok)
	}
	f.MarkVisited(next)
	if f.Push("https://example.com/a#frag") {
		t.Error("已访问URL不应再次入队")
	}
	if !f.IsVisited("https://example.com/a#other") {
		t.Error("片段不同应视为同一URL")
	}
	if f.PendingCount() != 1 || f.VisitedCount() != 1 {
		t.Errorf("计数错误: pending=%d visited=%d", f.PendingCount(), f.VisitedCount())
	}
}

func TestSiteCrawler_Crawl(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"https://example.com/": htmlPage(`
			<a href="/about">关于</a>
			<a href="docs/report.pdf">报告</a>
			<a href="https://example.com/files/data.xlsx">数据</a>
			<a href="https://other.com/page">外站</a>
			<a href="/missing">坏链接</a>
			<a href="#top">顶部</a>`),
		"https://example.com/about": htmlPage(`<a href="/">首页</a><a href="/logo.png">logo</a><a href="/about#team">团队</a>`),
		"https://example.com/docs/report.pdf": {contentType: "application/pdf"},
		"https://example.com/files/data.xlsx": {contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		"https://example.com/logo.png":        {contentType: "image/png"},
	}}

	result, err := NewSiteCrawler(fetcher, 0).Crawl(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Crawl() 失败: %v", err)
	}

	sort.Strings(result.HTMLURLs)
	if want := []string{"https://example.com/", "https://example.com/about"}; !reflect.DeepEqual(result.HTMLURLs, want) {
		t.Errorf("HTML = %v, 期望 %v", result.HTMLURLs, want)
	}
	if want := []string{"https://example.com/docs/report.pdf"}; !reflect.DeepEqual(result.PDFURLs, want) {
		t.Errorf("PDF = %v", result.PDFURLs)
	}
	if want := []string{"https://example.com/files/data.xlsx"}; !reflect.DeepEqual(result.OfficeURLs, want) {
		t.Errorf("Office = %v", result.OfficeURLs)
	}
	if len(result.OtherURLs) != 1 || result.OtherURLs[0].ContentType != "image/png" {
		t.Errorf("Other = %v", result.OtherURLs)
	}
	if result.Failed != 1 {
		t.Errorf("失败数 = %d, 期望 1", result.Failed)
	}

	for _, u := range fetcher.requested {
		if u == "https://other.com/page" {
			t.Error("外站链接不应被抓取")
		}
	}
	seen := map[string]bool{}
	for _, u := range fetcher.requested {
		if seen[u] {
			t.Errorf("URL被重复抓取: %s", u)
		}
		seen[u] = true
	}
}

func TestSiteCrawler_Redirect(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"https://example.com/old/": {
			contentType: "text/html",
			body:        `<a href="page">页面</a><a href="/new/">新首页</a>`,
			finalURL:    "https://example.com/new/",
		},
		"https://example.com/new/page": htmlPage(``),
	}}

	result, err := NewSiteCrawler(fetcher, 0).Crawl(context.Background(), "https://example.com/old/")
	if err != nil {
		t.Fatalf("Crawl() 失败: %v", err)
	}

	want := []string{"https://example.com/old/", "https://example.com/new/page"}
	if !reflect.DeepEqual(fetcher.requested, want) {
		t.Errorf("请求顺序 = %v, 期望 %v", fetcher.requested, want)
	}
	if result.Failed != 0 {
		t.Errorf("相对链接应按重定向后的地址解析, 失败 %d 个", result.Failed)
	}
}

func TestSiteCrawler_MaxURLs(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"https://example.com/":  htmlPage(`<a href="/1">1</a><a href="/2">2</a><a href="/3">3</a>`),
		"https://example.com/1": htmlPage(""),
		"https://example.com/2": htmlPage(""),
		"https://example.com/3": htmlPage(""),
	}}

	result, err := NewSiteCrawler(fetcher, 2).Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if len(fetcher.requested) != 2 || result.Visited != 2 {
		t.Errorf("应只抓取2个URL, 实际 %v", fetcher.requested)
	}
}

func TestSiteCrawler_InvalidSeedAndCancel(t *testing.T) {
	crawler := NewSiteCrawler(&fakeFetcher{}, 0)
	if _, err := crawler.Crawl(context.Background(), "not a url"); err == nil {
		t.Error("无效种子应报错")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := crawler.Crawl(ctx, "https://example.com/"); !errors.Is(err, context.Canceled) {
		t.Errorf("取消后应返回 context.Canceled, 得到 %v", err)
	}
}

const sitemapNS = `<?xml version="1.0" encoding="UTF-8"?>`

func TestSitemapResolver_Resolve(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"https://example.com/sitemap.xml": {contentType: "application/xml", body: sitemapNS + `
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/pages.xml</loc></sitemap>
  <sitemap><loc> https://example.com/posts.xml </loc></sitemap>
  <sitemap><loc>https://example.com/sitemap.xml</loc></sitemap>
  <sitemap><loc>https://example.com/missing.xml</loc></sitemap>
</sitemapindex>`},
		"https://example.com/pages.xml": {contentType: "application/xml", body: sitemapNS + `
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc></url>
  <url><loc>https://example.com/about#x</loc></url>
</urlset>`},
		"https://example.com/posts.xml": {contentType: "application/xml", body: sitemapNS + `
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/about</loc></url>
  <url><loc>https://example.com/post/1</loc></url>
  <url><loc></loc></url>
</urlset>`},
	}}

	urls := NewSitemapResolver(fetcher).Resolve(context.Background(), "https://example.com/sitemap.xml")
	want := []string{"https://example.com/", "https://example.com/about", "https://example.com/post/1"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("Resolve() = %v, 期望 %v", urls, want)
	}

	count := 0
	for _, u := range fetcher.requested {
		if u == "https://example.com/sitemap.xml" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("循环引用的站点地图被抓取了 %d 次", count)
	}
}

func TestSitemapResolver_Failures(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"https://example.com/broken.xml": {contentType: "application/xml", body: "<urlset><url>"},
		"https://example.com/empty.xml":  {contentType: "application/xml", body: "<rss></rss>"},
	}}
	resolver := NewSitemapResolver(fetcher)

	for _, u := range []string{
		"https://example.com/missing.xml",
		"https://example.com/broken.xml",
		"https://example.com/empty.xml",
	} {
		t.Run(u, func(t *testing.T) {
			if got := resolver.Resolve(context.Background(), u); len(got) != 0 {
				t.Errorf("期望空结果, 得到 %v", got)
			}
		})
	}
}
