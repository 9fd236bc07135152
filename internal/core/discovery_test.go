package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/RecoveryAshes/SiteA11y/internal/crawlers"
	"github.com/RecoveryAshes/SiteA11y/internal/models"
)

type fakeSitemaps map[string][]string

func (f fakeSitemaps) Resolve(ctx context.Context, sitemapURL string) []string {
	return f[sitemapURL]
}

type fakeSite struct {
	result *crawlers.CrawlResult
	err    error
	seeds  []string
}

func (f *fakeSite) Crawl(ctx context.Context, seed string) (*crawlers.CrawlResult, error) {
	f.seeds = append(f.seeds, seed)
	return f.result, f.err
}

func TestBuildRunOptions(t *testing.T) {
	sitemaps := fakeSitemaps{
		"https://example.com/sitemap.xml": {"https://example.com/b", "https://example.com/", "https://example.com/a"},
		"https://example.com/extra.xml":   {"https://example.com/a#frag", "https://example.com/c"},
	}
	site := &fakeSite{result: &crawlers.CrawlResult{
		HTMLURLs:   []string{"https://example.com/d", "https://example.com/b"},
		PDFURLs:    []string{"https://example.com/x.pdf", "https://example.com/x.pdf#page=2"},
		OfficeURLs: []string{"https://example.com/y.docx"},
		OtherURLs: []models.OtherURL{
			{URL: "https://example.com/z.png", ContentType: "image/png"},
			{URL: "https://example.com/logo.png", ContentType: "image/png"},
			{URL: "https://example.com/z.png", ContentType: "image/png"},
		},
	}}

	in := DiscoveryInput{
		BaseURL:     "https://example.com",
		SitemapURLs: []string{"https://example.com/sitemap.xml", "https://example.com/extra.xml"},
		Crawl:       true,
		WPLogin:     models.WPLogin{URL: "https://example.com/wp-login.php", Username: "admin", Password: "pw"},
	}

	opts, err := BuildRunOptions(context.Background(), in, sitemaps, site)
	if err != nil {
		t.Fatalf("BuildRunOptions() 失败: %v", err)
	}

	wantTest := []string{
		"https://example.com/",
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
		"https://example.com/d",
	}
	if !reflect.DeepEqual(opts.TestURLs, wantTest) {
		t.Errorf("testUrls = %v, 期望 %v", opts.TestURLs, wantTest)
	}
	if !reflect.DeepEqual(opts.PDFURLs, []string{"https://example.com/x.pdf"}) {
		t.Errorf("pdfUrls = %v", opts.PDFURLs)
	}
	if len(opts.OtherNonHTMLURLs) != 2 || opts.OtherNonHTMLURLs[0].URL != "https://example.com/logo.png" {
		t.Errorf("otherNonHtmlUrls = %v", opts.OtherNonHTMLURLs)
	}
	if opts.WPLogin == nil || opts.WPLogin.Username != "admin" {
		t.Error("完整的wpLogin应写入配置")
	}
	if len(site.seeds) != 1 || site.seeds[0] != "https://example.com/" {
		t.Errorf("爬取种子应为规范化的基础URL: %v", site.seeds)
	}
}

func TestBuildRunOptions_BaseOnly(t *testing.T) {
	site := &fakeSite{}
	opts, err := BuildRunOptions(context.Background(), DiscoveryInput{
		BaseURL: "https://example.com/start#x",
		WPLogin: models.WPLogin{Username: "admin"},
	}, fakeSitemaps{}, site)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(opts.TestURLs, []string{"https://example.com/start"}) {
		t.Errorf("testUrls = %v", opts.TestURLs)
	}
	if len(site.seeds) != 0 {
		t.Error("未开启爬取时不应调用爬取器")
	}
	if opts.WPLogin != nil {
		t.Error("不完整的wpLogin不应写入配置")
	}
	if len(opts.PDFURLs) != 0 || len(opts.MSOfficeURLs) != 0 {
		t.Error("未爬取时文档列表应为空")
	}
}

func TestBuildRunOptions_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   DiscoveryInput
		site *fakeSite
	}{
		{"基础URL无效", DiscoveryInput{BaseURL: "example.com"}, &fakeSite{}},
		{"站点地图URL无效", DiscoveryInput{BaseURL: "https://example.com", SitemapURLs: []string{"ftp://x"}}, &fakeSite{}},
		{"只有密码", DiscoveryInput{BaseURL: "https://example.com", HTTPPassword: "pw"}, &fakeSite{}},
		{"爬取失败", DiscoveryInput{BaseURL: "https://example.com", Crawl: true}, &fakeSite{err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildRunOptions(context.Background(), tt.in, fakeSitemaps{}, tt.site); err == nil {
				t.Error("期望返回错误")
			}
		})
	}
}

func TestBuildRunOptions_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildRunOptions(ctx, DiscoveryInput{
		BaseURL:     "https://example.com",
		SitemapURLs: []string{"https://example.com/sitemap.xml"},
	}, fakeSitemaps{}, &fakeSite{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("期望 context.Canceled, 得到 %v", err)
	}
}
