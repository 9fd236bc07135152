package crawlers

import (
	"bytes"
	"compress/flate"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	ctxKeyResponse = "fetch_response"
	ctxKeyHeaders  = "fetch_headers"
	ctxKeyStatus   = "fetch_status"
	ctxKeyFinalURL = "fetch_final_url"
)

// FetchConfig 抓取器配置
type FetchConfig struct {
	Timeout            time.Duration // 单次请求超时
	MaxBodySize        int           // 响应体上限(字节), 0 表示colly默认值
	RateLimit          float64       // 每秒请求数, 0 表示不限速
	InsecureSkipVerify bool          // 跳过TLS证书验证
	HTTPUser           string        // HTTP基本认证
	HTTPPassword       string
}

// DefaultFetchConfig 默认抓取配置
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:            5 * time.Second,
		MaxBodySize:        10 * 1024 * 1024,
		InsecureSkipVerify: true,
	}
}

// FetchResult 一次GET请求的结果
type FetchResult struct {
	URL        string      // 请求的URL
	FinalURL   string      // 跟随重定向后的URL
	StatusCode int
	Header     http.Header
	Body       []byte // BodyFilter 拒绝时为nil
}

// ContentType 响应的Content-Type
func (r *FetchResult) ContentType() string {
	return r.Header.Get("Content-Type")
}

// ContentDisposition 响应的Content-Disposition
func (r *FetchResult) ContentDisposition() string {
	return r.Header.Get("Content-Disposition")
}

// BodyFilter 根据响应头决定是否下载响应体
type BodyFilter func(header http.Header) bool

// HTMLOnly 只下载HTML响应体
func HTMLOnly(header http.Header) bool {
	return strings.Contains(header.Get("Content-Type"), "text/html")
}

// Fetcher 基于Colly的同步抓取器
// 一次只有一个请求在途,供站点爬取和站点地图解析使用
type Fetcher struct {
	ctx            context.Context
	collector      *colly.Collector
	config         FetchConfig
	headerProvider models.HeaderProvider
	limiter        *rate.Limiter
	bodyFilter     BodyFilter
}

// NewFetcher 创建抓取器
// ctx 取消后在途请求会被中断,后续 Fetch 直接返回错误
func NewFetcher(ctx context.Context, config FetchConfig, headerProvider models.HeaderProvider) (*Fetcher, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultFetchConfig().Timeout
	}

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if config.MaxBodySize > 0 {
		c.MaxBodySize = config.MaxBodySize
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("创建Cookie容器失败: %w", err)
	}
	c.SetCookieJar(jar)

	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: config.Timeout,
	})
	c.SetRequestTimeout(config.Timeout)

	f := &Fetcher{
		ctx:            ctx,
		collector:      c,
		config:         config,
		headerProvider: headerProvider,
	}
	if config.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
		utils.Debugf("抓取限速: %.2f 请求/秒", config.RateLimit)
	}

	f.setupCallbacks()
	return f, nil
}

// SetBodyFilter 设置响应体过滤器
func (f *Fetcher) SetBodyFilter(filter BodyFilter) {
	f.bodyFilter = filter
}

func (f *Fetcher) setupCallbacks() {
	f.collector.OnResponseHeaders(func(r *colly.Response) {
		r.Ctx.Put(ctxKeyHeaders, r.Headers.Clone())
		r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		r.Ctx.Put(ctxKeyFinalURL, r.Request.URL.String())

		// 非目标类型只需要响应头即可分类
		if f.bodyFilter != nil && r.StatusCode < 300 && !f.bodyFilter(*r.Headers) {
			r.Request.Abort()
		}
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxKeyResponse, r)
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if errors.Is(err, colly.ErrAbortedAfterHeaders) {
			return
		}
		utils.Debugf("抓取错误 [%s]: %v", r.Request.URL, err)
	})
}

// Fetch 发起GET请求
// 网络错误、超时和非2xx状态均返回错误,由调用方决定如何降级
func (f *Fetcher) Fetch(rawURL string) (*FetchResult, error) {
	if err := f.ctx.Err(); err != nil {
		return nil, err
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(f.ctx); err != nil {
			return nil, err
		}
	}

	hdr, err := f.requestHeaders()
	if err != nil {
		return nil, err
	}

	cctx := colly.NewContext()
	reqErr := f.collector.Request(http.MethodGet, rawURL, nil, cctx, hdr)
	if reqErr != nil && !errors.Is(reqErr, colly.ErrAbortedAfterHeaders) {
		return nil, fmt.Errorf("请求失败: %w", reqErr)
	}

	result := &FetchResult{URL: rawURL, FinalURL: rawURL}
	if status, ok := cctx.GetAny(ctxKeyStatus).(int); ok {
		result.StatusCode = status
	}
	if header, ok := cctx.GetAny(ctxKeyHeaders).(http.Header); ok {
		result.Header = header
	} else {
		result.Header = http.Header{}
	}
	if finalURL, ok := cctx.GetAny(ctxKeyFinalURL).(string); ok && finalURL != "" {
		result.FinalURL = finalURL
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP状态码异常: %d", result.StatusCode)
	}

	if resp, ok := cctx.GetAny(ctxKeyResponse).(*colly.Response); ok {
		result.Body = resp.Body
		if encoding := resp.Headers.Get("Content-Encoding"); encoding != "" {
			body, err := decompressBody(encoding, resp.Body)
			if err != nil {
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", rawURL, encoding, err)
			} else {
				result.Body = body
			}
		}
	}

	return result, nil
}

// requestHeaders 合并请求头并附加基本认证
func (f *Fetcher) requestHeaders() (http.Header, error) {
	hdr := http.Header{}
	if f.headerProvider != nil {
		headers, err := f.headerProvider.GetHeaders()
		if err != nil {
			return nil, fmt.Errorf("获取HTTP头部失败: %w", err)
		}
		for name, values := range headers {
			if len(values) > 0 {
				hdr.Set(name, values[0])
			}
		}
	}
	if f.config.HTTPUser != "" {
		req := &http.Request{Header: hdr}
		req.SetBasicAuth(f.config.HTTPUser, f.config.HTTPPassword)
	}
	return hdr, nil
}

// decompressBody 根据Content-Encoding解压响应体
// gzip 已由colly解压,这里只处理 deflate 和 br
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	default:
		return body, nil
	}
}
