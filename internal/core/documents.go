package core

import (
	"compress/gzip"
	"context"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
	"github.com/andybalholm/brotli"
)

// DocumentKind 文档类别
type DocumentKind struct {
	Name       string             // pdf | msoffice, 同时是产物目录名
	Category   models.LogCategory // 引用记录所在的日志
	Field      string             // 引用记录中保存文档URL的字段
	DefaultExt string
}

var (
	PDFDocuments = DocumentKind{
		Name:       "pdf",
		Category:   models.LogPDF,
		Field:      "pdf",
		DefaultExt: ".pdf",
	}
	OfficeDocuments = DocumentKind{
		Name:       "msoffice",
		Category:   models.LogMSOffice,
		Field:      "msoffice",
		DefaultExt: ".docx",
	}
)

// DocumentProcessorConfig 文档处理配置
type DocumentProcessorConfig struct {
	Converter       string
	Tester          string
	ConvertTimeout  time.Duration
	DownloadTimeout time.Duration
	TestTimeout     time.Duration
	ReportsDir      string // 读取引用日志、写入结果文件
	ArtifactDir     string // 下载和转换产物目录
	HTTPUser        string
	HTTPPassword    string
	Insecure        bool
}

// DocumentSummary 文档处理统计
type DocumentSummary struct {
	Kind      string
	Total     int
	Converted int
	Tested    int
	Failed    int
}

// DocumentProcessor 逐个下载、转换并测试文档
type DocumentProcessor struct {
	kind   DocumentKind
	config DocumentProcessorConfig
	client *http.Client
	stats  *utils.RunStats
}

// NewDocumentProcessor 创建文档处理器
func NewDocumentProcessor(kind DocumentKind, config DocumentProcessorConfig, stats *utils.RunStats) *DocumentProcessor {
	if stats == nil {
		stats = utils.NewRunStats()
	}
	transport := &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		TLSClientConfig:    &tls.Config{InsecureSkipVerify: config.Insecure},
		DisableCompression: true,
	}
	return &DocumentProcessor{
		kind:   kind,
		config: config,
		client: &http.Client{Transport: transport, Timeout: config.DownloadTimeout},
		stats:  stats,
	}
}

// ResultsPath <kind>-results.json
func (p *DocumentProcessor) ResultsPath() string {
	return filepath.Join(p.config.ReportsDir, p.kind.Name+"-results.json")
}

// CSVPath <kind>-results.csv
func (p *DocumentProcessor) CSVPath() string {
	return filepath.Join(p.config.ReportsDir, p.kind.Name+"-results.csv")
}

// Process 处理引用日志中的全部文档
// 单个文档失败只跳过该文档; 只有读取日志或写结果失败时返回错误
func (p *DocumentProcessor) Process(ctx context.Context) (*DocumentSummary, error) {
	urls, err := p.documentURLs()
	if err != nil {
		return nil, err
	}

	summary := &DocumentSummary{Kind: p.kind.Name, Total: len(urls)}
	utils.Infof("📄 测试 %d 个 %s 文档", len(urls), p.kind.Name)

	if err := os.MkdirAll(p.config.ArtifactDir, 0755); err != nil {
		return nil, fmt.Errorf("创建文档目录失败: %w", err)
	}

	results := make([]models.DocumentResult, 0, len(urls))
	for i, docURL := range urls {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		utils.Infof("处理文档: %d/%d %s", i+1, len(urls), docURL)
		result, converted, err := p.processDocument(ctx, docURL)
		if converted {
			summary.Converted++
		}
		if err != nil {
			summary.Failed++
			utils.Errorf("❌ 文档处理失败 [%s]: %v", docURL, err)
		} else if result != nil {
			summary.Tested++
			results = append(results, *result)
		}

		sample := p.stats.SampleMemory()
		utils.Infof("内存占用: %.2f MB", sample.HeapMB)
	}

	if err := utils.SaveJSON(p.ResultsPath(), results); err != nil {
		return summary, err
	}
	if err := writeCSV(p.CSVPath(), documentCSVFields, documentRows(results)); err != nil {
		return summary, err
	}

	utils.Infof("✅ %s 文档处理完成: 转换 %d, 测试 %d, 失败 %d",
		p.kind.Name, summary.Converted, summary.Tested, summary.Failed)
	return summary, nil
}

// documentURLs 展开引用日志并去重
func (p *DocumentProcessor) documentURLs() ([]string, error) {
	entries, err := utils.ReadLogArray(filepath.Join(p.config.ReportsDir, p.kind.Category.FileName()))
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0)
	for _, raw := range entries {
		var refs []map[string]string
		if err := json.Unmarshal(raw, &refs); err != nil {
			utils.Warnf("跳过无法解析的文档引用: %v", err)
			continue
		}
		for _, ref := range refs {
			if u := ref[p.kind.Field]; u != "" {
				urls = append(urls, u)
			}
		}
	}
	return utils.DedupeURLs(urls), nil
}

// processDocument 下载、转换、测试单个文档
// 返回值 converted 表示转换是否成功
func (p *DocumentProcessor) processDocument(ctx context.Context, docURL string) (*models.DocumentResult, bool, error) {
	base := filepath.Join(p.config.ArtifactDir, documentBaseName(docURL))
	input := base + p.documentExt(docURL)

	if err := p.download(ctx, docURL, input); err != nil {
		return nil, false, err
	}
	utils.Infof("文件大小: %.3f MB", utils.FileSizeMB(input))

	htmlPath, err := p.convert(ctx, input, base)
	if err != nil {
		return nil, false, err
	}

	if p.config.Tester == "" {
		return nil, true, nil
	}

	data, err := p.test(ctx, htmlPath, docURL)
	if err != nil {
		return nil, true, err
	}
	return &models.DocumentResult{
		CurrentURL:  docURL,
		CurrentTest: "accessibility",
		Data:        data,
	}, true, nil
}

// download 把文档流式写入本地文件
func (p *DocumentProcessor) download(ctx context.Context, docURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return fmt.Errorf("创建下载请求失败: %w", err)
	}
	req.Header.Set("Accept-Encoding", "gzip, br")
	if p.config.HTTPUser != "" {
		req.SetBasicAuth(p.config.HTTPUser, p.config.HTTPPassword)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("下载失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("下载失败: HTTP %d", resp.StatusCode)
	}

	body, err := decodedBody(resp)
	if err != nil {
		return err
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return f.Close()
}

// decodedBody 按 Content-Encoding 解压响应体
func decodedBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("解压gzip失败: %w", err)
		}
		return gz, nil
	default:
		return resp.Body, nil
	}
}

// convert 调用转换命令生成 <base>.html
func (p *DocumentProcessor) convert(ctx context.Context, input, base string) (string, error) {
	htmlPath := base + ".html"
	_, err := runCommand(ctx, p.config.Converter, map[string]string{
		"input":  input,
		"base":   base,
		"outdir": p.config.ArtifactDir,
		"html":   htmlPath,
	}, p.config.ConvertTimeout)
	if err != nil {
		return "", fmt.Errorf("转换失败: %w", err)
	}

	if _, err := os.Stat(htmlPath); err != nil {
		return "", fmt.Errorf("转换完成但未找到输出文件: %s", htmlPath)
	}
	return htmlPath, nil
}

// test 调用测试命令, 其标准输出必须是JSON
// 测试工具发现问题时通常以非零状态退出, 只要输出可解析就接受
func (p *DocumentProcessor) test(ctx context.Context, htmlPath, docURL string) (json.RawMessage, error) {
	out, runErr := runCommand(ctx, p.config.Tester, map[string]string{
		"html": htmlPath,
		"url":  docURL,
	}, p.config.TestTimeout)

	out = []byte(strings.TrimSpace(string(out)))
	if len(out) == 0 || !json.Valid(out) {
		if runErr != nil {
			return nil, fmt.Errorf("测试失败: %w", runErr)
		}
		return nil, fmt.Errorf("测试工具输出不是合法JSON")
	}

	var report models.DocumentReport
	if err := json.Unmarshal(out, &report); err == nil {
		utils.Infof("发现 %d 个问题", len(report.Issues))
	}
	return json.RawMessage(out), nil
}

// documentExt 根据URL路径确定文件扩展名
func (p *DocumentProcessor) documentExt(docURL string) string {
	ext := strings.ToLower(path.Ext(utils.URLPathname(docURL)))
	if ext == "" || len(ext) > 6 {
		return p.kind.DefaultExt
	}
	return ext
}

// documentBaseName URL的md5前8位
func documentBaseName(docURL string) string {
	sum := md5.Sum([]byte(docURL))
	return hex.EncodeToString(sum[:])[:8]
}
