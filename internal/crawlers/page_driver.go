package crawlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/gocolly/colly/v2"
)

// 截图模式
const (
	ScreenshotNone   = "none"
	ScreenshotErrors = "errors"
	ScreenshotAll    = "all"
)

// linkCollectorJS 收集 a/img/script/link 上的链接
const linkCollectorJS = `() => Array.from(document.querySelectorAll('a, img, script, link'))
	.map(el => { const v = el.href || el.src; return typeof v === 'string' ? v : ''; })
	.filter(Boolean)`

// PageDriverConfig 页面驱动配置
type PageDriverConfig struct {
	Headless       bool
	BrowserBin     string        // 为空时由launcher自动查找或下载
	PageTimeout    time.Duration // 单个页面导航+加载超时
	SettleTime     time.Duration // 页面加载后的额外等待
	Screenshots    string        // none|errors|all
	InjectScripts  []string      // 每个页面加载后注入的脚本文件
	AuditFunction  string        // 返回违规数组的JS函数, 为空则不做页面检查
	ViewportWidth  int
	ViewportHeight int
}

// DefaultPageDriverConfig 默认页面驱动配置
func DefaultPageDriverConfig() PageDriverConfig {
	return PageDriverConfig{
		Headless:       true,
		PageTimeout:    30 * time.Second,
		SettleTime:     500 * time.Millisecond,
		Screenshots:    ScreenshotErrors,
		ViewportWidth:  1280,
		ViewportHeight: 720,
	}
}

// DriveSummary 一次驱动运行的结果
type DriveSummary struct {
	Total       int
	Tested      int
	Failed      int
	Redirects   int
	Exceptions  int
	Screenshots int
	Duration    float64 // 秒
}

// PageDriver 内置的逐URL测试驱动 (无头Chrome)
// 读取分块配置,依次访问每个URL,把结果写入增量日志
type PageDriver struct {
	options       *models.RunOptions
	config        PageDriverConfig
	logs          *utils.LogSet
	screenshotDir string

	browser  *rod.Browser
	launcher *launcher.Launcher
	scripts  []string

	// 异常监听在后台goroutine中写入
	mu         sync.Mutex
	currentURL string
	errorLog   []models.PageException

	loggedIn bool
	stats    *utils.RunStats
}

// NewPageDriver 创建页面驱动
func NewPageDriver(options *models.RunOptions, config PageDriverConfig, logs *utils.LogSet, screenshotDir string) *PageDriver {
	if config.PageTimeout <= 0 {
		config.PageTimeout = DefaultPageDriverConfig().PageTimeout
	}
	switch config.Screenshots {
	case ScreenshotNone, ScreenshotErrors, ScreenshotAll:
	default:
		config.Screenshots = ScreenshotErrors
	}
	return &PageDriver{
		options:       options,
		config:        config,
		logs:          logs,
		screenshotDir: screenshotDir,
	}
}

// Run 依次测试分块中的全部URL
// 只有浏览器无法启动时返回错误,单个页面失败只记录日志
func (d *PageDriver) Run(ctx context.Context) (*DriveSummary, error) {
	summary := &DriveSummary{Total: len(d.options.TestURLs)}
	d.stats = utils.NewRunStats()

	if err := d.logs.Ensure(); err != nil {
		return summary, err
	}
	if err := os.MkdirAll(d.screenshotDir, 0755); err != nil {
		return summary, fmt.Errorf("创建截图目录失败: %w", err)
	}
	if err := d.loadScripts(); err != nil {
		return summary, err
	}

	if err := d.launchBrowser(ctx); err != nil {
		return summary, err
	}
	defer d.closeBrowser()

	page, err := d.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return summary, fmt.Errorf("创建页面失败: %w", err)
	}
	defer page.Close()

	if d.config.ViewportWidth > 0 && d.config.ViewportHeight > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             d.config.ViewportWidth,
			Height:            d.config.ViewportHeight,
			DeviceScaleFactor: 1,
		}).Call(page); err != nil {
			utils.Debugf("设置视口失败: %v", err)
		}
	}

	if d.options.HTTPUser != "" {
		token := base64.StdEncoding.EncodeToString([]byte(d.options.HTTPUser + ":" + d.options.HTTPPassword))
		if _, err := page.SetExtraHeaders([]string{"Authorization", "Basic " + token}); err != nil {
			utils.Warnf("设置HTTP基本认证失败: %v", err)
		}
	}

	// 捕获页面未处理的脚本异常
	go page.EachEvent(func(e *proto.RuntimeExceptionThrown) {
		d.recordException(e)
	})()

	startTime := time.Now()
	for i, testURL := range d.options.TestURLs {
		if err := ctx.Err(); err != nil {
			utils.Warnf("⚠️  驱动被取消, 已测试 %d/%d 个URL", i, len(d.options.TestURLs))
			break
		}

		utils.Infof("[%d/%d] 测试: %s", i+1, len(d.options.TestURLs), testURL)
		shots, ok := d.testURL(ctx, page, testURL, summary)
		summary.Screenshots += shots
		if ok {
			summary.Tested++
		} else {
			summary.Failed++
		}

		elapsed, average := d.stats.Tick()
		utils.Infof("⏱️  页面耗时: %.2fs (平均: %.2fs)", elapsed.Seconds(), average.Seconds())
	}
	summary.Duration = time.Since(startTime).Seconds()

	utils.Infof("✅ 驱动完成: 成功 %d, 失败 %d, 重定向 %d, 脚本异常 %d",
		summary.Tested, summary.Failed, summary.Redirects, summary.Exceptions)
	return summary, nil
}

// testURL 测试单个URL,返回截图数量和是否成功
func (d *PageDriver) testURL(ctx context.Context, page *rod.Page, testURL string, summary *DriveSummary) (int, bool) {
	if d.options.WPLogin.Complete() && !d.loggedIn {
		if err := d.wpLogin(page); err != nil {
			utils.Warnf("WordPress登录失败: %v", err)
		} else {
			d.loggedIn = true
		}
	}

	d.mu.Lock()
	d.currentURL = testURL
	d.errorLog = nil
	d.mu.Unlock()

	shots := 0
	p := page.Context(ctx).Timeout(d.config.PageTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(testURL); err != nil {
		utils.Errorf("导航失败 [%s]: %v", testURL, err)
		shots += d.screenshot(page, testURL, true)
		return shots, false
	}
	if err := p.WaitLoad(); err != nil {
		utils.Errorf("等待页面加载失败 [%s]: %v", testURL, err)
		shots += d.screenshot(page, testURL, true)
		return shots, false
	}
	if d.config.SettleTime > 0 {
		time.Sleep(d.config.SettleTime)
	}

	pdfRefs, officeRefs := d.collectDocuments(p, testURL)

	violations, auditErr := d.audit(p)
	if auditErr != nil {
		utils.Warnf("页面检查失败 [%s]: %v", testURL, auditErr)
	}

	title := ""
	finalURL := testURL
	if info, err := p.Info(); err == nil {
		title = info.Title
		finalURL = info.URL
	}

	d.appendLog(models.LogResults, models.PageResult{
		CurrentURL: testURL,
		Title:      title,
		Data:       violations,
	})
	if len(violations) > 0 {
		utils.Infof("可访问性问题: %d 条规则", len(violations))
		for _, v := range violations {
			utils.Debugf("  %s: %s", v.ID, v.Description)
		}
	}

	if finalURL != testURL {
		summary.Redirects++
		utils.Infof("↪️  重定向: %s", finalURL)
		d.appendLog(models.LogRedirects, models.Redirect{From: testURL, To: finalURL})
	}

	d.mu.Lock()
	exceptions := d.errorLog
	d.errorLog = nil
	d.mu.Unlock()
	if len(exceptions) > 0 {
		summary.Exceptions += len(exceptions)
		utils.Warnf("脚本异常: %d 个", len(exceptions))
		d.appendLog(models.LogExceptions, exceptions)
	}
	if len(pdfRefs) > 0 {
		utils.Infof("PDF文档: %d 个", len(pdfRefs))
		d.appendLog(models.LogPDF, pdfRefs)
	}
	if len(officeRefs) > 0 {
		utils.Infof("Office文档: %d 个", len(officeRefs))
		d.appendLog(models.LogMSOffice, officeRefs)
	}

	failed := auditErr != nil || len(exceptions) > 0 || len(violations) > 0
	shots += d.screenshot(page, testURL, failed)
	return shots, true
}

// wpLogin 通过登录表单建立WordPress会话
func (d *PageDriver) wpLogin(page *rod.Page) error {
	login := d.options.WPLogin
	utils.Infof("🔑 登录WordPress: %s", login.URL)

	p := page.Timeout(d.config.PageTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(login.URL); err != nil {
		return fmt.Errorf("打开登录页失败: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("等待登录页加载失败: %w", err)
	}

	user, err := p.Element("#user_login")
	if err != nil {
		return fmt.Errorf("未找到用户名输入框: %w", err)
	}
	if err := user.Input(login.Username); err != nil {
		return err
	}
	pass, err := p.Element("#user_pass")
	if err != nil {
		return fmt.Errorf("未找到密码输入框: %w", err)
	}
	if err := pass.Input(login.Password); err != nil {
		return err
	}
	submit, err := p.Element("#wp-submit")
	if err != nil {
		return fmt.Errorf("未找到登录按钮: %w", err)
	}

	wait := p.WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("点击登录按钮失败: %w", err)
	}
	wait()

	info, err := p.Info()
	if err != nil {
		return err
	}
	if strings.Contains(info.URL, "wp-login.php") {
		return fmt.Errorf("登录后仍停留在登录页, 请检查用户名和密码")
	}
	utils.Info("✅ WordPress登录成功")
	return nil
}

// collectDocuments 收集页面引用的PDF和Office文档 (绝对URL, 页面内去重)
func (d *PageDriver) collectDocuments(page *rod.Page, pageURL string) ([]models.PDFReference, []models.OfficeReference) {
	pdfRefs := []models.PDFReference{}
	officeRefs := []models.OfficeReference{}

	res, err := page.Eval(linkCollectorJS)
	if err != nil {
		utils.Warnf("提取页面链接失败 [%s]: %v", pageURL, err)
		return pdfRefs, officeRefs
	}

	seenPDF := make(map[string]bool)
	seenOffice := make(map[string]bool)
	for _, item := range res.Value.Arr() {
		link, err := utils.ResolveURL(pageURL, item.Str())
		if err != nil || !utils.IsHTTPURL(link) {
			continue
		}
		path := utils.URLPathname(link)
		if IsPDFPath(path) && !seenPDF[link] {
			seenPDF[link] = true
			pdfRefs = append(pdfRefs, models.PDFReference{URL: pageURL, PDF: link})
		}
		if IsOfficePath(path) && !seenOffice[link] {
			seenOffice[link] = true
			officeRefs = append(officeRefs, models.OfficeReference{URL: pageURL, MSOffice: link})
		}
	}
	return pdfRefs, officeRefs
}

// audit 注入脚本并执行检查函数
func (d *PageDriver) audit(page *rod.Page) ([]models.RuleViolation, error) {
	violations := []models.RuleViolation{}
	if d.config.AuditFunction == "" {
		return violations, nil
	}

	for _, script := range d.scripts {
		if _, err := page.Eval(script); err != nil {
			return violations, fmt.Errorf("注入脚本失败: %w", err)
		}
	}

	res, err := page.Eval(d.config.AuditFunction)
	if err != nil {
		return violations, err
	}

	if err := res.Value.Unmarshal(&violations); err != nil {
		return []models.RuleViolation{}, fmt.Errorf("检查结果格式错误: %w", err)
	}
	return violations, nil
}

// loadScripts 读取需要注入的脚本,包装成可执行的函数表达式
func (d *PageDriver) loadScripts() error {
	d.scripts = d.scripts[:0]
	for _, path := range d.config.InjectScripts {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("读取注入脚本失败 [%s]: %w", path, err)
		}
		d.scripts = append(d.scripts, "() => {\n"+string(data)+"\n}")
	}
	return nil
}

func (d *PageDriver) recordException(e *proto.RuntimeExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}
	msg := e.ExceptionDetails.Text
	if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
		msg = e.ExceptionDetails.Exception.Description
	}
	if idx := strings.Index(msg, "\n"); idx > 0 {
		msg = msg[:idx]
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.errorLog = append(d.errorLog, models.PageException{URL: d.currentURL, Error: strings.TrimSpace(msg)})
}

func (d *PageDriver) appendLog(category models.LogCategory, record interface{}) {
	if err := d.logs.Append(category, record); err != nil {
		utils.Errorf("写入%s日志失败: %v", category, err)
	}
}

// screenshot 按截图模式保存当前页面
func (d *PageDriver) screenshot(page *rod.Page, pageURL string, failed bool) int {
	switch d.config.Screenshots {
	case ScreenshotAll:
	case ScreenshotErrors:
		if !failed {
			return 0
		}
	default:
		return 0
	}

	sp := page.Timeout(d.config.PageTimeout)
	data, err := sp.Screenshot(true, nil)
	sp.CancelTimeout()
	if err != nil {
		utils.Warnf("截图失败 [%s]: %v", pageURL, err)
		return 0
	}

	name := strings.TrimPrefix(strings.TrimPrefix(pageURL, "https://"), "http://")
	if failed {
		name += " (failed)"
	}
	path := filepath.Join(d.screenshotDir, colly.SanitizeFileName(name)+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		utils.Warnf("保存截图失败 [%s]: %v", path, err)
		return 0
	}
	utils.Debugf("截图已保存: %s", path)
	return 1
}

// launchBrowser 启动浏览器
func (d *PageDriver) launchBrowser(ctx context.Context) error {
	l := launcher.New().Headless(d.config.Headless)
	if d.config.BrowserBin != "" {
		l = l.Bin(d.config.BrowserBin)
	}
	l = l.Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}
	d.launcher = l

	d.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := d.browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return nil
}

// closeBrowser 关闭浏览器
func (d *PageDriver) closeBrowser() {
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			utils.Debugf("关闭浏览器失败: %v", err)
		}
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
	}
	utils.Debugf("浏览器已关闭")
}
