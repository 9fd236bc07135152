package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/SiteA11y/internal/crawlers"
	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Crawl     CrawlConfig     `mapstructure:"crawl" yaml:"crawl"`
	Run       RunConfig       `mapstructure:"run" yaml:"run"`
	Driver    DriverConfig    `mapstructure:"driver" yaml:"driver"`
	Documents DocumentsConfig `mapstructure:"documents" yaml:"documents"`
	Report    ReportConfig    `mapstructure:"report" yaml:"report"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// CrawlConfig 发现阶段配置
type CrawlConfig struct {
	TimeoutSeconds     int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxURLs            int     `mapstructure:"max_urls" yaml:"max_urls"`
	RateLimit          float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	MaxBodyMB          int     `mapstructure:"max_body_mb" yaml:"max_body_mb"`
	InsecureSkipVerify bool    `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	HeadersFile        string  `mapstructure:"headers_file" yaml:"headers_file"`
}

// RunConfig 批量运行配置
type RunConfig struct {
	ReportRoot string `mapstructure:"report_root" yaml:"report_root"`
	WorkDir    string `mapstructure:"work_dir" yaml:"work_dir"`
	ChunkSize  int    `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// DriverConfig 逐URL测试驱动配置
type DriverConfig struct {
	// Command 外部驱动命令模板, 支持 {options} {reports} {screenshots} 占位符
	// 为空时使用内置的 drive 子命令
	Command             string   `mapstructure:"command" yaml:"command"`
	Headless            bool     `mapstructure:"headless" yaml:"headless"`
	BrowserBin          string   `mapstructure:"browser_bin" yaml:"browser_bin"`
	PageTimeoutSeconds  int      `mapstructure:"page_timeout_seconds" yaml:"page_timeout_seconds"`
	SettleMillis        int      `mapstructure:"settle_ms" yaml:"settle_ms"`
	Screenshots         string   `mapstructure:"screenshots" yaml:"screenshots"`
	InjectScripts       []string `mapstructure:"inject_scripts" yaml:"inject_scripts"`
	AuditFunction       string   `mapstructure:"audit_function" yaml:"audit_function"`
	ViewportWidth       int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight      int      `mapstructure:"viewport_height" yaml:"viewport_height"`
	ChunkTimeoutMinutes int      `mapstructure:"chunk_timeout_minutes" yaml:"chunk_timeout_minutes"`
}

// DocumentsConfig 文档处理配置
type DocumentsConfig struct {
	ConvertTimeoutSeconds  int            `mapstructure:"convert_timeout_seconds" yaml:"convert_timeout_seconds"`
	DownloadTimeoutSeconds int            `mapstructure:"download_timeout_seconds" yaml:"download_timeout_seconds"`
	TestTimeoutSeconds     int            `mapstructure:"test_timeout_seconds" yaml:"test_timeout_seconds"`
	PDF                    DocumentConfig `mapstructure:"pdf" yaml:"pdf"`
	MSOffice               DocumentConfig `mapstructure:"msoffice" yaml:"msoffice"`
}

// DocumentConfig 单类文档的转换和测试命令
// 占位符: {input} 下载的文件, {base} 不带扩展名的输出路径, {outdir} 输出目录, {html} 转换后的HTML
type DocumentConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Converter string `mapstructure:"converter" yaml:"converter"`
	Tester    string `mapstructure:"tester" yaml:"tester"`
}

// ReportConfig HTML报告生成命令
type ReportConfig struct {
	// Command 为空时跳过, 支持 {reports} {session} 占位符
	Command string `mapstructure:"command" yaml:"command"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level" yaml:"level"`
	LogDir   string         `mapstructure:"log_dir" yaml:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// LoadConfig 加载配置文件
// 优先级: 默认值 < 配置文件 < 环境变量 (SITEA11Y_ 前缀, 可写在 .env 中)
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 添加配置搜索路径
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sitea11y"))
		}
	}

	// 环境变量覆盖: crawl.max_urls -> SITEA11Y_CRAWL_MAX_URLS
	v.SetEnvPrefix("SITEA11Y")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在,使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 发现阶段默认值
	v.SetDefault("crawl.timeout_seconds", 5)
	v.SetDefault("crawl.max_urls", 0)
	v.SetDefault("crawl.rate_limit", 0)
	v.SetDefault("crawl.max_body_mb", 10)
	v.SetDefault("crawl.insecure_skip_verify", true)
	v.SetDefault("crawl.headers_file", "")

	// 运行默认值
	v.SetDefault("run.report_root", "reports")
	v.SetDefault("run.work_dir", ".sitea11y")
	v.SetDefault("run.chunk_size", 50)

	// 驱动默认值
	v.SetDefault("driver.command", "")
	v.SetDefault("driver.headless", true)
	v.SetDefault("driver.browser_bin", "")
	v.SetDefault("driver.page_timeout_seconds", 30)
	v.SetDefault("driver.settle_ms", 500)
	v.SetDefault("driver.screenshots", crawlers.ScreenshotErrors)
	v.SetDefault("driver.inject_scripts", []string{})
	v.SetDefault("driver.audit_function", "")
	v.SetDefault("driver.viewport_width", 1280)
	v.SetDefault("driver.viewport_height", 720)
	v.SetDefault("driver.chunk_timeout_minutes", 0)

	// 文档处理默认值
	v.SetDefault("documents.convert_timeout_seconds", 60)
	v.SetDefault("documents.download_timeout_seconds", 120)
	v.SetDefault("documents.test_timeout_seconds", 120)
	v.SetDefault("documents.pdf.enabled", true)
	v.SetDefault("documents.pdf.converter", "pdftohtml -s -i -noframes -q {input} {base}")
	v.SetDefault("documents.pdf.tester", "")
	v.SetDefault("documents.msoffice.enabled", true)
	v.SetDefault("documents.msoffice.converter", "soffice --headless --convert-to html --outdir {outdir} {input}")
	v.SetDefault("documents.msoffice.tester", "")

	// 报告默认值
	v.SetDefault("report.command", "")

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.Run.ChunkSize < 1 {
		return fmt.Errorf("run.chunk_size 必须大于0, 当前值: %d", c.Run.ChunkSize)
	}
	if c.Crawl.TimeoutSeconds < 1 {
		return fmt.Errorf("crawl.timeout_seconds 必须大于0, 当前值: %d", c.Crawl.TimeoutSeconds)
	}
	if c.Crawl.MaxURLs < 0 {
		return fmt.Errorf("crawl.max_urls 不能为负数, 当前值: %d", c.Crawl.MaxURLs)
	}
	if c.Crawl.RateLimit < 0 {
		return fmt.Errorf("crawl.rate_limit 不能为负数, 当前值: %.2f", c.Crawl.RateLimit)
	}
	switch c.Driver.Screenshots {
	case crawlers.ScreenshotNone, crawlers.ScreenshotErrors, crawlers.ScreenshotAll:
	default:
		return fmt.Errorf("无效的截图模式: %s (有效值: none, errors, all)", c.Driver.Screenshots)
	}
	if c.Documents.ConvertTimeoutSeconds < 1 {
		return fmt.Errorf("documents.convert_timeout_seconds 必须大于0")
	}
	return nil
}

// FetchConfig 转换为抓取器配置
func (c *Config) FetchConfig() crawlers.FetchConfig {
	return crawlers.FetchConfig{
		Timeout:            time.Duration(c.Crawl.TimeoutSeconds) * time.Second,
		MaxBodySize:        c.Crawl.MaxBodyMB * 1024 * 1024,
		RateLimit:          c.Crawl.RateLimit,
		InsecureSkipVerify: c.Crawl.InsecureSkipVerify,
	}
}

// PageDriverConfig 转换为内置驱动配置
func (c *Config) PageDriverConfig() crawlers.PageDriverConfig {
	return crawlers.PageDriverConfig{
		Headless:       c.Driver.Headless,
		BrowserBin:     c.Driver.BrowserBin,
		PageTimeout:    time.Duration(c.Driver.PageTimeoutSeconds) * time.Second,
		SettleTime:     time.Duration(c.Driver.SettleMillis) * time.Millisecond,
		Screenshots:    c.Driver.Screenshots,
		InjectScripts:  c.Driver.InjectScripts,
		AuditFunction:  c.Driver.AuditFunction,
		ViewportWidth:  c.Driver.ViewportWidth,
		ViewportHeight: c.Driver.ViewportHeight,
	}
}

// StagingReportsDir 驱动写入增量日志的暂存目录
func (c *Config) StagingReportsDir() string {
	return filepath.Join(c.Run.WorkDir, "reports")
}

// StagingScreenshotsDir 驱动写入截图的暂存目录
func (c *Config) StagingScreenshotsDir() string {
	return filepath.Join(c.Run.WorkDir, "screenshots")
}

// ChunkOptionsPath 分块配置文件路径
func (c *Config) ChunkOptionsPath() string {
	return filepath.Join(c.Run.WorkDir, "chunk-options.json")
}

// CheckpointPath 检查点文件路径
func (c *Config) CheckpointPath(project string) string {
	return filepath.Join(c.Run.WorkDir, models.CheckpointFilename(project))
}
