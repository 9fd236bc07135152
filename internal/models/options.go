package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WPLogin WordPress登录凭据
// 三个字段必须同时存在,否则整个登录配置视为缺失
type WPLogin struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Complete 判断登录凭据是否完整
func (w *WPLogin) Complete() bool {
	return w != nil && w.URL != "" && w.Username != "" && w.Password != ""
}

// OtherURL 既不是HTML也不是文档的资源
type OtherURL struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// RunOptions 发现配置文件 (options.json)
// 同时也是交给测试驱动的分块配置: 仅 TestURLs 被替换为当前分块
type RunOptions struct {
	BaseURL          string     `json:"baseUrl"`
	SitemapURLs      []string   `json:"sitemapUrls"`
	HTTPUser         string     `json:"httpUser,omitempty"`
	HTTPPassword     string     `json:"httpPassword,omitempty"`
	WPLogin          *WPLogin   `json:"wpLogin,omitempty"`
	TestURLs         []string   `json:"testUrls"`
	PDFURLs          []string   `json:"pdfUrls,omitempty"`
	MSOfficeURLs     []string   `json:"msOfficeUrls,omitempty"`
	OtherNonHTMLURLs []OtherURL `json:"otherNonHtmlUrls,omitempty"`
	StartIndex       *int       `json:"startIndex,omitempty"`
	EndIndex         *int       `json:"endIndex,omitempty"`
}

// Validate 校验配置的基本完整性
func (o *RunOptions) Validate() error {
	if o.BaseURL == "" {
		return fmt.Errorf("配置缺少 baseUrl")
	}
	if err := ValidateURL(o.BaseURL); err != nil {
		return fmt.Errorf("baseUrl 无效: %w", err)
	}
	if len(o.TestURLs) == 0 {
		return fmt.Errorf("配置中没有待测试的URL (testUrls 为空)")
	}
	if o.WPLogin != nil && !o.WPLogin.Complete() {
		return fmt.Errorf("wpLogin 必须同时包含 url, username, password")
	}
	return nil
}

// SelectedURLs 按 startIndex/endIndex 截取 testUrls
// 越界的索引会被夹到合法范围内,负数按从末尾计算; endIndex 为0时截取到末尾
func (o *RunOptions) SelectedURLs() []string {
	n := len(o.TestURLs)
	start, end := 0, n
	if o.StartIndex != nil {
		start = clampIndex(*o.StartIndex, n)
	}
	if o.EndIndex != nil && *o.EndIndex != 0 {
		end = clampIndex(*o.EndIndex, n)
	}
	if start >= end {
		return []string{}
	}
	return o.TestURLs[start:end]
}

// SelectionOffset 返回截取范围在完整列表中的起始位置
func (o *RunOptions) SelectionOffset() int {
	if o.StartIndex == nil {
		return 0
	}
	return clampIndex(*o.StartIndex, len(o.TestURLs))
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			return 0
		}
	}
	if i > n {
		return n
	}
	return i
}

// WithChunk 复制配置并把 testUrls 替换为给定分块
// 分块已是截取后的结果, 不再携带 startIndex/endIndex
func (o *RunOptions) WithChunk(urls []string) *RunOptions {
	chunk := *o
	chunk.TestURLs = append([]string(nil), urls...)
	chunk.StartIndex = nil
	chunk.EndIndex = nil
	return &chunk
}

// ToJSON 序列化为JSON
func (o *RunOptions) ToJSON() ([]byte, error) {
	return json.MarshalIndent(o, "", "  ")
}

// SaveToFile 保存到文件
func (o *RunOptions) SaveToFile(path string) error {
	data, err := o.ToJSON()
	if err != nil {
		return fmt.Errorf("序列化运行配置失败: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// LoadRunOptions 从文件加载运行配置
func LoadRunOptions(path string) (*RunOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{FilePath: path, Cause: err}
	}

	var opts RunOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, &ConfigError{FilePath: path, Cause: fmt.Errorf("解析JSON失败: %w", err)}
	}
	return &opts, nil
}
