package models

import "encoding/json"

// ResourceClass 爬取资源分类
type ResourceClass string

const (
	ResourceHTML   ResourceClass = "html"
	ResourcePDF    ResourceClass = "pdf"
	ResourceOffice ResourceClass = "office"
	ResourceOther  ResourceClass = "other"
)

// LogCategory 增量日志类别
type LogCategory string

const (
	LogResults    LogCategory = "results"
	LogRedirects  LogCategory = "redirects"
	LogExceptions LogCategory = "exceptions"
	LogPDF        LogCategory = "pdf"
	LogMSOffice   LogCategory = "msoffice"
)

// AllLogCategories 所有增量日志类别
var AllLogCategories = []LogCategory{
	LogResults,
	LogRedirects,
	LogExceptions,
	LogPDF,
	LogMSOffice,
}

// FileName 日志文件名
func (c LogCategory) FileName() string {
	return string(c) + ".json"
}

// Sentinel 结束标记
// 对象型日志以空对象收尾,列表型日志以空列表收尾,保证最终文件是合法JSON数组
func (c LogCategory) Sentinel() string {
	switch c {
	case LogResults, LogRedirects:
		return "{}]"
	default:
		return "[]]"
	}
}

// PageResult 单个页面的测试结果 (results.json 中的一项)
type PageResult struct {
	CurrentURL string          `json:"currentUrl"`
	Title      string          `json:"title,omitempty"`
	Data       []RuleViolation `json:"data"`
}

// RuleViolation 一条规则违规
type RuleViolation struct {
	ID          string          `json:"id"`
	Impact      string          `json:"impact"`
	Tags        []string        `json:"tags"`
	Description string          `json:"description"`
	Help        string          `json:"help"`
	HelpURL     string          `json:"helpUrl"`
	Nodes       []ViolationNode `json:"nodes"`
}

// ViolationNode 违规命中的DOM节点
type ViolationNode struct {
	HTML           string          `json:"html"`
	Target         json.RawMessage `json:"target"`
	FailureSummary string          `json:"failureSummary"`
}

// Redirect 页面重定向
type Redirect struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PageException 页面未捕获的脚本异常
type PageException struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// PDFReference 页面中引用的PDF文档
type PDFReference struct {
	URL string `json:"url"`
	PDF string `json:"pdf"`
}

// OfficeReference 页面中引用的Office文档
type OfficeReference struct {
	URL      string `json:"url"`
	MSOffice string `json:"msoffice"`
}

// DocumentResult 文档可访问性测试结果 (<kind>-results.json 中的一项)
type DocumentResult struct {
	CurrentURL  string          `json:"currentUrl"`
	CurrentTest string          `json:"currentTest"`
	Data        json.RawMessage `json:"data"`
}

// DocumentReport 文档测试工具的输出格式
type DocumentReport struct {
	DocumentTitle string          `json:"documentTitle"`
	PageURL       string          `json:"pageUrl"`
	Issues        []DocumentIssue `json:"issues"`
}

// DocumentIssue 文档测试问题
type DocumentIssue struct {
	Code     string `json:"code"`
	Type     string `json:"type"`
	TypeCode int    `json:"typeCode"`
	Message  string `json:"message"`
	Context  string `json:"context"`
	Selector string `json:"selector"`
}
