package crawlers

import (
	"regexp"
	"strings"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
)

var (
	// officeFilePattern Office文档扩展名,允许带查询串
	officeFilePattern = regexp.MustCompile(`(?i)\.(doc|docx|docm|dotx|dotm|xls|xlsx|xlsm|xltx|xltm|xlsb|ppt|pptx|pptm|potx|potm|ppsx)(\?.*)?$`)

	// officePathPattern 页面内链接的Office扩展名 (只看路径)
	officePathPattern = regexp.MustCompile(`(?i)\.(doc|docx|docm|dotx|dotm|xls|xlsx|xlsm|xltx|xltm|xlsb|ppt|pptx|pptm|potx|potm|ppsx)$`)
)

// ClassifyResource 根据响应头和URL路径对资源分类
// 优先级: HTML > PDF > Office > 其他,每个URL只落入一个类别
func ClassifyResource(contentType, contentDisposition, urlPath string) models.ResourceClass {
	switch {
	case strings.Contains(contentType, "text/html"):
		return models.ResourceHTML
	case isPDF(contentType, contentDisposition, urlPath):
		return models.ResourcePDF
	case officeFilePattern.MatchString(contentDisposition) || officeFilePattern.MatchString(urlPath):
		return models.ResourceOffice
	default:
		return models.ResourceOther
	}
}

func isPDF(contentType, contentDisposition, urlPath string) bool {
	return strings.Contains(contentType, "application/pdf") ||
		strings.Contains(contentDisposition, ".pdf") ||
		strings.HasSuffix(urlPath, ".pdf")
}

// IsPDFPath 判断链接路径是否指向PDF (不区分大小写)
func IsPDFPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

// IsOfficePath 判断链接路径是否指向Office文档
func IsOfficePath(path string) bool {
	return officePathPattern.MatchString(path)
}
