package utils

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
)

// SensitiveKeywords 敏感头部名称关键字
var SensitiveKeywords = []string{
	"authorization",
	"cookie",
	"token",
	"key",
	"secret",
	"password",
	"credential",
}

const redacted = "***"

// HeaderRedactor 日志输出前的脱敏
type HeaderRedactor struct {
	sensitiveKeywords []string
}

// NewHeaderRedactor 创建脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{sensitiveKeywords: SensitiveKeywords}
}

// IsSensitiveHeader 头部名称是否包含敏感关键字
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range hr.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// RedactHeaderValue 脱敏单个头部值
func (hr *HeaderRedactor) RedactHeaderValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}
	for _, scheme := range []string{"Bearer ", "Basic "} {
		if strings.HasPrefix(value, scheme) {
			return scheme + redacted
		}
	}
	if len(value) > 8 {
		return value[:4] + redacted + value[len(value)-4:]
	}
	return redacted
}

// Redact 返回脱敏后的头部 (每个头部只取第一个值)
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = hr.RedactHeaderValue(name, values[0])
	}
	return result
}

// RedactToString 脱敏后按名称排序拼成一行
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	safe := hr.Redact(headers)
	names := make([]string, 0, len(safe))
	for name := range safe {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+safe[name])
	}
	return strings.Join(parts, ", ")
}

// RedactURL 隐藏URL中的用户信息
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User(redacted)
	return u.String()
}

// RedactOptions 返回隐藏了密码的运行配置副本, 用于日志和终端输出
func RedactOptions(opts *models.RunOptions) *models.RunOptions {
	if opts == nil {
		return nil
	}
	safe := *opts
	if safe.HTTPPassword != "" {
		safe.HTTPPassword = redacted
	}
	if opts.WPLogin != nil {
		login := *opts.WPLogin
		if login.Password != "" {
			login.Password = redacted
		}
		safe.WPLogin = &login
	}
	return &safe
}
