package utils

import (
	"sort"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

// 与浏览器 URL 解析保持一致的解析器
var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// NormalizeURL 规范化URL
// 可解析的绝对URL: 去掉片段(#...)并输出规范字符串 (协议/主机小写, 去默认端口, 空路径补 /)
// 不可解析的输入原样返回,不报错
func NormalizeURL(raw string) string {
	u, err := urlParser.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Href(true)
}

// URLKey 返回去重键
func URLKey(raw string) string {
	return NormalizeURL(raw)
}

// DedupeURLs 规范化后去重,按字典序升序返回
func DedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	result := make([]string, 0, len(urls))
	for _, u := range urls {
		key := NormalizeURL(u)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}

// ResolveURL 以 base 为基准解析引用,返回规范化后的绝对URL
func ResolveURL(base, ref string) (string, error) {
	u, err := urlParser.ParseRef(base, ref)
	if err != nil {
		return "", err
	}
	return u.Href(true), nil
}

// URLHostname 返回URL的主机名 (不含端口),解析失败返回空串
func URLHostname(raw string) string {
	u, err := urlParser.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// URLPathname 返回URL的路径部分,解析失败返回空串
func URLPathname(raw string) string {
	u, err := urlParser.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Pathname()
}

// IsHTTPURL 判断是否为 http/https 绝对URL
func IsHTTPURL(raw string) bool {
	u, err := urlParser.Parse(raw)
	if err != nil {
		return false
	}
	scheme := u.Protocol()
	return scheme == "http:" || scheme == "https:"
}
