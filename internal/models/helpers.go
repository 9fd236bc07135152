package models

import (
	"fmt"
	"net/url"
	"regexp"
)

// projectNamePattern 项目名只能包含字母、数字、下划线、点和连字符
var projectNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// ValidateProjectName 验证项目名 (用作报告目录名)
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("项目名不能为空")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("无效的项目名: %s", name)
	}
	if !projectNamePattern.MatchString(name) {
		return fmt.Errorf("项目名只能包含字母、数字、'_'、'.'、'-': %s", name)
	}
	return nil
}
