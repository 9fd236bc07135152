package main

import (
	"fmt"

	"github.com/RecoveryAshes/SiteA11y/internal/crawlers"
	"github.com/RecoveryAshes/SiteA11y/internal/models"
)

// ValidateURL 验证URL格式
func ValidateURL(urlStr string) error {
	return models.ValidateURL(urlStr)
}

// ValidateDiscoveryFlags 验证发现参数
func ValidateDiscoveryFlags(f *discoveryFlags) error {
	if f.baseURL == "" {
		return fmt.Errorf("缺少基础URL (--base-url)")
	}
	if err := ValidateURL(f.baseURL); err != nil {
		return fmt.Errorf("无效的基础URL: %w", err)
	}
	for _, s := range f.sitemaps {
		if err := ValidateURL(s); err != nil {
			return fmt.Errorf("无效的站点地图URL [%s]: %w", s, err)
		}
	}

	// WordPress 登录参数要么全部提供, 要么全部省略
	wpSet := 0
	for _, v := range []string{f.wpLoginURL, f.wpUsername, f.wpPassword} {
		if v != "" {
			wpSet++
		}
	}
	if wpSet != 0 && wpSet != 3 {
		return fmt.Errorf("--wp-login-url, --wp-username, --wp-password 必须同时提供")
	}
	if f.wpLoginURL != "" {
		if err := ValidateURL(f.wpLoginURL); err != nil {
			return fmt.Errorf("无效的WordPress登录URL: %w", err)
		}
	}
	return nil
}

// ValidateProject 验证项目名
func ValidateProject(project string) error {
	if project == "" {
		return fmt.Errorf("缺少项目名 (--project)")
	}
	return models.ValidateProjectName(project)
}

// ValidateDocumentKind 验证文档类别参数
func ValidateDocumentKind(kind string) error {
	switch kind {
	case "pdf", "msoffice", "all":
		return nil
	}
	return fmt.Errorf("无效的文档类别: %s (有效值: pdf, msoffice, all)", kind)
}

// ValidateScreenshotMode 验证截图模式参数
func ValidateScreenshotMode(mode string) error {
	switch mode {
	case "", crawlers.ScreenshotNone, crawlers.ScreenshotErrors, crawlers.ScreenshotAll:
		return nil
	}
	return fmt.Errorf("无效的截图模式: %s (有效值: none, errors, all)", mode)
}
