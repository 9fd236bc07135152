package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// 空配置文件只使用默认值
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() 失败: %v", err)
	}
	if cfg.Run.ChunkSize != 50 {
		t.Errorf("默认分块大小 = %d", cfg.Run.ChunkSize)
	}
	if cfg.Driver.Screenshots != "errors" || !cfg.Driver.Headless {
		t.Errorf("驱动默认值错误: %+v", cfg.Driver)
	}
	if !cfg.Documents.PDF.Enabled || cfg.Documents.PDF.Converter == "" {
		t.Error("PDF处理默认应开启")
	}
	if cfg.FetchConfig().Timeout != 5*time.Second {
		t.Errorf("抓取超时 = %v", cfg.FetchConfig().Timeout)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `run:
  chunk_size: 10
  work_dir: /tmp/work
driver:
  screenshots: all
  inject_scripts:
    - axe.min.js
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SITEA11Y_CRAWL_MAX_URLS", "500")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() 失败: %v", err)
	}
	if cfg.Run.ChunkSize != 10 || cfg.Driver.Screenshots != "all" {
		t.Errorf("配置文件未生效: %+v", cfg.Run)
	}
	if cfg.Crawl.MaxURLs != 500 {
		t.Errorf("环境变量未生效: max_urls = %d", cfg.Crawl.MaxURLs)
	}
	if len(cfg.PageDriverConfig().InjectScripts) != 1 {
		t.Error("注入脚本未传递给驱动配置")
	}
	if cfg.StagingReportsDir() != filepath.Join("/tmp/work", "reports") {
		t.Errorf("StagingReportsDir() = %s", cfg.StagingReportsDir())
	}
	if cfg.CheckpointPath("site") != filepath.Join("/tmp/work", "checkpoint_site.json") {
		t.Errorf("CheckpointPath() = %s", cfg.CheckpointPath("site"))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"分块大小为0", "run:\n  chunk_size: 0\n"},
		{"无效截图模式", "driver:\n  screenshots: sometimes\n"},
		{"负数URL上限", "crawl:\n  max_urls: -1\n"},
		{"负数限速", "crawl:\n  rate_limit: -2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("期望配置校验失败")
			}
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("指定的配置文件不存在时应报错")
	}
}
