package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
)

// sessionTimeFormat 会话目录名格式 (UTC)
const sessionTimeFormat = "20060102150405"

// Session 一次运行的报告会话目录
// 布局: <reportRoot>/<project>/<YYYYMMDDhhmmss>/
type Session struct {
	Project   string
	Dir       string
	CreatedAt time.Time
}

// NewSession 在报告根目录下创建新的会话目录
func NewSession(reportRoot, project string, now time.Time) (*Session, error) {
	now = now.UTC()
	dir := filepath.Join(reportRoot, project, now.Format(sessionTimeFormat))
	s := &Session{Project: project, Dir: dir, CreatedAt: now}
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSession 重新打开已有的会话目录 (续跑时使用)
func OpenSession(project, dir string) (*Session, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("会话目录不存在 [%s]: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("会话路径不是目录: %s", dir)
	}

	s := &Session{Project: project, Dir: dir}
	if t, err := time.Parse(sessionTimeFormat, filepath.Base(dir)); err == nil {
		s.CreatedAt = t
	} else {
		s.CreatedAt = info.ModTime().UTC()
	}
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) ensureDirs() error {
	if err := os.MkdirAll(s.ScreenshotsDir(), 0755); err != nil {
		return fmt.Errorf("创建会话目录失败: %w", err)
	}
	return nil
}

// OptionsPath 会话中保存的运行配置副本
func (s *Session) OptionsPath() string {
	return filepath.Join(s.Dir, "options.json")
}

// ScreenshotsDir 会话截图目录
func (s *Session) ScreenshotsDir() string {
	return filepath.Join(s.Dir, "screenshots")
}

// SummaryPath 运行摘要文件
func (s *Session) SummaryPath() string {
	return filepath.Join(s.Dir, "run-summary.json")
}

// SaveOptions 把解析后的运行配置复制到会话目录
func (s *Session) SaveOptions(opts *models.RunOptions) error {
	if err := opts.SaveToFile(s.OptionsPath()); err != nil {
		return fmt.Errorf("保存会话配置失败: %w", err)
	}
	return nil
}
