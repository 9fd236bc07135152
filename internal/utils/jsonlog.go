package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
)

// IncrementalLog 只追加的JSON数组日志
// 文件在运行过程中始终是未闭合的数组: "[\n" 加若干 "<json>,\n"
// 写入方从不回读文件,进程崩溃时已写入的记录保留在磁盘上
type IncrementalLog struct {
	path     string
	category models.LogCategory
	mu       sync.Mutex
}

// NewIncrementalLog 创建增量日志
func NewIncrementalLog(path string, category models.LogCategory) *IncrementalLog {
	return &IncrementalLog{
		path:     path,
		category: category,
	}
}

// Path 日志文件路径
func (l *IncrementalLog) Path() string {
	return l.path
}

// Open 创建(或截断)日志文件并写入数组开头
func (l *IncrementalLog) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.WriteFile(l.path, []byte("[\n"), 0644); err != nil {
		return fmt.Errorf("初始化日志文件失败 [%s]: %w", l.path, err)
	}
	return nil
}

// Exists 日志文件是否已存在
func (l *IncrementalLog) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Append 以追加模式写入一条记录
func (l *IncrementalLog) Append(record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化日志记录失败: %w", err)
	}
	data = append(data, ',', '\n')
	return l.appendRaw(data)
}

// Finalize 写入结束标记,使文件成为合法JSON数组
func (l *IncrementalLog) Finalize() error {
	return l.appendRaw([]byte(l.category.Sentinel()))
}

func (l *IncrementalLog) appendRaw(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 不带 O_CREATE: 未初始化的日志写入后将缺少数组开头
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("打开日志文件失败 [%s]: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("写入日志文件失败 [%s]: %w", l.path, err)
	}
	return nil
}

// LogSet 一个报告目录下的五类增量日志
type LogSet struct {
	dir  string
	logs map[models.LogCategory]*IncrementalLog
}

// NewLogSet 创建日志集合
func NewLogSet(dir string) *LogSet {
	logs := make(map[models.LogCategory]*IncrementalLog, len(models.AllLogCategories))
	for _, category := range models.AllLogCategories {
		logs[category] = NewIncrementalLog(filepath.Join(dir, category.FileName()), category)
	}
	return &LogSet{dir: dir, logs: logs}
}

// Dir 报告目录
func (s *LogSet) Dir() string {
	return s.dir
}

// Log 返回指定类别的日志
func (s *LogSet) Log(category models.LogCategory) *IncrementalLog {
	return s.logs[category]
}

// Init 创建目录并初始化全部日志 (会截断已有内容)
func (s *LogSet) Init() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}
	for _, category := range models.AllLogCategories {
		if err := s.logs[category].Open(); err != nil {
			return err
		}
	}
	return nil
}

// Ensure 只初始化尚不存在的日志,已有内容保持不变
func (s *LogSet) Ensure() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}
	for _, category := range models.AllLogCategories {
		log := s.logs[category]
		if log.Exists() {
			continue
		}
		if err := log.Open(); err != nil {
			return err
		}
	}
	return nil
}

// Append 向指定类别追加记录
func (s *LogSet) Append(category models.LogCategory, record interface{}) error {
	log, ok := s.logs[category]
	if !ok {
		return fmt.Errorf("未知的日志类别: %s", category)
	}
	return log.Append(record)
}

// Finalize 给全部日志写入结束标记
func (s *LogSet) Finalize() error {
	var errs []error
	for _, category := range models.AllLogCategories {
		if err := s.logs[category].Finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadLogArray 读取已收尾的日志文件
func ReadLogArray(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取日志文件失败 [%s]: %w", path, err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("日志文件不是合法JSON数组 [%s]: %w", path, err)
	}
	return entries, nil
}
