package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// 驱动进程的环境变量
const (
	EnvDriverOptions     = "SITEA11Y_OPTIONS"
	EnvDriverReports     = "SITEA11Y_REPORTS"
	EnvDriverScreenshots = "SITEA11Y_SCREENSHOTS"
)

// ChunkRequest 一次分块驱动调用的输入
type ChunkRequest struct {
	Index          int
	OptionsPath    string // 分块配置文件
	ReportsDir     string // 增量日志所在目录
	ScreenshotsDir string // 截图暂存目录
}

// ChunkDriver 逐URL测试驱动
// 返回驱动退出码; 只有无法启动驱动时才返回错误
type ChunkDriver interface {
	RunChunk(ctx context.Context, req ChunkRequest) (int, error)
}

// ProcessDriver 以外部进程方式运行驱动
type ProcessDriver struct {
	args    []string
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
}

// NewProcessDriver 根据命令模板创建驱动
// 模板按空白拆分后逐个参数替换 {options} {reports} {screenshots}
func NewProcessDriver(command string, timeout time.Duration) (*ProcessDriver, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, fmt.Errorf("驱动命令为空")
	}
	return &ProcessDriver{
		args:    args,
		timeout: timeout,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}, nil
}

// NewBuiltinDriver 使用本程序的 drive 子命令作为驱动
func NewBuiltinDriver(configPath string, timeout time.Duration) (*ProcessDriver, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("无法定位可执行文件: %w", err)
	}

	args := []string{exe, "drive",
		"--options", "{options}",
		"--reports", "{reports}",
		"--screenshots", "{screenshots}",
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return &ProcessDriver{
		args:    args,
		timeout: timeout,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}, nil
}

// RunChunk 运行一个分块
func (d *ProcessDriver) RunChunk(ctx context.Context, req ChunkRequest) (int, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	args := expandArgs(d.args, map[string]string{
		"options":     req.OptionsPath,
		"reports":     req.ReportsDir,
		"screenshots": req.ScreenshotsDir,
	})

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = d.stdout
	cmd.Stderr = d.stderr
	cmd.Env = append(os.Environ(),
		EnvDriverOptions+"="+req.OptionsPath,
		EnvDriverReports+"="+req.ReportsDir,
		EnvDriverScreenshots+"="+req.ScreenshotsDir,
	)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return -1, fmt.Errorf("分块 %d 超时 (%s)", req.Index+1, d.timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("启动驱动失败: %w", err)
}

// expandArgs 替换参数中的 {name} 占位符
func expandArgs(args []string, vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	replacer := strings.NewReplacer(pairs...)

	expanded := make([]string, len(args))
	for i, arg := range args {
		expanded[i] = replacer.Replace(arg)
	}
	return expanded
}

// runCommand 运行带超时的外部命令并返回标准输出
// 非零退出时同时返回已捕获的输出和错误
func runCommand(ctx context.Context, template string, vars map[string]string, timeout time.Duration) ([]byte, error) {
	args := expandArgs(strings.Fields(template), vars)
	if len(args) == 0 {
		return nil, fmt.Errorf("命令为空")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out, fmt.Errorf("%s 超时 (%s)", args[0], timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s 执行失败: %w: %s", args[0], err, msg)
		}
		return out, fmt.Errorf("%s 执行失败: %w", args[0], err)
	}
	return out, nil
}
