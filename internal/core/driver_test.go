package core

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("依赖 POSIX shell")
	}
}

func TestExpandArgs(t *testing.T) {
	args := []string{"node", "run.js", "--options={options}", "{reports}", "{unknown}"}
	got := expandArgs(args, map[string]string{
		"options": "/tmp/o.json",
		"reports": "/tmp/reports",
	})
	want := []string{"node", "run.js", "--options=/tmp/o.json", "/tmp/reports", "{unknown}"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expandArgs() = %v, 期望 %v", got, want)
	}
	if args[2] != "--options={options}" {
		t.Error("原参数不应被修改")
	}
}

func TestNewProcessDriver_Empty(t *testing.T) {
	if _, err := NewProcessDriver("   ", 0); err == nil {
		t.Error("空命令应报错")
	}
}

func TestProcessDriver_RunChunk(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	script := filepath.Join(dir, "driver.sh")
	content := "#!/bin/sh\n" +
		"echo \"$1|$SITEA11Y_OPTIONS|$SITEA11Y_REPORTS|$SITEA11Y_SCREENSHOTS\"\n" +
		"exit \"$2\"\n"
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}

	req := ChunkRequest{Index: 0, OptionsPath: "/w/chunk.json", ReportsDir: "/w/reports", ScreenshotsDir: "/w/shots"}

	tests := []struct {
		name     string
		exit     string
		wantCode int
	}{
		{"正常退出", "0", 0},
		{"非零退出", "3", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, err := NewProcessDriver(script+" {options} "+tt.exit, 0)
			if err != nil {
				t.Fatal(err)
			}
			var out bytes.Buffer
			driver.stdout = &out

			code, err := driver.RunChunk(context.Background(), req)
			if err != nil {
				t.Fatalf("RunChunk() 错误: %v", err)
			}
			if code != tt.wantCode {
				t.Errorf("退出码 = %d, 期望 %d", code, tt.wantCode)
			}
			want := "/w/chunk.json|/w/chunk.json|/w/reports|/w/shots"
			if strings.TrimSpace(out.String()) != want {
				t.Errorf("驱动输出 = %q, 期望 %q", out.String(), want)
			}
		})
	}
}

func TestProcessDriver_LaunchFailure(t *testing.T) {
	driver, err := NewProcessDriver(filepath.Join(t.TempDir(), "no-such-driver"), 0)
	if err != nil {
		t.Fatal(err)
	}
	code, err := driver.RunChunk(context.Background(), ChunkRequest{})
	if err == nil || code != -1 {
		t.Errorf("无法启动时应返回 -1 和错误, 得到 %d, %v", code, err)
	}
}

func TestProcessDriver_Timeout(t *testing.T) {
	skipOnWindows(t)

	driver, err := NewProcessDriver("sleep 5", 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	code, err := driver.RunChunk(context.Background(), ChunkRequest{})
	if err == nil || code != -1 {
		t.Errorf("超时应返回 -1 和错误, 得到 %d, %v", code, err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("超时后应终止驱动进程")
	}
}

func TestRunCommand(t *testing.T) {
	skipOnWindows(t)

	out, err := runCommand(context.Background(), "echo {html}", map[string]string{"html": "a.html"}, time.Second)
	if err != nil || strings.TrimSpace(string(out)) != "a.html" {
		t.Errorf("runCommand() = %q, %v", out, err)
	}

	if _, err := runCommand(context.Background(), "false", nil, time.Second); err == nil {
		t.Error("非零退出应返回错误")
	}
	if _, err := runCommand(context.Background(), "", nil, time.Second); err == nil {
		t.Error("空命令应返回错误")
	}
}
