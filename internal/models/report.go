package models

import (
	"encoding/json"
	"time"
)

// ChunkResult 单个分块的执行结果
type ChunkResult struct {
	Index       int       `json:"index"`
	Start       int       `json:"start"` // 分块在截取列表中的起始位置
	Size        int       `json:"size"`
	ExitCode    int       `json:"exit_code"`
	Error       string    `json:"error,omitempty"`
	Screenshots int       `json:"screenshots"`
	Duration    float64   `json:"duration"` // 秒
	ProcessedAt time.Time `json:"processed_at"`
}

// Success 驱动是否正常退出
func (r ChunkResult) Success() bool {
	return r.ExitCode == 0 && r.Error == ""
}

// StageResult 后处理阶段结果
type StageResult struct {
	Name     string  `json:"name"`
	Skipped  bool    `json:"skipped"`
	Duration float64 `json:"duration"` // 秒
}

// RunSummary 运行摘要 (写入会话目录的 run-summary.json)
type RunSummary struct {
	RunID      string `json:"run_id"`
	Project    string `json:"project"`
	SessionDir string `json:"session_dir"`
	Resumed    bool   `json:"resumed"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	TotalURLs    int `json:"total_urls"`
	TotalChunks  int `json:"total_chunks"`
	SuccessCount int `json:"success_count"`
	FailCount    int `json:"fail_count"`
	Screenshots  int `json:"screenshots"`

	Chunks []ChunkResult `json:"chunks"`
	Stages []StageResult `json:"stages"`

	PeakMemoryMB float64 `json:"peak_memory_mb"`
}

// ToJSON 序列化为JSON
func (r *RunSummary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *RunSummary) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
