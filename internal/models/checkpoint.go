package models

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// RunCheckpoint 运行检查点
// 记录未完成运行的进度,用于 --resume 续跑
type RunCheckpoint struct {
	// 运行信息
	RunID       string `json:"run_id"`
	Project     string `json:"project"`
	SessionDir  string `json:"session_dir"`
	OptionsFile string `json:"options_file"`

	// 进度信息
	TotalURLs       int   `json:"total_urls"`
	ChunkSize       int   `json:"chunk_size"`
	NextIndex       int   `json:"next_index"`       // 下一个待处理URL在截取列表中的位置
	CompletedChunks []int `json:"completed_chunks"` // 驱动正常退出的分块
	FailedChunks    []int `json:"failed_chunks"`    // 驱动非零退出或启动失败的分块

	// 时间戳
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointFilename 生成检查点文件名
func CheckpointFilename(project string) string {
	return fmt.Sprintf("checkpoint_%s.json", project)
}

// NewRunCheckpoint 创建新的检查点
func NewRunCheckpoint(project, sessionDir, optionsFile string, totalURLs, chunkSize int) *RunCheckpoint {
	now := time.Now()
	return &RunCheckpoint{
		RunID:           generateID(),
		Project:         project,
		SessionDir:      sessionDir,
		OptionsFile:     optionsFile,
		TotalURLs:       totalURLs,
		ChunkSize:       chunkSize,
		CompletedChunks: []int{},
		FailedChunks:    []int{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// RecordChunk 记录分块处理结果并推进进度
func (c *RunCheckpoint) RecordChunk(index, nextIndex int, ok bool) {
	if ok {
		c.CompletedChunks = append(c.CompletedChunks, index)
	} else {
		c.FailedChunks = append(c.FailedChunks, index)
	}
	c.NextIndex = nextIndex
	c.UpdatedAt = time.Now()
}

// Done 是否所有URL都已交给驱动
func (c *RunCheckpoint) Done() bool {
	return c.NextIndex >= c.TotalURLs
}

// ToJSON 序列化为JSON
func (c *RunCheckpoint) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// FromJSON 从JSON反序列化
func (c *RunCheckpoint) FromJSON(data []byte) error {
	return json.Unmarshal(data, c)
}

// SaveToFile 保存到文件
func (c *RunCheckpoint) SaveToFile(filepath string) error {
	data, err := c.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadCheckpointFromFile 从文件加载
func LoadCheckpointFromFile(filepath string) (*RunCheckpoint, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	var cp RunCheckpoint
	if err := cp.FromJSON(data); err != nil {
		return nil, err
	}

	return &cp, nil
}

func generateID() string {
	return uuid.New().String()
}
