package utils

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// MemorySample 一次内存采样
type MemorySample struct {
	HeapMB        float64 // 当前进程堆内存(MB)
	SystemUsedPct float64 // 系统内存占用百分比, 获取失败时为0
}

// RunStats 单次运行的计时和内存统计
// 每次运行各自持有一个实例,不使用全局计数器
type RunStats struct {
	mu        sync.Mutex
	startTime time.Time
	lastTick  time.Time
	count     int
	peakHeap  float64
	now       func() time.Time
}

// NewRunStats 创建统计器并开始计时
func NewRunStats() *RunStats {
	return newRunStatsWithClock(time.Now)
}

func newRunStatsWithClock(now func() time.Time) *RunStats {
	start := now()
	return &RunStats{
		startTime: start,
		lastTick:  start,
		now:       now,
	}
}

// Tick 记录一个单元(URL/分块/文档)完成
// 返回该单元耗时和到目前为止的平均耗时
func (s *RunStats) Tick() (elapsed, average time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	elapsed = now.Sub(s.lastTick)
	s.lastTick = now
	s.count++
	average = now.Sub(s.startTime) / time.Duration(s.count)
	return elapsed, average
}

// Count 已完成的单元数
func (s *RunStats) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Elapsed 从开始到现在的总耗时
func (s *RunStats) Elapsed() time.Duration {
	return s.now().Sub(s.startTime)
}

// SampleMemory 采样内存并更新峰值
func (s *RunStats) SampleMemory() MemorySample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	sample := MemorySample{
		HeapMB: float64(ms.HeapAlloc) / (1024 * 1024),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		sample.SystemUsedPct = vm.UsedPercent
	} else {
		Debugf("获取系统内存失败: %v", err)
	}

	s.mu.Lock()
	if sample.HeapMB > s.peakHeap {
		s.peakHeap = sample.HeapMB
	}
	s.mu.Unlock()

	return sample
}

// PeakHeapMB 采样到的堆内存峰值
func (s *RunStats) PeakHeapMB() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peakHeap
}
