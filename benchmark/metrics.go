// Package benchmark - Detection and classification runs over a dataset, with
// accuracy and timing reports.
package benchmark

import (
	"runtime"
	"time"

	"github.com/nvr-ai/go-detect/profiler"
)

// PerformanceMetrics captures detailed performance data of a run.
type PerformanceMetrics struct {
	Timestamp       time.Time             `json:"timestamp"         yaml:"timestamp"`
	TotalDuration   time.Duration         `json:"total_duration"    yaml:"total_duration"`
	ImagesPerSecond float64               `json:"images_per_second" yaml:"images_per_second"`
	DetectionCount  int                   `json:"detection_count"   yaml:"detection_count"`
	Stages          []profiler.StageStats `json:"stages"            yaml:"stages"`
	MemoryStats     MemoryMetrics         `json:"memory_stats"      yaml:"memory_stats"`
	CPUStats        CPUMetrics            `json:"cpu_stats"         yaml:"cpu_stats"`
}

// MemoryMetrics captures memory usage statistics.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"       yaml:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes" yaml:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"         yaml:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"            yaml:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"  yaml:"heap_alloc_bytes"`
}

// CPUMetrics captures CPU usage statistics.
type CPUMetrics struct {
	NumCPU  int `json:"num_cpu" yaml:"num_cpu"`
	Workers int `json:"workers" yaml:"workers"`
}

// memorySnapshot reads the runtime counters.
func memorySnapshot() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

// newMemoryMetrics reports usage at end and allocation since start.
func newMemoryMetrics(start, end runtime.MemStats) MemoryMetrics {
	return MemoryMetrics{
		AllocBytes:      end.Alloc,
		TotalAllocBytes: end.TotalAlloc - start.TotalAlloc,
		SysBytes:        end.Sys,
		NumGC:           end.NumGC - start.NumGC,
		HeapAllocBytes:  end.HeapAlloc,
	}
}
