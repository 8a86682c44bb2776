// Package resource supervises the shared GPU/host resources the
// transcription pipeline depends on: it absorbs GPU_OOM failures without
// tearing down a session, releases scratch caches when that happens, and
// reports host memory pressure and pipeline metrics.
package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/shirou/gopsutil/v3/mem"

	"asr_server/internal/capability"
	"asr_server/internal/logger"
)

// MemoryStats is a snapshot of host memory usage, logged alongside every
// GPU_OOM event to help diagnose whether the host itself is under
// pressure (GPU VRAM isn't directly observable through gopsutil, so host
// RSS stands in as the supervisor's resource-pressure signal).
type MemoryStats struct {
	UsedPercent float64
	UsedBytes   uint64
	TotalBytes  uint64
}

// Supervisor owns the scratch cache shared by capability implementations
// and turns capability.ErrOOM into a structured, session-surviving
// outcome: the buffer that triggered it is skipped, nothing else stops.
type Supervisor struct {
	scratch        *cache.Cache
	memLogInterval time.Duration
	lastMemLog     time.Time
	metrics        *Metrics
}

// New builds a Supervisor. oomCacheTTL bounds how long released scratch
// entries may live before eviction; memLogInterval throttles host memory
// logging so it doesn't fire on every buffer.
func New(oomCacheTTL, memLogInterval time.Duration, metrics *Metrics) *Supervisor {
	return &Supervisor{
		scratch:        cache.New(oomCacheTTL, 2*oomCacheTTL),
		memLogInterval: memLogInterval,
		metrics:        metrics,
	}
}

// ScratchCache exposes the shared cache so capability implementations can
// stash reusable scratch buffers keyed by size class, instead of
// allocating fresh ones on every call.
func (s *Supervisor) ScratchCache() *cache.Cache {
	return s.scratch
}

// HandleError inspects an error returned from a pipeline stage. If it
// wraps capability.ErrOOM, the supervisor logs host memory stats, clears
// the scratch cache to release held buffers, records the OOM metric, and
// returns a wrapped error the caller uses to skip the buffer and continue
// the session. Any other error is returned unchanged.
func (s *Supervisor) HandleError(ctx context.Context, bufferID string, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, capability.ErrOOM) {
		return err
	}

	stats, statErr := HostMemoryStats()
	if statErr != nil {
		logger.Error("gpu_oom_host_stats_unavailable", "buffer_id", bufferID, "error", statErr)
	} else {
		logger.Error("gpu_oom_buffer_skipped", "buffer_id", bufferID,
			"host_mem_used_percent", stats.UsedPercent,
			"host_mem_used_bytes", stats.UsedBytes,
			"host_mem_total_bytes", stats.TotalBytes)
	}

	s.scratch.Flush()
	logger.Info("gpu_scratch_cache_released", "buffer_id", bufferID)

	if s.metrics != nil {
		s.metrics.RecordOOM(ctx)
	}

	return fmt.Errorf("resource: buffer %s skipped after GPU_OOM: %w", bufferID, err)
}

// LogHostMemoryIfDue logs current host memory usage at most once per
// memLogInterval, so periodic health reporting doesn't flood logs.
func (s *Supervisor) LogHostMemoryIfDue() {
	if time.Since(s.lastMemLog) < s.memLogInterval {
		return
	}
	s.lastMemLog = time.Now()

	stats, err := HostMemoryStats()
	if err != nil {
		logger.Warn("host_memory_stats_failed", "error", err)
		return
	}
	logger.Info("host_memory_usage", "used_percent", stats.UsedPercent,
		"used_bytes", stats.UsedBytes, "total_bytes", stats.TotalBytes)
}

// HostMemoryStats reads current host virtual memory usage.
func HostMemoryStats() (MemoryStats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemoryStats{}, fmt.Errorf("resource: read host memory: %w", err)
	}
	return MemoryStats{
		UsedPercent: vm.UsedPercent,
		UsedBytes:   vm.Used,
		TotalBytes:  vm.Total,
	}, nil
}
