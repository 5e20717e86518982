package engine

import (
	"runtime"
	"sync"
	"time"

	"github.com/otto-ai/otto/internal/tools"
)

// Collector accumulates dispatch metrics for the lifetime of an engine.
// Safe for concurrent use; grouped dispatches record from many
// goroutines at once.
type Collector struct {
	mu            sync.Mutex
	startTime     time.Time
	dispatchCount int64
	failureCount  int64
	totalDuration time.Duration
	perTool       map[string]int64
}

// Snapshot is a point-in-time view of engine activity.
type Snapshot struct {
	Uptime        time.Duration    `json:"uptime"`
	DispatchCount int64            `json:"dispatch_count"`
	FailureCount  int64            `json:"failure_count"`
	AvgDurationMs int64            `json:"avg_duration_ms"`
	PerTool       map[string]int64 `json:"per_tool"`
	Goroutines    int              `json:"goroutines"`
	MemoryMB      float64          `json:"memory_mb"`
}

func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		perTool:   make(map[string]int64),
	}
}

func (c *Collector) recordDispatch(toolName string, res *tools.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dispatchCount++
	if !res.Success {
		c.failureCount++
	}
	c.totalDuration += res.EndTime.Sub(res.StartTime)
	c.perTool[toolName]++
}

// Snapshot returns current counters plus process-level gauges.
func (c *Collector) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var avgMs int64
	if c.dispatchCount > 0 {
		avgMs = (c.totalDuration / time.Duration(c.dispatchCount)).Milliseconds()
	}

	perTool := make(map[string]int64, len(c.perTool))
	for name, n := range c.perTool {
		perTool[name] = n
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return &Snapshot{
		Uptime:        time.Since(c.startTime),
		DispatchCount: c.dispatchCount,
		FailureCount:  c.failureCount,
		AvgDurationMs: avgMs,
		PerTool:       perTool,
		Goroutines:    runtime.NumGoroutine(),
		MemoryMB:      bytesToMB(mem.Alloc),
	}
}

func bytesToMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
