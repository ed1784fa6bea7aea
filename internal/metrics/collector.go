package metrics

import (
	"context"
	"runtime"
	"time"
)

// StartRuntimeMetricsCollector starts a goroutine that periodically collects and updates runtime metrics.
// It returns a function that can be called to stop the collector.
func StartRuntimeMetricsCollector(ctx context.Context, interval time.Duration) func() {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	collectorCtx, cancel := context.WithCancel(ctx)

	go collectRuntimeMetrics(collectorCtx, interval)

	return func() {
		cancel()
	}
}

// collectRuntimeMetrics periodically updates runtime metrics
func collectRuntimeMetrics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateRuntimeMetrics()
		}
	}
}

// updateRuntimeMetrics updates all runtime metrics with current values
func updateRuntimeMetrics() {
	GoroutinesCount.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	MemoryAllocBytes.Set(float64(memStats.Alloc))
	HeapAllocBytes.Set(float64(memStats.HeapAlloc))
	GCPauseNanosTotal.Set(float64(memStats.PauseTotalNs))
}
