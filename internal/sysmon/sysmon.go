// Package sysmon periodically logs host resource usage, grounded on the
// teacher's internal/metrics.SystemMetrics: gopsutil for actual CPU
// percentage (not just Go runtime stats), smoothed with an exponential
// moving average to avoid single-sample spikes. This is pure
// observability — nothing in the recorder or player reads from it.
package sysmon

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Monitor samples CPU and memory on an interval and logs the result.
type Monitor struct {
	logger   zerolog.Logger
	interval time.Duration
	cpuEMA   float64
}

// New creates a Monitor that logs through logger every interval.
func New(logger zerolog.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{logger: logger, interval: interval}
}

// Run samples on m.interval until ctx is cancelled. Intended to run in its
// own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var hostMemPercent float64
	if vm, err := mem.VirtualMemory(); err == nil {
		hostMemPercent = vm.UsedPercent
	}

	if cpuPercents, err := cpu.Percent(0, false); err == nil && len(cpuPercents) > 0 {
		if m.cpuEMA == 0 {
			m.cpuEMA = cpuPercents[0]
		} else {
			const alpha = 0.3
			m.cpuEMA = alpha*cpuPercents[0] + (1-alpha)*m.cpuEMA
		}
	}

	m.logger.Info().
		Float64("cpu_percent", m.cpuEMA).
		Float64("host_mem_percent", hostMemPercent).
		Uint64("heap_alloc_bytes", memStats.HeapAlloc).
		Int("goroutines", runtime.NumGoroutine()).
		Msg("system resource sample")
}
