package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostPoller reads CPU and memory utilization of the local machine through
// gopsutil. The benchmark level is derived once from the logical core count.
type HostPoller struct {
	once      sync.Once
	benchmark float64
}

// NewHostPoller creates a HostPoller.
func NewHostPoller() *HostPoller {
	return &HostPoller{}
}

// Poll samples CPU usage since the previous call and current memory usage.
func (h *HostPoller) Poll(ctx context.Context) (Reading, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Reading{}, fmt.Errorf("read cpu usage: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("read memory usage: %w", err)
	}

	h.once.Do(func() {
		cores, err := cpu.CountsWithContext(ctx, true)
		if err != nil {
			cores = 0
		}
		h.benchmark = BenchmarkForCores(cores)
	})

	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}
	memPct := vm.UsedPercent
	benchmark := h.benchmark
	return Reading{
		CPUPct:         &cpuPct,
		MemPct:         &memPct,
		BenchmarkLevel: &benchmark,
	}, nil
}

// BenchmarkForCores maps a logical core count to a 0-100 capability score.
func BenchmarkForCores(cores int) float64 {
	switch {
	case cores >= 8:
		return 80
	case cores >= 4:
		return 50
	case cores >= 2:
		return 30
	case cores == 1:
		return 15
	}
	return 50
}
