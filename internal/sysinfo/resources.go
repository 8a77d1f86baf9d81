package sysinfo

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Usage is one resource sample for a running process.
type Usage struct {
	CPUPercent    float64
	MemoryPercent float64
}

// ProcSampler reads per-process resource usage from the OS.
type ProcSampler struct {
	// CPU is measured over this interval; one sample blocks for its duration.
	CPUInterval time.Duration
}

func NewProcSampler() *ProcSampler {
	return &ProcSampler{CPUInterval: time.Second}
}

// Sample returns current CPU and memory percentages for pid. A PID that
// cannot be found is an error, not a zero reading.
func (p *ProcSampler) Sample(ctx context.Context, pid int32) (Usage, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return Usage{}, fmt.Errorf("process %d: %w", pid, err)
	}

	cpu, err := proc.PercentWithContext(ctx, p.CPUInterval)
	if err != nil {
		return Usage{}, fmt.Errorf("cpu percent for pid %d: %w", pid, err)
	}

	mem, err := proc.MemoryPercentWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("memory percent for pid %d: %w", pid, err)
	}

	return Usage{CPUPercent: cpu, MemoryPercent: float64(mem)}, nil
}
