package provider

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/yuxishi/service-status-dashboard/internal/model"
	"go.uber.org/zap"
)

const systemFailed = "could not collect system metrics"

// HostSample is one reading of the local host.
type HostSample struct {
	CPUPercent    float64
	RAMPercent    float64
	RAMUsedBytes  uint64
	DiskPercent   float64
	DiskUsedBytes uint64
}

type HostSampler interface {
	Sample(ctx context.Context) (HostSample, error)
}

// GopsutilSampler reads the host through gopsutil. The CPU reading blocks
// for the whole interval.
type GopsutilSampler struct {
	DiskPath    string
	CPUInterval time.Duration
}

func (s GopsutilSampler) Sample(ctx context.Context) (HostSample, error) {
	var out HostSample

	percents, err := cpu.PercentWithContext(ctx, s.CPUInterval, false)
	if err != nil {
		return out, fmt.Errorf("cpu: %w", err)
	}
	if len(percents) == 0 {
		return out, fmt.Errorf("cpu: no reading")
	}
	out.CPUPercent = percents[0]

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return out, fmt.Errorf("memory: %w", err)
	}
	out.RAMPercent = vm.UsedPercent
	out.RAMUsedBytes = vm.Used

	path := s.DiskPath
	if path == "" {
		path = "/"
	}
	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return out, fmt.Errorf("disk %s: %w", path, err)
	}
	out.DiskPercent = du.UsedPercent
	out.DiskUsedBytes = du.Used

	return out, nil
}

type SystemProvider struct {
	sampler HostSampler
	log     *zap.Logger
}

func NewSystemProvider(sampler HostSampler, log *zap.Logger) *SystemProvider {
	return &SystemProvider{sampler: sampler, log: log.Named("system")}
}

func (p *SystemProvider) Name() string { return "system" }

func (p *SystemProvider) Fetch(ctx context.Context) model.SystemInfo {
	s, err := p.sampler.Sample(ctx)
	if err != nil {
		err = fail(ReasonCollection, err)
		p.log.Error("System metrics collection failed", zap.Error(err))
		return SystemFailure(systemFailed)
	}

	return model.SystemInfo{
		RAMPercent:  round1(s.RAMPercent),
		DiskPercent: round1(s.DiskPercent),
		CPUPercent:  round1(s.CPUPercent),
		RAMUsedGB:   FormatBytes(s.RAMUsedBytes),
		DiskUsedGB:  FormatBytes(s.DiskUsedBytes),
		Status:      model.StatusSuccess,
	}
}

func SystemFailure(msg string) model.SystemInfo {
	return model.SystemInfo{
		RAMUsedGB:  model.Placeholder,
		DiskUsedGB: model.Placeholder,
		Status:     model.StatusError,
		Error:      msg,
	}
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes scales n by 1024 until it drops below 1024 and prints it with
// two decimals. Anything past TB is reported in PB.
func FormatBytes(n uint64) string {
	v := float64(n)
	for _, unit := range byteUnits {
		if v < 1024 {
			return fmt.Sprintf("%.2f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.2f PB", v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
