package bridge

import (
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats describes the bridge's own process.
type ProcessStats struct {
	PID        int32   `json:"pid" yaml:"pid"`
	CPUPercent float64 `json:"cpuPercent" yaml:"cpuPercent"`
	RSS        uint64  `json:"rss" yaml:"rss"`
	NumThreads int32   `json:"numThreads" yaml:"numThreads"`
	Uptime     int64   `json:"uptime" yaml:"uptime"`
}

func processStats(now time.Time) *ProcessStats {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		slog.Debug("process stats", "error", err)
		return nil
	}

	stats := &ProcessStats{PID: p.Pid}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSS = mem.RSS
	}
	if n, err := p.NumThreads(); err == nil {
		stats.NumThreads = n
	}
	if created, err := p.CreateTime(); err == nil {
		stats.Uptime = now.UnixMilli() - created
	}
	return stats
}
