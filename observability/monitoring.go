package observability

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is a point-in-time snapshot of the service process,
// served on the debug endpoint.
type ProcessStats struct {
	RSSMb      uint64  `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
	AllocMb    uint64  `json:"alloc_mb"`
	NumGC      uint32  `json:"num_gc"`
}

// CollectSelf samples the current process.
func CollectSelf() (ProcessStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ProcessStats{}, err
	}
	stats := ProcessStats{Goroutines: runtime.NumGoroutine()}

	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSMb = mem.RSS / 1024 / 1024
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.AllocMb = ms.Alloc / 1024 / 1024
	stats.NumGC = ms.NumGC
	return stats, nil
}
