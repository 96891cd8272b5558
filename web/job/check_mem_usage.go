package job

import (
	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/util/common"

	"github.com/shirou/gopsutil/v4/mem"
)

// MemThresholdSource supplies the alert threshold in percent.
type MemThresholdSource interface {
	GetMemThreshold() (int, error)
}

// CheckMemJob warns when host memory use crosses the configured threshold.
type CheckMemJob struct {
	settings MemThresholdSource
	// virtualMemory is swapped in tests.
	virtualMemory func() (*mem.VirtualMemoryStat, error)
}

func NewCheckMemJob(settings MemThresholdSource) *CheckMemJob {
	return &CheckMemJob{settings: settings, virtualMemory: mem.VirtualMemory}
}

func (j *CheckMemJob) Run() {
	defer common.Recover("check mem job")

	threshold, err := j.settings.GetMemThreshold()
	if err != nil || threshold <= 0 {
		return
	}

	memInfo, err := j.virtualMemory()
	if err != nil {
		logger.Error("CheckMemJob -- get virtual memory failed:", err)
		return
	}
	if memInfo.UsedPercent >= float64(threshold) {
		logger.Warningf("memory usage %.1f%% is above the %d%% threshold (%d of %d bytes used)",
			memInfo.UsedPercent, threshold, memInfo.Used, memInfo.Total)
	}
}
