//go:build linux

package device

import (
	"github.com/mrumy-dev/stylesync-telemetry/internal/models"

	"golang.org/x/sys/unix"
)

func systemSnapshot() models.SystemInfo {
	info := models.SystemInfo{
		BatteryLevel: -1, // not exposed on this platform
		BatteryState: "unknown",
		ThermalState: "nominal",
	}

	var stat unix.Statfs_t
	if err := unix.Statfs("/", &stat); err == nil {
		bsize := uint64(stat.Bsize)
		info.TotalStorage = stat.Blocks * bsize
		info.AvailableStorage = stat.Bavail * bsize
	}

	return info
}

func memorySnapshot() models.MemoryInfo {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return models.MemoryInfo{}
	}

	unit := uint64(si.Unit)
	total := uint64(si.Totalram) * unit
	free := uint64(si.Freeram) * unit

	return models.MemoryInfo{
		PhysicalMemory:  total,
		UsedMemory:      total - free,
		AvailableMemory: free,
	}
}
