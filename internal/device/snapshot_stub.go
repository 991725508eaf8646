//go:build !linux

package device

import "github.com/mrumy-dev/stylesync-telemetry/internal/models"

func systemSnapshot() models.SystemInfo {
	return models.SystemInfo{
		BatteryLevel: -1,
		BatteryState: "unknown",
		ThermalState: "nominal",
	}
}

func memorySnapshot() models.MemoryInfo {
	return models.MemoryInfo{}
}
