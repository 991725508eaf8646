package device

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mrumy-dev/stylesync-telemetry/internal/models"

	"github.com/google/uuid"
)

// Manager supplies the device identity and the device/system/memory
// snapshots attached to crash and feedback records
type Manager struct{}

// NewManager creates a new device manager
func NewManager() *Manager {
	return &Manager{}
}

// GetOrGenerateDeviceID returns the configured id, a stable machine id, or
// a generated UUID, in that order of preference
func (m *Manager) GetOrGenerateDeviceID(existingID string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}

	if id := machineID(); id != "" {
		return id, nil
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return runtime.GOOS + "-" + hostname, nil
	}

	return uuid.NewString(), nil
}

// machineID reads the OS machine id where one exists
func machineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

// Info describes the device for feedback and crash payloads
func (m *Manager) Info() models.DeviceInfo {
	hostname, _ := os.Hostname()
	zone, _ := time.Now().Zone()

	locale := os.Getenv("LANG")
	if locale == "" {
		locale = "en_US"
	}

	return models.DeviceInfo{
		Model:         hostname,
		SystemVersion: runtime.GOOS + "/" + runtime.GOARCH,
		ScreenSize:    "unknown",
		Locale:        locale,
		Timezone:      zone,
	}
}

// SystemSnapshot captures storage and power state at call time
func (m *Manager) SystemSnapshot() models.SystemInfo {
	return systemSnapshot()
}

// MemorySnapshot captures memory state at call time
func (m *Manager) MemorySnapshot() models.MemoryInfo {
	return memorySnapshot()
}
