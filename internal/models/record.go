package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the three telemetry record variants.
type Kind string

const (
	KindAnalytics Kind = "analytics"
	KindFeedback  Kind = "feedback"
	KindCrash     Kind = "crash"
)

// Feedback types matching the backend feedback vocabulary
const (
	FeedbackBug         = "Bug Report"
	FeedbackFeature     = "Feature Request"
	FeedbackUIUX        = "UI/UX Issue"
	FeedbackPerformance = "Performance Issue"
	FeedbackCrash       = "Crash Report"
	FeedbackGeneral     = "General Feedback"
)

// Crash types matching the backend crash vocabulary
const (
	CrashException = "Exception"
	CrashSignal    = "Signal"
	CrashManual    = "Manual"
)

// Record is one queued telemetry unit. Exactly one of the payload pointers
// is set, matching Kind. Records are immutable after creation; the pipeline
// only moves or drops them.
type Record struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	CreatedAt   time.Time         `json:"createdAt"`
	SessionID   string            `json:"sessionId,omitempty"`
	AppVersion  string            `json:"appVersion"`
	BuildNumber string            `json:"buildNumber"`
	Analytics   *AnalyticsPayload `json:"analytics,omitempty"`
	Feedback    *FeedbackPayload  `json:"feedback,omitempty"`
	Crash       *CrashPayload     `json:"crash,omitempty"`
}

// AnalyticsPayload is the analytics-specific part of a record
type AnalyticsPayload struct {
	Name       string `json:"name"`
	Parameters Params `json:"parameters"`
	Platform   string `json:"platform"`
}

// FeedbackPayload is the feedback-specific part of a record
type FeedbackPayload struct {
	Type        string           `json:"type"`
	Description string           `json:"description"`
	Metadata    FeedbackMetadata `json:"metadata"`
	DeviceInfo  DeviceInfo       `json:"deviceInfo"`
}

// FeedbackMetadata captures app state at the time the report was filed
type FeedbackMetadata struct {
	CurrentScreen string   `json:"currentScreen"`
	UserActions   []string `json:"userActions"`
	ErrorLogs     []string `json:"errorLogs"`
	NetworkStatus string   `json:"networkStatus"`
	MemoryUsage   uint64   `json:"memoryUsage"`
	BatteryLevel  float64  `json:"batteryLevel"`
}

// CrashPayload is the crash-specific part of a record
type CrashPayload struct {
	Type        string       `json:"type"`
	Name        string       `json:"name"`
	Reason      string       `json:"reason"`
	CallStack   []string     `json:"callStack"`
	DeviceInfo  DeviceInfo   `json:"deviceInfo"`
	SystemInfo  SystemInfo   `json:"systemInfo"`
	MemoryInfo  MemoryInfo   `json:"memoryInfo"`
	UserActions []UserAction `json:"userActions"`
}

// DeviceInfo describes the reporting device
type DeviceInfo struct {
	Model         string `json:"model"`
	SystemVersion string `json:"systemVersion"`
	ScreenSize    string `json:"screenSize"`
	Locale        string `json:"locale"`
	Timezone      string `json:"timezone"`
}

// SystemInfo is a storage/power snapshot taken when a crash is reported
type SystemInfo struct {
	TotalStorage     uint64  `json:"totalStorage"`
	AvailableStorage uint64  `json:"availableStorage"`
	BatteryLevel     float64 `json:"batteryLevel"`
	BatteryState     string  `json:"batteryState"`
	ThermalState     string  `json:"thermalState"`
}

// MemoryInfo is a memory snapshot taken when a crash is reported
type MemoryInfo struct {
	PhysicalMemory  uint64 `json:"physicalMemory"`
	UsedMemory      uint64 `json:"usedMemory"`
	AvailableMemory uint64 `json:"availableMemory"`
}

// UserAction is one breadcrumb in the recent-action trail
type UserAction struct {
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidFeedbackType reports whether t is one of the known feedback types
func ValidFeedbackType(t string) bool {
	switch t {
	case FeedbackBug, FeedbackFeature, FeedbackUIUX, FeedbackPerformance, FeedbackCrash, FeedbackGeneral:
		return true
	}
	return false
}

// ValidCrashType reports whether t is one of the known crash types
func ValidCrashType(t string) bool {
	switch t {
	case CrashException, CrashSignal, CrashManual:
		return true
	}
	return false
}

// wire envelopes: the backend expects one flat object per kind, with the
// common fields inlined rather than nested.

type analyticsWire struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	AppVersion  string `json:"appVersion"`
	BuildNumber string `json:"buildNumber"`
	Name        string `json:"name"`
	Parameters  Params `json:"parameters"`
	SessionID   string `json:"sessionId"`
	Platform    string `json:"platform"`
}

type feedbackWire struct {
	ID          string           `json:"id"`
	Timestamp   string           `json:"timestamp"`
	AppVersion  string           `json:"appVersion"`
	BuildNumber string           `json:"buildNumber"`
	Type        string           `json:"type"`
	Description string           `json:"description"`
	Metadata    FeedbackMetadata `json:"metadata"`
	DeviceInfo  DeviceInfo       `json:"deviceInfo"`
}

type crashWire struct {
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	AppVersion  string       `json:"appVersion"`
	BuildNumber string       `json:"buildNumber"`
	Type        string       `json:"type"`
	Name        string       `json:"name"`
	Reason      string       `json:"reason"`
	CallStack   []string     `json:"callStack"`
	DeviceInfo  DeviceInfo   `json:"deviceInfo"`
	SystemInfo  SystemInfo   `json:"systemInfo"`
	MemoryInfo  MemoryInfo   `json:"memoryInfo"`
	UserActions []UserAction `json:"userActions"`
}

// WireJSON renders the record in the canonical submission format for its
// kind. Timestamps are ISO-8601 in UTC.
func (r Record) WireJSON() (json.RawMessage, error) {
	ts := r.CreatedAt.UTC().Format(time.RFC3339)

	switch r.Kind {
	case KindAnalytics:
		if r.Analytics == nil {
			return nil, fmt.Errorf("analytics record %s has no payload", r.ID)
		}
		return json.Marshal(analyticsWire{
			ID:          r.ID,
			Timestamp:   ts,
			AppVersion:  r.AppVersion,
			BuildNumber: r.BuildNumber,
			Name:        r.Analytics.Name,
			Parameters:  r.Analytics.Parameters,
			SessionID:   r.SessionID,
			Platform:    r.Analytics.Platform,
		})
	case KindFeedback:
		if r.Feedback == nil {
			return nil, fmt.Errorf("feedback record %s has no payload", r.ID)
		}
		return json.Marshal(feedbackWire{
			ID:          r.ID,
			Timestamp:   ts,
			AppVersion:  r.AppVersion,
			BuildNumber: r.BuildNumber,
			Type:        r.Feedback.Type,
			Description: r.Feedback.Description,
			Metadata:    r.Feedback.Metadata,
			DeviceInfo:  r.Feedback.DeviceInfo,
		})
	case KindCrash:
		if r.Crash == nil {
			return nil, fmt.Errorf("crash record %s has no payload", r.ID)
		}
		return json.Marshal(crashWire{
			ID:          r.ID,
			Timestamp:   ts,
			AppVersion:  r.AppVersion,
			BuildNumber: r.BuildNumber,
			Type:        r.Crash.Type,
			Name:        r.Crash.Name,
			Reason:      r.Crash.Reason,
			CallStack:   r.Crash.CallStack,
			DeviceInfo:  r.Crash.DeviceInfo,
			SystemInfo:  r.Crash.SystemInfo,
			MemoryInfo:  r.Crash.MemoryInfo,
			UserActions: r.Crash.UserActions,
		})
	default:
		return nil, fmt.Errorf("unknown record kind %q", r.Kind)
	}
}
