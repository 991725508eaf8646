package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mrumy-dev/stylesync-telemetry/internal/anonymize"
	"github.com/mrumy-dev/stylesync-telemetry/internal/device"
	"github.com/mrumy-dev/stylesync-telemetry/internal/diskstore"
	"github.com/mrumy-dev/stylesync-telemetry/internal/models"
	"github.com/mrumy-dev/stylesync-telemetry/internal/queue"
	"github.com/mrumy-dev/stylesync-telemetry/internal/retry"
	"github.com/mrumy-dev/stylesync-telemetry/internal/session"
	"github.com/mrumy-dev/stylesync-telemetry/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AppInfo identifies the app the agent reports for
type AppInfo struct {
	Version     string
	BuildNumber string
	Platform    string
}

// Pipelines bundles the per-kind stores, persistence, and coordinators the
// service orchestrates
type Pipelines struct {
	AnalyticsStore *store.EventStore
	FeedbackStore  *store.EventStore
	CrashStore     *store.EventStore

	Journal       *queue.Journal   // analytics persistence
	FeedbackSpool *diskstore.Store // feedback persistence
	CrashSpool    *diskstore.Store // crash persistence

	Analytics *retry.Coordinator
	Feedback  *retry.Coordinator
	Crash     *retry.Coordinator
}

// Telemetry is the telemetry pipeline front door. All record creation goes
// through it: analytics events are anonymized and tagged with the current
// session, feedback and crash reports are enriched with device snapshots
// and the recent action trail, and everything lands in the per-kind queues.
type Telemetry struct {
	app        AppInfo
	pipelines  Pipelines
	sessions   *session.Tracker
	devices    *device.Manager
	anonymizer *anonymize.Anonymizer
	actions    *actionLog
	logger     *zap.Logger

	// flushWg tracks the async report flushes queueReport spawns so Stop
	// does not return with a submission mid-flight
	flushWg sync.WaitGroup
}

// NewTelemetry creates the telemetry service
func NewTelemetry(
	app AppInfo,
	pipelines Pipelines,
	sessions *session.Tracker,
	devices *device.Manager,
	anonymizer *anonymize.Anonymizer,
	actionTrailSize int,
	logger *zap.Logger,
) *Telemetry {
	return &Telemetry{
		app:        app,
		pipelines:  pipelines,
		sessions:   sessions,
		devices:    devices,
		anonymizer: anonymizer,
		actions:    newActionLog(actionTrailSize),
		logger:     logger,
	}
}

// Start reloads persisted records into the in-memory stores and begins the
// periodic analytics flush
func (t *Telemetry) Start(flushInterval time.Duration) error {
	if t.pipelines.Journal != nil {
		records, err := t.pipelines.Journal.LoadPending(models.KindAnalytics)
		if err != nil {
			return fmt.Errorf("failed to reload analytics journal: %w", err)
		}
		var pruned []string
		for _, record := range records {
			pruned = append(pruned, t.pipelines.AnalyticsStore.Append(record)...)
		}
		t.dropJournaled(pruned)
		if len(records) > 0 {
			t.logger.Info("Reloaded journaled analytics records",
				zap.Int("count", len(records)),
			)
		}
	}

	t.reloadSpool(t.pipelines.FeedbackSpool, t.pipelines.FeedbackStore)
	t.reloadSpool(t.pipelines.CrashSpool, t.pipelines.CrashStore)

	t.pipelines.Analytics.StartPeriodicFlush(flushInterval)

	// session_start for the initial session
	t.appendAnalytics("session_start", nil)

	t.logger.Info("Telemetry service started",
		zap.String("session_id", t.sessions.SessionID()),
		zap.Duration("flush_interval", flushInterval),
	)
	return nil
}

func (t *Telemetry) reloadSpool(spool *diskstore.Store, dst *store.EventStore) {
	if spool == nil {
		return
	}
	records, err := spool.LoadAll()
	if err != nil {
		// storage failure is non-fatal; the spool files stay for the next run
		t.logger.Error("Failed to reload spooled records", zap.Error(err))
		return
	}
	for _, record := range records {
		dst.Append(record)
	}
}

// Stop halts the periodic flush after a final cycle and waits for any
// in-flight report flushes
func (t *Telemetry) Stop() {
	t.pipelines.Analytics.Stop()
	t.flushWg.Wait()
	t.logger.Info("Telemetry service stopped")
}

// TrackEvent queues one analytics event. Sensitive parameter values are
// anonymized before the record is created.
func (t *Telemetry) TrackEvent(name string, params models.Params) string {
	record := t.newRecord(models.KindAnalytics)
	record.Analytics = &models.AnalyticsPayload{
		Name:       name,
		Parameters: t.anonymizer.Anonymize(params),
		Platform:   t.app.Platform,
	}

	t.queueAnalytics(record)

	t.logger.Debug("Analytics event queued",
		zap.String("name", name),
		zap.String("record_id", record.ID),
	)
	return record.ID
}

// RecordUserAction adds a breadcrumb to the recent-action trail
func (t *Telemetry) RecordUserAction(action, category string) {
	t.actions.Add(action, category)
}

// SubmitFeedback queues a feedback report, spools it to disk, and attempts
// an immediate submission in the background
func (t *Telemetry) SubmitFeedback(feedbackType, description, currentScreen, networkStatus string, errorLogs []string) (string, error) {
	if !models.ValidFeedbackType(feedbackType) {
		return "", fmt.Errorf("unknown feedback type %q", feedbackType)
	}

	memory := t.devices.MemorySnapshot()
	system := t.devices.SystemSnapshot()

	record := t.newRecord(models.KindFeedback)
	record.Feedback = &models.FeedbackPayload{
		Type:        feedbackType,
		Description: description,
		Metadata: models.FeedbackMetadata{
			CurrentScreen: currentScreen,
			UserActions:   t.actions.Strings(),
			ErrorLogs:     errorLogs,
			NetworkStatus: networkStatus,
			MemoryUsage:   memory.UsedMemory,
			BatteryLevel:  system.BatteryLevel,
		},
		DeviceInfo: t.devices.Info(),
	}

	t.queueReport(record, t.pipelines.FeedbackStore, t.pipelines.FeedbackSpool, t.pipelines.Feedback)
	return record.ID, nil
}

// ReportCrash queues a crash report, spools it to disk, and attempts an
// immediate submission in the background
func (t *Telemetry) ReportCrash(crashType, name, reason string, callStack []string) (string, error) {
	if !models.ValidCrashType(crashType) {
		return "", fmt.Errorf("unknown crash type %q", crashType)
	}

	record := t.newRecord(models.KindCrash)
	record.Crash = &models.CrashPayload{
		Type:        crashType,
		Name:        name,
		Reason:      reason,
		CallStack:   callStack,
		DeviceInfo:  t.devices.Info(),
		SystemInfo:  t.devices.SystemSnapshot(),
		MemoryInfo:  t.devices.MemorySnapshot(),
		UserActions: t.actions.Snapshot(),
	}

	t.queueReport(record, t.pipelines.CrashStore, t.pipelines.CrashSpool, t.pipelines.Crash)
	return record.ID, nil
}

// queueReport spools and queues a feedback or crash record, then kicks an
// async flush so fresh reports go out without waiting for a timer
func (t *Telemetry) queueReport(record models.Record, dst *store.EventStore, spool *diskstore.Store, coord *retry.Coordinator) {
	if spool != nil {
		if err := spool.Save(record); err != nil {
			// non-fatal: the record still rides the in-memory queue
			t.logger.Error("Failed to spool record",
				zap.Error(err),
				zap.String("record_id", record.ID),
			)
		}
	}
	dst.Append(record)

	t.logger.Info("Report queued",
		zap.String("kind", string(record.Kind)),
		zap.String("record_id", record.ID),
	)

	t.flushWg.Add(1)
	go func() {
		defer t.flushWg.Done()
		coord.FlushNow(context.Background())
	}()
}

// EnterBackground emits the session_end event and flushes analytics
func (t *Telemetry) EnterBackground(ctx context.Context) {
	sessionID, elapsed := t.sessions.Background()
	t.appendAnalytics("session_end", models.Params{
		"duration_ms": models.Number(float64(elapsed.Milliseconds())),
	})

	t.logger.Info("App entered background",
		zap.String("session_id", sessionID),
		zap.Duration("session_elapsed", elapsed),
	)

	if err := t.pipelines.Analytics.FlushNow(ctx); err != nil {
		t.logger.Warn("Background flush failed", zap.Error(err))
	}
}

// ResumeForeground rotates the session if the gap elapsed and emits
// session_start for the new session
func (t *Telemetry) ResumeForeground() {
	sessionID, rotated := t.sessions.Resume()
	if rotated {
		t.appendAnalytics("session_start", nil)
	}

	t.logger.Info("App resumed foreground",
		zap.String("session_id", sessionID),
		zap.Bool("session_rotated", rotated),
	)
}

// RetryPendingReports submits every spooled feedback and crash record
// individually, for the user-triggered retry action
func (t *Telemetry) RetryPendingReports(ctx context.Context) (submitted, failed int) {
	fs, ff := t.pipelines.Feedback.RetryPending(ctx)
	cs, cf := t.pipelines.Crash.RetryPending(ctx)
	return fs + cs, ff + cf
}

// FlushAnalytics triggers one analytics submission cycle
func (t *Telemetry) FlushAnalytics(ctx context.Context) error {
	return t.pipelines.Analytics.FlushNow(ctx)
}

// Status reports pending counts per kind
type Status struct {
	SessionID        string `json:"sessionId"`
	PendingAnalytics int    `json:"pendingAnalytics"`
	PendingFeedback  int    `json:"pendingFeedback"`
	PendingCrashes   int    `json:"pendingCrashes"`
}

// Status returns current pipeline state for diagnostics
func (t *Telemetry) Status() Status {
	return Status{
		SessionID:        t.sessions.SessionID(),
		PendingAnalytics: t.pipelines.AnalyticsStore.Count(),
		PendingFeedback:  t.pipelines.FeedbackStore.Count(),
		PendingCrashes:   t.pipelines.CrashStore.Count(),
	}
}

// appendAnalytics queues an internally generated analytics event
func (t *Telemetry) appendAnalytics(name string, params models.Params) {
	record := t.newRecord(models.KindAnalytics)
	record.Analytics = &models.AnalyticsPayload{
		Name:       name,
		Parameters: params,
		Platform:   t.app.Platform,
	}
	t.queueAnalytics(record)
}

// queueAnalytics journals a record, appends it to the in-memory store, and
// discards the journal rows of anything the append pruned so the journal
// never resurrects records the store already dropped
func (t *Telemetry) queueAnalytics(record models.Record) {
	if t.pipelines.Journal != nil {
		if err := t.pipelines.Journal.Insert([]models.Record{record}); err != nil {
			t.logger.Error("Failed to journal analytics record", zap.Error(err))
		}
	}
	pruned := t.pipelines.AnalyticsStore.Append(record)
	t.dropJournaled(pruned)
}

// dropJournaled deletes journal rows for records pruned out of the
// in-memory store
func (t *Telemetry) dropJournaled(ids []string) {
	if t.pipelines.Journal == nil || len(ids) == 0 {
		return
	}
	if err := t.pipelines.Journal.Delete(ids); err != nil {
		t.logger.Error("Failed to drop journaled records for pruned entries", zap.Error(err))
	}
}

// newRecord fills the common envelope for a new record
func (t *Telemetry) newRecord(kind models.Kind) models.Record {
	return models.Record{
		ID:          uuid.NewString(),
		Kind:        kind,
		CreatedAt:   time.Now().UTC(),
		SessionID:   t.sessions.SessionID(),
		AppVersion:  t.app.Version,
		BuildNumber: t.app.BuildNumber,
	}
}
