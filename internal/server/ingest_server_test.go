package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mrumy-dev/stylesync-telemetry/internal/anonymize"
	"github.com/mrumy-dev/stylesync-telemetry/internal/device"
	"github.com/mrumy-dev/stylesync-telemetry/internal/models"
	"github.com/mrumy-dev/stylesync-telemetry/internal/retry"
	"github.com/mrumy-dev/stylesync-telemetry/internal/service"
	"github.com/mrumy-dev/stylesync-telemetry/internal/session"
	"github.com/mrumy-dev/stylesync-telemetry/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// failSubmitter always fails so records stay queued and countable
type failSubmitter struct{}

func (failSubmitter) SubmitBatch(context.Context, models.Kind, []models.Record) error {
	return errors.New("backend unavailable")
}

func (failSubmitter) SubmitRecord(context.Context, models.Record) error {
	return errors.New("backend unavailable")
}

func newTestServer(t *testing.T) (*IngestServer, *service.Telemetry) {
	t.Helper()

	log := zap.NewNop()
	sub := failSubmitter{}

	analyticsStore := store.NewEventStore(models.KindAnalytics, 1000, log)
	feedbackStore := store.NewEventStore(models.KindFeedback, 1000, log)
	crashStore := store.NewEventStore(models.KindCrash, 1000, log)

	telemetry := service.NewTelemetry(
		service.AppInfo{Version: "2.1.0", BuildNumber: "347", Platform: "ios"},
		service.Pipelines{
			AnalyticsStore: analyticsStore,
			FeedbackStore:  feedbackStore,
			CrashStore:     crashStore,
			Analytics:      retry.NewCoordinator(models.KindAnalytics, analyticsStore, nil, nil, sub, 50, log),
			Feedback:       retry.NewCoordinator(models.KindFeedback, feedbackStore, nil, nil, sub, 50, log),
			Crash:          retry.NewCoordinator(models.KindCrash, crashStore, nil, nil, sub, 50, log),
		},
		session.NewTracker(30*time.Minute, log),
		device.NewManager(),
		anonymize.NewAnonymizer(),
		20,
		log,
	)

	return NewIngestServer(telemetry, log), telemetry
}

func postJSON(t *testing.T, srv http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestTrackEndpoint(t *testing.T) {
	srv, telemetry := newTestServer(t)

	rec := postJSON(t, srv, "/api/v1/events", TrackRequest{
		Name:       "screen_view",
		Parameters: models.Params{"screen": models.String("wardrobe")},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])
	assert.Equal(t, 1, telemetry.Status().PendingAnalytics)
}

func TestTrackEndpointRejectsMissingName(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := postJSON(t, srv, "/api/v1/events", TrackRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackEndpointRejectsInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedbackEndpointValidatesType(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJSON(t, srv, "/api/v1/feedback", FeedbackRequest{
		Type:        "Rant",
		Description: "too slow",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, srv, "/api/v1/feedback", FeedbackRequest{
		Type:          models.FeedbackPerformance,
		Description:   "too slow",
		CurrentScreen: "OutfitMatch",
		NetworkStatus: "cellular",
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCrashEndpoint(t *testing.T) {
	srv, telemetry := newTestServer(t)

	rec := postJSON(t, srv, "/api/v1/crashes", CrashRequest{
		Type:      models.CrashException,
		Name:      "NSRangeException",
		Reason:    "index out of bounds",
		CallStack: []string{"frame 0", "frame 1"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return telemetry.Status().PendingCrashes == 1
	}, time.Second, 5*time.Millisecond)
}

func TestActionAndLifecycleEndpoints(t *testing.T) {
	srv, telemetry := newTestServer(t)

	rec := postJSON(t, srv, "/api/v1/actions", ActionRequest{Action: "tap_outfit", Category: "wardrobe"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, srv, "/api/v1/lifecycle", LifecycleRequest{State: "foreground"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, srv, "/api/v1/lifecycle", LifecycleRequest{State: "background"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, srv, "/api/v1/lifecycle", LifecycleRequest{State: "hibernate"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// background emitted a session_end record that could not be flushed
	assert.GreaterOrEqual(t, telemetry.Status().PendingAnalytics, 1)
}

func TestStatusAndHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status service.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.NotEmpty(t, status.SessionID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
