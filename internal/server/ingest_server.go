package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mrumy-dev/stylesync-telemetry/internal/models"
	"github.com/mrumy-dev/stylesync-telemetry/internal/service"

	"go.uber.org/zap"
)

// TrackRequest is an analytics event from the app
type TrackRequest struct {
	Name       string        `json:"name"`
	Parameters models.Params `json:"parameters"`
}

// FeedbackRequest is a feedback report from the app
type FeedbackRequest struct {
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	CurrentScreen string   `json:"currentScreen"`
	NetworkStatus string   `json:"networkStatus"`
	ErrorLogs     []string `json:"errorLogs"`
}

// CrashRequest is a crash report from the app
type CrashRequest struct {
	Type      string   `json:"type"`
	Name      string   `json:"name"`
	Reason    string   `json:"reason"`
	CallStack []string `json:"callStack"`
}

// ActionRequest is a user-action breadcrumb from the app
type ActionRequest struct {
	Action   string `json:"action"`
	Category string `json:"category"`
}

// LifecycleRequest signals a foreground/background transition
type LifecycleRequest struct {
	State string `json:"state"` // "foreground" or "background"
}

// IngestServer is the local HTTP surface the app process feeds records
// through. It only ever talks to loopback; submission to the real backend
// happens in the retry coordinators.
type IngestServer struct {
	telemetry *service.Telemetry
	logger    *zap.Logger
}

// NewIngestServer creates a new ingest server
func NewIngestServer(telemetry *service.Telemetry, logger *zap.Logger) *IngestServer {
	return &IngestServer{
		telemetry: telemetry,
		logger:    logger,
	}
}

// ServeHTTP implements http.Handler
func (s *IngestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/events":
		s.requirePost(w, r, s.handleTrack)
	case "/api/v1/feedback":
		s.requirePost(w, r, s.handleFeedback)
	case "/api/v1/crashes":
		s.requirePost(w, r, s.handleCrash)
	case "/api/v1/actions":
		s.requirePost(w, r, s.handleAction)
	case "/api/v1/lifecycle":
		s.requirePost(w, r, s.handleLifecycle)
	case "/api/v1/retry":
		s.requirePost(w, r, s.handleRetry)
	case "/api/v1/flush":
		s.requirePost(w, r, s.handleFlush)
	case "/api/v1/status":
		if r.Method == http.MethodGet {
			s.handleStatus(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "/api/v1/health":
		if r.Method == http.MethodGet {
			s.handleHealth(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

func (s *IngestServer) requirePost(w http.ResponseWriter, r *http.Request, handler http.HandlerFunc) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	handler(w, r)
}

func (s *IngestServer) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("Failed to decode track request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Missing event name", http.StatusBadRequest)
		return
	}

	id := s.telemetry.TrackEvent(req.Name, req.Parameters)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *IngestServer) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("Failed to decode feedback request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Description == "" {
		http.Error(w, "Missing description", http.StatusBadRequest)
		return
	}

	id, err := s.telemetry.SubmitFeedback(req.Type, req.Description, req.CurrentScreen, req.NetworkStatus, req.ErrorLogs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *IngestServer) handleCrash(w http.ResponseWriter, r *http.Request) {
	var req CrashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("Failed to decode crash request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Missing crash name", http.StatusBadRequest)
		return
	}

	id, err := s.telemetry.ReportCrash(req.Type, req.Name, req.Reason, req.CallStack)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *IngestServer) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Action == "" {
		http.Error(w, "Missing action", http.StatusBadRequest)
		return
	}

	s.telemetry.RecordUserAction(req.Action, req.Category)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *IngestServer) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	var req LifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.State {
	case "foreground":
		s.telemetry.ResumeForeground()
	case "background":
		s.telemetry.EnterBackground(r.Context())
	default:
		http.Error(w, "Unknown lifecycle state", http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *IngestServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	submitted, failed := s.telemetry.RetryPendingReports(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]int{
		"submitted": submitted,
		"failed":    failed,
	})
}

func (s *IngestServer) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.telemetry.FlushAnalytics(r.Context()); err != nil {
		// the records stay queued; report the failure but keep 200 semantics
		// for the local caller, which cannot act on it anyway
		s.logger.Warn("Manual flush failed", zap.Error(err))
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

func (s *IngestServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.telemetry.Status())
}

func (s *IngestServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func (s *IngestServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
