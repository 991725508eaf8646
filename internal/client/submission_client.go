package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mrumy-dev/stylesync-telemetry/internal/models"

	"go.uber.org/zap"
)

// Fixed submission paths per record kind
const (
	analyticsPath = "/api/v1/analytics/batch"
	feedbackPath  = "/api/v1/feedback"
	crashPath     = "/api/v1/crashes"
)

// SubmissionClient posts telemetry records to the kind-specific backend
// endpoints. HTTP 200 is success; anything else is a failure the caller
// retries. The client itself never retries.
type SubmissionClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSubmissionClient creates a new submission client
func NewSubmissionClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *SubmissionClient {
	return &SubmissionClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// batchRequest wraps an analytics batch submission
type batchRequest struct {
	Events         []json.RawMessage `json:"events"`
	BatchTimestamp int64             `json:"batchTimestamp"` // Unix timestamp in milliseconds
}

// SubmitBatch sends a batch of records of one kind in a single POST
func (c *SubmissionClient) SubmitBatch(ctx context.Context, kind models.Kind, records []models.Record) error {
	if len(records) == 0 {
		return fmt.Errorf("cannot send empty batch")
	}

	wires := make([]json.RawMessage, 0, len(records))
	for _, record := range records {
		wire, err := record.WireJSON()
		if err != nil {
			return &SerializationError{RecordID: record.ID, Err: err}
		}
		wires = append(wires, wire)
	}

	var body []byte
	var err error
	if kind == models.KindAnalytics {
		body, err = json.Marshal(batchRequest{
			Events:         wires,
			BatchTimestamp: time.Now().UnixMilli(),
		})
	} else {
		body, err = json.Marshal(wires)
	}
	if err != nil {
		return &SerializationError{Err: err}
	}

	return c.post(ctx, kind, body, len(records))
}

// SubmitRecord sends a single record, used for user-triggered retry of
// spooled crash and feedback reports
func (c *SubmissionClient) SubmitRecord(ctx context.Context, record models.Record) error {
	wire, err := record.WireJSON()
	if err != nil {
		return &SerializationError{RecordID: record.ID, Err: err}
	}
	return c.post(ctx, record.Kind, wire, 1)
}

func (c *SubmissionClient) post(ctx context.Context, kind models.Kind, body []byte, count int) error {
	url := c.baseURL + pathForKind(kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Failed to send records",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.Int("record_count", count),
			zap.Duration("duration", duration),
		)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusOK {
		c.logger.Info("Records sent successfully",
			zap.String("kind", string(kind)),
			zap.Int("record_count", count),
			zap.Duration("duration", duration),
		)
		return nil
	}

	errMsg := fmt.Sprintf("backend returned status %d: %s", resp.StatusCode, string(respBody))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.Error("Authentication failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)),
		)
		return &AuthError{Message: errMsg, StatusCode: resp.StatusCode}
	case http.StatusTooManyRequests:
		c.logger.Warn("Rate limited",
			zap.Int("status_code", resp.StatusCode),
		)
		return &RateLimitError{Message: errMsg, StatusCode: resp.StatusCode}
	case http.StatusBadRequest:
		c.logger.Error("Invalid request",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)),
		)
		return &BadRequestError{Message: errMsg, StatusCode: resp.StatusCode}
	default:
		c.logger.Error("Backend error",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)),
		)
		return &BackendError{Message: errMsg, StatusCode: resp.StatusCode}
	}
}

// HealthCheck checks if the backend is reachable
func (c *SubmissionClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

func pathForKind(kind models.Kind) string {
	switch kind {
	case models.KindFeedback:
		return feedbackPath
	case models.KindCrash:
		return crashPath
	default:
		return analyticsPath
	}
}

// Error types
type AuthError struct {
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	return e.Message
}

type RateLimitError struct {
	Message    string
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Message
}

type BadRequestError struct {
	Message    string
	StatusCode int
}

func (e *BadRequestError) Error() string {
	return e.Message
}

type BackendError struct {
	Message    string
	StatusCode int
}

func (e *BackendError) Error() string {
	return e.Message
}

// SerializationError marks a record that could not be encoded; the
// submission is skipped and the record stays queued
type SerializationError struct {
	RecordID string
	Err      error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to serialize record %s: %v", e.RecordID, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
