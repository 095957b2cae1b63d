package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/bookman/internal/model"
)

// recordingCollector はRecordHTTPStatusの呼び出しを記録する。
type recordingCollector struct {
	statuses []int
}

func (r *recordingCollector) RecordRequestCreated(contentType string)          {}
func (r *recordingCollector) RecordStatusTransition(status string)             {}
func (r *recordingCollector) RecordOrchestratorOutcome(outcome string)         {}
func (r *recordingCollector) RecordOrchestratorLatency(duration time.Duration) {}
func (r *recordingCollector) RecordLibraryRefreshItems(count int)              {}
func (r *recordingCollector) RecordLibraryRefreshFailure()                     {}
func (r *recordingCollector) RecordHTTPStatus(statusCode int) {
	r.statuses = append(r.statuses, statusCode)
}

func TestLoggingMiddleware_RecordsHTTPStatusMetric(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	collector := &recordingCollector{}

	mw := NewLoggingMiddleware(logger, collector)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/requests/9", nil))

	if len(collector.statuses) != 1 || collector.statuses[0] != http.StatusNotFound {
		t.Errorf("recorded statuses = %v, want [404]", collector.statuses)
	}
}

func TestLoggingMiddleware_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	mw := NewLoggingMiddleware(logger, nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
	req = req.WithContext(ContextWithIdentity(req.Context(), model.Identity{UserID: 7}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v, want http_request", entry["msg"])
	}
	if entry["method"] != "POST" {
		t.Errorf("method = %v, want POST", entry["method"])
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v, want 201", entry["status"])
	}
	if entry["user_id"] != float64(7) {
		t.Errorf("user_id = %v, want 7", entry["user_id"])
	}
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "2xxはINFO", status: http.StatusOK, wantLevel: "INFO"},
		{name: "4xxはWARN", status: http.StatusNotFound, wantLevel: "WARN"},
		{name: "5xxはERROR", status: http.StatusInternalServerError, wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			mw := NewLoggingMiddleware(logger, nil)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("failed to parse log entry: %v", err)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
		})
	}
}

func TestStatusRecorder_DefaultsTo200OnWrite(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	rec.Write([]byte("ok"))

	if rec.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200", rec.statusCode)
	}
}
