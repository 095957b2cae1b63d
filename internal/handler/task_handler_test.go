package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/bookman/internal/model"
)

// mockTaskUpdater はTaskStatusUpdaterのモック。
type mockTaskUpdater struct {
	taskID  string
	status  string
	updated int
	err     error
}

func (m *mockTaskUpdater) HandleDownloadTaskStatus(ctx context.Context, taskID, status string) (int, error) {
	m.taskID = taskID
	m.status = status
	return m.updated, m.err
}

func TestTaskHandler_UpdateStatus_Success(t *testing.T) {
	updater := &mockTaskUpdater{updated: 2}
	h := NewTaskHandler(updater)

	body, _ := json.Marshal(map[string]string{"status": "fulfilled"})
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/task-9/status", bytes.NewReader(body))
	req = withURLParam(req, "id", "task-9")
	w := httptest.NewRecorder()
	h.UpdateStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if updater.taskID != "task-9" || updater.status != "fulfilled" {
		t.Errorf("updater called with %q/%q", updater.taskID, updater.status)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["ok"] != true || resp["updated"] != float64(2) {
		t.Errorf("response = %v", resp)
	}
}

func TestTaskHandler_UpdateStatus_InvalidStatusMapsTo400(t *testing.T) {
	h := NewTaskHandler(&mockTaskUpdater{err: model.NewInvalidStatusError("approved")})

	body, _ := json.Marshal(map[string]string{"status": "approved"})
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/task-9/status", bytes.NewReader(body))
	req = withURLParam(req, "id", "task-9")
	w := httptest.NewRecorder()
	h.UpdateStatus(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestTaskHandler_UpdateStatus_InvalidJSON(t *testing.T) {
	h := NewTaskHandler(&mockTaskUpdater{})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/task-9/status", bytes.NewReader([]byte("{")))
	req = withURLParam(req, "id", "task-9")
	w := httptest.NewRecorder()
	h.UpdateStatus(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
