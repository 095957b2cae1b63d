package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// TaskStatusUpdater は外部ダウンロードタスクの状態反映インターフェース。
type TaskStatusUpdater interface {
	// HandleDownloadTaskStatus はタスクに紐づく全リクエストへ
	// 終端ステータスを反映し、更新件数を返す。
	HandleDownloadTaskStatus(ctx context.Context, taskID, status string) (int, error)
}

// TaskHandler はダウンロード実行側からのコールバックを受けるHTTPハンドラー。
type TaskHandler struct {
	updater TaskStatusUpdater
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(updater TaskStatusUpdater) *TaskHandler {
	return &TaskHandler{updater: updater}
}

// taskStatusBody はタスク状態通知のボディ。
type taskStatusBody struct {
	Status string `json:"status"`
}

// UpdateStatus はダウンロードタスクの終端ステータスを受け付ける。管理者専用。
// POST /api/tasks/{id}/status
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	var body taskStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}

	updated, err := h.updater.HandleDownloadTaskStatus(r.Context(), taskID, body.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": updated})
}
