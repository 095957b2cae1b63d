// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/bookman/internal/middleware"
	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/request"
)

// RequestServiceInterface はリクエストハンドラーが必要とするサービスインターフェース。
type RequestServiceInterface interface {
	Create(ctx context.Context, identity model.Identity, input request.CreateInput) (*model.Request, error)
	List(ctx context.Context, identity model.Identity, statusFilter string, limit, offset int) (*request.ListResult, error)
	Counts(ctx context.Context, identity model.Identity) (*request.CountsResult, error)
	MarkViewed(ctx context.Context, identity model.Identity) error
	Get(ctx context.Context, identity model.Identity, id int64) (*model.Request, error)
	Delete(ctx context.Context, identity model.Identity, id int64) error
	Approve(ctx context.Context, identity model.Identity, id int64) (*model.Request, error)
	Deny(ctx context.Context, identity model.Identity, id int64, adminNote string) (*model.Request, error)
	SetStatus(ctx context.Context, identity model.Identity, id int64, status string, adminNote *string) (*model.Request, error)
	Retry(ctx context.Context, identity model.Identity, id int64) (*model.Request, error)
}

// RequestHandler はリクエスト管理のHTTPハンドラー。
type RequestHandler struct {
	service RequestServiceInterface
}

// NewRequestHandler はRequestHandlerを生成する。
func NewRequestHandler(service RequestServiceInterface) *RequestHandler {
	return &RequestHandler{service: service}
}

// createRequestBody はリクエスト作成のボディ。
type createRequestBody struct {
	Title          string   `json:"title"`
	ContentType    string   `json:"content_type"`
	Author         string   `json:"author"`
	Year           string   `json:"year"`
	CoverURL       string   `json:"cover_url"`
	Description    string   `json:"description"`
	ISBN10         string   `json:"isbn_10"`
	ISBN13         string   `json:"isbn_13"`
	Provider       string   `json:"provider"`
	ProviderID     string   `json:"provider_id"`
	SeriesName     string   `json:"series_name"`
	SeriesPosition *float64 `json:"series_position"`
}

// denyRequestBody はリクエスト却下のボディ。
type denyRequestBody struct {
	AdminNote string `json:"admin_note"`
}

// setStatusBody はステータス手動上書きのボディ。
type setStatusBody struct {
	Status    string  `json:"status"`
	AdminNote *string `json:"admin_note"`
}

// requestResponse はリクエスト情報のAPIレスポンス。
type requestResponse struct {
	ID             int64    `json:"id"`
	UserID         int64    `json:"user_id"`
	Status         string   `json:"status"`
	ContentType    string   `json:"content_type"`
	Title          string   `json:"title"`
	Author         string   `json:"author,omitempty"`
	Year           string   `json:"year,omitempty"`
	CoverURL       string   `json:"cover_url,omitempty"`
	Description    string   `json:"description,omitempty"`
	ISBN10         string   `json:"isbn_10,omitempty"`
	ISBN13         string   `json:"isbn_13,omitempty"`
	Provider       string   `json:"provider,omitempty"`
	ProviderID     string   `json:"provider_id,omitempty"`
	SeriesName     string   `json:"series_name,omitempty"`
	SeriesPosition *float64 `json:"series_position,omitempty"`
	AdminNote      string   `json:"admin_note,omitempty"`
	ApprovedBy     *int64   `json:"approved_by,omitempty"`
	DownloadTaskID string   `json:"download_task_id,omitempty"`
	Requester      string   `json:"requester,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// listResponse はリクエスト一覧のAPIレスポンス。
type listResponse struct {
	Requests []requestResponse `json:"requests"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// Create はリクエスト作成を処理する。
// POST /api/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}

	created, err := h.service.Create(r.Context(), identity, request.CreateInput{
		Title:          body.Title,
		ContentType:    body.ContentType,
		Author:         body.Author,
		Year:           body.Year,
		CoverURL:       body.CoverURL,
		Description:    body.Description,
		ISBN10:         body.ISBN10,
		ISBN13:         body.ISBN13,
		Provider:       body.Provider,
		ProviderID:     body.ProviderID,
		SeriesName:     body.SeriesName,
		SeriesPosition: body.SeriesPosition,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestResponse(created))
}

// List はリクエスト一覧を取得する。
// GET /api/requests?status=&limit=&offset=
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	result, err := h.service.List(r.Context(), identity, query.Get("status"), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]requestResponse, 0, len(result.Requests))
	for _, req := range result.Requests {
		responses = append(responses, toRequestResponse(req))
	}

	writeJSON(w, http.StatusOK, listResponse{
		Requests: responses,
		Total:    result.Total,
		Limit:    result.Limit,
		Offset:   result.Offset,
	})
}

// Counts はステータス別件数を取得する。
// GET /api/requests/counts
func (h *RequestHandler) Counts(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	result, err := h.service.Counts(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	body := map[string]any{"total": result.Total}
	for status, count := range result.Counts {
		body[string(status)] = count
	}
	if result.IncludeUnviewed {
		body["unviewed"] = result.Unviewed
	}

	writeJSON(w, http.StatusOK, body)
}

// MarkViewed は呼び出し元の最終閲覧時刻を現在時刻に更新する。
// POST /api/requests/mark-viewed
func (h *RequestHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkViewed(r.Context(), identity); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Get はリクエスト詳細を取得する。
// GET /api/requests/{id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}

	req, err := h.service.Get(r.Context(), identity, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// Delete はリクエストを削除する。所有者は物理削除、
// 非所有者の管理者は管理者ビューからの非表示化となる。
// DELETE /api/requests/{id}
func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity, id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Approve はリクエストを承認する。
// POST /api/requests/{id}/approve
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}

	req, err := h.service.Approve(r.Context(), identity, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// Deny はリクエストを却下する。
// POST /api/requests/{id}/deny
func (h *RequestHandler) Deny(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}

	// ボディは任意
	var body denyRequestBody
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	req, err := h.service.Deny(r.Context(), identity, id, body.AdminNote)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// SetStatus はステータスを手動で上書きする。
// PUT /api/requests/{id}/status
func (h *RequestHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}

	var body setStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}

	req, err := h.service.SetStatus(r.Context(), identity, id, body.Status, body.AdminNote)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// Retry は失敗したリクエストを再試行する。
// POST /api/requests/{id}/retry
func (h *RequestHandler) Retry(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	id, ok := requestIDParam(w, r)
	if !ok {
		return
	}

	req, err := h.service.Retry(r.Context(), identity, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// --- ヘルパー関数 ---

// callerIdentity はコンテキストから呼び出し元情報を取得する。
// 取得できない場合は401を書き込みfalseを返す。
func callerIdentity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return model.Identity{}, false
	}
	return identity, true
}

// requestIDParam はURLパラメータからリクエストIDを取得する。
// 数値でない場合は404を書き込みfalseを返す。
func requestIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewRequestNotFoundError(0))
		return 0, false
	}
	return id, true
}

// toRequestResponse はmodel.RequestからAPIレスポンスに変換する。
func toRequestResponse(req *model.Request) requestResponse {
	requester := req.RequesterDisplayName
	if requester == "" {
		requester = req.RequesterUsername
	}
	return requestResponse{
		ID:             req.ID,
		UserID:         req.UserID,
		Status:         string(req.Status),
		ContentType:    string(req.ContentType),
		Title:          req.Title,
		Author:         req.Author,
		Year:           req.Year,
		CoverURL:       req.CoverURL,
		Description:    req.Description,
		ISBN10:         req.ISBN10,
		ISBN13:         req.ISBN13,
		Provider:       req.Provider,
		ProviderID:     req.ProviderID,
		SeriesName:     req.SeriesName,
		SeriesPosition: req.SeriesPosition,
		AdminNote:      req.AdminNote,
		ApprovedBy:     req.ApprovedBy,
		DownloadTaskID: req.DownloadTaskID,
		Requester:      requester,
		CreatedAt:      req.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:      req.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// invalidBodyError はリクエストボディ解析失敗のエラーを生成する。
func invalidBodyError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeTitleRequired,
		model.ErrCodeInvalidContentType,
		model.ErrCodeInvalidStatus,
		model.ErrCodeInvalidTransition,
		"INVALID_REQUEST":
		return http.StatusBadRequest
	case model.ErrCodeDuplicateRequest:
		return http.StatusConflict
	case model.ErrCodeRequestNotFound:
		return http.StatusNotFound
	case model.ErrCodeAccessDenied:
		return http.StatusForbidden
	case model.ErrCodeUnauthorized, model.ErrCodeLoginFailed:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
