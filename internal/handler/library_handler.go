package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/bookman/internal/model"
)

// LibraryCacheInterface は蔵書キャッシュのハンドラーが必要とするインターフェース。
type LibraryCacheInterface interface {
	// FindMatch はタイトルと著者に曖昧一致する蔵書を返す。一致なしはnil。
	FindMatch(ctx context.Context, title, author string) *model.LibraryItem
	// Refresh は蔵書スナップショットを再取得し、取得件数を返す。
	Refresh(ctx context.Context) (int, error)
}

// LibraryHandler は蔵書重複チェックのHTTPハンドラー。
type LibraryHandler struct {
	cache LibraryCacheInterface
}

// NewLibraryHandler はLibraryHandlerを生成する。
func NewLibraryHandler(cache LibraryCacheInterface) *LibraryHandler {
	return &LibraryHandler{cache: cache}
}

// matchResponse は一致した蔵書のレスポンス。
type matchResponse struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// checkResponse は重複チェックのレスポンス。
type checkResponse struct {
	Owned bool           `json:"owned"`
	Match *matchResponse `json:"match"`
}

// Check はタイトルと著者の蔵書重複チェックを行う。
// タイトルが空の場合はキャッシュを参照せず未所有として返す。
// GET /api/abs/check?title=&author=
func (h *LibraryHandler) Check(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	title := query.Get("title")
	author := query.Get("author")

	if title == "" {
		writeJSON(w, http.StatusOK, checkResponse{Owned: false, Match: nil})
		return
	}

	match := h.cache.FindMatch(r.Context(), title, author)
	if match == nil {
		writeJSON(w, http.StatusOK, checkResponse{Owned: false, Match: nil})
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{
		Owned: true,
		Match: &matchResponse{Title: match.Title, Author: match.Author},
	})
}

// Refresh は蔵書スナップショットを手動で再取得する。管理者専用。
// POST /api/abs/refresh
func (h *LibraryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	count, err := h.cache.Refresh(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": count})
}
