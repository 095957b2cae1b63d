package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/bookman/internal/middleware"
	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/request"
)

// staticUserResolver は固定ユーザーを返すUserResolver。
type staticUserResolver struct {
	user *model.User
}

func (s *staticUserResolver) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "valid" {
		return s.user, nil
	}
	return nil, nil
}

func newTestRouter(t *testing.T, authDisabled bool, resolver middleware.UserResolver) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(1000),
		GeneralBurst:    1000,
		CreateRate:      rate.Limit(1000),
		CreateBurst:     1000,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	service := &mockRequestService{
		listFunc: func(ctx context.Context, identity model.Identity, statusFilter string, limit, offset int) (*request.ListResult, error) {
			return &request.ListResult{Requests: nil, Total: 0, Limit: 100}, nil
		},
		approveFunc: func(ctx context.Context, identity model.Identity, id int64) (*model.Request, error) {
			return &model.Request{ID: id, Status: model.StatusApproved}, nil
		},
	}

	return NewRouter(&RouterDeps{
		AuthDisabled:      authDisabled,
		UserResolver:      resolver,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		RequestService:    service,
		LibraryCache:      &mockLibraryCache{},
		TaskUpdater:       &mockTaskUpdater{},
	})
}

func TestRouter_HealthIsPublic(t *testing.T) {
	router := newTestRouter(t, false, &staticUserResolver{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_APIRequiresAuthInLocalMode(t *testing.T) {
	router := newTestRouter(t, false, &staticUserResolver{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/requests", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRouter_AuthDisabledTreatsCallerAsAdmin(t *testing.T) {
	router := newTestRouter(t, true, nil)

	// 一覧は認証なしで通る
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	if w.Code != http.StatusOK {
		t.Errorf("list status = %d, want 200", w.Code)
	}

	// 管理者専用の承認も通る
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/requests/1/approve", nil))
	if w.Code != http.StatusOK {
		t.Errorf("approve status = %d, want 200", w.Code)
	}
}

func TestRouter_AdminRoutesRejectNonAdmin(t *testing.T) {
	resolver := &staticUserResolver{user: &model.User{ID: 7, Username: "alice", IsAdmin: false}}
	router := newTestRouter(t, false, resolver)

	req := httptest.NewRequest(http.MethodPost, "/api/requests/1/approve", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRouter_CSRFProtectsMutationsInLocalMode(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(1000),
		GeneralBurst:    1000,
		CreateRate:      rate.Limit(1000),
		CreateBurst:     1000,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	resolver := &staticUserResolver{user: &model.User{ID: 7, Username: "alice"}}
	router := NewRouter(&RouterDeps{
		UserResolver:      resolver,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		CSRFConfig:        &middleware.CSRFConfig{},
		RequestService:    &mockRequestService{},
		LibraryCache:      &mockLibraryCache{},
		TaskUpdater:       &mockTaskUpdater{},
	})

	// トークン取得は未認証でも通る
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	if w.Code != http.StatusOK {
		t.Errorf("csrf-token status = %d, want 200", w.Code)
	}

	// 認証済みでもCSRFトークンなしの状態変更は拒否される
	req := httptest.NewRequest(http.MethodPost, "/api/requests/mark-viewed", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid"})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("mark-viewed without csrf token status = %d, want 403", w.Code)
	}
}

func TestRouter_AdminRefreshRejectsNonAdmin(t *testing.T) {
	resolver := &staticUserResolver{user: &model.User{ID: 7, Username: "alice", IsAdmin: false}}
	router := newTestRouter(t, false, resolver)

	req := httptest.NewRequest(http.MethodPost, "/api/abs/refresh", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
