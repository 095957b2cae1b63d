package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/bookman/internal/metrics"
	"github.com/hitoshi/bookman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	AuthDisabled      bool
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	LoggingMiddleware func(next http.Handler) http.Handler
	CSRFConfig        *middleware.CSRFConfig

	// ハンドラー依存
	RequestService RequestServiceInterface
	LibraryCache   LibraryCacheInterface
	AuthService    AuthServiceInterface
	AuthConfig     AuthHandlerConfig
	TaskUpdater    TaskStatusUpdater
	EventsHub      *EventsHub

	// /metrics用のPrometheus Gatherer
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Identity → RateLimit(General)
//
// /healthと/metricsは認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.LoggingMiddleware != nil {
		r.Use(deps.LoggingMiddleware)
	}

	requestHandler := NewRequestHandler(deps.RequestService)
	libraryHandler := NewLibraryHandler(deps.LibraryCache)
	taskHandler := NewTaskHandler(deps.TaskUpdater)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.MetricsGatherer))
	}

	// CSRFトークン取得はトークン検証の外に置く
	if deps.CSRFConfig != nil {
		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(*deps.CSRFConfig))
	}

	// ログイン/ログアウトはセッション解決の外に置く
	if deps.AuthService != nil {
		authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// /auth/meは識別情報が必要
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewIdentityMiddleware(deps.AuthDisabled, deps.UserResolver))
			r.Get("/auth/me", authHandler.Me)
		})
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit(General) [→ CSRF]
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.AuthDisabled, deps.UserResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		if deps.CSRFConfig != nil {
			r.Use(middleware.NewCSRFMiddleware(*deps.CSRFConfig))
		}

		// リクエスト管理
		r.Route("/api/requests", func(r chi.Router) {
			// POST /api/requests - 作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.RequestCreationMiddleware()).Post("/", requestHandler.Create)

			r.Get("/", requestHandler.List)
			r.Get("/counts", requestHandler.Counts)
			r.Post("/mark-viewed", requestHandler.MarkViewed)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", requestHandler.Get)
				r.Delete("/", requestHandler.Delete)

				// 承認系は管理者専用
				r.Group(func(r chi.Router) {
					r.Use(middleware.NewRequireAdminMiddleware())
					r.Post("/approve", requestHandler.Approve)
					r.Post("/deny", requestHandler.Deny)
					r.Put("/status", requestHandler.SetStatus)
					r.Post("/retry", requestHandler.Retry)
				})
			})
		})

		// 蔵書重複チェック
		r.Route("/api/abs", func(r chi.Router) {
			r.Get("/check", libraryHandler.Check)
			r.With(middleware.NewRequireAdminMiddleware()).Post("/refresh", libraryHandler.Refresh)
		})

		// ダウンロード実行側からのコールバック
		r.With(middleware.NewRequireAdminMiddleware()).
			Post("/api/tasks/{id}/status", taskHandler.UpdateStatus)

		// ライブ更新（SSE）
		if deps.EventsHub != nil {
			r.Get("/api/events", deps.EventsHub.ServeHTTP)
		}
	})

	return r
}
