package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/bookman/internal/auth"
	"github.com/hitoshi/bookman/internal/config"
	"github.com/hitoshi/bookman/internal/database"
	"github.com/hitoshi/bookman/internal/download"
	"github.com/hitoshi/bookman/internal/handler"
	"github.com/hitoshi/bookman/internal/library"
	"github.com/hitoshi/bookman/internal/logger"
	"github.com/hitoshi/bookman/internal/metrics"
	"github.com/hitoshi/bookman/internal/middleware"
	"github.com/hitoshi/bookman/internal/notify"
	"github.com/hitoshi/bookman/internal/provider"
	"github.com/hitoshi/bookman/internal/repository"
	"github.com/hitoshi/bookman/internal/request"
	"github.com/hitoshi/bookman/internal/security"
	"github.com/hitoshi/bookman/internal/source"
	"github.com/hitoshi/bookman/internal/worker/cleanup"
	"github.com/hitoshi/bookman/internal/worker/libsync"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandServe:
		return runServe(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーと
// バックグラウンドジョブ（イベントバス、カタログ同期、セッション掃除）を起動する。
// オーケストレーター実行とAPIが同一プロセスでGuardを共有するため、
// バックグラウンド処理を別プロセスに分離しない。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	requestRepo := repository.NewPostgresRequestRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewMetadataSanitizer()

	// 5. メタデータプロバイダとリリースソースの初期化
	// 外部の公開APIへ出るHTTPクライアントはすべてSSRF防止付きを使う。
	providers := provider.NewRegistry()
	openLibrary := provider.NewOpenLibrary(
		ssrfGuard.NewSafeClient(cfg.MetadataTimeout), slog.Default(),
	)
	if err := providers.Register(openLibrary); err != nil {
		return fmt.Errorf("failed to register metadata provider: %w", err)
	}

	sources := source.NewRegistry()
	sources.Register(source.NewAnnas(
		source.AnnasConfig{
			Enabled:    cfg.AnnasEnabled,
			BaseURL:    cfg.AnnasBaseURL,
			DonatorKey: cfg.AnnasDonatorKey,
		},
		ssrfGuard.NewSafeClient(cfg.SearchTimeout), slog.Default(),
	))

	// 6. ライブラリカタログキャッシュの初期化
	// カタログはLAN内サービスのため素のHTTPクライアントを使う。
	var libClient library.ItemLister
	if cfg.LibraryConfigured() {
		libClient = library.NewClient(
			cfg.LibraryURL, cfg.LibraryAPIToken,
			&http.Client{Timeout: 30 * time.Second}, slog.Default(),
		)
	}
	libCache := library.NewCache(libClient, slog.Default())

	// 7. イベントバスと通知の初期化
	bus := notify.NewBus(slog.Default())

	if cfg.NotifyEmailEnabled {
		bus.Register(notify.NewEmailNotifier(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}, userRepo, slog.Default()))
	}
	if cfg.DiscordWebhookURL != "" {
		discord, err := notify.NewDiscordNotifier(
			cfg.DiscordWebhookURL,
			ssrfGuard.NewSafeClient(10*time.Second), slog.Default(),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize discord notifier: %w", err)
		}
		bus.Register(discord)
	}
	if cfg.PushoverEnabled {
		bus.Register(notify.NewPushoverNotifier(
			cfg.PushoverUserKey, cfg.PushoverAPIToken,
			ssrfGuard.NewSafeClient(10*time.Second), slog.Default(),
		))
	}

	eventsHub := handler.NewEventsHub(slog.Default())
	bus.Register(eventsHub)

	// 8. ダウンロードオーケストレーターの初期化
	// キューは外部ダウンロード実行サービス（LAN内）のため素のクライアントを使う。
	guard := download.NewGuard()
	queue := download.NewHTTPQueue(
		cfg.QueueURL, &http.Client{Timeout: cfg.QueueTimeout}, slog.Default(),
	)
	orchestrator := download.NewOrchestrator(
		requestRepo, providers, sources, queue, bus, collector, slog.Default(),
	)

	// 9. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	}, slog.Default())

	if cfg.AuthMode == config.AuthModeLocal {
		if err := authService.SeedAdmin(context.Background()); err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}
	}

	requestService := request.NewService(
		requestRepo, userRepo, providers, cfg.MetadataProvider,
		orchestrator, guard, bus, sanitizer, collector, slog.Default(),
	)

	// 10. ルーターの構築
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.CreateRate = rate.Limit(float64(cfg.RateLimitReqCreate) / 60.0)
	rateLimiterCfg.CreateBurst = cfg.RateLimitReqCreate
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// CSRF保護はCookieセッションを使うローカル認証モードのみ有効にする
	var csrfConfig *middleware.CSRFConfig
	if cfg.AuthMode == config.AuthModeLocal {
		csrfConfig = &middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		}
	}

	deps := &handler.RouterDeps{
		AuthDisabled:      cfg.AuthMode == config.AuthModeNone,
		UserResolver:      authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		LoggingMiddleware: middleware.NewLoggingMiddleware(slog.Default(), collector),
		CSRFConfig:        csrfConfig,

		RequestService: requestService,
		LibraryCache:   libCache,
		AuthService:    authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure:  cfg.CookieSecure,
			CookieDomain:  cfg.CookieDomain,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		TaskUpdater: requestService,
		EventsHub:   eventsHub,

		MetricsGatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 11. バックグラウンドジョブの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus.Start(ctx)

	refresher := libsync.NewRefresher(libCache, collector, slog.Default())
	go refresher.Start(ctx, cfg.LibraryRefreshInterval)

	cleanupJob := cleanup.NewSessionCleanupJob(sessionRepo, slog.Default())
	go cleanupJob.Start(ctx)

	// 12. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("auth_mode", string(cfg.AuthMode)),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// バックグラウンドジョブとイベントバスを停止する
	cancel()
	bus.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
