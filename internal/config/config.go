// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AuthMode は認証モードを表す。
type AuthMode string

const (
	// AuthModeNone は認証なしモード。全リクエストを認証済み管理者として扱う。
	AuthModeNone AuthMode = "none"
	// AuthModeLocal はローカルユーザー認証モード。
	AuthModeLocal AuthMode = "local"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth / Session
	AuthMode      AuthMode
	SessionMaxAge int
	AdminUsername string
	AdminPassword string

	// Rate Limit
	RateLimitGeneral   int
	RateLimitReqCreate int

	// Library（重複検出キャッシュの参照先カタログ）
	LibraryURL             string
	LibraryAPIToken        string
	LibraryRefreshInterval time.Duration

	// Metadata provider
	MetadataProvider string
	MetadataTimeout  time.Duration

	// Release sources
	AnnasEnabled    bool
	AnnasBaseURL    string
	AnnasDonatorKey string
	SearchTimeout   time.Duration

	// Download queue（外部ダウンロード実行サービス）
	QueueURL     string
	QueueTimeout time.Duration

	// Notifications
	NotifyEmailEnabled bool
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	EmailFrom          string
	DiscordWebhookURL  string
	PushoverEnabled    bool
	PushoverUserKey    string
	PushoverAPIToken   string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	mode := AuthMode(getEnvString("AUTH_MODE", string(AuthModeNone)))
	if mode != AuthModeNone && mode != AuthModeLocal {
		return nil, fmt.Errorf("invalid AUTH_MODE: %q (must be none or local)", mode)
	}
	cfg.AuthMode = mode

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.AdminUsername = getEnvString("ADMIN_USERNAME", "admin")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitReqCreate = getEnvInt("RATE_LIMIT_REQUEST_CREATE", 10)
	cfg.LibraryURL = strings.TrimRight(getEnvString("LIBRARY_URL", ""), "/")
	cfg.LibraryAPIToken = getEnvString("LIBRARY_API_TOKEN", "")
	cfg.LibraryRefreshInterval = getEnvDuration("LIBRARY_REFRESH_INTERVAL", time.Hour)
	cfg.MetadataProvider = getEnvString("METADATA_PROVIDER", "openlibrary")
	cfg.MetadataTimeout = getEnvDuration("METADATA_TIMEOUT", 15*time.Second)
	cfg.AnnasEnabled = getEnvBool("ANNAS_ENABLED", false)
	cfg.AnnasBaseURL = getEnvString("ANNAS_BASE_URL", "")
	cfg.AnnasDonatorKey = getEnvString("ANNAS_DONATOR_KEY", "")
	cfg.SearchTimeout = getEnvDuration("SEARCH_TIMEOUT", 30*time.Second)
	cfg.QueueURL = strings.TrimRight(getEnvString("QUEUE_URL", ""), "/")
	cfg.QueueTimeout = getEnvDuration("QUEUE_TIMEOUT", 30*time.Second)
	cfg.NotifyEmailEnabled = getEnvBool("NOTIFY_EMAIL_ENABLED", false)
	cfg.SMTPHost = getEnvString("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.EmailFrom = getEnvString("EMAIL_FROM", "")
	cfg.DiscordWebhookURL = getEnvString("DISCORD_WEBHOOK_URL", "")
	cfg.PushoverEnabled = getEnvBool("PUSHOVER_ENABLED", false)
	cfg.PushoverUserKey = getEnvString("PUSHOVER_USER_KEY", "")
	cfg.PushoverAPIToken = getEnvString("PUSHOVER_API_TOKEN", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// LibraryConfigured は外部ライブラリカタログの認証情報が設定済みかを返す。
func (c *Config) LibraryConfigured() bool {
	return c.LibraryURL != "" && c.LibraryAPIToken != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
